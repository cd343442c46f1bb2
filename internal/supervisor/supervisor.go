// Package supervisor wires every component together and owns the rig's
// lifecycle: host/device initialization, per-cabin calibration-or-load,
// spawning the panel pollers, temperature poller, and move workers, and a
// cooperative shutdown that stops both cabins and releases every
// peripheral, following the init-then-spawn-then-wait shape of a
// long-running poll-loop service.
package supervisor

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/calibration"
	"elevator-rig-core/internal/config"
	"elevator-rig-core/internal/engine"
	"elevator-rig-core/internal/link"
	"elevator-rig-core/internal/move"
	"elevator-rig-core/internal/panel"
	"elevator-rig-core/internal/queue"
	"elevator-rig-core/internal/sensor"
	"elevator-rig-core/internal/status"
	"elevator-rig-core/internal/telemetry"
)

// cabinRig bundles the running components for one cabin.
type cabinRig struct {
	id     cabin.ID
	engine *engine.Engine
	bank   *sensor.Bank
	queue  *queue.Queue
	panel  *panel.Poller
	move   *move.Worker
}

// Supervisor owns every component wired for both cabins plus the shared
// peripheral link, display, and telemetry.
type Supervisor struct {
	cfg  config.Config
	link *link.Link
	bus  i2c.BusCloser

	cabins [2]*cabinRig

	oled      *status.OLED
	temp      *status.TemperaturePoller
	telemetry *telemetry.State
	publisher *telemetry.Publisher
	router    *telemetry.Router

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New initializes host drivers, opens the peripheral link, wires GPIO and
// I2C, runs or loads calibration for both cabins, and assembles every
// worker. It does not start any goroutine yet; call Run for that.
func New(cfg config.Config) (*Supervisor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("supervisor: host init: %w", err)
	}

	l, err := link.Open(cfg.SerialDevice)
	if err != nil {
		return nil, err
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("supervisor: open i2c bus: %w", err)
	}

	sup := &Supervisor{
		cfg:       cfg,
		link:      l,
		bus:       bus,
		telemetry: telemetry.NewState(),
		stop:      make(chan struct{}),
	}

	oled, err := status.NewOLED(bus)
	if err != nil {
		log.Printf("supervisor: oled unavailable, continuing without display: %v", err)
	}
	sup.oled = oled

	temp, err := status.NewTemperaturePoller(l, sup.sink(), bus)
	if err != nil {
		log.Printf("supervisor: temperature sensors unavailable: %v", err)
	}
	sup.temp = temp

	cabinA, err := sup.buildCabin(cabin.A, cfg.CabinA, cfg.CalibrationPathA)
	if err != nil {
		l.Close()
		return nil, err
	}
	sup.cabins[cabin.A] = cabinA

	cabinB, err := sup.buildCabin(cabin.B, cfg.CabinB, cfg.CalibrationPathB)
	if err != nil {
		l.Close()
		return nil, err
	}
	sup.cabins[cabin.B] = cabinB

	publisher, err := telemetry.NewPublisher(
		cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword, cfg.StateTopic,
		sup.telemetry, cabinA.queue, cabinB.queue,
	)
	if err != nil {
		log.Printf("supervisor: mqtt telemetry unavailable: %v", err)
	}
	sup.publisher = publisher

	sup.router = telemetry.NewRouter(cabinA.queue, cabinB.queue)

	return sup, nil
}

// sink returns the combined status sink: the OLED (if present) plus the
// telemetry state, which always exists.
func (s *Supervisor) sink() status.Sink {
	if s.oled == nil {
		return s.telemetry
	}
	return status.MultiSink{s.oled, s.telemetry}
}

func (s *Supervisor) buildCabin(id cabin.ID, pins config.CabinGPIO, calibrationPath string) (*cabinRig, error) {
	dir1 := gpioreg.ByName(pins.Dir1Pin)
	dir2 := gpioreg.ByName(pins.Dir2Pin)
	pwm := gpioreg.ByName(pins.PWMPin)
	if dir1 == nil || dir2 == nil || pwm == nil {
		return nil, fmt.Errorf("supervisor: cabin %s: missing engine GPIO pin", id)
	}

	eng, err := engine.New(id, dir1.(gpio.PinOut), dir2.(gpio.PinOut), pwm.(gpio.PinOut))
	if err != nil {
		return nil, err
	}

	ground := gpioreg.ByName(pins.GroundPin)
	first := gpioreg.ByName(pins.FirstPin)
	second := gpioreg.ByName(pins.SecondPin)
	third := gpioreg.ByName(pins.ThirdPin)
	if ground == nil || first == nil || second == nil || third == nil {
		return nil, fmt.Errorf("supervisor: cabin %s: missing sensor GPIO pin", id)
	}

	bank, err := sensor.NewBank(ground.(gpio.PinIn), first.(gpio.PinIn), second.(gpio.PinIn), third.(gpio.PinIn))
	if err != nil {
		return nil, err
	}

	positions, err := loadOrCalibrate(s.link, eng, bank, id, calibrationPath)
	if err != nil {
		return nil, err
	}

	encoderPos, err := s.link.GetEncoderValue(id.Encoder())
	if err != nil {
		return nil, fmt.Errorf("supervisor: cabin %s: read initial encoder: %w", id, err)
	}
	initial := cabin.DeriveFloor(encoderPos, positions)

	q := queue.New()
	sink := s.sink()
	sink.UpdateFloor(id, initial)
	sink.UpdateDirection(id, cabin.Stop)

	return &cabinRig{
		id:     id,
		engine: eng,
		bank:   bank,
		queue:  q,
		panel:  panel.NewPoller(id, s.link, q),
		move:   move.NewWorker(id, s.link, eng, bank, q, sink, positions, initial),
	}, nil
}

func loadOrCalibrate(l *link.Link, eng *engine.Engine, bank *sensor.Bank, id cabin.ID, path string) (cabin.FloorPositions, error) {
	if _, err := os.Stat(path); err == nil {
		positions, loadErr := calibration.Load(path)
		if loadErr == nil {
			return positions, nil
		}
		log.Printf("supervisor: cabin %s: calibration file invalid, recalibrating: %v", id, loadErr)
	}

	log.Printf("supervisor: cabin %s: starting calibration, do not power off", id)
	positions, err := calibration.Run(l, eng, bank, id)
	if err != nil {
		return cabin.FloorPositions{}, fmt.Errorf("supervisor: cabin %s: calibration: %w", id, err)
	}
	if err := calibration.Save(path, positions); err != nil {
		log.Printf("supervisor: cabin %s: failed to persist calibration: %v", id, err)
	}
	log.Printf("supervisor: cabin %s: calibration finished", id)

	return positions, nil
}

// Run starts the panel pollers, temperature poller, move workers, MQTT
// publisher and command router, and blocks until Close stops every worker.
func (s *Supervisor) Run() {
	for _, rig := range s.cabins {
		s.spawn(rig.panel.Run)
		s.spawn(rig.move.Run)
	}
	if s.temp != nil {
		s.spawn(s.temp.Run)
	}
	if s.publisher != nil {
		s.spawn(func(stop <-chan struct{}) {
			s.publisher.Run(stop, time.Duration(s.cfg.TelemetryIntervalSeconds)*time.Second)
		})
		if err := s.router.Subscribe(s.publisher.Client(), s.cfg.CommandTopic); err != nil {
			log.Printf("supervisor: command subscription failed: %v", err)
		}
	}

	s.wg.Wait()
}

func (s *Supervisor) spawn(fn func(stop <-chan struct{})) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.stop)
	}()
}

// Close stops every worker, brakes both engines, and releases the
// peripheral link and MQTT connection. It is safe to call even if Run
// never returned, as a shutdown-path safety net around the deferred
// Disconnect/Close calls every peripheral needs.
func (s *Supervisor) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()

		for _, rig := range s.cabins {
			if rig == nil {
				continue
			}
			if err := rig.engine.Stop(); err != nil {
				log.Printf("supervisor: cabin %s: stop engine: %v", rig.id, err)
			}
		}

		if s.publisher != nil {
			s.publisher.Close()
		}
		if s.bus != nil {
			if err := s.bus.Close(); err != nil {
				log.Printf("supervisor: close i2c bus: %v", err)
			}
		}
		if err := s.link.Close(); err != nil {
			log.Printf("supervisor: close link: %v", err)
		}
	})
}
