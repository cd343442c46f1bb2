package status

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bme280"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/link"
)

// tempPollInterval is the cadence at which both cabins' temperature
// sensors are sampled.
const tempPollInterval = 1 * time.Second

// bme280Addr is the I2C address of each cabin's onboard sensor; the two
// chips sit on the same bus at the controller's two supported addresses.
var bme280Addr = [2]uint16{0x76, 0x77}

// TemperaturePoller reads both cabins' BME280 sensors once per
// tempPollInterval and, when a cabin's reading has changed, reports it
// over the peripheral link and to a status Sink.
type TemperaturePoller struct {
	link    *link.Link
	sink    Sink
	sensors [2]*bme280.Dev
	last    [2]float32
	known   [2]bool
}

// NewTemperaturePoller opens both cabins' sensors on the given bus.
func NewTemperaturePoller(l *link.Link, sink Sink, bus i2c.Bus) (*TemperaturePoller, error) {
	p := &TemperaturePoller{link: l, sink: sink}

	for i, addr := range bme280Addr {
		dev, err := bme280.NewI2C(bus, &bme280.Opts{
			Temperature: bme280.O4x,
			Pressure:    bme280.Off,
			Humidity:    bme280.Off,
			Filter:      bme280.NoFilter,
			Address:     addr,
		})
		if err != nil {
			return nil, fmt.Errorf("status: open bme280 at %#x: %w", addr, err)
		}
		p.sensors[i] = dev
	}

	return p, nil
}

// Run polls at tempPollInterval until stop is closed.
func (p *TemperaturePoller) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(tempPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *TemperaturePoller) poll() {
	for i := range p.sensors {
		id := cabin.ID(i)

		var env physic.Env
		if err := p.sensors[i].Sense(&env); err != nil {
			continue
		}

		celsius := scaleCelsius(float64(env.Temperature-physic.ZeroCelsius) / float64(physic.Celsius))

		if p.known[i] && celsius == p.last[i] {
			continue
		}
		p.known[i] = true
		p.last[i] = celsius

		if err := p.link.SendTemperature(id, celsius); err != nil {
			continue
		}
		p.sink.UpdateTemperature(id, celsius)
	}
}

// scaleCelsius applies the sysfs-style rounding formula used before
// reporting a temperature: (((raw/1000)*100+0.5)/100) on a millidegree
// reading, which reduces to this form on an already-Celsius value.
func scaleCelsius(celsius float64) float32 {
	return float32(((celsius * 100) + 0.5) / 100)
}
