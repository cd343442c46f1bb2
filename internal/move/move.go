// Package move implements the per-cabin move-to-floor control loop: pop a
// floor off the queue, drive the PID loop until the target sensor
// asserts or the emergency latch trips, then deassert that floor's
// buttons and dwell.
package move

import (
	"log"
	"time"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/engine"
	"elevator-rig-core/internal/link"
	"elevator-rig-core/internal/panel"
	"elevator-rig-core/internal/pid"
	"elevator-rig-core/internal/queue"
	"elevator-rig-core/internal/sensor"
	"elevator-rig-core/internal/status"
)

const (
	tickInterval = 100 * time.Millisecond
	dwellTime    = 2 * time.Second
)

// Worker drives one cabin's motion. It is not safe for concurrent use;
// each cabin has exactly one Worker running in its own goroutine.
type Worker struct {
	id        cabin.ID
	link      *link.Link
	engine    *engine.Engine
	bank      *sensor.Bank
	queue     *queue.Queue
	sink      status.Sink
	positions cabin.FloorPositions
	pid       *pid.Controller

	currentFloor cabin.Floor
}

// NewWorker builds a Worker seeded at initial, the floor derived from the
// cabin's encoder position at startup.
func NewWorker(id cabin.ID, l *link.Link, eng *engine.Engine, bank *sensor.Bank, q *queue.Queue, sink status.Sink, positions cabin.FloorPositions, initial cabin.Floor) *Worker {
	return &Worker{
		id:           id,
		link:         l,
		engine:       eng,
		bank:         bank,
		queue:        q,
		sink:         sink,
		positions:    positions,
		pid:          pid.New(),
		currentFloor: initial,
	}
}

// Run pops and services queued floors every tickInterval until stop is
// closed.
func (w *Worker) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if w.queue.Emergency() {
				continue
			}
			floor, ok := w.queue.Pop()
			if !ok {
				continue
			}
			w.moveTo(floor)
			time.Sleep(dwellTime)
		}
	}
}

// moveTo drives toward floor, closing the PID loop on every tick, and
// deasserts that floor's buttons whether or not the cabin actually had to
// move: every queue pop deasserts, even a no-op one where the cabin was
// already at the requested floor.
func (w *Worker) moveTo(floor cabin.Floor) {
	if floor != w.currentFloor {
		direction := cabin.DirectionTo(w.currentFloor, floor)
		_ = w.engine.SetDirection(direction)
		w.sink.UpdateDirection(w.id, direction)

		target := w.positions.At(floor)
		encoder := w.id.Encoder()

		for w.bank.Low(floor) && !w.queue.Emergency() {
			pos, err := w.link.GetEncoderValue(encoder)
			if err != nil {
				// The link has exhausted its retries; the peripheral is
				// unreachable and there is no position to close the loop
				// on. Brake rather than keep driving blind, then stop the
				// process: a dead link leaves no safe way to keep this
				// cabin under closed-loop control.
				_ = w.engine.Stop()
				w.sink.UpdateDirection(w.id, cabin.Stop)
				log.Fatalf("move: cabin %s: encoder link failed, braked and stopping: %v", w.id, err)
			}

			potency, dir := w.pid.Get(pos, target)

			_ = w.engine.SetDirection(dir)
			_ = w.engine.SetPotency(engine.ClampMoving(potency))

			signal := int32(potency * 100)
			if dir == cabin.Down {
				signal = -signal
			}
			w.link.TrySendControlSignal(encoder, signal)

			if derived := cabin.DeriveFloor(pos, w.positions); derived != w.currentFloor {
				w.currentFloor = derived
				w.sink.UpdateFloor(w.id, derived)
			}

			time.Sleep(tickInterval)
		}

		_ = w.engine.Stop()
		w.sink.UpdateDirection(w.id, cabin.Stop)
	}

	_ = panel.Deassert(w.link, w.id, floor)
}
