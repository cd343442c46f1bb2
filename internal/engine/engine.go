// Package engine drives one cabin's motor: two direction GPIOs and a PWM
// duty line, using periph.io/x/conn/v3 for local GPIO control rather than a wire transaction, since this component's job
// is driving pins directly, not talking to a remote device.
package engine

import (
	"fmt"

	"elevator-rig-core/internal/cabin"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// carrierFrequency is the fixed PWM carrier the motor driver expects.
const carrierFrequency = 1 * physic.KiloHertz

// minPotency is the floor imposed on commanded duty while a move is still
// in progress and the target sensor has not asserted, so the cabin never
// stalls below stiction (data model invariant 2).
const minPotency = 0.05

// Engine owns the three output lines for one cabin's motor. It is not
// thread-safe: each cabin owns exactly one Engine and no other component
// may hold a reference to its pins (data model invariant 1, design note on
// GPIO ownership).
type Engine struct {
	id   cabin.ID
	dir1 gpio.PinOut
	dir2 gpio.PinOut
	pwm  gpio.PinOut

	direction cabin.Direction
	potency   float64
}

// New wires an Engine to the three GPIO lines identified by name (as
// returned by gpioreg.ByName, e.g. "GPIO20"). The direction pins start
// high/high (Stop, braking) so the cabin never moves on its own before the
// first SetDirection call.
func New(id cabin.ID, dir1, dir2, pwm gpio.PinOut) (*Engine, error) {
	if err := dir1.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("engine[%s]: init dir1: %w", id, err)
	}
	if err := dir2.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("engine[%s]: init dir2: %w", id, err)
	}
	if err := pwm.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("engine[%s]: init pwm: %w", id, err)
	}

	return &Engine{
		id:        id,
		dir1:      dir1,
		dir2:      dir2,
		pwm:       pwm,
		direction: cabin.Stop,
	}, nil
}

// SetDirection maps Direction onto the two direction pins: Up is
// (high, low), Down is (low, high), Stop brakes both pins high. The two
// pins are always written together so they are never observed in a
// transient half-state (invariant 1).
func (e *Engine) SetDirection(d cabin.Direction) error {
	var l1, l2 gpio.Level
	switch d {
	case cabin.Up:
		l1, l2 = gpio.High, gpio.Low
	case cabin.Down:
		l1, l2 = gpio.Low, gpio.High
	default:
		l1, l2 = gpio.High, gpio.High
	}

	if err := e.dir1.Out(l1); err != nil {
		return fmt.Errorf("engine[%s]: set dir1: %w", e.id, err)
	}
	if err := e.dir2.Out(l2); err != nil {
		return fmt.Errorf("engine[%s]: set dir2: %w", e.id, err)
	}
	e.direction = d
	return nil
}

// SetPotency clamps duty to [0,1] and commands the PWM line at the fixed
// 1 kHz carrier (invariant 2).
func (e *Engine) SetPotency(duty float64) error {
	if duty < 0 {
		duty = 0
	} else if duty > 1 {
		duty = 1
	}
	e.potency = duty

	d := gpio.Duty(duty * float64(gpio.DutyMax))
	if err := e.pwm.PWM(d, carrierFrequency); err != nil {
		return fmt.Errorf("engine[%s]: set potency: %w", e.id, err)
	}
	return nil
}

// ClampMoving returns duty clamped to at least minPotency, the floor every
// move-loop iteration imposes while the target sensor is not yet asserted.
func ClampMoving(duty float64) float64 {
	if duty < minPotency {
		return minPotency
	}
	return duty
}

// Stop is a convenience that brakes the motor and zeroes potency, used by
// the move loop, the emergency path, and the supervisor's shutdown
// sequence.
func (e *Engine) Stop() error {
	if err := e.SetDirection(cabin.Stop); err != nil {
		return err
	}
	return e.SetPotency(0)
}

// Direction reports the last commanded direction.
func (e *Engine) Direction() cabin.Direction { return e.direction }

// Potency reports the last commanded duty cycle.
func (e *Engine) Potency() float64 { return e.potency }
