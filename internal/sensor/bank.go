// Package sensor reads the per-floor presence sensors mounted in each
// cabin's shaft: one level-sensed GPIO line per floor, high while the
// cabin sits in that floor's sensor band. The move and calibration loops
// poll these four lines by level rather than edge interrupt.
package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"

	"elevator-rig-core/internal/cabin"
)

// Bank is the four level-sensed floor lines for one cabin, indexed by
// cabin.Floor.
type Bank struct {
	pins [4]gpio.PinIn
}

// NewBank wires one input pin per floor, in cabin.Floors order, and
// configures each for level sensing with no pull (the rig supplies its own
// pull network on the sensor board).
func NewBank(ground, first, second, third gpio.PinIn) (*Bank, error) {
	b := &Bank{pins: [4]gpio.PinIn{ground, first, second, third}}
	for i, p := range b.pins {
		if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("sensor: configure %s pin: %w", cabin.Floors[i], err)
		}
	}
	return b, nil
}

// High reports whether the sensor for the given floor currently reads
// asserted (the cabin sits within that floor's detection band).
func (b *Bank) High(f cabin.Floor) bool {
	return b.pins[f].Read() == gpio.High
}

// Low is the complement of High, used by the move and calibration loops'
// polling conditions which are naturally phrased as "while sensor is low".
func (b *Bank) Low(f cabin.Floor) bool {
	return !b.High(f)
}
