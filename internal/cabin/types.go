// Package cabin holds the data model shared by every subsystem that drives
// one of the two elevator cabins: identifiers, the floor total order,
// direction, and the per-cabin mutable state.
package cabin

import "fmt"

// ID identifies one of the two cabins sharing the rig.
type ID uint8

const (
	A ID = iota
	B
)

// String implements fmt.Stringer.
func (c ID) String() string {
	switch c {
	case A:
		return "A"
	case B:
		return "B"
	default:
		return fmt.Sprintf("ID(%d)", uint8(c))
	}
}

// EncoderID is the wire-level encoder identifier the peripheral expects.
type EncoderID uint8

const (
	EncoderA EncoderID = 0x00
	EncoderB EncoderID = 0x01
)

// Encoder returns the wire encoder id owned by this cabin.
func (c ID) Encoder() EncoderID {
	if c == A {
		return EncoderA
	}
	return EncoderB
}

// Floor is the ordered set of stops the rig serves. The zero value is
// Ground, and the order Ground < First < Second < Third is load-bearing:
// callers compare floors with < and == to decide direction, so no sentinel
// "unknown" variant is added here. No caller holds an unknown floor: each
// cabin's starting floor is derived from its encoder at startup.
type Floor int

const (
	Ground Floor = iota
	First
	Second
	Third
)

var floorNames = [...]string{"Ground", "First", "Second", "Third"}

// String implements fmt.Stringer.
func (f Floor) String() string {
	if f < Ground || f > Third {
		return fmt.Sprintf("Floor(%d)", int(f))
	}
	return floorNames[f]
}

// Floors lists every serviced floor in ascending order.
var Floors = [4]Floor{Ground, First, Second, Third}

// Direction is the commanded or observed direction of travel. Stop
// represents idle.
type Direction uint8

const (
	Stop Direction = iota
	Up
	Down
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Up:
		return "Up"
	case Down:
		return "Down"
	default:
		return "Stop"
	}
}

// DirectionTo returns the direction of travel from one floor to another.
// It returns Stop when the floors are equal.
func DirectionTo(from, to Floor) Direction {
	switch {
	case to > from:
		return Up
	case to < from:
		return Down
	default:
		return Stop
	}
}

// FloorPositions maps each floor to the encoder count at the center of its
// sensor region, learned by calibration. The zero value has every floor at
// position 0 and is not a valid calibration — callers must populate it via
// calibration or by loading a persisted record before using it to derive
// targets.
type FloorPositions struct {
	Ground int32
	First  int32
	Second int32
	Third  int32
}

// At returns the learned encoder position for a floor.
func (fp FloorPositions) At(f Floor) int32 {
	switch f {
	case Ground:
		return fp.Ground
	case First:
		return fp.First
	case Second:
		return fp.Second
	default:
		return fp.Third
	}
}

// Set stores the learned encoder position for a floor.
func (fp *FloorPositions) Set(f Floor, pos int32) {
	switch f {
	case Ground:
		fp.Ground = pos
	case First:
		fp.First = pos
	case Second:
		fp.Second = pos
	default:
		fp.Third = pos
	}
}

// Ordered reports whether the four positions satisfy the ascending
// ordering a successful calibration must produce (invariant 3 of the data
// model).
func (fp FloorPositions) Ordered() bool {
	return fp.Ground < fp.First && fp.First < fp.Second && fp.Second < fp.Third
}

// DeriveFloor maps a raw encoder position to the floor it falls within,
// using the 100-count hysteresis band specified for the move-to-floor loop
// and the initial-floor determination at startup. It is non-decreasing in
// pos, per the floor-derivation monotonicity property.
func DeriveFloor(pos int32, fp FloorPositions) Floor {
	switch {
	case pos < fp.First-100:
		return Ground
	case pos < fp.Second-100:
		return First
	case pos < fp.Third-100:
		return Second
	default:
		return Third
	}
}
