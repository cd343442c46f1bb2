// Package pid implements the per-cabin incremental PID regulator that turns
// an encoder position error into a (potency, direction) command. The gains
// and the 100-unit saturation are part of the contract, not tuning knobs.
package pid

import "elevator-rig-core/internal/cabin"

const (
	kp = 0.005
	ki = 0.0
	kd = 0.01
	t  = 1.0

	maxSaturation = 100.0
	minSaturation = -100.0
)

// Controller holds the incremental PID state for one cabin: the running
// integral and the previous tick's error. A Controller is not safe for
// concurrent use; each move-to-floor worker owns exactly one, embedded in
// its cabin state.
type Controller struct {
	totalError float64
	lastError  float64
}

// New returns a Controller with zeroed integral and error history.
func New() *Controller {
	return &Controller{}
}

// Get computes one control tick from the current encoder position to the
// target position and returns the commanded potency in [0,1] together with
// the direction to drive it. origin and target are evaluated as
// floating-point to preserve the integral term's precision across ticks.
func (c *Controller) Get(origin, target int32) (potency float64, direction cabin.Direction) {
	errorVal := float64(target) - float64(origin)

	c.totalError += errorVal
	c.totalError = clamp(c.totalError, minSaturation, maxSaturation)

	delta := errorVal - c.lastError

	u := kp*errorVal + (ki*t)*c.totalError + (kd/t)*delta
	u = clamp(u, minSaturation, maxSaturation)

	c.lastError = errorVal

	direction = cabin.Down
	if u >= 0 {
		direction = cabin.Up
	}

	return absF(u) / 100.0, direction
}

func clamp(v, lo, hi float64) float64 {
	if v >= hi {
		return hi
	}
	if v <= lo {
		return lo
	}
	return v
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
