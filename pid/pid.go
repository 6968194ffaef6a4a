// Package pid implements a discrete PID controller with feed-forward and optional
// continuous (wrapping) input.
package pid

import (
	"math"
	"time"
)

// Gains are the controller coefficients. FF multiplies the setpoint.
type Gains struct {
	P  float64 `json:"p"`
	I  float64 `json:"i"`
	D  float64 `json:"d"`
	FF float64 `json:"ff"`
	// MaxIntegral bounds the accumulated error; zero leaves it unbounded.
	MaxIntegral float64 `json:"max_integral,omitempty"`
}

// Controller is a PID controller. It is not safe for concurrent use.
type Controller struct {
	gains Gains

	continuous    bool
	minInput      float64
	maxInput      float64
	integral      float64
	lastError     float64
	haveLastError bool
}

// New returns a controller with the given gains.
func New(gains Gains) *Controller {
	return &Controller{gains: gains}
}

// EnableContinuousInput treats min and max as the same point, so the error is always taken
// the short way around.
func (c *Controller) EnableContinuousInput(min, max float64) {
	c.continuous = true
	c.minInput = min
	c.maxInput = max
}

// SetGains replaces the gains without clearing accumulated state.
func (c *Controller) SetGains(gains Gains) {
	c.gains = gains
}

// Gains returns the current gains.
func (c *Controller) Gains() Gains {
	return c.gains
}

// Reset clears the integral and derivative history.
func (c *Controller) Reset() {
	c.integral = 0
	c.lastError = 0
	c.haveLastError = false
}

// Calculate returns the control output for one step of length dt.
func (c *Controller) Calculate(measurement, setpoint float64, dt time.Duration) float64 {
	err := setpoint - measurement
	if c.continuous {
		span := c.maxInput - c.minInput
		err = math.Remainder(err, span)
	}

	secs := dt.Seconds()
	var derivative float64
	if secs > 0 {
		c.integral += err * secs
		if c.gains.MaxIntegral > 0 {
			c.integral = math.Max(-c.gains.MaxIntegral, math.Min(c.integral, c.gains.MaxIntegral))
		}
		if c.haveLastError {
			derivative = (err - c.lastError) / secs
		}
	}
	c.lastError = err
	c.haveLastError = true

	return c.gains.P*err + c.gains.I*c.integral + c.gains.D*derivative + c.gains.FF*setpoint
}
