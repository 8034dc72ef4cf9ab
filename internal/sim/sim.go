// Package sim simulates the espresso controller for bench testing the
// dashboard without hardware. Time is always injectable via time.Time
// parameters.
package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// DefaultConfig matches the controller's factory settings.
var DefaultConfig = telemetry.ControllerConfig{
	BrewSetpoint:  93,
	SteamSetpoint: 140,
	ShotTimeLimit: 0,
}

// wavePeriod is the period of the simulated temperature swing.
const wavePeriod = 120 * time.Second

// Controller is a simulated machine controller. It produces telemetry,
// remembers recent samples for backfill and applies bounded setpoint
// commands the way the firmware does: out-of-range values are refused.
type Controller struct {
	cfg     telemetry.ControllerConfig
	history *history
}

// NewController creates a controller keeping historySize samples.
func NewController(cfg telemetry.ControllerConfig, historySize int) *Controller {
	return &Controller{cfg: cfg, history: newHistory(historySize)}
}

// Step produces the sample for now and records it in the history.
// Temperature follows sin(t·2π/120 s)·40 + 60.
func (c *Controller) Step(now time.Time) telemetry.Sample {
	phase := float64(now.UnixMilli()) / float64(wavePeriod.Milliseconds()) * 2 * math.Pi
	temp := math.Sin(phase)*40 + 60
	s := telemetry.Sample{
		Timestamp:   now.UnixMilli(),
		Temperature: temp,
		Setpoint:    c.cfg.BrewSetpoint,
		DutyCycle:   dutyCycle(c.cfg.BrewSetpoint, temp),
	}
	c.history.push(s)
	return s
}

// dutyCycle is a proportional heater output clamped to 0..1.
func dutyCycle(setpoint, temp float64) float64 {
	return math.Max(0, math.Min(1, (setpoint-temp)/10))
}

// Apply sets param to value if the firmware bounds allow it and reports
// whether it was accepted.
func (c *Controller) Apply(param telemetry.Param, value float64) bool {
	if math.IsNaN(value) || !param.Bounds().Contains(value) {
		return false
	}
	switch param {
	case telemetry.ParamBrewSetpoint:
		c.cfg.BrewSetpoint = value
	case telemetry.ParamSteamSetpoint:
		c.cfg.SteamSetpoint = value
	case telemetry.ParamShotTimeLimit:
		c.cfg.ShotTimeLimit = value
	default:
		return false
	}
	return true
}

// ApplyCommand applies a named setpoint command such as "set_brew_setpoint".
func (c *Controller) ApplyCommand(name string, value float64) (bool, error) {
	p, ok := telemetry.ParseParam(name)
	if !ok {
		return false, fmt.Errorf("unknown command %q", name)
	}
	return c.Apply(p, value), nil
}

// Config returns the current settings.
func (c *Controller) Config() telemetry.ControllerConfig {
	return c.cfg
}

// History returns the remembered samples, oldest first.
func (c *Controller) History() []telemetry.Sample {
	return c.history.all()
}

// HistoryLen returns the number of remembered samples.
func (c *Controller) HistoryLen() int {
	return c.history.len()
}
