// Package telemetry contains the pure data model of the espresso dashboard:
// telemetry samples, the controller configuration cache and the bounded
// sample buffer. This package has NO external dependencies (no MQTT, HTTP,
// OS or clocks).
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultCapacity is the number of samples kept in the rolling history.
const DefaultCapacity = 180

var (
	// ErrNegativeTimestamp is returned for samples stamped before the epoch.
	ErrNegativeTimestamp = errors.New("negative timestamp")

	// ErrNonFinite is returned for samples or configs carrying NaN or Inf.
	ErrNonFinite = errors.New("non-finite value")
)

// Sample is one timestamped reading from the controller.
// Timestamp is the controller-assigned event time in epoch milliseconds and
// is the sample's identity.
type Sample struct {
	Timestamp    int64
	Temperature  float64 // °C
	Setpoint     float64 // °C
	DutyCycle    float64 // heater output, 0..1
	ShotDuration float64 // seconds
}

// Time returns the sample timestamp as a time.Time.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Validate reports whether the sample can be stored.
func (s Sample) Validate() error {
	if s.Timestamp < 0 {
		return ErrNegativeTimestamp
	}
	fields := []struct {
		name string
		v    float64
	}{
		{"temperature", s.Temperature},
		{"setpoint", s.Setpoint},
		{"duty cycle", s.DutyCycle},
		{"shot duration", s.ShotDuration},
	}
	for _, f := range fields {
		if !isFinite(f.v) {
			return fmt.Errorf("%s: %w", f.name, ErrNonFinite)
		}
	}
	return nil
}

// ControllerConfig is the local cache of the controller's editable settings.
// It is only ever replaced wholesale by a config snapshot from the controller.
type ControllerConfig struct {
	BrewSetpoint  float64
	SteamSetpoint float64
	ShotTimeLimit float64
}

// Validate reports whether every field is finite.
func (c ControllerConfig) Validate() error {
	for _, p := range Params {
		if !isFinite(p.Value(c)) {
			return fmt.Errorf("%s: %w", p, ErrNonFinite)
		}
	}
	return nil
}

// Param identifies one editable controller setting.
type Param string

const (
	ParamBrewSetpoint  Param = "brew_setpoint"
	ParamSteamSetpoint Param = "steam_setpoint"
	ParamShotTimeLimit Param = "shot_time_limit"
)

// Params lists every editable setting in display order.
var Params = []Param{ParamBrewSetpoint, ParamSteamSetpoint, ParamShotTimeLimit}

// Bounds is an inclusive range of accepted values.
type Bounds struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Bounds returns the range the controller firmware accepts for p.
func (p Param) Bounds() Bounds {
	switch p {
	case ParamBrewSetpoint:
		return Bounds{Min: 80, Max: 110}
	case ParamSteamSetpoint:
		return Bounds{Min: 120, Max: 160}
	case ParamShotTimeLimit:
		return Bounds{Min: 0, Max: 45}
	}
	return Bounds{}
}

// Unit returns the display unit for p.
func (p Param) Unit() string {
	if p == ParamShotTimeLimit {
		return "s"
	}
	return "°C"
}

// Label returns a human readable name for p.
func (p Param) Label() string {
	switch p {
	case ParamBrewSetpoint:
		return "Brew setpoint"
	case ParamSteamSetpoint:
		return "Steam setpoint"
	case ParamShotTimeLimit:
		return "Shot time limit"
	}
	return string(p)
}

// Command returns the controller command name that sets p.
func (p Param) Command() string {
	return "set_" + string(p)
}

// Value reads p from a config.
func (p Param) Value(c ControllerConfig) float64 {
	switch p {
	case ParamBrewSetpoint:
		return c.BrewSetpoint
	case ParamSteamSetpoint:
		return c.SteamSetpoint
	case ParamShotTimeLimit:
		return c.ShotTimeLimit
	}
	return 0
}

// ParseParam looks up a Param by name. It accepts both the param name and
// its command name.
func ParseParam(name string) (Param, bool) {
	for _, p := range Params {
		if name == string(p) || name == p.Command() {
			return p, true
		}
	}
	return "", false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
