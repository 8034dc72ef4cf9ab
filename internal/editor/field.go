// Package editor stages setpoint edits locally until they are committed to
// the controller. The controller stays the source of truth: a committed value
// only becomes authoritative when it comes back in a config snapshot.
package editor

import "github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"

// Step is the increment applied by Increment and Decrement.
const Step = 1.0

// State is the edit state of a Field.
type State string

const (
	StateClean State = "clean"
	StateDirty State = "dirty"
)

// Field is the staged-edit state machine for a single parameter.
// Not safe for concurrent use; Editor synchronizes access.
type Field struct {
	param         telemetry.Param
	bounds        telemetry.Bounds
	authoritative float64
	staged        float64
	known         bool
}

// NewField creates a field for p using the controller's bounds for p.
func NewField(p telemetry.Param) *Field {
	return &Field{param: p, bounds: p.Bounds()}
}

// Sync records the authoritative value from the latest config snapshot.
// When the value differs from the one already held, the staged value is reset
// to it and any in-progress edit is discarded. A snapshot repeating the held
// value leaves the edit alone.
func (f *Field) Sync(authoritative float64) {
	if f.known && authoritative == f.authoritative {
		return
	}
	f.authoritative = authoritative
	f.staged = authoritative
	f.known = true
}

// Increment raises the staged value by Step unless that leaves the bounds.
func (f *Field) Increment() {
	f.adjust(Step)
}

// Decrement lowers the staged value by Step unless that leaves the bounds.
func (f *Field) Decrement() {
	f.adjust(-Step)
}

func (f *Field) adjust(delta float64) {
	if !f.known {
		return
	}
	next := f.staged + delta
	if !f.bounds.Contains(next) {
		return
	}
	f.staged = next
}

// Cancel discards the staged edit.
func (f *Field) Cancel() {
	f.staged = f.authoritative
}

// Commit sends the staged value when it differs from the authoritative one
// and reports whether anything was sent. The staged value is kept until the
// controller reports a different authoritative value.
func (f *Field) Commit(send func(telemetry.Param, float64)) bool {
	if !f.Dirty() {
		return false
	}
	send(f.param, f.staged)
	return true
}

// Dirty reports whether the staged value differs from the authoritative one.
func (f *Field) Dirty() bool {
	return f.known && f.staged != f.authoritative
}

// State returns StateDirty when Dirty, StateClean otherwise.
func (f *Field) State() State {
	if f.Dirty() {
		return StateDirty
	}
	return StateClean
}

// Staged returns the staged value.
func (f *Field) Staged() float64 { return f.staged }

// Authoritative returns the last value confirmed by the controller.
func (f *Field) Authoritative() float64 { return f.authoritative }

// Known reports whether an authoritative value has arrived yet.
func (f *Field) Known() bool { return f.known }

// Param returns the parameter this field edits.
func (f *Field) Param() telemetry.Param { return f.param }
