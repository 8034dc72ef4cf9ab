package editor

import (
	"fmt"
	"sync"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// Action is a user operation on a field.
type Action string

const (
	ActionIncrement Action = "increment"
	ActionDecrement Action = "decrement"
	ActionCancel    Action = "cancel"
	ActionCommit    Action = "commit"
)

// ParseAction looks up an Action by name.
func ParseAction(name string) (Action, bool) {
	switch a := Action(name); a {
	case ActionIncrement, ActionDecrement, ActionCancel, ActionCommit:
		return a, true
	}
	return "", false
}

// FieldView is a point-in-time view of a field for rendering.
type FieldView struct {
	Param         telemetry.Param
	Label         string
	Unit          string
	Min           float64
	Max           float64
	Authoritative float64
	Staged        float64
	Known         bool
	State         State
}

// Dirty reports whether commit/cancel should be offered.
func (v FieldView) Dirty() bool {
	return v.State == StateDirty
}

// Editor holds one Field per editable parameter behind a mutex so that HTTP
// handlers and the terminal UI can share it.
type Editor struct {
	mu     sync.Mutex
	fields map[telemetry.Param]*Field
}

// New creates an editor for every parameter in telemetry.Params.
func New() *Editor {
	e := &Editor{fields: make(map[telemetry.Param]*Field, len(telemetry.Params))}
	for _, p := range telemetry.Params {
		e.fields[p] = NewField(p)
	}
	return e
}

// Sync feeds the latest authoritative config into every field. Only fields
// whose value changed drop their staged edit; hasConfig false leaves fields
// untouched.
func (e *Editor) Sync(cfg telemetry.ControllerConfig, hasConfig bool) {
	if !hasConfig {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for p, f := range e.fields {
		f.Sync(p.Value(cfg))
	}
}

// Apply performs action on param. Commit hands the staged value to send.
func (e *Editor) Apply(param telemetry.Param, action Action, send func(telemetry.Param, float64)) error {
	e.mu.Lock()
	f, ok := e.fields[param]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("unknown parameter %q", param)
	}

	var (
		commit bool
		value  float64
	)
	switch action {
	case ActionIncrement:
		f.Increment()
	case ActionDecrement:
		f.Decrement()
	case ActionCancel:
		f.Cancel()
	case ActionCommit:
		commit = f.Commit(func(_ telemetry.Param, v float64) { value = v })
	default:
		e.mu.Unlock()
		return fmt.Errorf("unknown action %q", action)
	}
	e.mu.Unlock()

	// Send outside the lock; the transport may take a moment.
	if commit {
		send(param, value)
	}
	return nil
}

// View returns every field in telemetry.Params order.
func (e *Editor) View() []FieldView {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]FieldView, 0, len(telemetry.Params))
	for _, p := range telemetry.Params {
		f := e.fields[p]
		b := p.Bounds()
		out = append(out, FieldView{
			Param:         p,
			Label:         p.Label(),
			Unit:          p.Unit(),
			Min:           b.Min,
			Max:           b.Max,
			Authoritative: f.Authoritative(),
			Staged:        f.Staged(),
			Known:         f.Known(),
			State:         f.State(),
		})
	}
	return out
}
