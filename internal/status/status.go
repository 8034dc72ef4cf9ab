// Package status assembles a point-in-time view of the dashboard for the web
// server and terminal UI.
package status

import (
	"time"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/editor"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/reconcile"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/window"
)

// Source is the reconciler surface the tracker reads from and commits to.
type Source interface {
	State() reconcile.State
	Send(param telemetry.Param, value float64)
}

// Config contains dashboard configuration for display.
type Config struct {
	Broker         string
	TopicPrefix    string
	HTTPAddr       string
	Capacity       int
	HorizonSeconds int
}

// Snapshot is a point-in-time view of dashboard state.
// It is a value type, safe to use after the call returns.
type Snapshot struct {
	StartTime time.Time
	Now       time.Time
	Config    Config

	Connected     bool
	HasConfig     bool
	Controller    telemetry.ControllerConfig
	ConfigVersion uint64

	Buffered  int
	Latest    telemetry.Sample
	HasLatest bool

	// Projection is only meaningful when Ready.
	Projection window.Projection
	Ready      bool

	Fields []editor.FieldView
}

// Uptime returns the duration since the dashboard started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker joins reconciler state with the setpoint editor.
type Tracker struct {
	startTime time.Time
	cfg       Config
	source    Source
	editor    *editor.Editor
	now       func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config, source Source, ed *editor.Editor) *Tracker {
	if cfg.HorizonSeconds <= 0 {
		cfg.HorizonSeconds = window.DefaultHorizonSeconds
	}
	return &Tracker{
		startTime: startTime,
		cfg:       cfg,
		source:    source,
		editor:    ed,
		now:       time.Now,
	}
}

// Snapshot syncs the editor with the latest controller config and returns
// the combined view.
func (t *Tracker) Snapshot() Snapshot {
	st := t.sync()

	snap := Snapshot{
		StartTime:     t.startTime,
		Now:           t.now(),
		Config:        t.cfg,
		Connected:     st.Connected,
		HasConfig:     st.HasConfig,
		Controller:    st.Config,
		ConfigVersion: st.ConfigVersion,
		Buffered:      len(st.Samples),
		Fields:        t.editor.View(),
	}
	if n := len(st.Samples); n > 0 {
		snap.Latest = st.Samples[n-1]
		snap.HasLatest = true
	}
	snap.Projection, snap.Ready = window.Project(st.Samples, t.cfg.HorizonSeconds)
	return snap
}

// Apply performs an editor action on param. Commits go to the source.
func (t *Tracker) Apply(param telemetry.Param, action editor.Action) error {
	t.sync()
	return t.editor.Apply(param, action, t.source.Send)
}

func (t *Tracker) sync() reconcile.State {
	st := t.source.State()
	t.editor.Sync(st.Config, st.HasConfig)
	return st
}
