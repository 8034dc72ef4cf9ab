// Package reconcile turns inbound controller events into telemetry buffer
// and config mutations, and forwards setpoint commands to the transport.
//
// Events are applied one at a time in arrival order by Run. Readers on other
// goroutines use State, which copies under a read lock.
package reconcile

import (
	"context"
	"log"
	"sync"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// Commander sends a command toward the controller. Implementations must not
// block waiting for an acknowledgment.
type Commander interface {
	Send(param telemetry.Param, value float64) error
}

// Observer receives notifications about applied events. Used for metrics.
type Observer interface {
	SampleInserted(res telemetry.InsertResult)
	HistoryMerged(res telemetry.BatchResult)
	ConfigReplaced()
	ConnectionChanged(connected bool)
	CommandSent(param telemetry.Param)
	BufferLength(n int)
}

// State is a point-in-time view of reconciler-owned state.
// It is a value type, safe to use after the lock is released. Samples must
// not be modified.
type State struct {
	Samples       []telemetry.Sample
	Config        telemetry.ControllerConfig
	HasConfig     bool
	ConfigVersion uint64 // incremented on every accepted config snapshot
	Connected     bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithObserver installs an observer for applied events.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) {
		r.observer = o
	}
}

// Reconciler owns the telemetry buffer, controller config cache and
// connection state.
type Reconciler struct {
	mu        sync.RWMutex
	buffer    *telemetry.Buffer
	config    telemetry.ControllerConfig
	hasConfig bool
	version   uint64
	connected bool

	commander Commander
	observer  Observer
}

// New creates a Reconciler with an empty buffer of the given capacity.
func New(capacity int, commander Commander, opts ...Option) *Reconciler {
	r := &Reconciler{
		buffer:    telemetry.NewBuffer(capacity),
		commander: commander,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run applies events in arrival order until ctx is cancelled or events is
// closed.
func (r *Reconciler) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Apply(ev)
		}
	}
}

// Apply applies a single event.
func (r *Reconciler) Apply(ev Event) {
	switch ev.Kind {
	case KindConnected:
		r.setConnected(true)
	case KindDisconnected:
		r.setConnected(false)
	case KindTelemetry:
		r.insert(ev.Sample)
	case KindHistory:
		r.merge(ev.History)
	case KindConfig:
		r.replaceConfig(ev.Config)
	default:
		log.Printf("reconcile: ignoring unknown event kind %d", ev.Kind)
	}
}

func (r *Reconciler) setConnected(connected bool) {
	r.mu.Lock()
	changed := r.connected != connected
	r.connected = connected
	r.mu.Unlock()

	if changed {
		log.Printf("reconcile: connected=%v", connected)
	}
	r.observer.ConnectionChanged(connected)
}

func (r *Reconciler) insert(s telemetry.Sample) {
	r.mu.Lock()
	res := r.buffer.Insert(s)
	n := r.buffer.Len()
	r.mu.Unlock()

	if res.Status == telemetry.Rejected {
		log.Printf("reconcile: rejected sample ts=%d: %v", s.Timestamp, res.Err)
	}
	r.observer.SampleInserted(res)
	r.observer.BufferLength(n)
}

func (r *Reconciler) merge(samples []telemetry.Sample) {
	r.mu.Lock()
	res := r.buffer.InsertBatch(samples)
	n := r.buffer.Len()
	r.mu.Unlock()

	for _, rej := range res.Rejected {
		log.Printf("reconcile: rejected history sample ts=%d: %v", rej.Sample.Timestamp, rej.Err)
	}
	log.Printf("reconcile: history batch of %d: inserted=%d duplicates=%d rejected=%d",
		len(samples), res.Inserted, res.Duplicates, len(res.Rejected))
	r.observer.HistoryMerged(res)
	r.observer.BufferLength(n)
}

func (r *Reconciler) replaceConfig(cfg telemetry.ControllerConfig) {
	if err := cfg.Validate(); err != nil {
		log.Printf("reconcile: ignoring config snapshot: %v", err)
		return
	}
	r.mu.Lock()
	r.config = cfg
	r.hasConfig = true
	r.version++
	r.mu.Unlock()

	log.Printf("reconcile: config brew=%.1f steam=%.1f shot_limit=%.1f",
		cfg.BrewSetpoint, cfg.SteamSetpoint, cfg.ShotTimeLimit)
	r.observer.ConfigReplaced()
}

// State returns a point-in-time copy of the reconciler state.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return State{
		Samples:       r.buffer.Snapshot(),
		Config:        r.config,
		HasConfig:     r.hasConfig,
		ConfigVersion: r.version,
		Connected:     r.connected,
	}
}

// Send forwards a setpoint command to the controller exactly once. It does
// not wait for an acknowledgment, does not retry and does not touch the
// local config; the outcome shows up as a later config snapshot.
func (r *Reconciler) Send(param telemetry.Param, value float64) {
	if r.commander == nil {
		log.Printf("reconcile: no commander, dropping %s=%v", param.Command(), value)
		return
	}
	if err := r.commander.Send(param, value); err != nil {
		log.Printf("reconcile: send %s=%v: %v", param.Command(), value, err)
		return
	}
	log.Printf("reconcile: sent %s=%v", param.Command(), value)
	r.observer.CommandSent(param)
}

// SetBrewSetpoint requests a new brew setpoint.
func (r *Reconciler) SetBrewSetpoint(v float64) {
	r.Send(telemetry.ParamBrewSetpoint, v)
}

// SetSteamSetpoint requests a new steam setpoint.
func (r *Reconciler) SetSteamSetpoint(v float64) {
	r.Send(telemetry.ParamSteamSetpoint, v)
}

// SetShotTimeLimit requests a new shot time limit.
func (r *Reconciler) SetShotTimeLimit(v float64) {
	r.Send(telemetry.ParamShotTimeLimit, v)
}

type nopObserver struct{}

func (nopObserver) SampleInserted(telemetry.InsertResult) {}
func (nopObserver) HistoryMerged(telemetry.BatchResult)   {}
func (nopObserver) ConfigReplaced()                       {}
func (nopObserver) ConnectionChanged(bool)                {}
func (nopObserver) CommandSent(telemetry.Param)           {}
func (nopObserver) BufferLength(int)                      {}
