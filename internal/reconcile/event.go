package reconcile

import "github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"

// Kind identifies the type of an inbound event.
type Kind int

const (
	KindConnected Kind = iota + 1
	KindDisconnected
	KindTelemetry
	KindHistory
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindTelemetry:
		return "telemetry"
	case KindHistory:
		return "history"
	case KindConfig:
		return "config"
	}
	return "unknown"
}

// Event is one decoded message from the transport.
type Event struct {
	Kind    Kind
	Sample  telemetry.Sample           // KindTelemetry
	History []telemetry.Sample         // KindHistory
	Config  telemetry.ControllerConfig // KindConfig
}

// Connected returns a connection-up event.
func Connected() Event { return Event{Kind: KindConnected} }

// Disconnected returns a connection-down event.
func Disconnected() Event { return Event{Kind: KindDisconnected} }

// Telemetry returns a single-sample event.
func Telemetry(s telemetry.Sample) Event { return Event{Kind: KindTelemetry, Sample: s} }

// History returns a backfill event.
func History(samples []telemetry.Sample) Event {
	return Event{Kind: KindHistory, History: samples}
}

// ConfigSnapshot returns a config replacement event.
func ConfigSnapshot(cfg telemetry.ControllerConfig) Event {
	return Event{Kind: KindConfig, Config: cfg}
}
