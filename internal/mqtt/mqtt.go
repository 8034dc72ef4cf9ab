// Package mqtt carries controller telemetry and commands over MQTT, with
// abstraction for testing.
//
// The dashboard side (Client) subscribes to telemetry, history and config
// topics and turns messages into reconcile events. The controller side
// (Publisher) publishes those topics and listens for commands; it backs the
// bench simulator.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/reconcile"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// DefaultPrefix is the default topic prefix.
const DefaultPrefix = "espresso"

// CommandRequestHistory asks the controller to publish a backfill batch.
// The dashboard sends it on every (re)connect.
const CommandRequestHistory = "request_history"

// ErrMissingField is returned when a required JSON field is absent.
var ErrMissingField = errors.New("missing required field")

// Topics derives topic names from a prefix.
type Topics struct {
	Prefix string
}

// NewTopics returns Topics for prefix, or DefaultPrefix when empty.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{Prefix: prefix}
}

// Telemetry is the topic for single samples.
func (t Topics) Telemetry() string { return t.Prefix + "/telemetry" }

// History is the topic for backfill batches.
func (t Topics) History() string { return t.Prefix + "/telemetry/history" }

// Config is the (retained) topic for config snapshots.
func (t Topics) Config() string { return t.Prefix + "/config" }

// Command is the topic for the named command.
func (t Topics) Command(name string) string { return t.Prefix + "/command/" + name }

// Commands is a subscription filter matching every command topic.
func (t Topics) Commands() string { return t.Prefix + "/command/+" }

// CommandName extracts the command name from a command topic.
func (t Topics) CommandName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, t.Prefix+"/command/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// TelemetryMessage is the wire form of a telemetry sample.
// Pointer fields distinguish missing values from zero.
type TelemetryMessage struct {
	TS      *int64   `json:"ts"`
	Temp    *float64 `json:"temp"`
	Set     *float64 `json:"set"`
	Out     *float64 `json:"out,omitempty"`
	ShotDur *float64 `json:"shotdur,omitempty"`
}

// ConfigMessage is the wire form of a controller config snapshot.
type ConfigMessage struct {
	BrewSetpoint  *float64 `json:"brewSetpoint"`
	SteamSetpoint *float64 `json:"steamSetpoint"`
	ShotTimeLimit *float64 `json:"shotTimeLimit"`
}

// NewTelemetryMessage converts a sample to its wire form.
func NewTelemetryMessage(s telemetry.Sample) TelemetryMessage {
	return TelemetryMessage{
		TS:      &s.Timestamp,
		Temp:    &s.Temperature,
		Set:     &s.Setpoint,
		Out:     &s.DutyCycle,
		ShotDur: &s.ShotDuration,
	}
}

// Sample converts the wire form to a sample. ts, temp and set are required.
func (m TelemetryMessage) Sample() (telemetry.Sample, error) {
	switch {
	case m.TS == nil:
		return telemetry.Sample{}, fmt.Errorf("ts: %w", ErrMissingField)
	case m.Temp == nil:
		return telemetry.Sample{}, fmt.Errorf("temp: %w", ErrMissingField)
	case m.Set == nil:
		return telemetry.Sample{}, fmt.Errorf("set: %w", ErrMissingField)
	}
	s := telemetry.Sample{
		Timestamp:   *m.TS,
		Temperature: *m.Temp,
		Setpoint:    *m.Set,
	}
	if m.Out != nil {
		s.DutyCycle = *m.Out
	}
	if m.ShotDur != nil {
		s.ShotDuration = *m.ShotDur
	}
	return s, nil
}

// FormatTelemetry creates the JSON payload for a single sample.
func FormatTelemetry(s telemetry.Sample) ([]byte, error) {
	return json.Marshal(NewTelemetryMessage(s))
}

// FormatHistory creates the JSON payload for a backfill batch.
func FormatHistory(samples []telemetry.Sample) ([]byte, error) {
	msgs := make([]TelemetryMessage, len(samples))
	for i, s := range samples {
		msgs[i] = NewTelemetryMessage(s)
	}
	return json.Marshal(msgs)
}

// FormatConfig creates the JSON payload for a config snapshot.
func FormatConfig(cfg telemetry.ControllerConfig) ([]byte, error) {
	return json.Marshal(ConfigMessage{
		BrewSetpoint:  &cfg.BrewSetpoint,
		SteamSetpoint: &cfg.SteamSetpoint,
		ShotTimeLimit: &cfg.ShotTimeLimit,
	})
}

// FormatCommand creates the payload for a setpoint command: a bare JSON number.
func FormatCommand(value float64) []byte {
	return []byte(strconv.FormatFloat(value, 'f', -1, 64))
}

// ParseCommand reads a setpoint command payload.
func ParseCommand(payload []byte) (float64, error) {
	var v float64
	if err := json.Unmarshal(payload, &v); err != nil {
		return 0, fmt.Errorf("parse command value: %w", err)
	}
	return v, nil
}

// DecodeTelemetry parses a single-sample payload.
func DecodeTelemetry(payload []byte) (telemetry.Sample, error) {
	var m TelemetryMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return telemetry.Sample{}, fmt.Errorf("decode telemetry: %w", err)
	}
	return m.Sample()
}

// DecodeHistory parses a backfill payload. Entries are decoded one by one so
// a bad entry only drops itself; its error is returned in errs. err is set
// only when the payload is not a JSON array at all.
func DecodeHistory(payload []byte) (samples []telemetry.Sample, errs []error, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode history: %w", err)
	}
	samples = make([]telemetry.Sample, 0, len(raw))
	for i, r := range raw {
		s, err := DecodeTelemetry(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		samples = append(samples, s)
	}
	return samples, errs, nil
}

// DecodeConfig parses a config snapshot payload. All fields are required
// since the snapshot replaces the local copy wholesale.
func DecodeConfig(payload []byte) (telemetry.ControllerConfig, error) {
	var m ConfigMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return telemetry.ControllerConfig{}, fmt.Errorf("decode config: %w", err)
	}
	switch {
	case m.BrewSetpoint == nil:
		return telemetry.ControllerConfig{}, fmt.Errorf("brewSetpoint: %w", ErrMissingField)
	case m.SteamSetpoint == nil:
		return telemetry.ControllerConfig{}, fmt.Errorf("steamSetpoint: %w", ErrMissingField)
	case m.ShotTimeLimit == nil:
		return telemetry.ControllerConfig{}, fmt.Errorf("shotTimeLimit: %w", ErrMissingField)
	}
	return telemetry.ControllerConfig{
		BrewSetpoint:  *m.BrewSetpoint,
		SteamSetpoint: *m.SteamSetpoint,
		ShotTimeLimit: *m.ShotTimeLimit,
	}, nil
}

// Route decodes a message on one of the dashboard topics into an event.
// Per-entry history errors are returned alongside a usable event.
func Route(t Topics, topic string, payload []byte) (reconcile.Event, []error, error) {
	switch topic {
	case t.Telemetry():
		s, err := DecodeTelemetry(payload)
		if err != nil {
			return reconcile.Event{}, nil, err
		}
		return reconcile.Telemetry(s), nil, nil
	case t.History():
		samples, errs, err := DecodeHistory(payload)
		if err != nil {
			return reconcile.Event{}, nil, err
		}
		return reconcile.History(samples), errs, nil
	case t.Config():
		cfg, err := DecodeConfig(payload)
		if err != nil {
			return reconcile.Event{}, nil, err
		}
		return reconcile.ConfigSnapshot(cfg), nil, nil
	}
	return reconcile.Event{}, nil, fmt.Errorf("unexpected topic %q", topic)
}

// Client is the dashboard side of the transport.
type Client interface {
	reconcile.Commander

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Close disconnects from the broker.
	Close() error
}

// Publisher is the controller side of the transport.
type Publisher interface {
	// PublishTelemetry sends a single sample.
	PublishTelemetry(s telemetry.Sample) error

	// PublishHistory sends a backfill batch.
	PublishHistory(samples []telemetry.Sample) error

	// PublishConfig sends a retained config snapshot.
	PublishConfig(cfg telemetry.ControllerConfig) error

	// Close disconnects from the broker.
	Close() error
}
