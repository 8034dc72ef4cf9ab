package mqtt

import (
	"sync"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// SentCommand is a command recorded by FakeClient.
type SentCommand struct {
	Param   telemetry.Param
	Value   float64
	Topic   string
	Payload []byte
}

// FakeClient records sent commands for test assertions.
type FakeClient struct {
	mu sync.Mutex

	// Topics is used to fill SentCommand.Topic.
	Topics Topics

	// Sent contains all commands that were sent.
	Sent []SentCommand

	// SendError, if set, will be returned by Send.
	SendError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeClient creates a connected FakeClient for testing.
func NewFakeClient() *FakeClient {
	return &FakeClient{Topics: NewTopics(""), Connected: true}
}

// Send records the command.
func (f *FakeClient) Send(param telemetry.Param, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendError != nil {
		return f.SendError
	}
	if !f.Connected {
		return ErrNotConnected
	}
	f.Sent = append(f.Sent, SentCommand{
		Param:   param,
		Value:   value,
		Topic:   f.Topics.Command(param.Command()),
		Payload: FormatCommand(value),
	})
	return nil
}

// Commands returns a copy of the sent commands.
func (f *FakeClient) Commands() []SentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentCommand(nil), f.Sent...)
}

// SetConnected changes the fake connection state.
func (f *FakeClient) SetConnected(connected bool) {
	f.mu.Lock()
	f.Connected = connected
	f.mu.Unlock()
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakePublisher records published controller messages for test assertions.
type FakePublisher struct {
	// Telemetry contains all samples that were published.
	Telemetry []telemetry.Sample

	// Histories contains all backfill batches that were published.
	Histories [][]telemetry.Sample

	// Configs contains all config snapshots that were published.
	Configs []telemetry.ControllerConfig

	// Payloads contains every JSON payload in publish order.
	Payloads [][]byte

	// PublishError, if set, will be returned by every Publish method.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishTelemetry records the sample.
func (f *FakePublisher) PublishTelemetry(s telemetry.Sample) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatTelemetry(s)
	if err != nil {
		return err
	}
	f.Telemetry = append(f.Telemetry, s)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishHistory records the batch.
func (f *FakePublisher) PublishHistory(samples []telemetry.Sample) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatHistory(samples)
	if err != nil {
		return err
	}
	f.Histories = append(f.Histories, samples)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishConfig records the config snapshot.
func (f *FakePublisher) PublishConfig(cfg telemetry.ControllerConfig) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatConfig(cfg)
	if err != nil {
		return err
	}
	f.Configs = append(f.Configs, cfg)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Telemetry = nil
	f.Histories = nil
	f.Configs = nil
	f.Payloads = nil
	f.PublishError = nil
	f.Closed = false
}
