package mqtt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/reconcile"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

func TestTopics(t *testing.T) {
	topics := NewTopics("")
	tests := []struct {
		got, want string
	}{
		{topics.Telemetry(), "espresso/telemetry"},
		{topics.History(), "espresso/telemetry/history"},
		{topics.Config(), "espresso/config"},
		{topics.Command("set_brew_setpoint"), "espresso/command/set_brew_setpoint"},
		{topics.Commands(), "espresso/command/+"},
		{NewTopics("kitchen/gaggia/").Config(), "kitchen/gaggia/config"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCommandName(t *testing.T) {
	topics := NewTopics("espresso")
	name, ok := topics.CommandName("espresso/command/set_steam_setpoint")
	if !ok || name != "set_steam_setpoint" {
		t.Errorf("got %q ok=%v", name, ok)
	}
	for _, bad := range []string{"espresso/config", "espresso/command/", "espresso/command/a/b", "other/command/x"} {
		if _, ok := topics.CommandName(bad); ok {
			t.Errorf("CommandName(%q) should fail", bad)
		}
	}
}

func TestDecodeTelemetry(t *testing.T) {
	s, err := DecodeTelemetry([]byte(`{"ts":1700000000123,"temp":92.5,"set":93,"out":0.42,"shotdur":12.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := telemetry.Sample{Timestamp: 1700000000123, Temperature: 92.5, Setpoint: 93, DutyCycle: 0.42, ShotDuration: 12.5}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
}

func TestDecodeTelemetryOptionalFields(t *testing.T) {
	s, err := DecodeTelemetry([]byte(`{"ts":5,"temp":20,"set":93}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.DutyCycle != 0 || s.ShotDuration != 0 {
		t.Errorf("optional fields should default to zero: %+v", s)
	}
}

func TestDecodeTelemetryMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"no ts", `{"temp":92,"set":93}`},
		{"no temp", `{"ts":1,"set":93}`},
		{"no set", `{"ts":1,"temp":92}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTelemetry([]byte(tt.payload))
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("got %v, want ErrMissingField", err)
			}
		})
	}
}

func TestDecodeTelemetryInvalidJSON(t *testing.T) {
	if _, err := DecodeTelemetry([]byte(`{"ts":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
	if _, err := DecodeTelemetry([]byte(`{"ts":"soon","temp":1,"set":1}`)); err == nil {
		t.Error("expected error for string timestamp")
	}
}

func TestDecodeHistoryKeepsGoodEntries(t *testing.T) {
	payload := []byte(`[
		{"ts":1000,"temp":90,"set":93},
		{"ts":2000,"set":93},
		"garbage",
		{"ts":3000,"temp":91,"set":93}
	]`)
	samples, errs, err := DecodeHistory(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples: got %d, want 2", len(samples))
	}
	if samples[0].Timestamp != 1000 || samples[1].Timestamp != 3000 {
		t.Errorf("timestamps: got %d, %d", samples[0].Timestamp, samples[1].Timestamp)
	}
	if len(errs) != 2 {
		t.Errorf("entry errors: got %d, want 2", len(errs))
	}
}

func TestDecodeHistoryNotArray(t *testing.T) {
	if _, _, err := DecodeHistory([]byte(`{"ts":1}`)); err == nil {
		t.Error("expected error for non-array history")
	}
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig([]byte(`{"shotTimeLimit":25,"steamSetpoint":140,"brewSetpoint":93}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := telemetry.ControllerConfig{BrewSetpoint: 93, SteamSetpoint: 140, ShotTimeLimit: 25}
	if cfg != want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}

	_, err = DecodeConfig([]byte(`{"steamSetpoint":140,"brewSetpoint":93}`))
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("got %v, want ErrMissingField", err)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	s := telemetry.Sample{Timestamp: 42, Temperature: 93.5, Setpoint: 93, DutyCycle: 0.1, ShotDuration: 3}
	payload, err := FormatTelemetry(s)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	got, err := DecodeTelemetry(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != s {
		t.Errorf("got %+v, want %+v", got, s)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"ts", "temp", "set", "out", "shotdur"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("payload missing %q: %s", key, payload)
		}
	}
}

func TestFormatCommand(t *testing.T) {
	if got := string(FormatCommand(93)); got != "93" {
		t.Errorf("got %q, want 93", got)
	}
	if got := string(FormatCommand(27.5)); got != "27.5" {
		t.Errorf("got %q, want 27.5", got)
	}
	v, err := ParseCommand([]byte("27.5"))
	if err != nil || v != 27.5 {
		t.Errorf("ParseCommand: got %v, %v", v, err)
	}
	if _, err := ParseCommand([]byte(`"hot"`)); err == nil {
		t.Error("expected error for non-numeric command")
	}
}

func TestRoute(t *testing.T) {
	topics := NewTopics("")

	ev, _, err := Route(topics, topics.Telemetry(), []byte(`{"ts":1,"temp":2,"set":3}`))
	if err != nil || ev.Kind != reconcile.KindTelemetry || ev.Sample.Timestamp != 1 {
		t.Errorf("telemetry: got %+v, %v", ev, err)
	}

	ev, errs, err := Route(topics, topics.History(), []byte(`[{"ts":1,"temp":2,"set":3},{}]`))
	if err != nil || ev.Kind != reconcile.KindHistory || len(ev.History) != 1 || len(errs) != 1 {
		t.Errorf("history: got %+v, errs=%v, err=%v", ev, errs, err)
	}

	ev, _, err = Route(topics, topics.Config(), []byte(`{"brewSetpoint":93,"steamSetpoint":140,"shotTimeLimit":0}`))
	if err != nil || ev.Kind != reconcile.KindConfig || ev.Config.BrewSetpoint != 93 {
		t.Errorf("config: got %+v, %v", ev, err)
	}

	if _, _, err := Route(topics, "espresso/unknown", nil); err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestFakeClient(t *testing.T) {
	f := NewFakeClient()
	if err := f.Send(telemetry.ParamBrewSetpoint, 94); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmds := f.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Topic != "espresso/command/set_brew_setpoint" || string(cmds[0].Payload) != "94" {
		t.Errorf("unexpected command: %+v", cmds[0])
	}

	f.SetConnected(false)
	if err := f.Send(telemetry.ParamBrewSetpoint, 95); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected send: got %v", err)
	}
	if len(f.Commands()) != 1 {
		t.Error("disconnected send must not be queued")
	}

	f.Close()
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeClientSendError(t *testing.T) {
	f := NewFakeClient()
	f.SendError = errors.New("simulated error")
	if err := f.Send(telemetry.ParamShotTimeLimit, 20); err == nil {
		t.Error("expected error to be returned")
	}
	if len(f.Commands()) != 0 {
		t.Error("failed send should not be recorded")
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	f.PublishTelemetry(telemetry.Sample{Timestamp: 1})
	f.PublishHistory([]telemetry.Sample{{Timestamp: 1}, {Timestamp: 2}})
	f.PublishConfig(telemetry.ControllerConfig{BrewSetpoint: 93})

	if len(f.Telemetry) != 1 || len(f.Histories) != 1 || len(f.Configs) != 1 {
		t.Errorf("recorded: telemetry=%d histories=%d configs=%d", len(f.Telemetry), len(f.Histories), len(f.Configs))
	}
	if len(f.Payloads) != 3 {
		t.Errorf("payloads: got %d, want 3", len(f.Payloads))
	}

	f.PublishError = errors.New("boom")
	if err := f.PublishConfig(telemetry.ControllerConfig{}); err == nil {
		t.Error("expected error")
	}

	f.Reset()
	if len(f.Payloads) != 0 || f.PublishError != nil {
		t.Error("Reset should clear state")
	}
}
