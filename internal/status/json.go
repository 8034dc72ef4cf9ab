package status

import (
	"encoding/json"
	"time"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/window"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Ready         bool            `json:"ready"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Buffer        BufferJSON      `json:"buffer"`
	Latest        *ReadoutJSON    `json:"latest,omitempty"`
	Controller    *ControllerJSON `json:"controller,omitempty"`
	Params        []ParamJSON     `json:"params"`
	Chart         *ChartJSON      `json:"chart,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected   bool   `json:"connected"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
}

// BufferJSON reports telemetry buffer occupancy.
type BufferJSON struct {
	Samples  int `json:"samples"`
	Capacity int `json:"capacity"`
}

// ReadoutJSON is the newest telemetry sample.
type ReadoutJSON struct {
	Timestamp    int64   `json:"ts"`
	Temperature  float64 `json:"temp"`
	Setpoint     float64 `json:"set"`
	DutyPercent  float64 `json:"duty_percent"`
	ShotDuration float64 `json:"shot_duration"`
}

// ControllerJSON is the last controller config snapshot.
type ControllerJSON struct {
	BrewSetpoint  float64 `json:"brew_setpoint"`
	SteamSetpoint float64 `json:"steam_setpoint"`
	ShotTimeLimit float64 `json:"shot_time_limit"`
	Version       uint64  `json:"version"`
}

// ParamJSON is one editable parameter.
type ParamJSON struct {
	Name          string  `json:"name"`
	Label         string  `json:"label"`
	Unit          string  `json:"unit"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Known         bool    `json:"known"`
	Authoritative float64 `json:"authoritative"`
	Staged        float64 `json:"staged"`
	Dirty         bool    `json:"dirty"`
}

// ChartJSON is the windowed chart data.
type ChartJSON struct {
	Reference      int64       `json:"reference"`
	HorizonSeconds int         `json:"horizon_seconds"`
	TimeDomain     [2]float64  `json:"time_domain"`
	TempDomain     [2]float64  `json:"temp_domain"`
	Ticks          []TickJSON  `json:"ticks"`
	Points         []PointJSON `json:"points"`
}

// TickJSON is a time axis tick.
type TickJSON struct {
	Ms    int64  `json:"ms"`
	Label string `json:"label"`
}

// PointJSON is a projected sample.
type PointJSON struct {
	DeltaMs     int64   `json:"t"`
	Temperature float64 `json:"temp"`
	Setpoint    float64 `json:"set"`
}

// ConfigJSON is the JSON representation of dashboard config.
type ConfigJSON struct {
	Broker         string `json:"broker"`
	TopicPrefix    string `json:"topic_prefix"`
	HTTPAddr       string `json:"http_addr"`
	Capacity       int    `json:"capacity"`
	HorizonSeconds int    `json:"horizon_seconds"`
}

// Build converts a snapshot to its JSON representation.
func Build(snap Snapshot) StatusJSON {
	inner := StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected:   snap.Connected,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
		},
		Buffer: BufferJSON{Samples: snap.Buffered, Capacity: snap.Config.Capacity},
		Params: make([]ParamJSON, 0, len(snap.Fields)),
		Config: ConfigJSON{
			Broker:         snap.Config.Broker,
			TopicPrefix:    snap.Config.TopicPrefix,
			HTTPAddr:       snap.Config.HTTPAddr,
			Capacity:       snap.Config.Capacity,
			HorizonSeconds: snap.Config.HorizonSeconds,
		},
	}

	if snap.HasLatest {
		inner.Latest = &ReadoutJSON{
			Timestamp:    snap.Latest.Timestamp,
			Temperature:  snap.Latest.Temperature,
			Setpoint:     snap.Latest.Setpoint,
			DutyPercent:  snap.Latest.DutyCycle * 100,
			ShotDuration: snap.Latest.ShotDuration,
		}
	}
	if snap.HasConfig {
		inner.Controller = &ControllerJSON{
			BrewSetpoint:  snap.Controller.BrewSetpoint,
			SteamSetpoint: snap.Controller.SteamSetpoint,
			ShotTimeLimit: snap.Controller.ShotTimeLimit,
			Version:       snap.ConfigVersion,
		}
	}
	for _, f := range snap.Fields {
		inner.Params = append(inner.Params, ParamJSON{
			Name:          string(f.Param),
			Label:         f.Label,
			Unit:          f.Unit,
			Min:           f.Min,
			Max:           f.Max,
			Known:         f.Known,
			Authoritative: f.Authoritative,
			Staged:        f.Staged,
			Dirty:         f.Dirty(),
		})
	}
	if snap.Ready {
		inner.Chart = buildChart(snap.Projection)
	}
	return StatusJSON{Status: inner}
}

func buildChart(p window.Projection) *ChartJSON {
	c := &ChartJSON{
		Reference:      p.Reference,
		HorizonSeconds: p.HorizonSeconds,
		TimeDomain:     [2]float64{p.TimeDomain.Min, p.TimeDomain.Max},
		TempDomain:     [2]float64{p.TempDomain.Min, p.TempDomain.Max},
		Ticks:          make([]TickJSON, len(p.Ticks)),
		Points:         make([]PointJSON, len(p.Points)),
	}
	for i, ms := range p.Ticks {
		c.Ticks[i] = TickJSON{Ms: ms, Label: window.TickLabel(ms)}
	}
	for i, pt := range p.Points {
		c.Points[i] = PointJSON{DeltaMs: pt.DeltaMs, Temperature: pt.Temperature, Setpoint: pt.Setpoint}
	}
	return c
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatCompact returns the JSON status on a single line for live updates.
func FormatCompact(snap Snapshot) []byte {
	data, _ := json.Marshal(Build(snap))
	return data
}
