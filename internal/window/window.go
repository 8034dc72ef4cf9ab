// Package window projects buffered telemetry onto a trailing time window for
// charting. Everything here is a pure function of its inputs.
package window

import (
	"math"
	"strconv"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

const (
	// DefaultHorizonSeconds is the trailing span shown by the dashboard.
	DefaultHorizonSeconds = 60

	// QuantumMs is the grid delta times are rounded to.
	QuantumMs = 4

	// TickIntervalSeconds is the spacing of time axis ticks.
	TickIntervalSeconds = 5

	tempPadding  = 5.0
	tempFloor    = 0.0
	tempCeiling  = 180.0
	tempLowStart = 50.0  // lower bound never starts above this
	tempHighEnd  = 100.0 // upper bound never ends below this
)

// Point is one projected sample.
type Point struct {
	DeltaMs      int64 // sample time minus reference time, ≤ 0
	Temperature  float64
	Setpoint     float64
	DutyCycle    float64
	ShotDuration float64
}

// Domain is an inclusive numeric axis range.
type Domain struct {
	Min float64
	Max float64
}

// Span returns Max - Min.
func (d Domain) Span() float64 {
	return d.Max - d.Min
}

// Projection is the chart-ready view of a buffer snapshot.
type Projection struct {
	Reference      int64 // timestamp of the newest sample, epoch ms
	HorizonSeconds int
	Points         []Point
	TimeDomain     Domain // extent of Points[].DeltaMs
	TempDomain     Domain
	Ticks          []int64 // time axis ticks in ms, from -horizon to 0
	Latest         telemetry.Sample
}

// Project windows samples (ascending by timestamp) to the trailing
// horizonSeconds before the newest sample. It returns false when there are
// fewer than two samples, in which case callers show a waiting state.
func Project(samples []telemetry.Sample, horizonSeconds int) (Projection, bool) {
	if len(samples) < 2 {
		return Projection{}, false
	}
	if horizonSeconds < 0 {
		horizonSeconds = 0
	}

	latest := samples[len(samples)-1]
	p := Projection{
		Reference:      latest.Timestamp,
		HorizonSeconds: horizonSeconds,
		Latest:         latest,
		Ticks:          Ticks(horizonSeconds),
	}

	p.Points = make([]Point, 0, len(samples))
	for _, s := range samples {
		delta := Quantize(s.Timestamp - latest.Timestamp)
		if int(math.Ceil(float64(delta)/1000)) < -horizonSeconds {
			continue
		}
		p.Points = append(p.Points, Point{
			DeltaMs:      delta,
			Temperature:  s.Temperature,
			Setpoint:     s.Setpoint,
			DutyCycle:    s.DutyCycle,
			ShotDuration: s.ShotDuration,
		})
	}

	// The newest sample always survives the filter, so Points is non-empty.
	p.TimeDomain = Domain{Min: float64(p.Points[0].DeltaMs), Max: float64(p.Points[0].DeltaMs)}
	lo, hi := p.Points[0].Temperature, p.Points[0].Temperature
	for _, pt := range p.Points[1:] {
		p.TimeDomain.Min = math.Min(p.TimeDomain.Min, float64(pt.DeltaMs))
		p.TimeDomain.Max = math.Max(p.TimeDomain.Max, float64(pt.DeltaMs))
		lo = math.Min(lo, pt.Temperature)
		hi = math.Max(hi, pt.Temperature)
	}
	p.TempDomain = TemperatureDomain(lo, hi)
	return p, true
}

// Quantize rounds a millisecond delta to the QuantumMs grid, halves rounding
// toward positive infinity.
func Quantize(deltaMs int64) int64 {
	return int64(math.Floor(float64(deltaMs)/QuantumMs+0.5)) * QuantumMs
}

// TemperatureDomain pads [lo, hi] by five degrees, keeps at least 50..100
// visible and clamps to 0..180.
func TemperatureDomain(lo, hi float64) Domain {
	return Domain{
		Min: math.Max(tempFloor, math.Min(lo-tempPadding, tempLowStart)),
		Max: math.Min(tempCeiling, math.Max(hi+tempPadding, tempHighEnd)),
	}
}

// Ticks returns time axis ticks in ms every TickIntervalSeconds from
// -horizonSeconds to 0 inclusive.
func Ticks(horizonSeconds int) []int64 {
	var ticks []int64
	for s := -horizonSeconds; s <= 0; s += TickIntervalSeconds {
		ticks = append(ticks, int64(s)*1000)
	}
	return ticks
}

// TickLabel formats a tick as seconds before the reference, e.g. "T-15".
func TickLabel(ms int64) string {
	return "T-" + strconv.FormatFloat(math.Abs(float64(ms))/1000, 'f', -1, 64)
}
