package window

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

func at(ts int64, temp float64) telemetry.Sample {
	return telemetry.Sample{Timestamp: ts, Temperature: temp, Setpoint: 93}
}

func TestProjectInsufficientData(t *testing.T) {
	if _, ok := Project(nil, 60); ok {
		t.Error("empty buffer should not project")
	}
	if _, ok := Project([]telemetry.Sample{at(1000, 90)}, 60); ok {
		t.Error("single sample should not project")
	}
}

func TestProjectExcludesOlderThanHorizon(t *testing.T) {
	const ref = 100_000
	samples := []telemetry.Sample{
		at(ref-70_000, 60),
		at(ref-50_000, 70),
		at(ref-1_000, 80),
		at(ref, 90),
	}
	p, ok := Project(samples, 60)
	if !ok {
		t.Fatal("expected projection")
	}
	if p.Reference != ref {
		t.Errorf("Reference: got %d, want %d", p.Reference, ref)
	}
	if len(p.Points) != 3 {
		t.Fatalf("points: got %d, want 3", len(p.Points))
	}
	wantDeltas := []int64{-50_000, -1_000, 0}
	for i, want := range wantDeltas {
		if p.Points[i].DeltaMs != want {
			t.Errorf("point %d: got delta %d, want %d", i, p.Points[i].DeltaMs, want)
		}
	}
	if p.TimeDomain.Min != -50_000 || p.TimeDomain.Max != 0 {
		t.Errorf("TimeDomain: got %+v", p.TimeDomain)
	}
	if p.Latest.Temperature != 90 {
		t.Errorf("Latest: got %+v", p.Latest)
	}
}

func TestProjectHorizonBoundary(t *testing.T) {
	const ref = 1_000_000
	// ceil(-60.999) = -60 survives, ceil(-61.0) = -61 does not.
	samples := []telemetry.Sample{
		at(ref-61_000, 1),
		at(ref-60_996, 2),
		at(ref, 3),
	}
	p, _ := Project(samples, 60)
	if len(p.Points) != 2 {
		t.Fatalf("points: got %d, want 2", len(p.Points))
	}
	if p.Points[0].DeltaMs != -60_996 {
		t.Errorf("first kept delta: got %d", p.Points[0].DeltaMs)
	}
}

func TestProjectNeverExceedsHorizon(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 100; round++ {
		horizon := 1 + rng.Intn(120)
		b := telemetry.NewBuffer(180)
		for i := 0; i < 50; i++ {
			b.Insert(at(1+rng.Int63n(300_000), 20+rng.Float64()*120))
		}
		p, ok := Project(b.Snapshot(), horizon)
		if !ok {
			continue
		}
		for _, pt := range p.Points {
			if pt.DeltaMs > 0 {
				t.Fatalf("positive delta %d", pt.DeltaMs)
			}
			if pt.DeltaMs < int64(-horizon*1000)-1000 {
				t.Fatalf("horizon %d: delta %d outside window", horizon, pt.DeltaMs)
			}
		}
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in, want int64
	}{
		{0, 0},
		{-1, 0},
		{-2, 0}, // half rounds toward +inf
		{-3, -4},
		{-6, -4},
		{-7, -8},
		{-1001, -1000},
		{-1003, -1004},
	}
	for _, tt := range tests {
		if got := Quantize(tt.in); got != tt.want {
			t.Errorf("Quantize(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTemperatureDomain(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi float64
		want   Domain
	}{
		{"near constant brew temp", 92, 94, Domain{50, 100}},
		{"cold start", 20, 40, Domain{15, 100}},
		{"steam", 90, 150, Domain{50, 155}},
		{"near zero", 2, 10, Domain{0, 100}},
		{"overheat clamps", 60, 190, Domain{50, 180}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TemperatureDomain(tt.lo, tt.hi); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTemperatureDomainContainsData(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		a, b := rng.Float64()*175, rng.Float64()*175
		lo, hi := math.Min(a, b), math.Max(a, b)
		d := TemperatureDomain(lo, hi)
		if !(0 <= d.Min && d.Min <= lo && hi <= d.Max && d.Max <= 180) {
			t.Fatalf("lo=%v hi=%v: domain %+v", lo, hi, d)
		}
	}
}

func TestTicks(t *testing.T) {
	ticks := Ticks(60)
	if len(ticks) != 13 {
		t.Fatalf("ticks: got %d, want 13", len(ticks))
	}
	if ticks[0] != -60_000 || ticks[12] != 0 {
		t.Errorf("ticks: got first=%d last=%d", ticks[0], ticks[12])
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i]-ticks[i-1] != 5000 {
			t.Errorf("tick spacing at %d: %d", i, ticks[i]-ticks[i-1])
		}
	}
}

func TestTickLabel(t *testing.T) {
	if got := TickLabel(-15_000); got != "T-15" {
		t.Errorf("got %q", got)
	}
	if got := TickLabel(0); got != "T-0" {
		t.Errorf("got %q", got)
	}
}

func TestScale(t *testing.T) {
	p := Projection{
		HorizonSeconds: 60,
		Points: []Point{
			{DeltaMs: -10_000, Temperature: 50, Setpoint: 100},
			{DeltaMs: 0, Temperature: 75, Setpoint: 100},
		},
		TimeDomain: Domain{-10_000, 0},
		TempDomain: Domain{50, 100},
	}
	px := Scale(p, 200, 100)
	if px[0].X != 0 || px[1].X != 200 {
		t.Errorf("x: got %v, %v", px[0].X, px[1].X)
	}
	if px[0].Temperature != 100 {
		t.Errorf("y at domain min: got %v, want 100 (bottom)", px[0].Temperature)
	}
	if px[1].Temperature != 50 {
		t.Errorf("y at mid: got %v, want 50", px[1].Temperature)
	}
	if px[0].Setpoint != 0 {
		t.Errorf("y at domain max: got %v, want 0 (top)", px[0].Setpoint)
	}
}

func TestScaleDegenerateTimeDomain(t *testing.T) {
	p := Projection{
		HorizonSeconds: 60,
		Points:         []Point{{DeltaMs: 0, Temperature: 90}},
		TempDomain:     Domain{50, 100},
	}
	px := Scale(p, 120, 100)
	if px[0].X != 120 {
		t.Errorf("single point should sit at the right edge, got x=%v", px[0].X)
	}
}
