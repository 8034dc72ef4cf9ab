package web

import (
	"bytes"
	"log"
	"net/http"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/window"
)

const (
	chartWidth  = 720
	chartHeight = 320
)

var (
	temperatureColor = drawing.ColorFromHex("d9480f")
	setpointColor    = drawing.ColorFromHex("1c7ed6")
)

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	if !snap.Ready {
		http.Error(w, "waiting for data", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := renderChart(&buf, snap.Projection); err != nil {
		log.Printf("web: chart render: %v", err)
		http.Error(w, "chart render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// renderChart draws temperature and setpoint over the trailing window as SVG.
func renderChart(buf *bytes.Buffer, p window.Projection) error {
	xs := make([]float64, 0, len(p.Points)+1)
	temps := make([]float64, 0, len(p.Points)+1)
	sets := make([]float64, 0, len(p.Points)+1)
	for _, pt := range p.Points {
		xs = append(xs, float64(pt.DeltaMs))
		temps = append(temps, pt.Temperature)
		sets = append(sets, pt.Setpoint)
	}
	// go-chart needs two x values to draw a line.
	if len(xs) == 1 {
		xs = append(xs, xs[0])
		temps = append(temps, temps[0])
		sets = append(sets, sets[0])
	}

	ticks := make([]chart.Tick, len(p.Ticks))
	for i, ms := range p.Ticks {
		ticks[i] = chart.Tick{Value: float64(ms), Label: window.TickLabel(ms)}
	}

	ch := chart.Chart{
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: float64(-p.HorizonSeconds) * 1000, Max: 0},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  "°C",
			Range: &chart.ContinuousRange{Min: p.TempDomain.Min, Max: p.TempDomain.Max},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Temperature",
				XValues: xs,
				YValues: temps,
				Style:   chart.Style{StrokeColor: temperatureColor, StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "Setpoint",
				XValues: xs,
				YValues: sets,
				Style:   chart.Style{StrokeColor: setpointColor, StrokeWidth: 1.5, StrokeDashArray: []float64{4, 4}},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.SVG, buf)
}
