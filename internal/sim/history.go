package sim

import (
	"log"
	"slices"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// history keeps the newest samples for replay to dashboards as a backfill
// batch. Once full, every push drops the oldest sample.
// Not safe for concurrent use (caller must synchronize).
type history struct {
	samples []telemetry.Sample
	limit   int
	dropped int
}

func newHistory(limit int) *history {
	if limit < 1 {
		limit = 1
	}
	return &history{samples: make([]telemetry.Sample, 0, limit), limit: limit}
}

func (h *history) push(s telemetry.Sample) {
	if len(h.samples) == h.limit {
		n := copy(h.samples, h.samples[1:])
		h.samples = h.samples[:n]
		h.dropped++
		if h.dropped%h.limit == 1 || h.limit == 1 {
			log.Printf("sim: history rolled over, %d samples dropped so far", h.dropped)
		}
	}
	h.samples = append(h.samples, s)
}

// all returns a copy of the stored samples, oldest first. Reading does not
// consume them: every dashboard that asks gets the same window.
func (h *history) all() []telemetry.Sample {
	if len(h.samples) == 0 {
		return nil
	}
	return slices.Clone(h.samples)
}

func (h *history) len() int { return len(h.samples) }
