package telemetry

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func sampleAt(ts int64) Sample {
	return Sample{Timestamp: ts, Temperature: float64(ts), Setpoint: 93}
}

func timestamps(samples []Sample) []int64 {
	out := make([]int64, len(samples))
	for i, s := range samples {
		out[i] = s.Timestamp
	}
	return out
}

func assertTimestamps(t *testing.T, b *Buffer, want ...int64) {
	t.Helper()
	got := timestamps(b.Snapshot())
	if len(got) != len(want) {
		t.Fatalf("buffer: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buffer: got %v, want %v", got, want)
		}
	}
}

func assertInvariants(t *testing.T, b *Buffer) {
	t.Helper()
	snap := b.Snapshot()
	if len(snap) > b.Cap() {
		t.Fatalf("length %d exceeds capacity %d", len(snap), b.Cap())
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].Timestamp >= snap[i].Timestamp {
			t.Fatalf("not strictly ascending at %d: %v", i, timestamps(snap))
		}
	}
}

func TestBufferScenario(t *testing.T) {
	b := NewBuffer(3)
	for _, ts := range []int64{1, 2, 3, 4} {
		b.Insert(sampleAt(ts))
	}
	assertTimestamps(t, b, 2, 3, 4)

	res := b.Insert(sampleAt(2))
	if res.Status != Duplicate {
		t.Errorf("re-insert t=2: got %s, want duplicate", res.Status)
	}
	assertTimestamps(t, b, 2, 3, 4)

	batch := b.InsertBatch([]Sample{sampleAt(0), sampleAt(5)})
	assertTimestamps(t, b, 3, 4, 5)
	if batch.Inserted != 1 {
		t.Errorf("Inserted: got %d, want 1", batch.Inserted)
	}
	if batch.Expired != 1 {
		t.Errorf("Expired: got %d, want 1", batch.Expired)
	}
	if batch.Evicted != 1 {
		t.Errorf("Evicted: got %d, want 1", batch.Evicted)
	}
}

func TestBufferFirstWriteWins(t *testing.T) {
	b := NewBuffer(10)
	b.Insert(Sample{Timestamp: 100, Temperature: 90})
	b.Insert(Sample{Timestamp: 100, Temperature: 120})

	snap := b.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(snap))
	}
	if snap[0].Temperature != 90 {
		t.Errorf("temperature: got %v, want 90 (first write)", snap[0].Temperature)
	}
}

func TestBufferBatchInternalDuplicates(t *testing.T) {
	b := NewBuffer(10)
	res := b.InsertBatch([]Sample{
		{Timestamp: 5, Temperature: 1},
		{Timestamp: 5, Temperature: 2},
		{Timestamp: 6, Temperature: 3},
	})
	if res.Inserted != 2 || res.Duplicates != 1 {
		t.Errorf("got inserted=%d duplicates=%d, want 2/1", res.Inserted, res.Duplicates)
	}
	if got := b.Snapshot()[0].Temperature; got != 1 {
		t.Errorf("temperature at t=5: got %v, want 1", got)
	}
}

func TestBufferOutOfOrderInsert(t *testing.T) {
	b := NewBuffer(10)
	for _, ts := range []int64{30, 10, 20, 50, 40} {
		if res := b.Insert(sampleAt(ts)); res.Status != Inserted {
			t.Fatalf("insert %d: got %s", ts, res.Status)
		}
	}
	assertTimestamps(t, b, 10, 20, 30, 40, 50)
}

func TestBufferEvictsOldest(t *testing.T) {
	const capacity = 5
	b := NewBuffer(capacity)
	for ts := int64(1); ts <= 12; ts++ {
		b.Insert(sampleAt(ts))
		assertInvariants(t, b)
	}
	assertTimestamps(t, b, 8, 9, 10, 11, 12)

	res := b.Insert(sampleAt(13))
	if res.Status != Inserted || res.Evicted != 1 {
		t.Errorf("got status=%s evicted=%d, want inserted/1", res.Status, res.Evicted)
	}

	res = b.Insert(sampleAt(2))
	if res.Status != Expired {
		t.Errorf("old sample into full buffer: got %s, want expired", res.Status)
	}
	assertTimestamps(t, b, 9, 10, 11, 12, 13)
}

func TestBufferRejectsMalformed(t *testing.T) {
	b := NewBuffer(10)
	tests := []struct {
		name string
		s    Sample
		want error
	}{
		{"negative timestamp", Sample{Timestamp: -4, Temperature: 90}, ErrNegativeTimestamp},
		{"NaN temperature", Sample{Timestamp: 1, Temperature: math.NaN()}, ErrNonFinite},
		{"Inf setpoint", Sample{Timestamp: 1, Setpoint: math.Inf(1)}, ErrNonFinite},
		{"-Inf shot duration", Sample{Timestamp: 1, ShotDuration: math.Inf(-1)}, ErrNonFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := b.Insert(tt.s)
			if res.Status != Rejected {
				t.Fatalf("got %s, want rejected", res.Status)
			}
			if !errors.Is(res.Err, tt.want) {
				t.Errorf("error: got %v, want %v", res.Err, tt.want)
			}
		})
	}
	if b.Len() != 0 {
		t.Errorf("expected empty buffer, got %d samples", b.Len())
	}
}

func TestBufferBatchSkipsMalformedKeepsRest(t *testing.T) {
	b := NewBuffer(10)
	res := b.InsertBatch([]Sample{
		sampleAt(1),
		{Timestamp: 2, Temperature: math.NaN()},
		sampleAt(3),
	})
	if len(res.Rejected) != 1 {
		t.Fatalf("Rejected: got %d, want 1", len(res.Rejected))
	}
	if res.Rejected[0].Sample.Timestamp != 2 {
		t.Errorf("rejected ts: got %d, want 2", res.Rejected[0].Sample.Timestamp)
	}
	assertTimestamps(t, b, 1, 3)
}

func TestBufferEpochTimestampIsValid(t *testing.T) {
	b := NewBuffer(3)
	if res := b.Insert(sampleAt(0)); res.Status != Inserted {
		t.Fatalf("insert t=0: got %s (%v), want inserted", res.Status, res.Err)
	}
	b.Insert(sampleAt(1))
	b.Insert(sampleAt(2))
	b.Insert(sampleAt(3))
	assertTimestamps(t, b, 1, 2, 3)

	// Older than everything kept: merged, then trimmed away.
	res := b.InsertBatch([]Sample{sampleAt(0)})
	if len(res.Rejected) != 0 || res.Expired != 1 {
		t.Errorf("got rejected=%d expired=%d, want 0/1", len(res.Rejected), res.Expired)
	}
	assertTimestamps(t, b, 1, 2, 3)
}

func TestBufferSnapshotIsStable(t *testing.T) {
	b := NewBuffer(3)
	b.InsertBatch([]Sample{sampleAt(1), sampleAt(2), sampleAt(3)})
	snap := b.Snapshot()

	b.Insert(sampleAt(4))
	b.Insert(sampleAt(0))

	if got := timestamps(snap); got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("earlier snapshot changed: %v", got)
	}
}

func TestBufferBatchIdempotent(t *testing.T) {
	b := NewBuffer(5)
	batch := []Sample{sampleAt(4), sampleAt(1), sampleAt(3), sampleAt(2)}
	b.InsertBatch(batch)
	before := timestamps(b.Snapshot())

	res := b.InsertBatch(batch)
	if res.Inserted != 0 || res.Duplicates != len(batch) {
		t.Errorf("second batch: inserted=%d duplicates=%d", res.Inserted, res.Duplicates)
	}
	after := timestamps(b.Snapshot())
	if len(before) != len(after) {
		t.Fatalf("buffer changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("buffer changed: %v -> %v", before, after)
		}
	}
}

// TestBufferBatchMatchesSequentialInserts checks that a batch and any
// permutation of single inserts converge on the same buffer.
func TestBufferBatchMatchesSequentialInserts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		capacity := 1 + rng.Intn(8)
		initial := randomSamples(rng, rng.Intn(10))
		incoming := randomSamples(rng, rng.Intn(15))

		batched := NewBuffer(capacity)
		batched.InsertBatch(initial)
		batched.InsertBatch(incoming)
		assertInvariants(t, batched)

		for perm := 0; perm < 5; perm++ {
			seq := NewBuffer(capacity)
			seq.InsertBatch(initial)
			for _, i := range rng.Perm(len(incoming)) {
				seq.Insert(incoming[i])
				assertInvariants(t, seq)
			}
			got, want := timestamps(seq.Snapshot()), timestamps(batched.Snapshot())
			if len(got) != len(want) {
				t.Fatalf("round %d: sequential %v, batch %v", round, got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("round %d: sequential %v, batch %v", round, got, want)
				}
			}
		}
	}
}

// TestBufferEvictionDropsOldest checks that after any insert order the
// buffer holds exactly the newest capacity timestamps seen.
func TestBufferEvictionDropsOldest(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 100; round++ {
		capacity := 1 + rng.Intn(6)
		b := NewBuffer(capacity)
		seen := map[int64]bool{}
		for _, s := range randomSamples(rng, rng.Intn(20)) {
			b.Insert(s)
			seen[s.Timestamp] = true
		}

		var all []int64
		for ts := int64(1); ts <= 40; ts++ {
			if seen[ts] {
				all = append(all, ts)
			}
		}
		if len(all) > capacity {
			all = all[len(all)-capacity:]
		}
		got := timestamps(b.Snapshot())
		if len(got) != len(all) {
			t.Fatalf("round %d: got %v, want %v", round, got, all)
		}
		for i := range all {
			if got[i] != all[i] {
				t.Fatalf("round %d: got %v, want %v", round, got, all)
			}
		}
	}
}

func TestBufferLatest(t *testing.T) {
	b := NewBuffer(4)
	if _, ok := b.Latest(); ok {
		t.Error("empty buffer should have no latest sample")
	}
	b.InsertBatch([]Sample{sampleAt(7), sampleAt(3)})
	latest, ok := b.Latest()
	if !ok || latest.Timestamp != 7 {
		t.Errorf("Latest: got %d (ok=%v), want 7", latest.Timestamp, ok)
	}
}

func TestNewBufferMinimumCapacity(t *testing.T) {
	b := NewBuffer(0)
	if b.Cap() != 1 {
		t.Errorf("Cap: got %d, want 1", b.Cap())
	}
}

// randomSamples draws timestamps from a small range so collisions happen.
// Values are a pure function of the timestamp so first-write-wins cannot
// make permutations diverge.
func randomSamples(rng *rand.Rand, n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = sampleAt(int64(1 + rng.Intn(40)))
	}
	return out
}
