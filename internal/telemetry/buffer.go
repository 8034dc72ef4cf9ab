package telemetry

import "sort"

// InsertStatus describes what happened to a single inserted sample.
type InsertStatus int

const (
	// Inserted means the sample is now part of the buffer.
	Inserted InsertStatus = iota
	// Duplicate means a sample with the same timestamp was already stored.
	Duplicate
	// Rejected means the sample failed validation and was not stored.
	Rejected
	// Expired means the buffer is full and the sample is older than
	// everything retained, so it was evicted as soon as it was merged.
	Expired
)

func (s InsertStatus) String() string {
	switch s {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Rejection pairs a malformed sample with the reason it was refused.
type Rejection struct {
	Sample Sample
	Err    error
}

// InsertResult is the outcome of Buffer.Insert.
type InsertResult struct {
	Status  InsertStatus
	Err     error // validation error when Status == Rejected
	Evicted int   // previously stored samples dropped to make room
}

// BatchResult is the outcome of Buffer.InsertBatch.
type BatchResult struct {
	Inserted   int
	Duplicates int
	Expired    int
	Evicted    int
	Rejected   []Rejection
}

// Buffer is a timestamp-ordered, deduplicated, capacity-bounded sample store.
//
// Every mutation builds a new backing slice, so a slice returned by Snapshot
// is never written again and can be read after the caller's lock is
// released. Buffer itself is not safe for concurrent mutation; the caller
// must synchronize writers.
type Buffer struct {
	samples  []Sample
	capacity int
}

// NewBuffer creates an empty buffer holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{capacity: capacity}
}

// Insert stores s unless it is malformed or its timestamp is already present
// (first write wins). The oldest samples are evicted to stay within capacity.
func (b *Buffer) Insert(s Sample) InsertResult {
	res := b.InsertBatch([]Sample{s})
	switch {
	case len(res.Rejected) > 0:
		return InsertResult{Status: Rejected, Err: res.Rejected[0].Err}
	case res.Duplicates > 0:
		return InsertResult{Status: Duplicate}
	case res.Expired > 0:
		return InsertResult{Status: Expired}
	}
	return InsertResult{Status: Inserted, Evicted: res.Evicted}
}

// InsertBatch merges samples in one step. Malformed entries are skipped and
// reported; the rest of the batch is still applied. The final state equals
// calling Insert once per sample, in any order.
func (b *Buffer) InsertBatch(samples []Sample) BatchResult {
	var res BatchResult

	fresh := make([]Sample, 0, len(samples))
	seen := make(map[int64]struct{}, len(samples))
	for _, s := range samples {
		if err := s.Validate(); err != nil {
			res.Rejected = append(res.Rejected, Rejection{Sample: s, Err: err})
			continue
		}
		if _, ok := seen[s.Timestamp]; ok || b.contains(s.Timestamp) {
			res.Duplicates++
			continue
		}
		seen[s.Timestamp] = struct{}{}
		fresh = append(fresh, s)
	}
	if len(fresh) == 0 {
		return res
	}

	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].Timestamp < fresh[j].Timestamp
	})
	merged := mergeSorted(b.samples, fresh)

	// Trim by final sort order: oldest first, whether stored or new.
	if over := len(merged) - b.capacity; over > 0 {
		for _, s := range merged[:over] {
			if _, ok := seen[s.Timestamp]; ok {
				res.Expired++
			} else {
				res.Evicted++
			}
		}
		merged = merged[over:]
	}

	res.Inserted = len(fresh) - res.Expired
	b.samples = merged
	return res
}

// Snapshot returns the stored samples in ascending timestamp order.
// The returned slice must not be modified.
func (b *Buffer) Snapshot() []Sample {
	return b.samples
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Latest returns the newest stored sample.
func (b *Buffer) Latest() (Sample, bool) {
	if len(b.samples) == 0 {
		return Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

func (b *Buffer) contains(ts int64) bool {
	i := sort.Search(len(b.samples), func(i int) bool {
		return b.samples[i].Timestamp >= ts
	})
	return i < len(b.samples) && b.samples[i].Timestamp == ts
}

// mergeSorted merges two ascending, mutually disjoint slices into a new one.
func mergeSorted(a, b []Sample) []Sample {
	out := make([]Sample, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Timestamp < b[j].Timestamp {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
