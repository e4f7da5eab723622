package testutil

import "sync"

// SequenceRandom returns predetermined values from Intn, for deterministic
// retry jitter in tests.
//
// Values are returned in order and wrap around. Each value is reduced
// modulo n so the result always lies in [0, n).
//
// Thread-safety: all methods are safe for concurrent use.
type SequenceRandom struct {
	mu     sync.Mutex
	values []int
	idx    int
	bounds []int
}

// NewSequenceRandom creates a source cycling through values. With no
// values it always returns 0.
func NewSequenceRandom(values ...int) *SequenceRandom {
	return &SequenceRandom{values: values}
}

// Intn returns the next value reduced modulo n.
func (r *SequenceRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bounds = append(r.bounds, n)
	if len(r.values) == 0 || n <= 0 {
		return 0
	}
	v := r.values[r.idx%len(r.values)]
	r.idx++
	return v % n
}

// Bounds returns the n passed to each Intn call so far.
func (r *SequenceRandom) Bounds() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.bounds...)
}
