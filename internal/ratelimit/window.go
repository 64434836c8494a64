package ratelimit

import (
	"sync"
	"time"
)

// window is a bucketed sliding-window counter: values are added to a
// time-truncated bucket, expired buckets are pruned lazily on read/write,
// and Sum totals whatever remains. This avoids the "reset spike" a fixed
// window has at its boundary.
type window struct {
	mu       sync.Mutex
	span     time.Duration
	bucket   time.Duration
	values   map[int64]float64 // bucket-truncated unix nanos -> accumulated value
	now      func() time.Time
}

func newWindow(span, bucket time.Duration) *window {
	return &window{
		span:   span,
		bucket: bucket,
		values: make(map[int64]float64),
		now:    time.Now,
	}
}

func (w *window) Add(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.pruneLocked(now)
	key := now.Truncate(w.bucket).UnixNano()
	w.values[key] += v
}

func (w *window) Sum() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum
}

func (w *window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.span).UnixNano()
	for k := range w.values {
		if k < cutoff {
			delete(w.values, k)
		}
	}
}
