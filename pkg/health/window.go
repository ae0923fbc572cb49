package health

import (
	"sync"
	"time"
)

// outcomeWindow tracks request outcomes over a rolling time window.
//
// It is a bucketed circular buffer: outcomes land in the bucket for their
// timestamp, and buckets older than the window are cleared lazily on the
// next write or read. This bounds memory without a sweeper goroutine.
type outcomeWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []outcomeBucket
	nowFn      func() time.Time

	mu sync.Mutex
}

// outcomeBucket aggregates the outcomes that landed in one time slice.
type outcomeBucket struct {
	timestamp  time.Time
	success    int64
	failure    int64
	latencySum time.Duration
}

// windowTotals is the aggregate view of all live buckets.
type windowTotals struct {
	success    int64
	failure    int64
	latencySum time.Duration
}

func (t windowTotals) sampleSize() int64 {
	return t.success + t.failure
}

// successRate returns the percentage of successes, 0 when empty.
func (t windowTotals) successRate() float64 {
	n := t.sampleSize()
	if n == 0 {
		return 0
	}
	return float64(t.success) / float64(n) * 100
}

// avgLatency returns the mean latency across all outcomes, 0 when empty.
func (t windowTotals) avgLatency() time.Duration {
	n := t.sampleSize()
	if n == 0 {
		return 0
	}
	return t.latencySum / time.Duration(n)
}

// newOutcomeWindow creates a window with second-granularity buckets.
func newOutcomeWindow(window time.Duration) *outcomeWindow {
	bucketSize := time.Second
	numBuckets := int(window / bucketSize)
	if numBuckets < 1 {
		numBuckets = 1
		bucketSize = window
	}
	return &outcomeWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]outcomeBucket, numBuckets),
		nowFn:      time.Now,
	}
}

// Add records one outcome at the current time.
func (w *outcomeWindow) Add(success bool, latency time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.nowFn()
	w.pruneLocked(now)

	b := w.bucketForLocked(now)
	if success {
		b.success++
	} else {
		b.failure++
	}
	b.latencySum += latency
}

// Totals prunes expired buckets and returns the live aggregates.
func (w *outcomeWindow) Totals() windowTotals {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.nowFn())

	var t windowTotals
	for i := range w.buckets {
		if w.buckets[i].timestamp.IsZero() {
			continue
		}
		t.success += w.buckets[i].success
		t.failure += w.buckets[i].failure
		t.latencySum += w.buckets[i].latencySum
	}
	return t
}

// Reset clears all buckets.
func (w *outcomeWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.buckets {
		w.buckets[i] = outcomeBucket{}
	}
}

// pruneLocked clears buckets older than the window. Caller holds the lock.
func (w *outcomeWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() && w.buckets[i].timestamp.Before(cutoff) {
			w.buckets[i] = outcomeBucket{}
		}
	}
}

// bucketForLocked returns the bucket for the given time, reusing an empty
// slot or evicting the oldest when the buffer wraps. Caller holds the lock.
func (w *outcomeWindow) bucketForLocked(now time.Time) *outcomeBucket {
	bucketTime := now.Truncate(w.bucketSize)

	oldest := 0
	for i := range w.buckets {
		if w.buckets[i].timestamp.Equal(bucketTime) {
			return &w.buckets[i]
		}
		if w.buckets[i].timestamp.IsZero() {
			w.buckets[i] = outcomeBucket{timestamp: bucketTime}
			return &w.buckets[i]
		}
		if w.buckets[i].timestamp.Before(w.buckets[oldest].timestamp) {
			oldest = i
		}
	}

	w.buckets[oldest] = outcomeBucket{timestamp: bucketTime}
	return &w.buckets[oldest]
}
