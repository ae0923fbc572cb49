package health

import (
	"testing"
	"time"
)

func TestOutcomeWindow_Totals(t *testing.T) {
	w := newOutcomeWindow(5 * time.Minute)

	w.Add(true, 100*time.Millisecond)
	w.Add(true, 200*time.Millisecond)
	w.Add(false, 300*time.Millisecond)

	totals := w.Totals()
	if totals.success != 2 || totals.failure != 1 {
		t.Errorf("totals = %d/%d, want 2 successes, 1 failure", totals.success, totals.failure)
	}
	if got := totals.successRate(); got < 66 || got > 67 {
		t.Errorf("successRate() = %g, want ~66.7", got)
	}
	if got := totals.avgLatency(); got != 200*time.Millisecond {
		t.Errorf("avgLatency() = %v, want 200ms", got)
	}
}

func TestOutcomeWindow_EmptyTotals(t *testing.T) {
	w := newOutcomeWindow(5 * time.Minute)

	totals := w.Totals()
	if totals.sampleSize() != 0 {
		t.Errorf("sampleSize() = %d, want 0", totals.sampleSize())
	}
	if totals.successRate() != 0 {
		t.Errorf("successRate() = %g, want 0 for empty window", totals.successRate())
	}
	if totals.avgLatency() != 0 {
		t.Errorf("avgLatency() = %v, want 0 for empty window", totals.avgLatency())
	}
}

func TestOutcomeWindow_FullDecay(t *testing.T) {
	w := newOutcomeWindow(5 * time.Minute)

	base := time.Now()
	w.nowFn = func() time.Time { return base }
	for i := 0; i < 10; i++ {
		w.Add(i%2 == 0, 50*time.Millisecond)
	}
	if got := w.Totals().sampleSize(); got != 10 {
		t.Fatalf("sampleSize() = %d, want 10", got)
	}

	// One second past the window, every sample must be gone.
	w.nowFn = func() time.Time { return base.Add(5*time.Minute + time.Second) }
	if got := w.Totals().sampleSize(); got != 0 {
		t.Errorf("sampleSize() after full decay = %d, want 0", got)
	}
}

func TestOutcomeWindow_PartialDecay(t *testing.T) {
	w := newOutcomeWindow(5 * time.Minute)
	base := time.Now()

	w.nowFn = func() time.Time { return base }
	w.Add(false, 10*time.Millisecond)

	w.nowFn = func() time.Time { return base.Add(4 * time.Minute) }
	w.Add(true, 10*time.Millisecond)

	// The first outcome is now 5m30s old, the second 1m30s.
	w.nowFn = func() time.Time { return base.Add(5*time.Minute + 30*time.Second) }
	totals := w.Totals()
	if totals.failure != 0 {
		t.Errorf("failure = %d, want expired failure evicted", totals.failure)
	}
	if totals.success != 1 {
		t.Errorf("success = %d, want 1 still in window", totals.success)
	}
}

func TestOutcomeWindow_Reset(t *testing.T) {
	w := newOutcomeWindow(time.Minute)
	w.Add(true, time.Millisecond)
	w.Add(false, time.Millisecond)

	w.Reset()

	if got := w.Totals().sampleSize(); got != 0 {
		t.Errorf("sampleSize() after Reset = %d, want 0", got)
	}
}
