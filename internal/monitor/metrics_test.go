package monitor

import (
	"testing"
	"time"
)

func TestHistogramEvictsOldestSamples(t *testing.T) {
	h := NewLatencyHistogram(4)
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		h.Record(v)
	}

	s := h.Stats()
	if s.Count != 4 {
		t.Fatalf("Count = %d, want 4", s.Count)
	}
	if s.Min != 3 || s.Max != 6 {
		t.Fatalf("Min/Max = %v/%v, want 3/6", s.Min, s.Max)
	}
	if s.Avg != 4.5 {
		t.Fatalf("Avg = %v, want 4.5", s.Avg)
	}
}

func TestHistogramStatsCachedUntilNextRecord(t *testing.T) {
	h := NewLatencyHistogram(8)
	h.Record(10)
	h.Record(20)

	first := h.Stats()
	if first != h.Stats() {
		t.Fatal("repeated Stats without new samples should match")
	}

	h.Record(30)
	second := h.Stats()
	if second.Count != 3 || second.Max != 30 {
		t.Fatalf("Count/Max after record = %d/%v, want 3/30", second.Count, second.Max)
	}
}

func TestHistogramEmpty(t *testing.T) {
	h := NewLatencyHistogram(0)
	if s := h.Stats(); s.Count != 0 || s.Max != 0 {
		t.Fatalf("empty histogram stats = %+v, want zero value", s)
	}
}

func TestTimerRecordsElapsed(t *testing.T) {
	h := NewLatencyHistogram(16)
	tm := NewTimer(h)
	time.Sleep(time.Millisecond)
	if d := tm.Stop(); d <= 0 {
		t.Fatalf("elapsed = %v, want > 0", d)
	}
	if got := h.Stats().Count; got != 1 {
		t.Fatalf("recorded samples = %d, want 1", got)
	}

	// Nil histogram timers still report elapsed time.
	if d := NewTimer(nil).Stop(); d < 0 {
		t.Fatalf("elapsed = %v, want >= 0", d)
	}
}
