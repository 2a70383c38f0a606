package ztelemetry

import (
	"testing"
	"time"
)

func TestNewWithoutSinksIsUsable(t *testing.T) {
	tel, err := New(Options{Rank: 0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tel.RunID == "" {
		t.Fatalf("expected a non-empty RunID")
	}
	tel.ObserveProgress(4, 2)
	tel.RecordNode()
	tel.RecordNode()
	if n := tel.NodesPerSecond(); n < 2 {
		t.Fatalf("NodesPerSecond = %v, want >= 2 immediately after two RecordNode calls", n)
	}
}

func TestStealLatencyPercentilesEmpty(t *testing.T) {
	tel, err := New(Options{Rank: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p50, p95, p99, err := tel.StealLatencyPercentiles()
	if err != nil {
		t.Fatalf("StealLatencyPercentiles: %v", err)
	}
	if p50 != 0 || p95 != 0 || p99 != 0 {
		t.Fatalf("expected all-zero percentiles with no samples, got %v %v %v", p50, p95, p99)
	}
}

func TestStealLatencyPercentilesOrdering(t *testing.T) {
	tel, err := New(Options{Rank: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, us := range []int{10, 20, 30, 40, 50, 1000} {
		tel.RecordSteal(time.Duration(us) * time.Microsecond)
	}
	p50, p95, p99, err := tel.StealLatencyPercentiles()
	if err != nil {
		t.Fatalf("StealLatencyPercentiles: %v", err)
	}
	if !(p50 <= p95 && p95 <= p99) {
		t.Fatalf("expected p50 <= p95 <= p99, got %v %v %v", p50, p95, p99)
	}
}

func TestSummaryDoesNotPanic(t *testing.T) {
	tel, err := New(Options{Rank: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tel.RecordNode()
	tel.RecordSteal(5 * time.Millisecond)
	_ = tel.Summary()
}
