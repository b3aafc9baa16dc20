package pipeline

import (
	"testing"
	"time"
)

func TestPriorityScore_MonotonicInUsers(t *testing.T) {
	now := time.Now()
	last := now.Add(-time.Hour)

	few := PriorityScore(2, 0.5, last, now)
	many := PriorityScore(20, 0.5, last, now)

	if many <= few {
		t.Errorf("more users should score higher: %f vs %f", many, few)
	}
}

func TestPriorityScore_MonotonicInImpact(t *testing.T) {
	now := time.Now()
	last := now.Add(-time.Hour)

	low := PriorityScore(5, 0.1, last, now)
	high := PriorityScore(5, 0.9, last, now)

	if high <= low {
		t.Errorf("higher impact should score higher: %f vs %f", high, low)
	}
}

func TestPriorityScore_MonotonicInRecency(t *testing.T) {
	now := time.Now()

	stale := PriorityScore(5, 0.5, now.Add(-30*24*time.Hour), now)
	fresh := PriorityScore(5, 0.5, now.Add(-time.Hour), now)

	if fresh <= stale {
		t.Errorf("more recent occurrence should score higher: %f vs %f", fresh, stale)
	}
}

func TestPriorityScore_ZeroUsers(t *testing.T) {
	now := time.Now()
	if got := PriorityScore(0, 0.9, now, now); got != 0 {
		t.Errorf("zero users should score 0, got %f", got)
	}
}

func TestPriorityScore_ClampsNegativeInputs(t *testing.T) {
	now := time.Now()
	got := PriorityScore(-3, -0.5, now.Add(time.Hour), now)
	if got != 0 {
		t.Errorf("negative users clamp to zero score, got %f", got)
	}
}
