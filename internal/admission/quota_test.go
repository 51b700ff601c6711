package admission

import (
	"testing"
	"time"
)

func TestQuotaTrackerEnforcesLimit(t *testing.T) {
	tracker := NewQuotaTracker(3)

	for i := 0; i < 3; i++ {
		allowed, used, limit := tracker.Check("u1")
		if !allowed {
			t.Fatalf("call %d: expected quota available, used=%d limit=%d", i, used, limit)
		}
		tracker.Increment("u1")
	}

	allowed, used, limit := tracker.Check("u1")
	if allowed {
		t.Fatal("expected quota exhausted after limit increments")
	}
	if used != 3 || limit != 3 {
		t.Fatalf("Check = (used=%d, limit=%d), want (3, 3)", used, limit)
	}
}

func TestQuotaTrackerCheckNeverMutates(t *testing.T) {
	tracker := NewQuotaTracker(15)

	for i := 0; i < 10; i++ {
		tracker.Check("u1")
	}
	_, used, _ := tracker.Check("u1")
	if used != 0 {
		t.Fatalf("Check mutated the count: used=%d, want 0", used)
	}
}

func TestQuotaTrackerUsersAreIndependent(t *testing.T) {
	tracker := NewQuotaTracker(2)
	tracker.Increment("u1")
	tracker.Increment("u1")

	if allowed, _, _ := tracker.Check("u1"); allowed {
		t.Fatal("u1 should be exhausted")
	}
	if allowed, used, _ := tracker.Check("u2"); !allowed || used != 0 {
		t.Fatalf("u2 should be untouched: allowed=%v used=%d", allowed, used)
	}
}

func TestQuotaTrackerDayRollover(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	tracker := NewQuotaTracker(2)
	tracker.now = func() time.Time { return now }

	tracker.Increment("u1")
	tracker.Increment("u1")
	if allowed, _, _ := tracker.Check("u1"); allowed {
		t.Fatal("u1 should be exhausted before rollover")
	}

	now = now.Add(time.Hour) // crosses midnight UTC

	allowed, used, _ := tracker.Check("u1")
	if !allowed || used != 0 {
		t.Fatalf("after rollover: allowed=%v used=%d, want allowed with 0 used", allowed, used)
	}

	_, _, resetDate := tracker.Snapshot()
	if resetDate != "2026-03-15" {
		t.Fatalf("resetDate = %q, want 2026-03-15", resetDate)
	}
}

func TestQuotaTrackerSnapshotIsACopy(t *testing.T) {
	tracker := NewQuotaTracker(15)
	tracker.Increment("u1")
	tracker.Increment("u1")
	tracker.Increment("u2")

	total, byUser, _ := tracker.Snapshot()
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if byUser["u1"] != 2 || byUser["u2"] != 1 {
		t.Fatalf("byUser mismatch: %#v", byUser)
	}

	byUser["u1"] = 99
	_, again, _ := tracker.Snapshot()
	if again["u1"] != 2 {
		t.Fatalf("snapshot aliased internal state: u1=%d, want 2", again["u1"])
	}
}

func TestQuotaTrackerIncrementReturnsNewCount(t *testing.T) {
	tracker := NewQuotaTracker(15)
	if n := tracker.Increment("u1"); n != 1 {
		t.Fatalf("first Increment = %d, want 1", n)
	}
	if n := tracker.Increment("u1"); n != 2 {
		t.Fatalf("second Increment = %d, want 2", n)
	}
}
