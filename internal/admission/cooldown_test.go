package admission

import (
	"strings"
	"testing"
	"time"
)

func TestCooldownAllowsFreshGate(t *testing.T) {
	gate := NewCooldownGate(60*time.Second, 60*time.Second)

	ok, wait, msg := gate.Check("u1")
	if !ok || wait != 0 || msg != "OK" {
		t.Fatalf("fresh gate Check = (%v, %v, %q), want (true, 0, OK)", ok, wait, msg)
	}
}

func TestCooldownWaitIsExact(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	gate := NewCooldownGate(60*time.Second, 60*time.Second)
	gate.now = func() time.Time { return now }

	gate.Record("u1")
	now = now.Add(23 * time.Second)

	ok, wait, _ := gate.Check("u1")
	if ok {
		t.Fatal("expected cooldown to block")
	}
	if wait != 37*time.Second {
		t.Fatalf("wait = %v, want 37s", wait)
	}
}

func TestCooldownGlobalWinsWhenBothActive(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	gate := NewCooldownGate(60*time.Second, 60*time.Second)
	gate.now = func() time.Time { return now }

	gate.Record("u1")
	now = now.Add(10 * time.Second)

	_, _, msg := gate.Check("u1")
	if !strings.Contains(msg, "Global cooldown") {
		t.Fatalf("expected the global cooldown message, got %q", msg)
	}
}

func TestCooldownPerUserMessage(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	gate := NewCooldownGate(10*time.Second, 60*time.Second)
	gate.now = func() time.Time { return now }

	gate.Record("u1")
	now = now.Add(30 * time.Second) // global expired, user still active

	ok, wait, msg := gate.Check("u1")
	if ok {
		t.Fatal("expected per-user cooldown to block")
	}
	if wait != 30*time.Second {
		t.Fatalf("wait = %v, want 30s", wait)
	}
	if strings.Contains(msg, "Global") {
		t.Fatalf("expected the per-user message, got %q", msg)
	}

	// A different user only sees the (expired) global cooldown.
	if ok, _, _ := gate.Check("u2"); !ok {
		t.Fatal("u2 should not be blocked by u1's cooldown")
	}
}

func TestCooldownRecordWithoutUserIsGlobalOnly(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	gate := NewCooldownGate(60*time.Second, 60*time.Second)
	gate.now = func() time.Time { return now }

	gate.Record("")
	if _, users := gate.Snapshot(); users != 0 {
		t.Fatalf("Record(\"\") stamped a user: %d active", users)
	}

	if ok, _, _ := gate.Check(""); ok {
		t.Fatal("global cooldown should block after Record(\"\")")
	}

	now = now.Add(61 * time.Second)
	if ok, _, _ := gate.Check("u1"); !ok {
		t.Fatal("u1 should be clear once the global cooldown expires")
	}
}

func TestCooldownReset(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	gate := NewCooldownGate(60*time.Second, 60*time.Second)
	gate.now = func() time.Time { return now }

	gate.Record("u1")
	prev := gate.Reset()
	if !prev.Equal(now) {
		t.Fatalf("Reset returned %v, want %v", prev, now)
	}

	if ok, _, _ := gate.Check("u1"); !ok {
		t.Fatal("Check should pass immediately after Reset")
	}
	last, users := gate.Snapshot()
	if !last.IsZero() || users != 0 {
		t.Fatalf("Snapshot after Reset = (%v, %d), want (zero, 0)", last, users)
	}
}

func TestCooldownPruneDropsOnlyStaleStamps(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := start
	gate := NewCooldownGate(60*time.Second, 60*time.Second)
	gate.now = func() time.Time { return now }

	gate.Record("old")
	now = start.Add(30 * time.Minute)
	gate.Record("recent")

	now = start.Add(65 * time.Minute)
	if removed := gate.Prune(time.Hour); removed != 1 {
		t.Fatalf("Prune removed %d stamps, want 1", removed)
	}
	if _, users := gate.Snapshot(); users != 1 {
		t.Fatalf("ActiveUsers after prune = %d, want 1", users)
	}
}

func TestCooldownZeroIntervalsDisableGate(t *testing.T) {
	gate := NewCooldownGate(0, 0)
	gate.Record("u1")

	if ok, _, _ := gate.Check("u1"); !ok {
		t.Fatal("zero intervals should never block")
	}
}
