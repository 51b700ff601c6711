package admission

import (
	"fmt"
	"sync"
	"time"
)

// CooldownGate enforces a minimum interval between provider calls, both
// process-wide and per user. It holds its own mutex, independent from the
// quota tracker's: the two admission checks are individually atomic but
// deliberately not atomic as a pair.
type CooldownGate struct {
	mu         sync.Mutex
	global     time.Duration
	user       time.Duration
	lastGlobal time.Time
	lastByUser map[string]time.Time
	now        func() time.Time
}

// NewCooldownGate returns a gate with the given global and per-user minimum
// intervals.
func NewCooldownGate(global, user time.Duration) *CooldownGate {
	return &CooldownGate{
		global:     global,
		user:       user,
		lastByUser: make(map[string]time.Time),
		now:        time.Now,
	}
}

// Check reports whether a call may proceed now. The global interval is
// evaluated first and its message wins when both cooldowns are active. An
// empty userID skips the per-user check. Check never mutates state.
func (g *CooldownGate) Check(userID string) (bool, time.Duration, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.lastGlobal.IsZero() {
		if elapsed := now.Sub(g.lastGlobal); elapsed < g.global {
			wait := g.global - elapsed
			return false, wait, fmt.Sprintf("Global cooldown active. Please wait %.0f seconds.", wait.Seconds())
		}
	}
	if userID != "" {
		if last, ok := g.lastByUser[userID]; ok {
			if elapsed := now.Sub(last); elapsed < g.user {
				wait := g.user - elapsed
				return false, wait, fmt.Sprintf("Please wait %.0f seconds before another analysis.", wait.Seconds())
			}
		}
	}
	return true, 0, "OK"
}

// Record stamps the global timestamp and, when userID is non-empty, the
// per-user timestamp. Pass an empty userID to touch only the global clock,
// which is how failed provider attempts damp retry storms without charging
// a specific user.
func (g *CooldownGate) Record(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastGlobal = g.now()
	if userID != "" {
		g.lastByUser[userID] = g.lastGlobal
	}
}

// Reset clears the global and all per-user timestamps, returning the previous
// global timestamp (zero if no call was ever recorded). Quota is not touched;
// this is strictly the operator escape hatch for a wedged cooldown.
func (g *CooldownGate) Reset() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.lastGlobal
	g.lastGlobal = time.Time{}
	g.lastByUser = make(map[string]time.Time)
	return prev
}

// Prune drops per-user timestamps older than maxAge and returns how many were
// removed. Entries that old cannot influence Check anymore; they are only
// occupying memory.
func (g *CooldownGate) Prune(maxAge time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for id, last := range g.lastByUser {
		if now.Sub(last) > maxAge {
			delete(g.lastByUser, id)
			removed++
		}
	}
	return removed
}

// Snapshot returns the last global call timestamp (zero if never) and the
// number of users with a recorded cooldown stamp.
func (g *CooldownGate) Snapshot() (time.Time, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.lastGlobal, len(g.lastByUser)
}

// GlobalInterval returns the configured global cooldown.
func (g *CooldownGate) GlobalInterval() time.Duration {
	return g.global
}
