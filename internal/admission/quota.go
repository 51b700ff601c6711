package admission

import (
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// QuotaTracker counts successful provider calls per user per UTC calendar
// day. State is process-local and resets on restart; that is accepted
// behavior, not something to paper over with persistence.
type QuotaTracker struct {
	mu        sync.Mutex
	limit     int
	counts    map[string]int
	resetDate string
	now       func() time.Time
}

// NewQuotaTracker returns a tracker allowing limit calls per user per day.
func NewQuotaTracker(limit int) *QuotaTracker {
	return &QuotaTracker{
		limit:  limit,
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// rollover clears all counts when the UTC date has advanced past the stored
// reset date. Callers must hold mu.
func (t *QuotaTracker) rollover() {
	today := t.now().UTC().Format(dateLayout)
	if today != t.resetDate {
		t.counts = make(map[string]int)
		t.resetDate = today
	}
}

// Check reports whether the user may make another call today, along with the
// current count and the limit. It never increments, but it does perform the
// lazy day rollover first.
func (t *QuotaTracker) Check(userID string) (bool, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	used := t.counts[userID]
	return used < t.limit, used, t.limit
}

// Increment records one successful call and returns the new count. Call it
// only after the provider call succeeded; rejected admissions and cache hits
// never count.
func (t *QuotaTracker) Increment(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	t.counts[userID]++
	return t.counts[userID]
}

// Limit returns the configured daily limit.
func (t *QuotaTracker) Limit() int {
	return t.limit
}

// Snapshot returns today's total call count, a copy of the per-user counts,
// and the reset date the counts are relative to.
func (t *QuotaTracker) Snapshot() (int, map[string]int, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	total := 0
	byUser := make(map[string]int, len(t.counts))
	for id, n := range t.counts {
		byUser[id] = n
		total += n
	}
	return total, byUser, t.resetDate
}
