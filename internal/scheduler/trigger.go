package scheduler

import (
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-routines/internal/routine"
)

// slotLayout is the date+minute key used to dedupe time-trigger fires.
const slotLayout = "2006-01-02T15:04"

// SlotKey returns the slot key for now in its own location.
func SlotKey(now time.Time) string {
	return now.Format(slotLayout)
}

// timeMatches reports whether a time trigger matches now's HH:MM and weekday.
func timeMatches(t routine.Trigger, now time.Time) bool {
	if now.Format("15:04") != t.Time {
		return false
	}
	return len(t.Weekdays) == 0 || slices.Contains(t.Weekdays, int(now.Weekday()))
}

// intervalDue reports whether an interval trigger is due at now.
func intervalDue(t routine.Trigger, last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= time.Duration(t.IntervalMinutes())*time.Minute
}

// tracker remembers the last slot and fire time per routine. It covers the
// window before a MarkRun write lands or when that write fails.
type tracker struct {
	mu    sync.Mutex
	slots map[string]string
	fired map[string]time.Time
}

func newTracker() *tracker {
	return &tracker{
		slots: make(map[string]string),
		fired: make(map[string]time.Time),
	}
}

// seed records persisted bookkeeping without overwriting newer entries.
func (t *tracker) seed(id, slot string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.slots[id]; !ok && slot != "" {
		t.slots[id] = slot
	}
}

// claimSlot records key for id and reports whether it differs from the
// last slot fired. persisted is the routine's stored slot.
func (t *tracker) claimSlot(id, key, persisted string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.slots[id]
	if !ok {
		last = persisted
	}
	if last == key {
		return false
	}
	t.slots[id] = key
	return true
}

// lastRun returns the later of the persisted lastRunAt and the last fire
// seen in this process.
func (t *tracker) lastRun(id string, persisted *time.Time) *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen, ok := t.fired[id]
	if !ok || (persisted != nil && !seen.After(*persisted)) {
		return persisted
	}
	return &seen
}

func (t *tracker) markFired(id string, at time.Time) {
	t.mu.Lock()
	t.fired[id] = at
	t.mu.Unlock()
}
