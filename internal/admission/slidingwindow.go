// Package admission provides sliding window counters.
package admission

import "time"

// SlidingWindow enforces a sustained-rate ceiling over a trailing interval
// with exact accounting. It retains one timestamp per admitted request, so
// memory is bounded by the limit. Never admits more than limit requests in
// any trailing window interval.
//
// SlidingWindow is not internally synchronized. Callers hold the owning
// principal's lock across Allow.
type SlidingWindow struct {
	limit  int64
	window time.Duration
	stamps []time.Time
}

// NewSlidingWindow constructs an empty window counter.
func NewSlidingWindow(limit int64, window time.Duration) *SlidingWindow {
	if limit < 0 {
		limit = 0
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{limit: limit, window: window}
}

// Allow prunes aged timestamps, then admits the request if capacity remains.
// On denial it reports how long until the oldest retained stamp ages out.
func (w *SlidingWindow) Allow(now time.Time) (bool, time.Duration) {
	if w == nil {
		return false, 0
	}
	w.prune(now)
	if int64(len(w.stamps)) < w.limit {
		w.stamps = append(w.stamps, now)
		return true, 0
	}
	if len(w.stamps) == 0 {
		return false, w.window
	}
	retryAfter := w.stamps[0].Add(w.window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter
}

// Used prunes aged timestamps and returns the retained count.
func (w *SlidingWindow) Used(now time.Time) int64 {
	if w == nil {
		return 0
	}
	w.prune(now)
	return int64(len(w.stamps))
}

// Remaining prunes aged timestamps and returns the capacity left.
func (w *SlidingWindow) Remaining(now time.Time) int64 {
	if w == nil {
		return 0
	}
	w.prune(now)
	remaining := w.limit - int64(len(w.stamps))
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Limit returns the configured ceiling.
func (w *SlidingWindow) Limit() int64 {
	if w == nil {
		return 0
	}
	return w.limit
}

func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for idx < len(w.stamps) && !w.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[idx:]...)
	}
}

// CostWindow enforces a cost-unit budget over a trailing interval. It is the
// weighted counterpart of SlidingWindow: each admitted request contributes
// its endpoint cost instead of a flat unit.
type CostWindow struct {
	budget  int64
	window  time.Duration
	entries []costEntry
	total   int64
}

type costEntry struct {
	at   time.Time
	cost int64
}

// NewCostWindow constructs an empty cost budget window.
func NewCostWindow(budget int64, window time.Duration) *CostWindow {
	if budget < 0 {
		budget = 0
	}
	if window <= 0 {
		window = time.Minute
	}
	return &CostWindow{budget: budget, window: window}
}

// Allow admits the request if the trailing cost sum stays within budget.
func (w *CostWindow) Allow(cost int64, now time.Time) (bool, time.Duration) {
	if w == nil || cost <= 0 {
		return false, 0
	}
	w.prune(now)
	if w.total+cost <= w.budget {
		w.entries = append(w.entries, costEntry{at: now, cost: cost})
		w.total += cost
		return true, 0
	}
	if len(w.entries) == 0 {
		return false, w.window
	}
	retryAfter := w.entries[0].at.Add(w.window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter
}

// Used prunes aged entries and returns the trailing cost sum.
func (w *CostWindow) Used(now time.Time) int64 {
	if w == nil {
		return 0
	}
	w.prune(now)
	return w.total
}

// Budget returns the configured cost ceiling.
func (w *CostWindow) Budget() int64 {
	if w == nil {
		return 0
	}
	return w.budget
}

func (w *CostWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for idx < len(w.entries) && !w.entries[idx].at.After(cutoff) {
		w.total -= w.entries[idx].cost
		idx++
	}
	if idx > 0 {
		w.entries = append(w.entries[:0], w.entries[idx:]...)
	}
}
