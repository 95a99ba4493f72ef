// Package admission provides an approximate sliding window counter.
package admission

import "time"

// BucketedWindow approximates a sliding window with a fixed-size circular
// array of sub-interval counters. Memory is O(buckets) regardless of the
// limit, which makes it the right substitute for very large limits where the
// exact timestamp log would be too expensive.
//
// Approximation slack: admissions are attributed to the sub-interval that
// contains them, so a request can stay counted for up to one sub-interval
// beyond the true window and the counter can briefly under-count at the
// leading edge. The count within any trailing window is therefore bounded by
// the limit plus one sub-interval's worth of admissions; the tests pin this
// down.
type BucketedWindow struct {
	limit   int64
	window  time.Duration
	slot    time.Duration
	counts  []int64
	slotted []time.Time
	total   int64
}

// NewBucketedWindow constructs an approximate counter with the given number
// of sub-intervals.
func NewBucketedWindow(limit int64, window time.Duration, buckets int) *BucketedWindow {
	if limit < 0 {
		limit = 0
	}
	if window <= 0 {
		window = time.Minute
	}
	if buckets <= 0 {
		buckets = 60
	}
	return &BucketedWindow{
		limit:   limit,
		window:  window,
		slot:    window / time.Duration(buckets),
		counts:  make([]int64, buckets),
		slotted: make([]time.Time, buckets),
	}
}

// Allow admits the request if the retained count is under the limit.
func (w *BucketedWindow) Allow(now time.Time) (bool, time.Duration) {
	if w == nil {
		return false, 0
	}
	w.expire(now)
	if w.total < w.limit {
		idx := w.index(now)
		start := now.Truncate(w.slot)
		if !w.slotted[idx].Equal(start) {
			w.total -= w.counts[idx]
			w.counts[idx] = 0
			w.slotted[idx] = start
		}
		w.counts[idx]++
		w.total++
		return true, 0
	}
	retryAfter := w.oldestExpiry(now)
	return false, retryAfter
}

// Used returns the retained count after expiring stale sub-intervals.
func (w *BucketedWindow) Used(now time.Time) int64 {
	if w == nil {
		return 0
	}
	w.expire(now)
	return w.total
}

func (w *BucketedWindow) index(now time.Time) int {
	slots := now.UnixNano() / int64(w.slot)
	return int(slots % int64(len(w.counts)))
}

func (w *BucketedWindow) expire(now time.Time) {
	cutoff := now.Add(-w.window)
	for i := range w.counts {
		if w.counts[i] == 0 {
			continue
		}
		if !w.slotted[i].After(cutoff) {
			w.total -= w.counts[i]
			w.counts[i] = 0
		}
	}
}

func (w *BucketedWindow) oldestExpiry(now time.Time) time.Duration {
	var oldest time.Time
	for i := range w.counts {
		if w.counts[i] == 0 {
			continue
		}
		if oldest.IsZero() || w.slotted[i].Before(oldest) {
			oldest = w.slotted[i]
		}
	}
	if oldest.IsZero() {
		return w.slot
	}
	retryAfter := oldest.Add(w.window + w.slot).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return retryAfter
}
