// Package admission provides violation recording and statistics.
package admission

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ViolationRecorder accepts denial records. Recording never influences the
// admission decision itself.
type ViolationRecorder interface {
	Record(v Violation)
}

// ViolationLog is an append-only record of denials with bounded retention.
// The oldest entries are overwritten once the retention ceiling is reached;
// the log serves reporting only, never decisions.
type ViolationLog struct {
	mu        sync.Mutex
	ring      []Violation
	next      int
	size      int
	retention int
}

// NewViolationLog constructs a log retaining up to the given entries.
func NewViolationLog(retention int) *ViolationLog {
	if retention <= 0 {
		retention = 10000
	}
	return &ViolationLog{
		ring:      make([]Violation, retention),
		retention: retention,
	}
}

// Record appends a violation, overwriting the oldest entry when full.
func (l *ViolationLog) Record(v Violation) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.ring[l.next] = v
	l.next = (l.next + 1) % l.retention
	if l.size < l.retention {
		l.size++
	}
	l.mu.Unlock()
}

// Len returns the number of retained violations.
func (l *ViolationLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// OffenderCount pairs a principal with its denial count.
type OffenderCount struct {
	PrincipalID string
	Count       int64
}

// ViolationStats aggregates retained denials over a trailing window.
type ViolationStats struct {
	Window       time.Duration
	Total        int64
	ByReason     map[ReasonCode]int64
	ByPrincipal  map[string]int64
	TopOffenders []OffenderCount
}

// Stats aggregates retained violations newer than now minus the window.
// TopOffenders lists up to topN principals by denial count, descending.
func (l *ViolationLog) Stats(window time.Duration, topN int, now time.Time) ViolationStats {
	stats := ViolationStats{
		Window:      window,
		ByReason:    make(map[ReasonCode]int64),
		ByPrincipal: make(map[string]int64),
	}
	if l == nil {
		return stats
	}
	if topN <= 0 {
		topN = 10
	}
	cutoff := now.Add(-window)

	l.mu.Lock()
	for i := 0; i < l.size; i++ {
		v := l.ring[(l.next-l.size+i+l.retention)%l.retention]
		if window > 0 && v.At.Before(cutoff) {
			continue
		}
		stats.Total++
		stats.ByReason[v.Reason]++
		stats.ByPrincipal[v.PrincipalID]++
	}
	l.mu.Unlock()

	offenders := make([]OffenderCount, 0, len(stats.ByPrincipal))
	for id, count := range stats.ByPrincipal {
		offenders = append(offenders, OffenderCount{PrincipalID: id, Count: count})
	}
	sort.Slice(offenders, func(i, j int) bool {
		if offenders[i].Count != offenders[j].Count {
			return offenders[i].Count > offenders[j].Count
		}
		return offenders[i].PrincipalID < offenders[j].PrincipalID
	})
	if len(offenders) > topN {
		offenders = offenders[:topN]
	}
	stats.TopOffenders = offenders
	return stats
}

// BufferedViolationRecorder decouples the decision path from the log with a
// bounded channel. Record never blocks: when the buffer is full the record
// is dropped and counted, which is acceptable for reporting and never for
// decisions.
type BufferedViolationRecorder struct {
	log     *ViolationLog
	buf     chan Violation
	dropped atomic.Int64
}

// NewBufferedViolationRecorder constructs a recorder in front of a log.
func NewBufferedViolationRecorder(log *ViolationLog, buffer int) *BufferedViolationRecorder {
	if buffer <= 0 {
		buffer = 1024
	}
	return &BufferedViolationRecorder{
		log: log,
		buf: make(chan Violation, buffer),
	}
}

// Record hands the violation to the background writer without blocking.
func (r *BufferedViolationRecorder) Record(v Violation) {
	if r == nil {
		return
	}
	select {
	case r.buf <- v:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of records lost to a full buffer.
func (r *BufferedViolationRecorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Start drains buffered violations into the log until the context ends.
func (r *BufferedViolationRecorder) Start(ctx context.Context) error {
	if r == nil || r.log == nil {
		return Wrap(CodeConfiguration, "violation recorder is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case v := <-r.buf:
			r.log.Record(v)
		}
	}
}

func (r *BufferedViolationRecorder) flush() {
	for {
		select {
		case v := <-r.buf:
			r.log.Record(v)
		default:
			return
		}
	}
}
