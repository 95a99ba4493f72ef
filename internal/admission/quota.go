// Package admission provides the monthly quota ledger.
package admission

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// QuotaRecord is the per-principal, per-calendar-month usage counter.
type QuotaRecord struct {
	Requests int64
	Units    int64
}

// QuotaResult reports the outcome of a quota check. On a denial,
// RequestsExceeded says whether the request ceiling was the bound that
// tripped rather than the compute-unit ceiling.
type QuotaResult struct {
	Exceeded         bool
	RequestsExceeded bool
	OverageAllowed   bool
	OverageUnits     int64
	OverageCost      float64
	Requests         int64
	Units            int64
}

// QuotaLedger tracks cumulative monthly usage per principal. Buckets are
// keyed by principal and calendar month, so month boundaries roll over by
// construction and no reset job is needed. The ledger is sharded by
// principal id like the registry.
type QuotaLedger struct {
	shards []*quotaShard
}

type quotaShard struct {
	mu      sync.Mutex
	records map[string]*QuotaRecord
}

// NewQuotaLedger constructs a sharded ledger.
func NewQuotaLedger(shards int) *QuotaLedger {
	if shards <= 0 {
		shards = 16
	}
	ledger := &QuotaLedger{shards: make([]*quotaShard, shards)}
	for i := range ledger.shards {
		ledger.shards[i] = &quotaShard{records: make(map[string]*QuotaRecord)}
	}
	return ledger
}

func (l *QuotaLedger) shardFor(principalID string) *quotaShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(principalID))
	return l.shards[int(h.Sum32())%len(l.shards)]
}

func quotaKey(principalID string, now time.Time) string {
	return principalID + "\x1f" + now.Format("2006-01")
}

// CheckAndIncrement applies a request of the given cost against the
// principal's monthly ceilings. Within the ceilings it increments and
// reports not-exceeded. Beyond them, overage-disallowed profiles are denied
// without incrementing; overage-allowed profiles increment anyway and the
// overage cost is computed from the units beyond the ceiling.
func (l *QuotaLedger) CheckAndIncrement(principalID string, profile LimitProfile, cost int64, now time.Time) QuotaResult {
	if l == nil || cost <= 0 {
		return QuotaResult{}
	}
	shard := l.shardFor(principalID)
	key := quotaKey(principalID, now)

	shard.mu.Lock()
	defer shard.mu.Unlock()
	record := shard.records[key]
	if record == nil {
		record = &QuotaRecord{}
		shard.records[key] = record
	}

	withinRequests := record.Requests+1 <= profile.MonthlyRequests
	withinUnits := record.Units+cost <= profile.MonthlyComputeUnits
	if withinRequests && withinUnits {
		record.Requests++
		record.Units += cost
		return QuotaResult{Requests: record.Requests, Units: record.Units}
	}

	if !profile.OverageAllowed {
		return QuotaResult{
			Exceeded:         true,
			RequestsExceeded: !withinRequests,
			Requests:         record.Requests,
			Units:            record.Units,
		}
	}

	record.Requests++
	record.Units += cost
	overageUnits := record.Units - profile.MonthlyComputeUnits
	if overageUnits < 0 {
		overageUnits = 0
	}
	return QuotaResult{
		Exceeded:       true,
		OverageAllowed: true,
		OverageUnits:   overageUnits,
		OverageCost:    float64(overageUnits) / 1000 * profile.OverageUnitPrice,
		Requests:       record.Requests,
		Units:          record.Units,
	}
}

// Usage returns the current month's record for a principal.
func (l *QuotaLedger) Usage(principalID string, now time.Time) QuotaRecord {
	if l == nil {
		return QuotaRecord{}
	}
	shard := l.shardFor(principalID)
	key := quotaKey(principalID, now)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if record := shard.records[key]; record != nil {
		return *record
	}
	return QuotaRecord{}
}

// Prune drops buckets from months before the current one and returns the
// number removed.
func (l *QuotaLedger) Prune(now time.Time) int {
	if l == nil {
		return 0
	}
	month := now.Format("2006-01")
	pruned := 0
	for _, shard := range l.shards {
		shard.mu.Lock()
		for key := range shard.records {
			sep := strings.LastIndexByte(key, '\x1f')
			if sep < 0 {
				continue
			}
			if key[sep+1:] < month {
				delete(shard.records, key)
				pruned++
			}
		}
		shard.mu.Unlock()
	}
	return pruned
}
