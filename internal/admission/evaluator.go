// Package admission provides the admission evaluator.
package admission

import (
	"math"
	"time"
)

// Evaluator orchestrates the limiter primitives into one allow/deny decision
// per request. Checks are pure in-memory computations that run synchronously
// on the calling goroutine; there are no suspension points and no
// cancellation concept, so no context is threaded through the decision path.
type Evaluator struct {
	registry   *PrincipalRegistry
	costs      *EndpointCostTable
	ledger     *QuotaLedger
	violations ViolationRecorder
	metrics    Metrics
	now        func() time.Time
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(registry *PrincipalRegistry, costs *EndpointCostTable, ledger *QuotaLedger, violations ViolationRecorder, metrics Metrics, now func() time.Time) *Evaluator {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		registry:   registry,
		costs:      costs,
		ledger:     ledger,
		violations: violations,
		metrics:    metrics,
		now:        now,
	}
}

// Check evaluates a single admission request.
func (e *Evaluator) Check(req *CheckRequest) (*Decision, error) {
	if e == nil || e.registry == nil || e.ledger == nil {
		return nil, Wrap(CodeConfiguration, "evaluator is not configured", nil)
	}
	if req == nil || req.PrincipalID == "" || req.Endpoint == "" {
		return nil, ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		e.metrics.ObserveCheckLatency(time.Since(start))
	}()

	now := req.Timestamp
	if now.IsZero() {
		now = e.now()
	}
	cost := e.costs.Lookup(req.Endpoint)

	entry, ok := e.registry.lookup(req.PrincipalID)
	if !ok {
		return e.deny(req, "", now, &Decision{Cost: cost, Reason: ReasonInvalidPrincipal}), nil
	}

	decision := e.evaluate(entry, req, cost, now)
	// Limiter state exists after any evaluation that got past the principal
	// check, denied or not, so the LRU must see both outcomes.
	if decision.Allowed || decision.Reason != ReasonInvalidPrincipal {
		e.registry.touchState(req.PrincipalID)
	}
	if decision.Allowed {
		e.recordAdmit(entry, decision, cost)
		return decision, nil
	}
	return e.deny(req, entry.principal.Tier, now, decision), nil
}

// CheckBatch evaluates admission requests in order.
func (e *Evaluator) CheckBatch(reqs []*CheckRequest) ([]*Decision, error) {
	decisions := make([]*Decision, len(reqs))
	for i, req := range reqs {
		decision, err := e.Check(req)
		if err != nil {
			return nil, err
		}
		decisions[i] = decision
	}
	return decisions, nil
}

// evaluate walks the decision state machine under the principal's lock so
// two concurrent requests for the same principal never both observe stale
// capacity.
func (e *Evaluator) evaluate(entry *principalEntry, req *CheckRequest, cost int64, now time.Time) *Decision {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.principal.Active(now) {
		return &Decision{Cost: cost, Reason: ReasonInvalidPrincipal}
	}
	profile := entry.principal.Profile
	if entry.state == nil {
		entry.state = newLimiterState(profile, now)
	}
	state := entry.state
	state.lastTouched = now

	if ok, retryAfter := state.bucket.TryConsume(float64(cost), now); !ok {
		used := int64(profile.BurstCapacity - state.bucket.Level(now))
		return &Decision{
			Cost:         cost,
			Reason:       ReasonPerSecondExceeded,
			Limit:        int64(profile.BurstCapacity),
			CurrentUsage: used,
			RetryAfter:   retryAfter,
		}
	}

	// Minute, hour, day, in that order. The first failure short-circuits so
	// a denial at one granularity never consumes the later ones.
	windows := []struct {
		window *SlidingWindow
		reason ReasonCode
	}{
		{state.minute, ReasonPerMinuteExceeded},
		{state.hour, ReasonPerHourExceeded},
		{state.day, ReasonPerDayExceeded},
	}
	for _, item := range windows {
		if ok, retryAfter := item.window.Allow(now); !ok {
			return &Decision{
				Cost:         cost,
				Reason:       item.reason,
				Limit:        item.window.Limit(),
				CurrentUsage: item.window.Used(now),
				RetryAfter:   retryAfter,
			}
		}
	}

	// The per-minute cost budget is an independent ceiling: cost is charged
	// here and to the token bucket, never to the count windows.
	if ok, retryAfter := state.costMinute.Allow(cost, now); !ok {
		return &Decision{
			Cost:         cost,
			Reason:       ReasonPerMinuteExceeded,
			Limit:        state.costMinute.Budget(),
			CurrentUsage: state.costMinute.Used(now),
			RetryAfter:   retryAfter,
		}
	}

	quota := e.ledger.CheckAndIncrement(entry.principal.ID, profile, cost, now)
	if quota.Exceeded && !quota.OverageAllowed {
		limit, usage := profile.MonthlyComputeUnits, quota.Units
		if quota.RequestsExceeded {
			limit, usage = profile.MonthlyRequests, quota.Requests
		}
		return &Decision{
			Cost:         cost,
			Reason:       ReasonMonthlyQuotaExceeded,
			Limit:        limit,
			CurrentUsage: usage,
			RetryAfter:   nextMonthStart(now).Sub(now),
		}
	}

	entry.principal.LastUsed = now
	entry.principal.TotalRequests++

	decision := &Decision{
		Allowed: true,
		Cost:    cost,
		Remaining: RemainingCapacity{
			PerSecond: int64(math.Floor(state.bucket.Level(now))),
			PerMinute: state.minute.Remaining(now),
			PerHour:   state.hour.Remaining(now),
			PerDay:    state.day.Remaining(now),
		},
	}
	if quota.Exceeded {
		decision.Overage = true
		decision.OverageUnits = quota.OverageUnits
		decision.OverageCost = quota.OverageCost
	}
	return decision
}

func (e *Evaluator) recordAdmit(entry *principalEntry, d *Decision, cost int64) {
	tier := string(entry.principal.Tier)
	e.metrics.IncCheck("allowed", "", tier)
	if d.Overage {
		delta := cost
		if d.OverageUnits < delta {
			delta = d.OverageUnits
		}
		e.metrics.AddOverageUnits(tier, delta)
	}
}

func (e *Evaluator) deny(req *CheckRequest, tier Tier, now time.Time, d *Decision) *Decision {
	e.metrics.IncCheck("denied", string(d.Reason), string(tier))
	if e.violations != nil {
		e.violations.Record(Violation{
			PrincipalID:       req.PrincipalID,
			Endpoint:          req.Endpoint,
			Reason:            d.Reason,
			Observed:          d.CurrentUsage,
			Limit:             d.Limit,
			RetryAfterSeconds: d.RetryAfterSeconds(),
			At:                now,
		})
	}
	return d
}

// Usage merges the registry's limiter counters with the ledger's monthly
// record into one snapshot.
func (e *Evaluator) Usage(principalID string) (*UsageSnapshot, error) {
	if e == nil || e.registry == nil {
		return nil, Wrap(CodeConfiguration, "evaluator is not configured", nil)
	}
	now := e.now()
	snapshot, err := e.registry.Usage(principalID, now)
	if err != nil {
		return nil, err
	}
	record := e.ledger.Usage(principalID, now)
	snapshot.MonthRequests = record.Requests
	snapshot.MonthUnits = record.Units
	if over := record.Units - snapshot.UnitCeiling; over > 0 {
		snapshot.OverageUnits = over
	}
	return snapshot, nil
}

func nextMonthStart(now time.Time) time.Time {
	year, month, _ := now.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
}
