package admission

import (
	"testing"
	"time"
)

func quotaProfile(requests, units int64, overage bool, price float64) LimitProfile {
	return LimitProfile{
		MonthlyRequests:     requests,
		MonthlyComputeUnits: units,
		OverageAllowed:      overage,
		OverageUnitPrice:    price,
	}
}

func TestQuotaLedger_DeniesBeyondCeilingWithoutOverage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewQuotaLedger(4)
	profile := quotaProfile(100, 1000, false, 0)

	for i := 0; i < 100; i++ {
		result := ledger.CheckAndIncrement("p1", profile, 1, now)
		if result.Exceeded {
			t.Fatalf("call %d: unexpected exceeded", i+1)
		}
	}
	result := ledger.CheckAndIncrement("p1", profile, 1, now)
	if !result.Exceeded {
		t.Fatalf("expected 101st call to exceed the ceiling")
	}
	if !result.RequestsExceeded {
		t.Fatalf("expected the request ceiling to be reported as the bound")
	}
	// Denied requests must not advance the counters.
	if usage := ledger.Usage("p1", now); usage.Requests != 100 {
		t.Fatalf("requests = %d, want 100", usage.Requests)
	}
}

func TestQuotaLedger_OverageBillsUnitsBeyondCeiling(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewQuotaLedger(4)
	profile := quotaProfile(1000, 100, true, 0.01)

	var last QuotaResult
	for i := 0; i < 150; i++ {
		last = ledger.CheckAndIncrement("p1", profile, 1, now)
	}
	if !last.Exceeded || !last.OverageAllowed {
		t.Fatalf("expected billed overage, got %#v", last)
	}
	if last.OverageUnits != 50 {
		t.Fatalf("overage units = %d, want 50", last.OverageUnits)
	}
	if want := 50.0 / 1000 * 0.01; last.OverageCost != want {
		t.Fatalf("overage cost = %v, want %v", last.OverageCost, want)
	}
	if usage := ledger.Usage("p1", now); usage.Requests != 150 || usage.Units != 150 {
		t.Fatalf("unexpected usage: %#v", usage)
	}
}

func TestQuotaLedger_UnitCeilingBindsIndependently(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewQuotaLedger(4)
	profile := quotaProfile(1000, 10, false, 0)

	// Three heavy calls exhaust the unit ceiling long before the request one.
	for i := 0; i < 2; i++ {
		if result := ledger.CheckAndIncrement("p1", profile, 5, now); result.Exceeded {
			t.Fatalf("call %d: unexpected exceeded", i+1)
		}
	}
	result := ledger.CheckAndIncrement("p1", profile, 5, now)
	if !result.Exceeded {
		t.Fatalf("expected unit ceiling to bind")
	}
	if result.RequestsExceeded {
		t.Fatalf("expected the unit ceiling, not the request ceiling, to be the bound")
	}
}

func TestQuotaLedger_MonthRollsOverByKey(t *testing.T) {
	t.Parallel()

	march := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 0, 1, 0, 0, time.UTC)
	ledger := NewQuotaLedger(4)
	profile := quotaProfile(10, 100, false, 0)

	for i := 0; i < 10; i++ {
		ledger.CheckAndIncrement("p1", profile, 1, march)
	}
	if result := ledger.CheckAndIncrement("p1", profile, 1, march); !result.Exceeded {
		t.Fatalf("expected march ceiling to bind")
	}
	if result := ledger.CheckAndIncrement("p1", profile, 1, april); result.Exceeded {
		t.Fatalf("expected a fresh april bucket")
	}
	if usage := ledger.Usage("p1", april); usage.Requests != 1 {
		t.Fatalf("april requests = %d, want 1", usage.Requests)
	}
}

func TestQuotaLedger_PruneDropsPastMonths(t *testing.T) {
	t.Parallel()

	march := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	ledger := NewQuotaLedger(4)
	profile := quotaProfile(10, 100, false, 0)

	ledger.CheckAndIncrement("p1", profile, 1, march)
	ledger.CheckAndIncrement("p2", profile, 1, march)
	ledger.CheckAndIncrement("p1", profile, 1, april)

	if pruned := ledger.Prune(april); pruned != 2 {
		t.Fatalf("pruned = %d, want 2", pruned)
	}
	if usage := ledger.Usage("p1", april); usage.Requests != 1 {
		t.Fatalf("current month must survive pruning: %#v", usage)
	}
	if pruned := ledger.Prune(april); pruned != 0 {
		t.Fatalf("second prune removed %d buckets, want 0", pruned)
	}
}
