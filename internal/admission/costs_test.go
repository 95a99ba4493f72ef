package admission

import (
	"testing"
)

func TestEndpointCostTable_LookupDefaultsToOne(t *testing.T) {
	t.Parallel()

	table, err := NewEndpointCostTable(map[string]int64{"search": 5}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := table.Lookup("search"); got != 5 {
		t.Fatalf("cost = %d, want 5", got)
	}
	if got := table.Lookup("unlisted"); got != DefaultEndpointCost {
		t.Fatalf("cost = %d, want default", got)
	}
}

func TestEndpointCostTable_RejectsBadCosts(t *testing.T) {
	t.Parallel()

	if _, err := NewEndpointCostTable(map[string]int64{"search": 0}, nil); CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error for zero cost, got %v", err)
	}
	if _, err := NewEndpointCostTable(map[string]int64{"": 1}, nil); CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error for empty endpoint, got %v", err)
	}
}

func TestEndpointCostTable_RejectsCostAboveSmallestBurst(t *testing.T) {
	t.Parallel()

	tiers, err := NewTierTable(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The free tier burst capacity is 5; a heavier endpoint could never be
	// admitted for free principals, so the table refuses to load.
	if _, err := NewEndpointCostTable(map[string]int64{"export": 6}, tiers); CodeOf(err) != CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := NewEndpointCostTable(map[string]int64{"export": 5}, tiers); err != nil {
		t.Fatalf("cost equal to the smallest burst must load: %v", err)
	}
}
