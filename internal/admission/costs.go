// Package admission provides the endpoint cost table.
package admission

import "fmt"

// DefaultEndpointCost is charged for endpoints without an explicit weight.
const DefaultEndpointCost = int64(1)

// EndpointCostTable maps endpoint identifiers to integer cost weights. The
// table is immutable after configuration load.
type EndpointCostTable struct {
	costs map[string]int64
}

// NewEndpointCostTable validates and builds a cost table. A cost that exceeds
// the burst capacity of any configured tier is rejected here so the failure
// surfaces at load time instead of as an unsatisfiable retry.
func NewEndpointCostTable(costs map[string]int64, tiers *TierTable) (*EndpointCostTable, error) {
	table := &EndpointCostTable{costs: make(map[string]int64, len(costs))}
	minBurst := float64(0)
	if tiers != nil {
		minBurst = tiers.MinBurstCapacity()
	}
	for endpoint, cost := range costs {
		if endpoint == "" {
			return nil, Wrap(CodeConfiguration, "endpoint identifier must not be empty", nil)
		}
		if cost < 1 {
			return nil, Wrap(CodeConfiguration, fmt.Sprintf("endpoint %q: cost must be >= 1, got %d", endpoint, cost), nil)
		}
		if minBurst > 0 && float64(cost) > minBurst {
			return nil, Wrap(CodeConfiguration, fmt.Sprintf("endpoint %q: cost %d exceeds the smallest tier burst capacity %v", endpoint, cost, minBurst), nil)
		}
		table.costs[endpoint] = cost
	}
	return table, nil
}

// Lookup returns the cost weight for an endpoint, defaulting to 1.
func (t *EndpointCostTable) Lookup(endpoint string) int64 {
	if t == nil {
		return DefaultEndpointCost
	}
	if cost, ok := t.costs[endpoint]; ok {
		return cost
	}
	return DefaultEndpointCost
}

// Len returns the number of explicitly weighted endpoints.
func (t *EndpointCostTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.costs)
}
