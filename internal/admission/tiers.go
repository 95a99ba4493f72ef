// Package admission defines service tiers and limit profiles.
package admission

import "fmt"

// Tier names a service plan.
type Tier string

const (
	TierFree         Tier = "FREE"
	TierBasic        Tier = "BASIC"
	TierProfessional Tier = "PROFESSIONAL"
	TierEnterprise   Tier = "ENTERPRISE"
	TierUnlimited    Tier = "UNLIMITED"
)

// LimitProfile is the immutable bundle of limits resolved from a tier at
// principal creation. Changing a principal's tier resolves a fresh profile;
// profiles are never mutated in place.
type LimitProfile struct {
	Tier                Tier
	BurstCapacity       float64
	RefillPerSecond     float64
	PerMinute           int64
	PerHour             int64
	PerDay              int64
	CostBudgetPerMinute int64
	MonthlyRequests     int64
	MonthlyComputeUnits int64
	OverageAllowed      bool
	// OverageUnitPrice is the price per 1000 compute units beyond the
	// monthly ceiling, for tiers that permit billed overage.
	OverageUnitPrice float64
}

// unlimitedCeiling is large enough to never deny while staying well clear of
// int64 overflow in window and quota arithmetic.
const unlimitedCeiling = int64(1) << 40

var tierProfiles = map[Tier]LimitProfile{
	TierFree: {
		Tier:                TierFree,
		BurstCapacity:       5,
		RefillPerSecond:     1,
		PerMinute:           30,
		PerHour:             500,
		PerDay:              5000,
		CostBudgetPerMinute: 60,
		MonthlyRequests:     10000,
		MonthlyComputeUnits: 20000,
	},
	TierBasic: {
		Tier:                TierBasic,
		BurstCapacity:       20,
		RefillPerSecond:     5,
		PerMinute:           120,
		PerHour:             3000,
		PerDay:              30000,
		CostBudgetPerMinute: 300,
		MonthlyRequests:     100000,
		MonthlyComputeUnits: 250000,
	},
	TierProfessional: {
		Tier:                TierProfessional,
		BurstCapacity:       100,
		RefillPerSecond:     25,
		PerMinute:           600,
		PerHour:             15000,
		PerDay:              150000,
		CostBudgetPerMinute: 1500,
		MonthlyRequests:     1000000,
		MonthlyComputeUnits: 2500000,
		OverageAllowed:      true,
		OverageUnitPrice:    0.40,
	},
	TierEnterprise: {
		Tier:                TierEnterprise,
		BurstCapacity:       500,
		RefillPerSecond:     100,
		PerMinute:           3000,
		PerHour:             60000,
		PerDay:              600000,
		CostBudgetPerMinute: 7500,
		MonthlyRequests:     10000000,
		MonthlyComputeUnits: 25000000,
		OverageAllowed:      true,
		OverageUnitPrice:    0.25,
	},
	TierUnlimited: {
		Tier:                TierUnlimited,
		BurstCapacity:       float64(unlimitedCeiling),
		RefillPerSecond:     float64(unlimitedCeiling),
		PerMinute:           unlimitedCeiling,
		PerHour:             unlimitedCeiling,
		PerDay:              unlimitedCeiling,
		CostBudgetPerMinute: unlimitedCeiling,
		MonthlyRequests:     unlimitedCeiling,
		MonthlyComputeUnits: unlimitedCeiling,
	},
}

// TierTable resolves tiers to limit profiles. The built-in table can be
// overridden per tier at configuration load.
type TierTable struct {
	profiles map[Tier]LimitProfile
}

// NewTierTable builds a table from the built-in profiles plus overrides.
func NewTierTable(overrides map[Tier]LimitProfile) (*TierTable, error) {
	profiles := make(map[Tier]LimitProfile, len(tierProfiles))
	for tier, profile := range tierProfiles {
		profiles[tier] = profile
	}
	for tier, profile := range overrides {
		if _, ok := profiles[tier]; !ok {
			return nil, Wrap(CodeConfiguration, fmt.Sprintf("unknown tier %q", tier), nil)
		}
		profile.Tier = tier
		profiles[tier] = profile
	}
	table := &TierTable{profiles: profiles}
	for tier := range profiles {
		if err := validateProfile(profiles[tier]); err != nil {
			return nil, Wrap(CodeConfiguration, fmt.Sprintf("tier %q: %v", tier, err), err)
		}
	}
	return table, nil
}

// Resolve returns the immutable profile for a tier.
func (t *TierTable) Resolve(tier Tier) (LimitProfile, error) {
	if t == nil {
		return LimitProfile{}, Wrap(CodeConfiguration, "tier table is not configured", nil)
	}
	profile, ok := t.profiles[tier]
	if !ok {
		return LimitProfile{}, Wrap(CodeInvalidInput, fmt.Sprintf("unknown tier %q", tier), nil)
	}
	return profile, nil
}

// Tiers lists the configured tiers.
func (t *TierTable) Tiers() []Tier {
	if t == nil {
		return nil
	}
	tiers := make([]Tier, 0, len(t.profiles))
	for tier := range t.profiles {
		tiers = append(tiers, tier)
	}
	return tiers
}

// MinBurstCapacity returns the smallest burst capacity across tiers. Endpoint
// costs above it would make some principals permanently inadmissible.
func (t *TierTable) MinBurstCapacity() float64 {
	if t == nil || len(t.profiles) == 0 {
		return 0
	}
	min := float64(-1)
	for _, profile := range t.profiles {
		if min < 0 || profile.BurstCapacity < min {
			min = profile.BurstCapacity
		}
	}
	return min
}

func validateProfile(p LimitProfile) error {
	if p.BurstCapacity <= 0 {
		return fmt.Errorf("burst capacity must be positive, got %v", p.BurstCapacity)
	}
	if p.RefillPerSecond <= 0 {
		return fmt.Errorf("refill rate must be positive, got %v", p.RefillPerSecond)
	}
	if p.BurstCapacity < p.RefillPerSecond {
		return fmt.Errorf("burst capacity %v is below the per-second rate %v", p.BurstCapacity, p.RefillPerSecond)
	}
	if p.PerMinute <= 0 || p.PerHour <= 0 || p.PerDay <= 0 {
		return fmt.Errorf("window limits must be positive")
	}
	if p.CostBudgetPerMinute <= 0 {
		return fmt.Errorf("cost budget must be positive, got %d", p.CostBudgetPerMinute)
	}
	if p.MonthlyRequests <= 0 || p.MonthlyComputeUnits <= 0 {
		return fmt.Errorf("monthly ceilings must be positive")
	}
	if p.OverageAllowed && p.OverageUnitPrice < 0 {
		return fmt.Errorf("overage unit price must not be negative, got %v", p.OverageUnitPrice)
	}
	return nil
}
