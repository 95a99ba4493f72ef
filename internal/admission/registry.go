// Package admission provides the principal registry.
package admission

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RegistryPolicy controls sharding and eviction of runtime limiter state.
type RegistryPolicy struct {
	Shards         int
	MaxStatesShard int
	IdleWindow     time.Duration
}

func normalizeRegistryPolicy(policy RegistryPolicy) RegistryPolicy {
	if policy.Shards <= 0 {
		policy.Shards = 16
	}
	if policy.MaxStatesShard <= 0 {
		policy.MaxStatesShard = 4096
	}
	if policy.IdleWindow <= 0 {
		policy.IdleWindow = 24 * time.Hour
	}
	return policy
}

// PrincipalRegistry stores principals and their runtime limiter state.
// Contention is sharded by principal id; cross-principal operations never
// coordinate. Principal identity records are never deleted, but limiter
// state idle beyond the largest window is semantically empty (the bucket has
// refilled, every window has aged out) and is evicted to bound memory.
type PrincipalRegistry struct {
	tiers  *TierTable
	policy RegistryPolicy
	shards []*registryShard
	now    func() time.Time
	newID  func() string
}

type registryShard struct {
	mu      sync.RWMutex
	entries map[string]*principalEntry
	lru     *lruTracker
}

type principalEntry struct {
	mu        sync.Mutex
	principal Principal
	state     *limiterState
}

// limiterState is the mutable per-principal counting state. It is guarded by
// the owning entry's lock, which serializes concurrent requests against the
// same principal so they never jointly over-admit.
type limiterState struct {
	bucket      *TokenBucket
	minute      *SlidingWindow
	hour        *SlidingWindow
	day         *SlidingWindow
	costMinute  *CostWindow
	lastTouched time.Time
}

func newLimiterState(profile LimitProfile, now time.Time) *limiterState {
	return &limiterState{
		bucket:      NewTokenBucket(profile.BurstCapacity, profile.RefillPerSecond, now),
		minute:      NewSlidingWindow(profile.PerMinute, time.Minute),
		hour:        NewSlidingWindow(profile.PerHour, time.Hour),
		day:         NewSlidingWindow(profile.PerDay, 24*time.Hour),
		costMinute:  NewCostWindow(profile.CostBudgetPerMinute, time.Minute),
		lastTouched: now,
	}
}

// NewPrincipalRegistry constructs a sharded registry.
func NewPrincipalRegistry(tiers *TierTable, policy RegistryPolicy, now func() time.Time) *PrincipalRegistry {
	if now == nil {
		now = time.Now
	}
	policy = normalizeRegistryPolicy(policy)
	shards := make([]*registryShard, policy.Shards)
	for i := range shards {
		shards[i] = &registryShard{
			entries: make(map[string]*principalEntry),
			lru:     newLRUTracker(policy.MaxStatesShard),
		}
	}
	return &PrincipalRegistry{
		tiers:  tiers,
		policy: policy,
		shards: shards,
		now:    now,
		newID:  uuid.NewString,
	}
}

func (r *PrincipalRegistry) shardFor(id string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return r.shards[int(h.Sum32())%len(r.shards)]
}

// CreatePrincipal issues a new API key for a tier and resolves its profile.
func (r *PrincipalRegistry) CreatePrincipal(req *CreatePrincipalRequest) (*Principal, error) {
	if r == nil || req == nil {
		return nil, ErrInvalidInput
	}
	profile, err := r.tiers.Resolve(req.Tier)
	if err != nil {
		return nil, err
	}
	now := r.now()
	if !req.ExpiresAt.IsZero() && !req.ExpiresAt.After(now) {
		return nil, Wrap(CodeInvalidInput, "expiry must be in the future", nil)
	}
	principal := Principal{
		ID:        r.newID(),
		Tier:      req.Tier,
		Profile:   profile,
		Enabled:   true,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: now,
	}
	shard := r.shardFor(principal.ID)
	shard.mu.Lock()
	shard.entries[principal.ID] = &principalEntry{principal: principal}
	shard.mu.Unlock()
	snapshot := principal
	return &snapshot, nil
}

// Get returns a snapshot of a principal.
func (r *PrincipalRegistry) Get(id string) (*Principal, error) {
	entry, ok := r.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	entry.mu.Lock()
	snapshot := entry.principal
	entry.mu.Unlock()
	return &snapshot, nil
}

// Disable turns a principal off. All future checks fail immediately; the
// record itself is retained.
func (r *PrincipalRegistry) Disable(id string) error {
	entry, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	entry.mu.Lock()
	entry.principal.Enabled = false
	entry.mu.Unlock()
	return nil
}

// ChangeTier resolves a fresh profile for the new tier and swaps it in. The
// old limiter state is discarded along with the old profile; lifetime
// counters are kept.
func (r *PrincipalRegistry) ChangeTier(id string, tier Tier) (*Principal, error) {
	profile, err := r.tiers.Resolve(tier)
	if err != nil {
		return nil, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	entry.mu.Lock()
	entry.principal.Tier = tier
	entry.principal.Profile = profile
	entry.state = nil
	snapshot := entry.principal
	entry.mu.Unlock()
	return &snapshot, nil
}

// Usage reports the principal's current limiter counters. Monthly quota usage
// lives in the ledger and is merged in by the caller.
func (r *PrincipalRegistry) Usage(id string, now time.Time) (*UsageSnapshot, error) {
	entry, ok := r.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	profile := entry.principal.Profile
	snapshot := &UsageSnapshot{
		PrincipalID:     entry.principal.ID,
		Tier:            entry.principal.Tier,
		TokensRemaining: profile.BurstCapacity,
		MinuteLimit:     profile.PerMinute,
		HourLimit:       profile.PerHour,
		DayLimit:        profile.PerDay,
		RequestCeiling:  profile.MonthlyRequests,
		UnitCeiling:     profile.MonthlyComputeUnits,
		TotalRequests:   entry.principal.TotalRequests,
		LastUsed:        entry.principal.LastUsed,
	}
	if entry.state != nil {
		snapshot.TokensRemaining = entry.state.bucket.Level(now)
		snapshot.MinuteUsed = entry.state.minute.Used(now)
		snapshot.HourUsed = entry.state.hour.Used(now)
		snapshot.DayUsed = entry.state.day.Used(now)
	}
	return snapshot, nil
}

// lookup returns the live entry for a principal id.
func (r *PrincipalRegistry) lookup(id string) (*principalEntry, bool) {
	if r == nil || id == "" {
		return nil, false
	}
	shard := r.shardFor(id)
	shard.mu.RLock()
	entry, ok := shard.entries[id]
	shard.mu.RUnlock()
	return entry, ok
}

// touchState marks an entry's state as recently used in its shard's LRU.
func (r *PrincipalRegistry) touchState(id string) {
	shard := r.shardFor(id)
	shard.mu.Lock()
	shard.lru.Touch(id)
	shard.mu.Unlock()
}

// Sweep evicts limiter state that has been idle beyond the policy window,
// then trims each shard to its state ceiling coldest-first. Returns the
// number of evicted states.
func (r *PrincipalRegistry) Sweep(now time.Time) int {
	if r == nil {
		return 0
	}
	evicted := 0
	cutoff := now.Add(-r.policy.IdleWindow)
	for _, shard := range r.shards {
		shard.mu.Lock()
		for id, entry := range shard.entries {
			entry.mu.Lock()
			if entry.state != nil && entry.state.lastTouched.Before(cutoff) {
				entry.state = nil
				shard.lru.Remove(id)
				evicted++
			}
			entry.mu.Unlock()
		}
		for _, id := range shard.lru.EvictOverflow() {
			entry, ok := shard.entries[id]
			if !ok {
				continue
			}
			entry.mu.Lock()
			if entry.state != nil {
				entry.state = nil
				evicted++
			}
			entry.mu.Unlock()
		}
		shard.mu.Unlock()
	}
	return evicted
}

// StateCount returns the number of live limiter states across shards.
func (r *PrincipalRegistry) StateCount() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, shard := range r.shards {
		shard.mu.RLock()
		count += shard.lru.Len()
		shard.mu.RUnlock()
	}
	return count
}

// PrincipalCount returns the number of issued principals.
func (r *PrincipalRegistry) PrincipalCount() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, shard := range r.shards {
		shard.mu.RLock()
		count += len(shard.entries)
		shard.mu.RUnlock()
	}
	return count
}
