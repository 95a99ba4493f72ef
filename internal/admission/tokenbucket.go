// Package admission provides the token bucket burst limiter.
package admission

import "time"

// TokenBucket enforces a hard ceiling on instantaneous burst rate while
// permitting short bursts up to its capacity. The level is real valued and
// refills continuously; elapsed time comes from caller supplied instants so
// the math rides the monotonic clock reading inside time.Time.
//
// TokenBucket is not internally synchronized. Callers hold the owning
// principal's lock across TryConsume.
type TokenBucket struct {
	capacity   float64
	refillRate float64
	level      float64
	lastRefill time.Time
}

// NewTokenBucket constructs a full bucket.
func NewTokenBucket(capacity, refillRatePerSecond float64, now time.Time) *TokenBucket {
	if capacity < 0 {
		capacity = 0
	}
	if refillRatePerSecond < 0 {
		refillRatePerSecond = 0
	}
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRatePerSecond,
		level:      capacity,
		lastRefill: now,
	}
}

// TryConsume refills the bucket to the given instant and attempts to take
// cost tokens. On failure it reports how long until the deficit refills.
func (b *TokenBucket) TryConsume(cost float64, now time.Time) (bool, time.Duration) {
	if b == nil || cost <= 0 {
		return false, 0
	}
	b.refill(now)
	if b.level >= cost {
		b.level -= cost
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, 0
	}
	deficit := cost - b.level
	retryAfter := time.Duration(deficit / b.refillRate * float64(time.Second))
	return false, retryAfter
}

// Level refills to the given instant and returns the current token level.
func (b *TokenBucket) Level(now time.Time) float64 {
	if b == nil {
		return 0
	}
	b.refill(now)
	return b.level
}

// Capacity returns the configured burst capacity.
func (b *TokenBucket) Capacity() float64 {
	if b == nil {
		return 0
	}
	return b.capacity
}

func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.level += elapsed.Seconds() * b.refillRate
	if b.level > b.capacity {
		b.level = b.capacity
	}
	b.lastRefill = now
}
