package admission

import (
	"testing"
	"time"
)

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(10, 5, start)

	for i := 0; i < 10; i++ {
		ok, _ := bucket.TryConsume(1, start)
		if !ok {
			t.Fatalf("call %d: expected admit", i+1)
		}
	}

	ok, retryAfter := bucket.TryConsume(1, start)
	if ok {
		t.Fatalf("expected 11th call to be denied")
	}
	if retryAfter != 200*time.Millisecond {
		t.Fatalf("unexpected retry after: %v", retryAfter)
	}

	ok, _ = bucket.TryConsume(1, start.Add(retryAfter))
	if !ok {
		t.Fatalf("expected admit after waiting out the deficit")
	}
}

func TestTokenBucket_RefillClampsAtCapacity(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(10, 5, start)

	if ok, _ := bucket.TryConsume(10, start); !ok {
		t.Fatalf("expected full drain to be admitted")
	}
	if got := bucket.Level(start.Add(time.Hour)); got != 10 {
		t.Fatalf("expected level clamped at capacity, got %v", got)
	}
}

func TestTokenBucket_FractionalRefill(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(2, 1, start)

	if ok, _ := bucket.TryConsume(2, start); !ok {
		t.Fatalf("expected admit")
	}
	if got := bucket.Level(start.Add(500 * time.Millisecond)); got != 0.5 {
		t.Fatalf("expected half a token, got %v", got)
	}
	if ok, _ := bucket.TryConsume(1, start.Add(500*time.Millisecond)); ok {
		t.Fatalf("expected denial with half a token available")
	}
	if ok, _ := bucket.TryConsume(1, start.Add(time.Second)); !ok {
		t.Fatalf("expected admit at exactly one token")
	}
}

func TestTokenBucket_ExactBoundaryAdmits(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(5, 1, start)

	if ok, _ := bucket.TryConsume(5, start); !ok {
		t.Fatalf("expected cost equal to level to be admitted")
	}
	if got := bucket.Level(start); got != 0 {
		t.Fatalf("expected empty bucket, got %v", got)
	}
}

func TestTokenBucket_TimeNeverRunsBackward(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(10, 5, start)

	if ok, _ := bucket.TryConsume(10, start.Add(time.Second)); !ok {
		t.Fatalf("expected admit")
	}
	// An earlier instant must not refill or drain anything.
	if got := bucket.Level(start); got != 0 {
		t.Fatalf("expected level unchanged for stale instant, got %v", got)
	}
}

func TestTokenBucket_ZeroRefillNeverRecovers(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(1, 0, start)

	if ok, _ := bucket.TryConsume(1, start); !ok {
		t.Fatalf("expected admit")
	}
	ok, retryAfter := bucket.TryConsume(1, start.Add(time.Hour))
	if ok {
		t.Fatalf("expected denial with no refill")
	}
	if retryAfter != 0 {
		t.Fatalf("expected zero retry after with no refill, got %v", retryAfter)
	}
}
