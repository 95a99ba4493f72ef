// Package admission provides periodic state maintenance.
package admission

import (
	"context"
	"errors"
	"time"
)

// Sweeper periodically evicts idle limiter state and prunes expired
// quota periods.
type Sweeper struct {
	registry *PrincipalRegistry
	ledger   *QuotaLedger
	metrics  Metrics
	interval time.Duration
	now      func() time.Time
}

// NewSweeper constructs a sweeper over the registry and ledger.
func NewSweeper(registry *PrincipalRegistry, ledger *QuotaLedger, metrics Metrics, interval time.Duration) *Sweeper {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Sweeper{
		registry: registry,
		ledger:   ledger,
		metrics:  metrics,
		interval: interval,
		now:      time.Now,
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	if s == nil || s.registry == nil {
		return errors.New("sweeper is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	interval := s.interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	now := s.now()
	s.registry.Sweep(now)
	if s.ledger != nil {
		s.ledger.Prune(now)
	}
	s.metrics.SetLimiterStates(s.registry.StateCount())
	s.metrics.SetPrincipals(s.registry.PrincipalCount())
}
