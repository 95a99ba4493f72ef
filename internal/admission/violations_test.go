package admission

import (
	"context"
	"testing"
	"time"
)

func TestViolationLog_RetentionOverwritesOldest(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := NewViolationLog(3)

	for i := 0; i < 5; i++ {
		log.Record(Violation{
			PrincipalID: "p1",
			Reason:      ReasonPerMinuteExceeded,
			At:          now.Add(time.Duration(i) * time.Second),
		})
	}
	if got := log.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}

	stats := log.Stats(0, 10, now.Add(10*time.Second))
	if stats.Total != 3 {
		t.Fatalf("total = %d, want 3", stats.Total)
	}
}

func TestViolationLog_StatsWindowAndTopOffenders(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := NewViolationLog(100)

	// Old entry outside the reporting window.
	log.Record(Violation{PrincipalID: "stale", Reason: ReasonPerHourExceeded, At: now.Add(-time.Hour)})

	for i := 0; i < 3; i++ {
		log.Record(Violation{PrincipalID: "loud", Reason: ReasonPerSecondExceeded, At: now})
	}
	log.Record(Violation{PrincipalID: "quiet", Reason: ReasonMonthlyQuotaExceeded, At: now})

	stats := log.Stats(5*time.Minute, 1, now)
	if stats.Total != 4 {
		t.Fatalf("total = %d, want 4", stats.Total)
	}
	if stats.ByReason[ReasonPerSecondExceeded] != 3 {
		t.Fatalf("per second count = %d, want 3", stats.ByReason[ReasonPerSecondExceeded])
	}
	if stats.ByPrincipal["stale"] != 0 {
		t.Fatalf("stale entry leaked into the window")
	}
	if len(stats.TopOffenders) != 1 || stats.TopOffenders[0].PrincipalID != "loud" || stats.TopOffenders[0].Count != 3 {
		t.Fatalf("unexpected top offenders: %#v", stats.TopOffenders)
	}
}

func TestViolationLog_TopOffendersTieBreaksById(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := NewViolationLog(100)
	log.Record(Violation{PrincipalID: "beta", Reason: ReasonPerDayExceeded, At: now})
	log.Record(Violation{PrincipalID: "alpha", Reason: ReasonPerDayExceeded, At: now})

	stats := log.Stats(time.Minute, 10, now)
	if len(stats.TopOffenders) != 2 || stats.TopOffenders[0].PrincipalID != "alpha" {
		t.Fatalf("unexpected tie break order: %#v", stats.TopOffenders)
	}
}

func TestBufferedViolationRecorder_DrainsIntoLog(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := NewViolationLog(100)
	recorder := NewBufferedViolationRecorder(log, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = recorder.Start(ctx)
	}()

	for i := 0; i < 8; i++ {
		recorder.Record(Violation{PrincipalID: "p1", Reason: ReasonPerMinuteExceeded, At: now})
	}
	deadline := time.Now().Add(time.Second)
	for log.Len() < 8 {
		if time.Now().After(deadline) {
			t.Fatalf("recorder drained %d of 8 records", log.Len())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}

func TestBufferedViolationRecorder_DropsWhenFull(t *testing.T) {
	t.Parallel()

	log := NewViolationLog(100)
	recorder := NewBufferedViolationRecorder(log, 2)

	// No drain loop running; the third record must drop, not block.
	for i := 0; i < 3; i++ {
		recorder.Record(Violation{PrincipalID: "p1"})
	}
	if got := recorder.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestBufferedViolationRecorder_FlushesOnShutdown(t *testing.T) {
	t.Parallel()

	log := NewViolationLog(100)
	recorder := NewBufferedViolationRecorder(log, 16)
	for i := 0; i < 5; i++ {
		recorder.Record(Violation{PrincipalID: "p1"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := recorder.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := log.Len(); got != 5 {
		t.Fatalf("len = %d, want 5", got)
	}
}
