// Package admission defines core request and decision models.
package admission

import "time"

// ReasonCode identifies why a request was denied.
type ReasonCode string

const (
	ReasonInvalidPrincipal     ReasonCode = "INVALID_PRINCIPAL"
	ReasonPerSecondExceeded    ReasonCode = "PER_SECOND_EXCEEDED"
	ReasonPerMinuteExceeded    ReasonCode = "PER_MINUTE_EXCEEDED"
	ReasonPerHourExceeded      ReasonCode = "PER_HOUR_EXCEEDED"
	ReasonPerDayExceeded       ReasonCode = "PER_DAY_EXCEEDED"
	ReasonMonthlyQuotaExceeded ReasonCode = "MONTHLY_QUOTA_EXCEEDED"
)

// CheckRequest captures a single admission decision request.
type CheckRequest struct {
	PrincipalID string
	Endpoint    string
	// Timestamp overrides the evaluator clock when non-zero. The surrounding
	// layer injects it for deterministic replays.
	Timestamp time.Time
}

// RemainingCapacity reports capacity left after an admitted request.
type RemainingCapacity struct {
	PerSecond int64
	PerMinute int64
	PerHour   int64
	PerDay    int64
}

// Decision captures the evaluated admission outcome. Denial is a value, not
// an error: denied decisions carry a reason code and retry hint.
type Decision struct {
	Allowed   bool
	Cost      int64
	Remaining RemainingCapacity

	Reason       ReasonCode
	Limit        int64
	CurrentUsage int64
	RetryAfter   time.Duration

	Overage      bool
	OverageUnits int64
	OverageCost  float64
}

// RetryAfterSeconds returns the retry hint rounded up to whole seconds.
func (d *Decision) RetryAfterSeconds() int64 {
	if d == nil || d.RetryAfter <= 0 {
		return 0
	}
	secs := int64(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// Principal is an authenticated caller identity tracked by the engine.
type Principal struct {
	ID            string
	Tier          Tier
	Profile       LimitProfile
	Enabled       bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
	LastUsed      time.Time
	TotalRequests int64
}

// Active reports whether the principal may be admitted at the given instant.
func (p *Principal) Active(now time.Time) bool {
	if p == nil || !p.Enabled {
		return false
	}
	if !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt) {
		return false
	}
	return true
}

// Violation is an immutable record of a denied request.
type Violation struct {
	PrincipalID       string
	Endpoint          string
	Reason            ReasonCode
	Observed          int64
	Limit             int64
	RetryAfterSeconds int64
	At                time.Time
}

// UsageSnapshot reports a principal's current counters.
type UsageSnapshot struct {
	PrincipalID     string
	Tier            Tier
	TokensRemaining float64
	MinuteUsed      int64
	MinuteLimit     int64
	HourUsed        int64
	HourLimit       int64
	DayUsed         int64
	DayLimit        int64
	MonthRequests   int64
	MonthUnits      int64
	RequestCeiling  int64
	UnitCeiling     int64
	OverageUnits    int64
	TotalRequests   int64
	LastUsed        time.Time
}

// CreatePrincipalRequest captures principal creation intent.
type CreatePrincipalRequest struct {
	Tier      Tier
	ExpiresAt time.Time
}
