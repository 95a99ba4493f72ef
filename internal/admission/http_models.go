// Package admission provides HTTP transport models.
package admission

import "time"

type httpCheckRequest struct {
	PrincipalID string `json:"principalID"`
	Endpoint    string `json:"endpoint"`
	// Timestamp is optional; the surrounding layer injects it for
	// deterministic replays.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type httpRemaining struct {
	PerSecond int64 `json:"perSecond"`
	PerMinute int64 `json:"perMinute"`
	PerHour   int64 `json:"perHour"`
	PerDay    int64 `json:"perDay"`
}

type httpCheckResponse struct {
	Allowed           bool           `json:"allowed"`
	Cost              int64          `json:"cost"`
	Remaining         *httpRemaining `json:"remaining,omitempty"`
	ReasonCode        string         `json:"reasonCode,omitempty"`
	RetryAfterSeconds int64          `json:"retryAfterSeconds,omitempty"`
	Limit             int64          `json:"limit,omitempty"`
	CurrentUsage      int64          `json:"currentUsage,omitempty"`
	Overage           bool           `json:"overage,omitempty"`
	OverageUnits      int64          `json:"overageUnits,omitempty"`
	OverageCost       float64        `json:"overageCost,omitempty"`
}

type httpCreatePrincipalRequest struct {
	Tier      string     `json:"tier"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type httpPrincipalResponse struct {
	ID            string     `json:"id"`
	Tier          string     `json:"tier"`
	Enabled       bool       `json:"enabled"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	TotalRequests int64      `json:"totalRequests"`
}

type httpChangeTierRequest struct {
	Tier string `json:"tier"`
}

type httpUsageResponse struct {
	PrincipalID     string    `json:"principalID"`
	Tier            string    `json:"tier"`
	TokensRemaining float64   `json:"tokensRemaining"`
	MinuteUsed      int64     `json:"minuteUsed"`
	MinuteLimit     int64     `json:"minuteLimit"`
	HourUsed        int64     `json:"hourUsed"`
	HourLimit       int64     `json:"hourLimit"`
	DayUsed         int64     `json:"dayUsed"`
	DayLimit        int64     `json:"dayLimit"`
	MonthRequests   int64     `json:"monthRequests"`
	MonthUnits      int64     `json:"monthUnits"`
	RequestCeiling  int64     `json:"requestCeiling"`
	UnitCeiling     int64     `json:"unitCeiling"`
	OverageUnits    int64     `json:"overageUnits"`
	TotalRequests   int64     `json:"totalRequests"`
	LastUsed        time.Time `json:"lastUsed"`
}

type httpOffender struct {
	PrincipalID string `json:"principalID"`
	Count       int64  `json:"count"`
}

type httpViolationStatsResponse struct {
	WindowSeconds int64            `json:"windowSeconds"`
	Total         int64            `json:"total"`
	ByReason      map[string]int64 `json:"byReason"`
	ByPrincipal   map[string]int64 `json:"byPrincipal"`
	TopOffenders  []httpOffender   `json:"topOffenders"`
}

func toCheckRequest(req httpCheckRequest) *CheckRequest {
	out := &CheckRequest{
		PrincipalID: req.PrincipalID,
		Endpoint:    req.Endpoint,
	}
	if req.Timestamp != nil {
		out.Timestamp = *req.Timestamp
	}
	return out
}

func fromDecision(d *Decision) httpCheckResponse {
	if d == nil {
		return httpCheckResponse{}
	}
	resp := httpCheckResponse{
		Allowed:      d.Allowed,
		Cost:         d.Cost,
		Overage:      d.Overage,
		OverageUnits: d.OverageUnits,
		OverageCost:  d.OverageCost,
	}
	if d.Allowed {
		resp.Remaining = &httpRemaining{
			PerSecond: d.Remaining.PerSecond,
			PerMinute: d.Remaining.PerMinute,
			PerHour:   d.Remaining.PerHour,
			PerDay:    d.Remaining.PerDay,
		}
		return resp
	}
	resp.ReasonCode = string(d.Reason)
	resp.RetryAfterSeconds = d.RetryAfterSeconds()
	resp.Limit = d.Limit
	resp.CurrentUsage = d.CurrentUsage
	return resp
}

func fromPrincipal(p *Principal) httpPrincipalResponse {
	if p == nil {
		return httpPrincipalResponse{}
	}
	resp := httpPrincipalResponse{
		ID:            p.ID,
		Tier:          string(p.Tier),
		Enabled:       p.Enabled,
		CreatedAt:     p.CreatedAt,
		TotalRequests: p.TotalRequests,
	}
	if !p.ExpiresAt.IsZero() {
		expires := p.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

func fromUsageSnapshot(s *UsageSnapshot) httpUsageResponse {
	if s == nil {
		return httpUsageResponse{}
	}
	return httpUsageResponse{
		PrincipalID:     s.PrincipalID,
		Tier:            string(s.Tier),
		TokensRemaining: s.TokensRemaining,
		MinuteUsed:      s.MinuteUsed,
		MinuteLimit:     s.MinuteLimit,
		HourUsed:        s.HourUsed,
		HourLimit:       s.HourLimit,
		DayUsed:         s.DayUsed,
		DayLimit:        s.DayLimit,
		MonthRequests:   s.MonthRequests,
		MonthUnits:      s.MonthUnits,
		RequestCeiling:  s.RequestCeiling,
		UnitCeiling:     s.UnitCeiling,
		OverageUnits:    s.OverageUnits,
		TotalRequests:   s.TotalRequests,
		LastUsed:        s.LastUsed,
	}
}

func fromViolationStats(stats ViolationStats) httpViolationStatsResponse {
	resp := httpViolationStatsResponse{
		WindowSeconds: int64(stats.Window / time.Second),
		Total:         stats.Total,
		ByReason:      make(map[string]int64, len(stats.ByReason)),
		ByPrincipal:   stats.ByPrincipal,
		TopOffenders:  make([]httpOffender, len(stats.TopOffenders)),
	}
	for reason, count := range stats.ByReason {
		resp.ByReason[string(reason)] = count
	}
	for i, offender := range stats.TopOffenders {
		resp.TopOffenders[i] = httpOffender(offender)
	}
	return resp
}
