// Package admission provides the operator admin surface.
package admission

import (
	"time"
)

// AdminHandler serves principal management and reporting.
type AdminHandler struct {
	registry   *PrincipalRegistry
	evaluator  *Evaluator
	violations *ViolationLog
	topN       int
	now        func() time.Time
	logger     Logger
	metrics    Metrics
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(registry *PrincipalRegistry, evaluator *Evaluator, violations *ViolationLog, topN int, now func() time.Time, logger Logger, metrics Metrics) *AdminHandler {
	if topN <= 0 {
		topN = 10
	}
	if now == nil {
		now = time.Now
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &AdminHandler{
		registry:   registry,
		evaluator:  evaluator,
		violations: violations,
		topN:       topN,
		now:        now,
		logger:     logger,
		metrics:    metrics,
	}
}

// CreatePrincipal issues a principal for a tier.
func (h *AdminHandler) CreatePrincipal(req *CreatePrincipalRequest) (*Principal, error) {
	if h == nil || h.registry == nil {
		return nil, Wrap(CodeConfiguration, "admin handler is not configured", nil)
	}
	if req == nil || req.Tier == "" {
		return nil, ErrInvalidInput
	}
	principal, err := h.registry.CreatePrincipal(req)
	if err != nil {
		return nil, err
	}
	h.metrics.SetPrincipals(h.registry.PrincipalCount())
	if h.logger != nil {
		h.logger.Info("principal created", map[string]any{
			"principal_id": principal.ID,
			"tier":         string(principal.Tier),
		})
	}
	return principal, nil
}

// GetPrincipal returns a principal snapshot.
func (h *AdminHandler) GetPrincipal(id string) (*Principal, error) {
	if h == nil || h.registry == nil {
		return nil, Wrap(CodeConfiguration, "admin handler is not configured", nil)
	}
	if id == "" {
		return nil, ErrInvalidInput
	}
	return h.registry.Get(id)
}

// DisablePrincipal turns a principal off.
func (h *AdminHandler) DisablePrincipal(id string) error {
	if h == nil || h.registry == nil {
		return Wrap(CodeConfiguration, "admin handler is not configured", nil)
	}
	if id == "" {
		return ErrInvalidInput
	}
	if err := h.registry.Disable(id); err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.Info("principal disabled", map[string]any{"principal_id": id})
	}
	return nil
}

// ChangeTier moves a principal to a new tier with a freshly resolved profile.
func (h *AdminHandler) ChangeTier(id string, tier Tier) (*Principal, error) {
	if h == nil || h.registry == nil {
		return nil, Wrap(CodeConfiguration, "admin handler is not configured", nil)
	}
	if id == "" || tier == "" {
		return nil, ErrInvalidInput
	}
	principal, err := h.registry.ChangeTier(id, tier)
	if err != nil {
		return nil, err
	}
	if h.logger != nil {
		h.logger.Info("principal tier changed", map[string]any{
			"principal_id": id,
			"tier":         string(tier),
		})
	}
	return principal, nil
}

// Usage reports a principal's current counters.
func (h *AdminHandler) Usage(id string) (*UsageSnapshot, error) {
	if h == nil || h.evaluator == nil {
		return nil, Wrap(CodeConfiguration, "admin handler is not configured", nil)
	}
	if id == "" {
		return nil, ErrInvalidInput
	}
	return h.evaluator.Usage(id)
}

// ViolationStats aggregates retained denials over a trailing window.
func (h *AdminHandler) ViolationStats(window time.Duration) ViolationStats {
	if h == nil {
		return ViolationStats{Window: window}
	}
	return h.violations.Stats(window, h.topN, h.now())
}
