// Package admission provides HTTP handlers.
package admission

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes = 1 << 20

const defaultStatsWindow = 5 * time.Minute

type httpErrorResponse struct {
	Error string `json:"error"`
}

func (t *HTTPTransport) handleCheck(w http.ResponseWriter, r *http.Request) {
	var httpReq httpCheckRequest
	if err := t.decodeJSON(w, r, &httpReq); err != nil {
		t.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if httpReq.PrincipalID == "" || httpReq.Endpoint == "" {
		t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	decision, err := t.service.Check(toCheckRequest(httpReq))
	if err != nil {
		switch CodeOf(err) {
		case CodeInvalidInput:
			t.writeError(w, r, http.StatusBadRequest, err)
		default:
			t.writeError(w, r, http.StatusInternalServerError, err)
		}
		return
	}
	setDecisionHeaders(w, decision)
	writeJSON(w, http.StatusOK, fromDecision(decision))
}

func (t *HTTPTransport) handleCheckBatch(w http.ResponseWriter, r *http.Request) {
	var httpReqs []httpCheckRequest
	if err := t.decodeJSON(w, r, &httpReqs); err != nil {
		t.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	requests := make([]*CheckRequest, len(httpReqs))
	for i, req := range httpReqs {
		if req.PrincipalID == "" || req.Endpoint == "" {
			t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
			return
		}
		requests[i] = toCheckRequest(req)
	}
	decisions, err := t.service.CheckBatch(requests)
	if err != nil {
		switch CodeOf(err) {
		case CodeInvalidInput:
			t.writeError(w, r, http.StatusBadRequest, err)
		default:
			t.writeError(w, r, http.StatusInternalServerError, err)
		}
		return
	}
	result := make([]httpCheckResponse, len(decisions))
	for i, decision := range decisions {
		result[i] = fromDecision(decision)
	}
	writeJSON(w, http.StatusOK, result)
}

func (t *HTTPTransport) handleCreatePrincipal(w http.ResponseWriter, r *http.Request) {
	var httpReq httpCreatePrincipalRequest
	if err := t.decodeJSON(w, r, &httpReq); err != nil {
		t.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if httpReq.Tier == "" {
		t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	req := &CreatePrincipalRequest{Tier: Tier(httpReq.Tier)}
	if httpReq.ExpiresAt != nil {
		req.ExpiresAt = *httpReq.ExpiresAt
	}
	principal, err := t.admin.CreatePrincipal(req)
	if err != nil {
		t.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromPrincipal(principal))
}

func (t *HTTPTransport) handleGetPrincipal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	principal, err := t.admin.GetPrincipal(id)
	if err != nil {
		t.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromPrincipal(principal))
}

func (t *HTTPTransport) handleDisablePrincipal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	if err := t.admin.DisablePrincipal(id); err != nil {
		t.writeAdminError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (t *HTTPTransport) handleChangeTier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	var httpReq httpChangeTierRequest
	if err := t.decodeJSON(w, r, &httpReq); err != nil {
		t.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if httpReq.Tier == "" {
		t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	principal, err := t.admin.ChangeTier(id, Tier(httpReq.Tier))
	if err != nil {
		t.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromPrincipal(principal))
}

func (t *HTTPTransport) handleUsage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	usage, err := t.admin.Usage(id)
	if err != nil {
		t.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromUsageSnapshot(usage))
}

func (t *HTTPTransport) handleViolationStats(w http.ResponseWriter, r *http.Request) {
	window := defaultStatsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds <= 0 {
			t.writeError(w, r, http.StatusBadRequest, ErrInvalidInput)
			return
		}
		window = time.Duration(seconds) * time.Second
	}
	stats := t.admin.ViolationStats(window)
	writeJSON(w, http.StatusOK, fromViolationStats(stats))
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	if t.appReady != nil && t.appReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// setDecisionHeaders mirrors the decision body as advisory headers. Decisions
// travel as HTTP 200 either way; the body carries the verdict.
func setDecisionHeaders(w http.ResponseWriter, d *Decision) {
	if d == nil {
		return
	}
	if d.Allowed {
		w.Header().Set("X-RateLimit-Remaining-Second", strconv.FormatInt(d.Remaining.PerSecond, 10))
		w.Header().Set("X-RateLimit-Remaining-Minute", strconv.FormatInt(d.Remaining.PerMinute, 10))
		w.Header().Set("X-RateLimit-Remaining-Hour", strconv.FormatInt(d.Remaining.PerHour, 10))
		w.Header().Set("X-RateLimit-Remaining-Day", strconv.FormatInt(d.Remaining.PerDay, 10))
		return
	}
	w.Header().Set("Retry-After", strconv.FormatInt(d.RetryAfterSeconds(), 10))
}

func (t *HTTPTransport) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return ErrInvalidInput
	}
	maxBytes := t.maxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return ErrInvalidInput
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return ErrInvalidInput
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (t *HTTPTransport) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if t != nil {
		t.logRequestError(r, status, err)
	}
	writeJSON(w, status, httpErrorResponse{Error: err.Error()})
}

func (t *HTTPTransport) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForCode(CodeOf(err))
	t.writeError(w, r, status, err)
}

func statusForCode(code ErrorCode) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (t *HTTPTransport) logRequestError(r *http.Request, status int, err error) {
	if t == nil || t.logger == nil || r == nil || err == nil {
		return
	}
	fields := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"error":  err.Error(),
	}
	if status >= http.StatusInternalServerError {
		t.logger.Error("http request error", fields)
		return
	}
	t.logger.Info("http request error", fields)
}
