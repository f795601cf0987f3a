package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paperledger/workflow/internal/engine"
	"github.com/paperledger/workflow/internal/metrics"
	"github.com/paperledger/workflow/internal/registry"
	"github.com/paperledger/workflow/internal/store"
	"github.com/paperledger/workflow/internal/workflow"
)

// RuleService is the catalog surface the API depends on.
type RuleService interface {
	Create(ctx context.Context, tenantID string, in registry.RuleInput, actorID string) (*workflow.Rule, error)
	List(ctx context.Context, tenantID string, isActive *bool) ([]*workflow.Rule, error)
	Get(ctx context.Context, id string) (*workflow.Rule, error)
	Update(ctx context.Context, id string, up registry.RuleUpdate) (*workflow.Rule, error)
	Delete(ctx context.Context, id string) error
	Logs(ctx context.Context, id string, limit int) ([]*workflow.Log, error)
}

// Executor runs rules, synchronously or queued.
type Executor interface {
	Execute(ctx context.Context, ruleID string, data map[string]any, dryRun bool) (*engine.ExecutionResult, error)
	ExecuteAsync(ruleID string, data map[string]any, dryRun bool) bool
	QueueUtilization() float64
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	rules RuleService
	exec  Executor
	mux   *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(rules RuleService, exec Executor) http.Handler {
	h := &Handler{rules: rules, exec: exec, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/rules", h.createRule)
	h.mux.HandleFunc("GET /v1/rules", h.listRules)
	h.mux.HandleFunc("GET /v1/rules/{id}", h.getRule)
	h.mux.HandleFunc("PUT /v1/rules/{id}", h.updateRule)
	h.mux.HandleFunc("DELETE /v1/rules/{id}", h.deleteRule)
	h.mux.HandleFunc("POST /v1/rules/{id}/execute", h.executeRule)
	h.mux.HandleFunc("GET /v1/rules/{id}/logs", h.ruleLogs)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/rules — create a rule for the calling tenant.
func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
		return
	}
	var in registry.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	rule, err := h.rules.Create(r.Context(), tenantID, in, r.Header.Get("X-Actor-ID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// GET /v1/rules — list the tenant's rules, optional ?is_active filter.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
		return
	}
	var isActive *bool
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid is_active value %q", raw))
			return
		}
		isActive = &v
	}
	rules, err := h.rules.List(r.Context(), tenantID, isActive)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules, "count": len(rules)})
}

// GET /v1/rules/{id}
func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// PUT /v1/rules/{id} — partial update; omitted fields are unchanged.
func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	var up registry.RuleUpdate
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	rule, err := h.rules.Update(r.Context(), r.PathValue("id"), up)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DELETE /v1/rules/{id}
func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type executeRequest struct {
	Data   map[string]any `json:"data"`
	DryRun bool           `json:"dry_run"`
	Async  bool           `json:"async"`
}

// POST /v1/rules/{id}/execute — run a rule against supplied entity data.
func (h *Handler) executeRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}

	if req.Async {
		if !h.exec.ExecuteAsync(id, req.Data, req.DryRun) {
			writeError(w, http.StatusTooManyRequests, "execution queue full")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"queued": true, "rule_id": id})
		return
	}

	res, err := h.exec.Execute(r.Context(), id, req.Data, req.DryRun)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	metrics.ExecutionDuration.Observe(float64(res.ExecutionTimeMs))
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/rules/{id}/logs — most recent runs first, optional ?limit.
func (h *Handler) ruleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit value %q", raw))
			return
		}
		limit = v
	}
	logs, err := h.rules.Logs(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs, "count": len(logs)})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the async queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.exec.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrInvalidRule):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
