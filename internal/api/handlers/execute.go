package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alysis/alysis/internal/apikey"
	"github.com/alysis/alysis/internal/config"
	"github.com/alysis/alysis/internal/execution"
)

type ExecuteHandler struct {
	exec *execution.Service
	keys *apikey.Service
	cfg  config.AuthConfig
}

func NewExecuteHandler(exec *execution.Service, keys *apikey.Service, cfg config.AuthConfig) *ExecuteHandler {
	return &ExecuteHandler{exec: exec, keys: keys, cfg: cfg}
}

// Analyze is the callable endpoint. Credential failures are audited
// before rejection; configuration faults map to 404/409; a vendor
// fault still returns 200 with an error-status record.
func (h *ExecuteHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")

	var req struct {
		Input json.RawMessage `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Input) == 0 {
		writeError(w, http.StatusBadRequest, "input required")
		return
	}

	var caller *string
	if svc := r.Header.Get(h.cfg.CallerServiceHeader); svc != "" {
		caller = &svc
	}

	presented := r.Header.Get(h.cfg.APIKeyHeader)
	if presented == "" {
		h.exec.LogFailure(r.Context(), appID, req.Input, caller, "[auth_error] missing API key")
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	validation, err := h.keys.Validate(r.Context(), presented, appID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !validation.Valid {
		h.exec.LogFailure(r.Context(), appID, req.Input, caller, "[auth_error] invalid or unauthorized API key")
		writeError(w, http.StatusForbidden, "invalid API key")
		return
	}

	rec, err := h.exec.Execute(r.Context(), appID, req.Input, caller)
	switch {
	case errors.Is(err, execution.ErrAppNotFound):
		writeError(w, http.StatusNotFound, "app not found")
	case errors.Is(err, execution.ErrAppNotActive), errors.Is(err, execution.ErrNoActiveVersion):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// TestPrompt dispatches an inline configuration without any app or
// stored version.
func (h *ExecuteHandler) TestPrompt(w http.ResponseWriter, r *http.Request) {
	var req execution.DirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SystemPrompt == "" {
		writeError(w, http.StatusBadRequest, "system_prompt required")
		return
	}
	if len(req.Input) == 0 {
		writeError(w, http.StatusBadRequest, "input required")
		return
	}

	rec, err := h.exec.TestDirect(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ExecuteHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	rec, err := h.exec.RecordByID(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ExecuteHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.exec.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs, "count": len(logs)})
}

func (h *ExecuteHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.exec.GlobalStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
