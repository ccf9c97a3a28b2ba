package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alysis/alysis/internal/app"
	"github.com/alysis/alysis/internal/config"
	"github.com/alysis/alysis/internal/execution"
	"github.com/alysis/alysis/internal/models"
	"github.com/alysis/alysis/internal/prompt"
)

type PromptHandler struct {
	apps    *app.Service
	prompts *prompt.Service
	exec    *execution.Service
	cfg     config.AuthConfig
}

func NewPromptHandler(apps *app.Service, prompts *prompt.Service, exec *execution.Service, cfg config.AuthConfig) *PromptHandler {
	return &PromptHandler{apps: apps, prompts: prompts, exec: exec, cfg: cfg}
}

func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.missingApp(w, r, appID) {
		return
	}

	var req prompt.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SystemPrompt == "" {
		writeError(w, http.StatusBadRequest, "system_prompt required")
		return
	}

	v, err := h.prompts.Create(r.Context(), appID, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.missingApp(w, r, appID) {
		return
	}

	versions, err := h.prompts.ListForApp(r.Context(), appID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions, "count": len(versions)})
}

func (h *PromptHandler) Latest(w http.ResponseWriter, r *http.Request) {
	h.findOne(w, r, func(appID string) (interface{}, error) {
		v, err := h.prompts.Latest(r.Context(), appID)
		return nilable(v), err
	}, "no prompt versions")
}

func (h *PromptHandler) Active(w http.ResponseWriter, r *http.Request) {
	h.findOne(w, r, func(appID string) (interface{}, error) {
		v, err := h.prompts.Active(r.Context(), appID)
		return nilable(v), err
	}, "no active prompt version")
}

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.findOne(w, r, func(appID string) (interface{}, error) {
		v, err := h.prompts.GetByID(r.Context(), appID, chi.URLParam(r, "promptID"))
		return nilable(v), err
	}, "prompt version not found")
}

func (h *PromptHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}
	h.findOne(w, r, func(appID string) (interface{}, error) {
		v, err := h.prompts.GetByNumber(r.Context(), appID, n)
		return nilable(v), err
	}, "prompt version not found")
}

func (h *PromptHandler) Publish(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.missingApp(w, r, appID) {
		return
	}

	v, err := h.prompts.Publish(r.Context(), appID, chi.URLParam(r, "promptID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "prompt version not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *PromptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.missingApp(w, r, appID) {
		return
	}

	deleted, err := h.prompts.Delete(r.Context(), appID, chi.URLParam(r, "promptID"))
	if errors.Is(err, prompt.ErrVersionActive) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "prompt version not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Test runs input through a stored version. The attempt is recorded in
// the app's history like a live call.
func (h *PromptHandler) Test(w http.ResponseWriter, r *http.Request) {
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

	rec, err := h.exec.TestVersion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "promptID"), req.Input, caller)
	switch {
	case errors.Is(err, execution.ErrAppNotFound):
		writeError(w, http.StatusNotFound, "app not found")
	case errors.Is(err, execution.ErrVersionNotFound):
		writeError(w, http.StatusNotFound, "prompt version not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *PromptHandler) findOne(w http.ResponseWriter, r *http.Request, find func(appID string) (interface{}, error), missing string) {
	appID := chi.URLParam(r, "id")
	if h.missingApp(w, r, appID) {
		return
	}

	v, err := find(appID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, missing)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// nilable keeps a typed nil pointer from hiding inside a non-nil
// interface value.
func nilable(v *models.PromptVersion) interface{} {
	if v == nil {
		return nil
	}
	return v
}

func (h *PromptHandler) missingApp(w http.ResponseWriter, r *http.Request, appID string) bool {
	a, err := h.apps.GetByID(r.Context(), appID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return true
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "app not found")
		return true
	}
	return false
}
