package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alysis/alysis/internal/apikey"
	"github.com/alysis/alysis/internal/app"
	"github.com/alysis/alysis/internal/execution"
)

type AppHandler struct {
	apps *app.Service
	keys *apikey.Service
	exec *execution.Service
}

func NewAppHandler(apps *app.Service, keys *apikey.Service, exec *execution.Service) *AppHandler {
	return &AppHandler{apps: apps, keys: keys, exec: exec}
}

// Create provisions the app, its published version 1, and a scoped API
// key in one request. The plain-text key appears only in this response.
func (h *AppHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	if req.SystemPrompt == "" {
		writeError(w, http.StatusBadRequest, "system_prompt required")
		return
	}

	a, v, err := h.apps.Create(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	key, err := h.keys.CreateForApp(r.Context(), a.ID, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"app":     a,
		"version": v,
		"api_key": key,
	})
}

func (h *AppHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.apps.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"apps": apps, "count": len(apps)})
}

func (h *AppHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	apps, err := h.apps.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"apps": apps, "count": len(apps)})
}

func (h *AppHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.apps.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.apps.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.apps.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AppHandler) Activate(w http.ResponseWriter, r *http.Request) {
	a, err := h.apps.Activate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, app.ErrNoPublishedVersion) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppHandler) Deprecate(w http.ResponseWriter, r *http.Request) {
	a, err := h.apps.Deprecate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppHandler) Stats(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if notFound := h.requireApp(w, r, appID); notFound {
		return
	}

	stats, err := h.exec.StatsForApp(r.Context(), appID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AppHandler) Logs(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if notFound := h.requireApp(w, r, appID); notFound {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	logs, err := h.exec.ListForApp(r.Context(), appID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := h.exec.StatsForApp(r.Context(), appID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
		"total": stats.TotalExecutions,
	})
}

func (h *AppHandler) requireApp(w http.ResponseWriter, r *http.Request, appID string) bool {
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
