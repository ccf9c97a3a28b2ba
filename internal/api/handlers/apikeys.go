package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alysis/alysis/internal/apikey"
	"github.com/alysis/alysis/internal/app"
)

type APIKeyHandler struct {
	keys *apikey.Service
	apps *app.Service
}

func NewAPIKeyHandler(keys *apikey.Service, apps *app.Service) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, apps: apps}
}

func (h *APIKeyHandler) ListForApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.missingApp(w, r, appID) {
		return
	}

	keys, err := h.keys.ListForApp(r.Context(), appID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"api_keys": keys, "count": len(keys)})
}

func (h *APIKeyHandler) CreateForApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if h.missingApp(w, r, appID) {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	key, err := h.keys.CreateForApp(r.Context(), appID, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

// CreateGlobal issues a key that authorizes every app.
func (h *APIKeyHandler) CreateGlobal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	key, err := h.keys.CreateGlobal(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.keys.Delete(r.Context(), chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "API key not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Regenerate rotates the secret behind a key, keeping its id and scope.
func (h *APIKeyHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.Rotate(r.Context(), chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if key == nil {
		writeError(w, http.StatusNotFound, "API key not found")
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (h *APIKeyHandler) missingApp(w http.ResponseWriter, r *http.Request, appID string) bool {
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
