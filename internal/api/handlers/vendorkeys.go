package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alysis/alysis/internal/vendorkey"
)

type VendorKeyHandler struct {
	svc *vendorkey.Service
}

func NewVendorKeyHandler(svc *vendorkey.Service) *VendorKeyHandler {
	return &VendorKeyHandler{svc: svc}
}

// List reports configuration state per vendor. Secrets never leave the
// service unmasked.
func (h *VendorKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.Statuses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vendor_keys": statuses})
}

func (h *VendorKeyHandler) Put(w http.ResponseWriter, r *http.Request) {
	vendor := chi.URLParam(r, "vendor")
	if !vendorkey.Known(vendor) {
		writeError(w, http.StatusNotFound, "unknown vendor")
		return
	}

	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "api_key required")
		return
	}

	status, err := h.svc.Upsert(r.Context(), vendor, req.APIKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *VendorKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vendor := chi.URLParam(r, "vendor")
	if !vendorkey.Known(vendor) {
		writeError(w, http.StatusNotFound, "unknown vendor")
		return
	}

	deleted, err := h.svc.Delete(r.Context(), vendor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "no stored key for vendor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
