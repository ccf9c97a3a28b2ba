package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alysis/alysis/internal/llm"
)

type VendorHandler struct {
	registry *llm.Registry
}

func NewVendorHandler(registry *llm.Registry) *VendorHandler {
	return &VendorHandler{registry: registry}
}

func (h *VendorHandler) List(w http.ResponseWriter, r *http.Request) {
	infos := h.registry.All(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"vendors": infos, "count": len(infos)})
}

func (h *VendorHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := h.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, llm.ClientInfo{
		Name:        client.Name(),
		DisplayName: client.DisplayName(),
		Available:   client.IsAvailable(r.Context()),
		Models:      client.Models(),
	})
}

func (h *VendorHandler) Models(w http.ResponseWriter, r *http.Request) {
	client, err := h.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	models := client.Models()
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models, "count": len(models)})
}

func (h *VendorHandler) Status(w http.ResponseWriter, r *http.Request) {
	client, err := h.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vendor":    client.Name(),
		"available": client.IsAvailable(r.Context()),
	})
}
