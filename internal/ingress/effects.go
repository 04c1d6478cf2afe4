package ingress

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

type effectCreateRequest struct {
	Name      string             `json:"name"`
	Type      model.EffectType   `json:"type"`
	TargetIDs []string           `json:"target_ids"`
	Params    map[string]any     `json:"params"`
	IsGroup   bool               `json:"is_group"`
}

// ListEffects handles GET /api/effects.
func (h *Handler) ListEffects(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"effects": h.store.ListEffects()})
}

// CreateEffect handles POST /api/effects.
func (h *Handler) CreateEffect(w http.ResponseWriter, r *http.Request) {
	var req effectCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := h.store.CreateEffect(req.Name, req.Type, req.TargetIDs, req.Params, req.IsGroup)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"effect": e})
}

// DeleteEffect handles DELETE /api/effects/{id}. Stops any running render
// task for it first so the supervisor doesn't keep a dangling entry.
func (h *Handler) DeleteEffect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.supervisor.StopEffect(id)
	if err := h.store.DeleteEffect(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, nil)
}

// StartEffect handles POST /api/effects/{id}/start.
func (h *Handler) StartEffect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, ok := h.store.Effect(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("effect", id))
		return
	}
	h.supervisor.StartEffect(id, e)
	writeOK(w, map[string]any{"running": true})
}

// StopEffect handles POST /api/effects/{id}/stop.
func (h *Handler) StopEffect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.supervisor.StopEffect(id)
	writeOK(w, map[string]any{"running": false})
}
