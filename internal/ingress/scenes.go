package ingress

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type sceneCreateRequest struct {
	Name         string          `json:"name"`
	Color        string          `json:"color"`
	DeviceValues map[string][]int `json:"device_values"`
}

// ListScenes handles GET /api/scenes.
func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"scenes": h.store.ListScenes()})
}

// CreateScene handles POST /api/scenes. An omitted device_values map
// captures the devices' current state.
func (h *Handler) CreateScene(w http.ResponseWriter, r *http.Request) {
	var req sceneCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sc, err := h.store.CreateScene(req.Name, req.Color, req.DeviceValues)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"scene": sc})
}

// GetScene handles GET /api/scenes/{id}.
func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sc, ok := h.store.Scene(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("scene", id))
		return
	}
	writeOK(w, map[string]any{"scene": sc})
}

// DeleteScene handles DELETE /api/scenes/{id}.
func (h *Handler) DeleteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteScene(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, nil)
}

// ActivateScene handles POST /api/scenes/{id}/activate. A concurrent fade
// in progress is a no-op: report fading:true without starting a second
// trajectory.
func (h *Handler) ActivateScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sc, ok := h.store.Scene(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("scene", id))
		return
	}
	if h.fader.IsFading() {
		writeOK(w, map[string]any{"fading": true, "started": false})
		return
	}
	started := h.fader.Activate(sc)
	writeOK(w, map[string]any{"fading": started, "started": started})
}
