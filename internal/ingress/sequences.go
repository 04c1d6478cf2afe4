package ingress

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

type sequenceCreateRequest struct {
	Name  string               `json:"name"`
	Loop  bool                 `json:"loop"`
	Steps []model.SequenceStep `json:"steps"`
}

// ListSequences handles GET /api/sequences.
func (h *Handler) ListSequences(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"sequences": h.store.ListSequences()})
}

// CreateSequence handles POST /api/sequences.
func (h *Handler) CreateSequence(w http.ResponseWriter, r *http.Request) {
	var req sequenceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	seq, err := h.store.CreateSequence(req.Name, req.Loop, req.Steps)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"sequence": seq})
}

// UpdateSequence handles PUT /api/sequences/{id}.
func (h *Handler) UpdateSequence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req sequenceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	seq, err := h.store.UpdateSequence(id, req.Name, req.Loop, req.Steps)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"sequence": seq})
}

// DeleteSequence handles DELETE /api/sequences/{id}. A running playback of
// this sequence is stopped first so the supervisor doesn't keep a dangling
// entry.
func (h *Handler) DeleteSequence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.supervisor.StopSequence(id)
	if err := h.store.DeleteSequence(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, nil)
}

// PlaySequence handles POST /api/sequences/{id}/play. Playing an id that is
// already running replaces the running playback.
func (h *Handler) PlaySequence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	seq, ok := h.store.Sequence(id)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("sequence", id))
		return
	}
	h.supervisor.StartSequence(id, h.player.Run(seq))
	writeOK(w, map[string]any{"playing": true})
}

// StopSequence handles POST /api/sequences/{id}/stop.
func (h *Handler) StopSequence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.supervisor.StopSequence(id)
	writeOK(w, map[string]any{"playing": false})
}
