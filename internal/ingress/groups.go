package ingress

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

type groupCreateRequest struct {
	Name      string   `json:"name"`
	DeviceIDs []string `json:"device_ids"`
}

// ListGroups handles GET /api/groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"groups": h.store.ListGroups()})
}

// CreateGroup handles POST /api/groups.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	g, err := h.store.CreateGroup(req.Name, req.DeviceIDs)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"group": g})
}

// UpdateGroup handles PUT /api/groups/{id}.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req groupCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	g, err := h.store.UpdateGroup(id, req.Name, req.DeviceIDs)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"group": g})
}

// DeleteGroup handles DELETE /api/groups/{id}.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteGroup(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, nil)
}

type groupValuesRequest struct {
	Intensity *int   `json:"intensity"`
	RGB       *[3]int `json:"rgb"`
}

// SetGroupValues handles POST /api/groups/{id}/values: intensity
// broadcasts one value to every channel of every device in the group, rgb
// writes channels 0-2 but only on rgb/rgbw devices.
func (h *Handler) SetGroupValues(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req groupValuesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, ok := h.store.Group(id); !ok {
		writeError(w, http.StatusNotFound, errNotFound("group", id))
		return
	}

	h.applyGroupValues(id, req.Intensity, req.RGB)
	writeOK(w, nil)
}

// applyGroupValues performs the mass-set across a group's resolvable
// devices: intensity writes one value to every channel, rgb writes channels
// 0-2 on rgb/rgbw devices only. Both are applied independently when both
// are present; rgb lands after intensity. Each written device is
// transmitted immediately.
func (h *Handler) applyGroupValues(groupID string, intensity *int, rgb *[3]int) {
	for _, deviceID := range h.store.GroupDeviceIDs(groupID) {
		dev, ok := h.store.Device(deviceID)
		if !ok {
			continue
		}
		wrote := false
		if intensity != nil {
			values := make([]int, dev.ChannelCount)
			for i := range values {
				values[i] = *intensity
			}
			dev, _ = h.store.SetDeviceValues(deviceID, values)
			wrote = true
		}
		if rgb != nil && (dev.DeviceType == model.DeviceRGB || dev.DeviceType == model.DeviceRGBW) {
			values := append([]int(nil), dev.Values...)
			for c := 0; c < 3 && c < len(values); c++ {
				values[c] = rgb[c]
			}
			dev, _ = h.store.SetDeviceValues(deviceID, values)
			wrote = true
		}
		if wrote {
			h.transmitter.Send(dev)
		}
	}
}
