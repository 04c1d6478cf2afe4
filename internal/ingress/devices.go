package ingress

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

type deviceCreateRequest struct {
	Name         string          `json:"name"`
	IP           string          `json:"ip"`
	Universe     int             `json:"universe"`
	StartChannel int             `json:"start_channel"`
	ChannelCount int             `json:"channel_count"`
	DeviceType   model.DeviceType `json:"device_type"`
}

// ListDevices handles GET /api/devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"devices": h.store.ListDevices()})
}

// CreateDevice handles POST /api/devices.
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	dev, err := h.store.CreateDevice(req.Name, req.IP, req.Universe, req.StartChannel, req.ChannelCount, req.DeviceType)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, map[string]any{"device": dev})
}

// DeleteDevice handles DELETE /api/devices/{id}. Any effect targeting
// this device is not stopped here; deletion while targeted is permitted —
// the effect's next resolution simply omits it.
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteDevice(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeOK(w, nil)
}

type deviceValuesRequest struct {
	Values []int `json:"values"`
}

// SetDeviceValues handles POST /api/devices/{id}/values.
func (h *Handler) SetDeviceValues(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req deviceValuesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	dev, err := h.store.SetDeviceValues(id, req.Values)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.transmitter.Send(dev)
	writeOK(w, map[string]any{"device": dev})
}
