package ingress

import (
	"fmt"
	"net/http"
	"strings"
)

// companionAction is one entry of the flat action catalog exposed to
// external control surfaces (e.g. a Stream Deck via Bitfocus Companion).
// Ids are prefixed with their kind so a single trigger endpoint can route
// them back.
type companionAction struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Color      string   `json:"color,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	EffectType string   `json:"effect_type,omitempty"`
}

// CompanionActions handles GET /api/companion/actions: a flattened list
// over scenes, groups and effects.
func (h *Handler) CompanionActions(w http.ResponseWriter, r *http.Request) {
	var actions []companionAction

	for _, sc := range h.store.ListScenes() {
		color := sc.Color
		if color == "" {
			color = "blue"
		}
		actions = append(actions, companionAction{
			ID:    "scene_" + sc.ID,
			Type:  "scene",
			Name:  "Scene: " + sc.Name,
			Color: color,
		})
	}
	for _, g := range h.store.ListGroups() {
		actions = append(actions, companionAction{
			ID:      "group_" + g.ID,
			Type:    "group",
			Name:    "Group: " + g.Name,
			Actions: []string{"on", "off", "toggle"},
		})
	}
	for _, e := range h.store.ListEffects() {
		actions = append(actions, companionAction{
			ID:         "effect_" + e.ID,
			Type:       "effect",
			Name:       "Effect: " + e.Name,
			EffectType: string(e.Type),
		})
	}

	writeOK(w, map[string]any{"actions": actions})
}

type companionTriggerRequest struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Params struct {
		Action string `json:"action"`
		Stop   bool   `json:"stop"`
	} `json:"params"`
}

// CompanionTrigger handles POST /api/companion/trigger: executes one
// catalog action by its prefixed id. Scene actions start a fade, group
// actions mass-set intensity (on/off/toggle on the first device's first
// channel), effect actions start or stop the render task.
func (h *Handler) CompanionTrigger(w http.ResponseWriter, r *http.Request) {
	var req companionTriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch req.Type {
	case "scene":
		id := strings.TrimPrefix(req.ID, "scene_")
		sc, ok := h.store.Scene(id)
		if !ok {
			writeError(w, http.StatusNotFound, errNotFound("scene", id))
			return
		}
		if h.fader.IsFading() {
			writeOK(w, map[string]any{"fading": true})
			return
		}
		h.fader.Activate(sc)
		writeOK(w, nil)

	case "group":
		id := strings.TrimPrefix(req.ID, "group_")
		if _, ok := h.store.Group(id); !ok {
			writeError(w, http.StatusNotFound, errNotFound("group", id))
			return
		}
		action := req.Params.Action
		if action == "" {
			action = "toggle"
		}
		var intensity int
		switch action {
		case "on":
			intensity = 255
		case "off":
			intensity = 0
		case "toggle":
			intensity = 255
			if ids := h.store.GroupDeviceIDs(id); len(ids) > 0 {
				if dev, ok := h.store.Device(ids[0]); ok && len(dev.Values) > 0 && dev.Values[0] > 0 {
					intensity = 0
				}
			}
		default:
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown group action %q", action))
			return
		}
		h.applyGroupValues(id, &intensity, nil)
		writeOK(w, nil)

	case "effect":
		id := strings.TrimPrefix(req.ID, "effect_")
		e, ok := h.store.Effect(id)
		if !ok {
			writeError(w, http.StatusNotFound, errNotFound("effect", id))
			return
		}
		if req.Params.Stop {
			h.supervisor.StopEffect(id)
		} else {
			h.supervisor.StartEffect(id, e)
		}
		writeOK(w, nil)

	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown action type %q", req.Type))
	}
}
