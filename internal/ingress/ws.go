package ingress

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // push clients connect from arbitrary UI origins
	},
}

// initialData is the full-state payload sent once on connect.
type initialData struct {
	Type string `json:"type"`
	model.Snapshot
}

// pushMessage is the client->server message envelope: only
// update_device_value and audio_data are recognized; anything else is
// ignored.
type pushMessage struct {
	Type       string           `json:"type"`
	DeviceID   string           `json:"device_id"`
	ChannelIdx int              `json:"channel_idx"`
	Value      int              `json:"value"`
	Data       model.AudioFrame `json:"data"`
}

// ServeWS handles GET /ws: upgrades to a websocket, pushes the initial
// snapshot, then forwards broadcast deltas until the client disconnects or
// a write fails (pruned on first failure, no retries).
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  websocket upgrade failed: %v", err)
		return
	}

	sub := h.bus.Subscribe()
	log.Printf("🔌 push client connected (%s)", conn.RemoteAddr())

	if err := conn.WriteJSON(initialData{Type: "initial_data", Snapshot: h.store.Snapshot()}); err != nil {
		sub.Close()
		_ = conn.Close()
		return
	}

	// Writer: forwards bus deltas. Owns all writes after the initial
	// snapshot; the reader below never writes, so the single-writer rule of
	// gorilla/websocket holds.
	go func() {
		for delta := range sub.Deltas() {
			if err := conn.WriteJSON(delta); err != nil {
				sub.Close()
				_ = conn.Close()
				return
			}
		}
		_ = conn.Close()
	}()

	// Reader: dispatches client commands until the connection drops.
	for {
		var msg pushMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		h.dispatchPush(msg)
	}

	sub.Close()
	_ = conn.Close()
	log.Printf("🔌 push client disconnected (%s)", conn.RemoteAddr())
}

func (h *Handler) dispatchPush(msg pushMessage) {
	switch msg.Type {
	case "update_device_value":
		// Set one channel, transmit, persist, broadcast. The store
		// handles persist+broadcast; a missing device is not an error worth
		// tearing the connection down for.
		dev, err := h.store.SetDeviceChannel(msg.DeviceID, msg.ChannelIdx, msg.Value)
		if err != nil {
			return
		}
		h.transmitter.Send(dev)
	case "audio_data":
		// No persistence, no broadcast.
		h.audio.Update(msg.Data)
	}
}
