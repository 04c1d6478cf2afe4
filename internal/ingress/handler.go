// Package ingress implements the Ingress Handler: the REST surface and
// the /ws push-channel dispatch, translating both into calls against the
// Mutation Coordinator, Scene Fader, Effect Engine and Task Supervisor.
package ingress

import (
	"github.com/IT-Networks/dmx-lighting-engine/internal/broadcast"
	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
	"github.com/IT-Networks/dmx-lighting-engine/internal/supervisor"
)

// Store is the subset of the Mutation Coordinator the ingress layer drives.
type Store interface {
	CreateDevice(name, ip string, universe, startChannel, channelCount int, deviceType model.DeviceType) (*model.Device, error)
	DeleteDevice(id string) error
	Device(id string) (*model.Device, bool)
	SetDeviceValues(id string, values []int) (*model.Device, error)
	SetDeviceChannel(id string, channelIdx, value int) (*model.Device, error)
	MutateDeviceValues(id string, fn func(values []int, dev *model.Device)) bool
	ListDevices() []*model.Device

	CreateScene(name, color string, deviceValues map[string][]int) (*model.Scene, error)
	Scene(id string) (*model.Scene, bool)
	DeleteScene(id string) error
	ListScenes() []*model.Scene

	CreateGroup(name string, deviceIDs []string) (*model.Group, error)
	Group(id string) (*model.Group, bool)
	UpdateGroup(id string, name string, deviceIDs []string) (*model.Group, error)
	DeleteGroup(id string) error
	ListGroups() []*model.Group
	GroupDeviceIDs(groupID string) []string

	CreateEffect(name string, effectType model.EffectType, targetIDs []string, params map[string]any, isGroup bool) (*model.Effect, error)
	Effect(id string) (*model.Effect, bool)
	DeleteEffect(id string) error
	ListEffects() []*model.Effect

	CreateSequence(name string, loop bool, steps []model.SequenceStep) (*model.Sequence, error)
	Sequence(id string) (*model.Sequence, bool)
	UpdateSequence(id string, name string, loop bool, steps []model.SequenceStep) (*model.Sequence, error)
	DeleteSequence(id string) error
	ListSequences() []*model.Sequence

	Snapshot() model.Snapshot
}

// Fader is the subset of the Scene Fader the ingress layer drives.
type Fader interface {
	Activate(scene *model.Scene) bool
	IsFading() bool
}

// Transmitter emits a device's current values as an Art-Net frame, used by
// the handlers that write channel values directly (update_device_value
// and the devices/{id}/values endpoint).
type Transmitter interface {
	Send(d *model.Device) bool
}

// Supervisor is the subset of the Task Supervisor the ingress layer drives.
type Supervisor interface {
	StartEffect(id string, effect *model.Effect)
	StopEffect(id string)
	StartSequence(id string, work func(stop <-chan struct{}))
	StopSequence(id string)
	Running(class supervisor.Class, id string) bool
}

// SequencePlayer turns a Sequence definition into the step function the
// Supervisor drives.
type SequencePlayer interface {
	Run(seq *model.Sequence) func(stop <-chan struct{})
}

// AudioStore is the subset of the Audio Feature Store the push channel's
// audio_data message updates.
type AudioStore interface {
	Update(frame model.AudioFrame)
}

// Bus is the subset of the Broadcast Bus the push channel subscribes
// through.
type Bus interface {
	Subscribe() *broadcast.Subscriber
}

// Handler wires every core component to the external HTTP and websocket
// surfaces.
type Handler struct {
	store       Store
	fader       Fader
	transmitter Transmitter
	supervisor  Supervisor
	player      SequencePlayer
	audio       AudioStore
	bus         Bus
}

// New creates a Handler. All arguments must be non-nil.
func New(store Store, fader Fader, transmitter Transmitter, sv Supervisor, player SequencePlayer, audio AudioStore, bus Bus) *Handler {
	return &Handler{
		store:       store,
		fader:       fader,
		transmitter: transmitter,
		supervisor:  sv,
		player:      player,
		audio:       audio,
		bus:         bus,
	}
}
