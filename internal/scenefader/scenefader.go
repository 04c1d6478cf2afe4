// Package scenefader implements the Scene Fader: a globally
// mutually-exclusive linear interpolation from each targeted device's
// current values to a scene's snapshot, over 50 sub-steps of 40ms (2s
// total). One fade at a time, linear only, no queuing.
package scenefader

import (
	"log"
	"sync"
	"time"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

const (
	// Steps is the number of interpolation sub-steps.
	Steps = 50
	// StepDuration is the sleep between sub-steps.
	StepDuration = 40 * time.Millisecond
)

// DeviceStore is the subset of the Mutation Coordinator the fader needs.
type DeviceStore interface {
	DeviceByName(name string) (*model.Device, bool)
	Device(id string) (*model.Device, bool)
	MutateDeviceValues(id string, fn func(values []int, dev *model.Device)) bool
	PersistAndBroadcastDevices()
}

// Transmitter emits a device's current values as an Art-Net frame.
type Transmitter interface {
	Send(d *model.Device) bool
}

// Fader runs at most one fade at a time.
type Fader struct {
	store       DeviceStore
	transmitter Transmitter

	mu     sync.Mutex
	fading bool
}

// New creates a Fader backed by store and transmitter.
func New(store DeviceStore, transmitter Transmitter) *Fader {
	return &Fader{store: store, transmitter: transmitter}
}

// IsFading reports whether a fade is currently in progress.
func (f *Fader) IsFading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fading
}

// Activate starts a fade to scene's device values. If a fade is already in
// progress, it is a no-op: the caller should report fading:true and start
// nothing. Returns true if a new fade was started.
func (f *Fader) Activate(scene *model.Scene) bool {
	f.mu.Lock()
	if f.fading {
		f.mu.Unlock()
		return false
	}
	f.fading = true
	f.mu.Unlock()

	go f.run(scene)
	return true
}

type fadeTarget struct {
	deviceID string
	start    []int
	end      []int
}

func (f *Fader) run(scene *model.Scene) {
	defer func() {
		f.mu.Lock()
		f.fading = false
		f.mu.Unlock()
	}()

	targets := make([]fadeTarget, 0, len(scene.DeviceValues))
	for name, end := range scene.DeviceValues {
		dev, ok := f.store.DeviceByName(name)
		if !ok {
			continue
		}
		start := append([]int(nil), dev.Values...)
		targets = append(targets, fadeTarget{deviceID: dev.ID, start: start, end: append([]int(nil), end...)})
	}

	if len(targets) == 0 {
		log.Printf("🎭 scene fade: %q targets no resolvable devices, nothing to do", scene.Name)
		return
	}

	log.Printf("🎭 scene fade: %q starting across %d device(s)", scene.Name, len(targets))

	for step := 1; step <= Steps; step++ {
		progress := float64(step) / float64(Steps)
		for _, tgt := range targets {
			f.store.MutateDeviceValues(tgt.deviceID, func(values []int, dev *model.Device) {
				n := len(values)
				for i := 0; i < n; i++ {
					sv := 0
					if i < len(tgt.start) {
						sv = tgt.start[i]
					}
					ev := sv
					if i < len(tgt.end) {
						ev = tgt.end[i]
					}
					values[i] = int(float64(sv) + (float64(ev)-float64(sv))*progress)
				}
			})
		}
		f.transmitCurrent(targets)
		if step < Steps {
			time.Sleep(StepDuration)
		}
	}

	f.store.PersistAndBroadcastDevices()
	log.Printf("🎭 scene fade: %q complete", scene.Name)
}

func (f *Fader) transmitCurrent(targets []fadeTarget) {
	if f.transmitter == nil {
		return
	}
	for _, tgt := range targets {
		if dev, ok := f.store.Device(tgt.deviceID); ok {
			f.transmitter.Send(dev)
		}
	}
}
