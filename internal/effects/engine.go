// Package effects implements the Effect Engine: a single
// periodic scheduler driving every active render task as a step function
// (state, now) -> (state', writes). One goroutine owns the tick loop;
// each effect type keeps its own small mutable state struct (hue angle,
// chase index, RNG phase, ...) between ticks, so cancellation is just
// removal from the active map with no per-task cleanup hooks.
package effects

import (
	"log"
	"sync"
	"time"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

// Store is the subset of the Mutation Coordinator render tasks need: fresh
// target resolution every tick and a safe device accessor/mutator
// that silently drops writes against a vanished device.
type Store interface {
	ResolveTargets(targetIDs []string, isGroup bool) []string
	MutateDeviceValues(id string, fn func(values []int, dev *model.Device)) bool
	Device(id string) (*model.Device, bool)
}

// Transmitter emits a device's current values as an Art-Net frame.
type Transmitter interface {
	Send(d *model.Device) bool
}

// AudioStore is the subset of the Audio Feature Store sound_reactive reads.
type AudioStore interface {
	Current() model.AudioFrame
}

// tickInterval is the scheduler's own poll rate; individual effects run at
// their own cadence (speed param) by setting nextDue further out, so this
// only needs to be fine enough to honor the fastest configured speed
// (sound_reactive's flash mode checks every 20ms).
const tickInterval = 10 * time.Millisecond

type running struct {
	effect  *model.Effect
	state   any
	nextDue time.Time
}

// Engine drives every active effect's step function from one goroutine.
type Engine struct {
	store       Store
	transmitter Transmitter
	audio       AudioStore

	mu      sync.Mutex
	active  map[string]*running // keyed by the supervisor's running-task id
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewEngine creates an Engine. store, transmitter and audio must be
// non-nil.
func NewEngine(store Store, transmitter Transmitter, audio AudioStore) *Engine {
	return &Engine{
		store:       store,
		transmitter: transmitter,
		audio:       audio,
		active:      make(map[string]*running),
	}
}

// Start launches the scheduler loop. Safe to call once; a second call is a
// no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	go e.loop()
}

// Stop halts the scheduler loop and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

// Register starts driving effect under runID (the Task Supervisor's
// registration key). Re-registering an id replaces its state.
func (e *Engine) Register(runID string, effect *model.Effect) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[runID] = &running{
		effect:  effect,
		state:   newState(effect.Type, effect.Params),
		nextDue: time.Now(),
	}
}

// Unregister stops driving runID. A cancelled effect does not restore
// device state — the last-written frame is sticky.
func (e *Engine) Unregister(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, runID)
}

// Running reports whether runID is currently registered.
func (e *Engine) Running(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[runID]
	return ok
}

// ActiveCount returns the number of currently driven effects.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	due := make([]string, 0)
	for id, r := range e.active {
		if !now.Before(r.nextDue) {
			due = append(due, id)
		}
	}
	e.mu.Unlock()

	for _, id := range due {
		e.stepOne(id, now)
	}
}

func (e *Engine) stepOne(runID string, now time.Time) {
	e.mu.Lock()
	r, ok := e.active[runID]
	e.mu.Unlock()
	if !ok {
		return
	}

	targets := e.store.ResolveTargets(r.effect.TargetIDs, r.effect.IsGroup)

	defer func() {
		// A panicking step must not take down the process
		// or any other render task; log and let the next tick retry fresh.
		if rec := recover(); rec != nil {
			log.Printf("⚠️  effect %q (%s) step panicked: %v", r.effect.Name, runID, rec)
		}
	}()

	newState, delay := step(e, r.effect, r.state, targets, now)
	if delay <= 0 {
		delay = tickInterval
	}

	e.mu.Lock()
	if cur, ok := e.active[runID]; ok {
		cur.state = newState
		cur.nextDue = now.Add(delay)
	}
	e.mu.Unlock()
}

// writeDevice mutates a device's values in place and forwards the result to
// the transmitter. If the device no longer exists, the write is silently
// dropped — this is not an error.
func (e *Engine) writeDevice(id string, fn func(values []int, dev *model.Device)) {
	if !e.store.MutateDeviceValues(id, fn) {
		return
	}
	if dev, ok := e.store.Device(id); ok {
		e.transmitter.Send(dev)
	}
}

func isRGBLike(dev *model.Device) bool {
	return dev.DeviceType == model.DeviceRGB || dev.DeviceType == model.DeviceRGBW
}

func clampByte(v float64) int { return model.ClampChannel(int(v)) }
