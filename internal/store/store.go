// Package store implements the Mutation Coordinator: the sole owner of the
// device/scene/group/effect/sequence collections. All writes to
// these collections go through here so that global invariants (cap counts,
// id uniqueness, duplicate-address rejection) are enforced in one place.
package store

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lucsky/cuid"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

// Persistence is the subset of the external persistence collaborator
// the store calls into. Save failures are logged and otherwise ignored —
// in-memory state remains authoritative.
type Persistence interface {
	Save(kind string, data any) error
}

// Broadcaster fans out a state delta to connected push subscribers.
type Broadcaster interface {
	Broadcast(kind string, payload any)
}

// NotFoundError indicates a lookup by id found nothing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

// LimitError indicates a collection is at its cap.
type LimitError struct {
	Kind string
	Max  int
}

func (e *LimitError) Error() string { return fmt.Sprintf("%s limit reached (%d)", e.Kind, e.Max) }

// DuplicateError indicates a device address collision.
type DuplicateError struct {
	IP, Universe, StartChannel string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("device already exists at ip=%s universe=%s start_channel=%s", e.IP, e.Universe, e.StartChannel)
}

// Store is the Mutation Coordinator.
type Store struct {
	mu sync.RWMutex

	devices   map[string]*model.Device
	deviceIDs []string // insertion order

	scenes   map[string]*model.Scene
	sceneIDs []string

	groups   map[string]*model.Group
	groupIDs []string

	effects   map[string]*model.Effect
	effectIDs []string

	sequences   map[string]*model.Sequence
	sequenceIDs []string

	persistence Persistence
	broadcaster Broadcaster
}

// New creates an empty Store.
func New(persistence Persistence, broadcaster Broadcaster) *Store {
	return &Store{
		devices:     make(map[string]*model.Device),
		scenes:      make(map[string]*model.Scene),
		groups:      make(map[string]*model.Group),
		effects:     make(map[string]*model.Effect),
		sequences:   make(map[string]*model.Sequence),
		persistence: persistence,
		broadcaster: broadcaster,
	}
}

func (s *Store) persist(kind string, data any) {
	if s.persistence == nil {
		return
	}
	if err := s.persistence.Save(kind, data); err != nil {
		// Save failures are logged; in-memory state continues.
		logPersistError(kind, err)
	}
}

func logPersistError(kind string, err error) {
	log.Printf("⚠️  persist %s failed, in-memory state continues: %v", kind, err)
}

func (s *Store) broadcast(kind string, payload any) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(kind, payload)
}

// PersistAndBroadcastDevices persists the current device collection and
// broadcasts a full devices_updated delta. Used by long-running writers
// (e.g. the Scene Fader) that mutate device values in place across many
// sub-steps via MutateDeviceValues and only want to persist/broadcast once,
// at completion.
func (s *Store) PersistAndBroadcastDevices() {
	devices := s.ListDevices()
	s.persist("devices", devices)
	s.broadcast("devices_updated", devices)
}

// ---- Devices ----------------------------------------------------------

// CreateDevice validates and inserts a new device, returning its clone.
func (s *Store) CreateDevice(name, ip string, universe, startChannel, channelCount int, deviceType model.DeviceType) (*model.Device, error) {
	if err := model.ValidateDeviceCreate(name, ip, universe, startChannel, channelCount); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.devices) >= model.MaxDevices {
		return nil, &LimitError{Kind: "device", Max: model.MaxDevices}
	}

	for _, d := range s.devices {
		if d.IP == ip && d.Universe == universe && d.StartChannel == startChannel {
			return nil, &DuplicateError{IP: ip, Universe: fmt.Sprint(universe), StartChannel: fmt.Sprint(startChannel)}
		}
	}

	dev := &model.Device{
		ID:           cuid.New(),
		Name:         name,
		IP:           ip,
		Universe:     universe,
		StartChannel: startChannel,
		ChannelCount: channelCount,
		DeviceType:   deviceType,
		Values:       make([]int, channelCount),
		CreatedAt:    time.Now(),
	}
	s.devices[dev.ID] = dev
	s.deviceIDs = append(s.deviceIDs, dev.ID)

	s.persist("devices", s.listDevicesLocked())
	s.broadcast("devices_updated", s.listDevicesLocked())
	return dev.Clone(), nil
}

// DeleteDevice removes a device. Effects targeting it are not stopped;
// the store itself does not reach into the supervisor, and a running
// effect's next target resolution simply omits the device.
func (s *Store) DeleteDevice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[id]; !ok {
		return &NotFoundError{Kind: "device", ID: id}
	}
	delete(s.devices, id)
	s.deviceIDs = removeID(s.deviceIDs, id)

	s.persist("devices", s.listDevicesLocked())
	s.broadcast("devices_updated", s.listDevicesLocked())
	return nil
}

// Device returns a clone of a device by id, or false if it no longer exists.
// This is the accessor render tasks borrow device state through: a
// write against a vanished device is silently dropped by the caller.
func (s *Store) Device(id string) (*model.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// DeviceByName looks up a device by name (scenes key by name).
func (s *Store) DeviceByName(name string) (*model.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.deviceIDs {
		if d := s.devices[id]; d.Name == name {
			return d.Clone(), true
		}
	}
	return nil, false
}

// SetDeviceValues overwrites all of a device's channel values, clamped.
func (s *Store) SetDeviceValues(id string, values []int) (*model.Device, error) {
	s.mu.Lock()
	d, ok := s.devices[id]
	if !ok {
		s.mu.Unlock()
		return nil, &NotFoundError{Kind: "device", ID: id}
	}
	n := len(d.Values)
	for i := 0; i < n; i++ {
		if i < len(values) {
			d.Values[i] = model.ClampChannel(values[i])
		}
	}
	clone := d.Clone()
	s.mu.Unlock()

	s.persist("devices", s.ListDevices())
	s.broadcast("device_values_updated", map[string]any{"device_id": id, "values": clone.Values})
	return clone, nil
}

// SetDeviceChannel sets a single channel (push-channel update_device_value).
func (s *Store) SetDeviceChannel(id string, channelIdx, value int) (*model.Device, error) {
	s.mu.Lock()
	d, ok := s.devices[id]
	if !ok {
		s.mu.Unlock()
		return nil, &NotFoundError{Kind: "device", ID: id}
	}
	if channelIdx < 0 || channelIdx >= len(d.Values) {
		s.mu.Unlock()
		return nil, fmt.Errorf("channel index %d out of range", channelIdx)
	}
	d.Values[channelIdx] = model.ClampChannel(value)
	clone := d.Clone()
	s.mu.Unlock()

	s.persist("devices", s.ListDevices())
	s.broadcast("device_values_updated", map[string]any{"device_id": id, "values": clone.Values})
	return clone, nil
}

// MutateDeviceValues applies fn to a device's values in place under the
// store's lock, used by render tasks that need a single atomic
// read-modify-write without the allocation of SetDeviceValues. fn must not
// retain the slice it is given. Returns false if the device no longer
// exists — the write is then understood to be silently dropped.
func (s *Store) MutateDeviceValues(id string, fn func(values []int, dev *model.Device)) bool {
	s.mu.Lock()
	d, ok := s.devices[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	fn(d.Values, d)
	for i, v := range d.Values {
		d.Values[i] = model.ClampChannel(v)
	}
	s.mu.Unlock()
	return true
}

// ListDevices returns clones of all devices in insertion order.
func (s *Store) ListDevices() []*model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDevicesLocked()
}

func (s *Store) listDevicesLocked() []*model.Device {
	out := make([]*model.Device, 0, len(s.deviceIDs))
	for _, id := range s.deviceIDs {
		out = append(out, s.devices[id].Clone())
	}
	return out
}

// ---- Scenes -------------------------------------------------------------

// CreateScene captures current device values for deviceValues left nil.
func (s *Store) CreateScene(name, color string, deviceValues map[string][]int) (*model.Scene, error) {
	name = trimName(name)
	if name == "" {
		return nil, fmt.Errorf("name must not be empty")
	}
	if len(name) > model.MaxNameLength {
		return nil, fmt.Errorf("name exceeds %d characters", model.MaxNameLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scenes) >= model.MaxScenes {
		return nil, &LimitError{Kind: "scene", Max: model.MaxScenes}
	}

	if deviceValues == nil {
		deviceValues = make(map[string][]int, len(s.devices))
		for _, id := range s.deviceIDs {
			d := s.devices[id]
			deviceValues[d.Name] = append([]int(nil), d.Values...)
		}
	}

	sc := &model.Scene{
		ID:           cuid.New(),
		Name:         name,
		Color:        color,
		DeviceValues: deviceValues,
		CreatedAt:    time.Now(),
	}
	s.scenes[sc.ID] = sc
	s.sceneIDs = append(s.sceneIDs, sc.ID)

	s.persist("scenes", s.listScenesLocked())
	s.broadcast("scenes_updated", s.listScenesLocked())
	return sc, nil
}

// Scene returns a scene by id.
func (s *Store) Scene(id string) (*model.Scene, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenes[id]
	return sc, ok
}

// DeleteScene removes a scene by id.
func (s *Store) DeleteScene(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenes[id]; !ok {
		return &NotFoundError{Kind: "scene", ID: id}
	}
	delete(s.scenes, id)
	s.sceneIDs = removeID(s.sceneIDs, id)
	s.persist("scenes", s.listScenesLocked())
	s.broadcast("scenes_updated", s.listScenesLocked())
	return nil
}

// ListScenes returns all scenes in insertion order.
func (s *Store) ListScenes() []*model.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listScenesLocked()
}

func (s *Store) listScenesLocked() []*model.Scene {
	out := make([]*model.Scene, 0, len(s.sceneIDs))
	for _, id := range s.sceneIDs {
		out = append(out, s.scenes[id])
	}
	return out
}

// ---- Groups ---------------------------------------------------------------

// CreateGroup validates and inserts a new group.
func (s *Store) CreateGroup(name string, deviceIDs []string) (*model.Group, error) {
	name = trimName(name)
	if name == "" {
		return nil, fmt.Errorf("name must not be empty")
	}
	if len(deviceIDs) == 0 {
		return nil, fmt.Errorf("device_ids must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.groups) >= model.MaxGroups {
		return nil, &LimitError{Kind: "group", Max: model.MaxGroups}
	}

	g := &model.Group{
		ID:        cuid.New(),
		Name:      name,
		DeviceIDs: append([]string(nil), deviceIDs...),
		CreatedAt: time.Now(),
	}
	s.groups[g.ID] = g
	s.groupIDs = append(s.groupIDs, g.ID)

	s.persist("groups", s.listGroupsLocked())
	s.broadcast("groups_updated", s.listGroupsLocked())
	return g, nil
}

// Group returns a group by id.
func (s *Store) Group(id string) (*model.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	return g, ok
}

// UpdateGroup replaces a group's name/device ids.
func (s *Store) UpdateGroup(id string, name string, deviceIDs []string) (*model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, &NotFoundError{Kind: "group", ID: id}
	}
	if name != "" {
		g.Name = name
	}
	if deviceIDs != nil {
		g.DeviceIDs = append([]string(nil), deviceIDs...)
	}
	s.persist("groups", s.listGroupsLocked())
	s.broadcast("groups_updated", s.listGroupsLocked())
	return g, nil
}

// DeleteGroup removes a group by id.
func (s *Store) DeleteGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return &NotFoundError{Kind: "group", ID: id}
	}
	delete(s.groups, id)
	s.groupIDs = removeID(s.groupIDs, id)
	s.persist("groups", s.listGroupsLocked())
	s.broadcast("groups_updated", s.listGroupsLocked())
	return nil
}

// ListGroups returns all groups in insertion order.
func (s *Store) ListGroups() []*model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listGroupsLocked()
}

func (s *Store) listGroupsLocked() []*model.Group {
	out := make([]*model.Group, 0, len(s.groupIDs))
	for _, id := range s.groupIDs {
		out = append(out, s.groups[id])
	}
	return out
}

// GroupDeviceIDs resolves a group's device ids, silently skipping any that
// no longer resolve to a device.
func (s *Store) GroupDeviceIDs(groupID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.DeviceIDs))
	for _, id := range g.DeviceIDs {
		if _, ok := s.devices[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// ResolveTargets expands target ids (group ids if isGroup, else device ids
// directly) into a flat, deduplicated list of device ids, re-resolved fresh
// on every call so render tasks see membership changes mid-flight.
func (s *Store) ResolveTargets(targetIDs []string, isGroup bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if _, ok := s.devices[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	if !isGroup {
		for _, id := range targetIDs {
			add(id)
		}
		return out
	}
	for _, gid := range targetIDs {
		g, ok := s.groups[gid]
		if !ok {
			continue
		}
		for _, id := range g.DeviceIDs {
			add(id)
		}
	}
	return out
}

// ---- Effects (configured) --------------------------------------------------

// CreateEffect validates and inserts a configured effect.
func (s *Store) CreateEffect(name string, effectType model.EffectType, targetIDs []string, params map[string]any, isGroup bool) (*model.Effect, error) {
	name = trimName(name)
	if name == "" {
		return nil, fmt.Errorf("name must not be empty")
	}
	if !model.ValidEffectType(effectType) {
		return nil, fmt.Errorf("unknown effect type %q", effectType)
	}
	if len(targetIDs) == 0 {
		return nil, fmt.Errorf("target_ids must not be empty")
	}
	if params == nil {
		params = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &model.Effect{
		ID:        cuid.New(),
		Name:      name,
		Type:      effectType,
		TargetIDs: append([]string(nil), targetIDs...),
		Params:    params,
		IsGroup:   isGroup,
		CreatedAt: time.Now(),
	}
	s.effects[e.ID] = e
	s.effectIDs = append(s.effectIDs, e.ID)

	s.persist("effects", s.listEffectsLocked())
	s.broadcast("effects_updated", s.listEffectsLocked())
	return e, nil
}

// Effect returns a configured effect by id.
func (s *Store) Effect(id string) (*model.Effect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.effects[id]
	return e, ok
}

// DeleteEffect removes a configured effect by id. The caller must stop any
// running render task for it first (the store has no knowledge of the
// supervisor).
func (s *Store) DeleteEffect(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.effects[id]; !ok {
		return &NotFoundError{Kind: "effect", ID: id}
	}
	delete(s.effects, id)
	s.effectIDs = removeID(s.effectIDs, id)
	s.persist("effects", s.listEffectsLocked())
	s.broadcast("effects_updated", s.listEffectsLocked())
	return nil
}

// ListEffects returns all configured effects in insertion order.
func (s *Store) ListEffects() []*model.Effect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEffectsLocked()
}

func (s *Store) listEffectsLocked() []*model.Effect {
	out := make([]*model.Effect, 0, len(s.effectIDs))
	for _, id := range s.effectIDs {
		out = append(out, s.effects[id])
	}
	return out
}

// ---- Sequences --------------------------------------------------------------

// CreateSequence validates and inserts a sequence.
func (s *Store) CreateSequence(name string, loop bool, steps []model.SequenceStep) (*model.Sequence, error) {
	name = trimName(name)
	if name == "" {
		return nil, fmt.Errorf("name must not be empty")
	}
	if len(steps) > model.MaxSequenceSteps {
		return nil, fmt.Errorf("steps exceeds %d", model.MaxSequenceSteps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := &model.Sequence{
		ID:        cuid.New(),
		Name:      name,
		Loop:      loop,
		Steps:     append([]model.SequenceStep(nil), steps...),
		CreatedAt: time.Now(),
	}
	s.sequences[seq.ID] = seq
	s.sequenceIDs = append(s.sequenceIDs, seq.ID)

	s.persist("sequences", s.listSequencesLocked())
	s.broadcast("sequences_updated", s.listSequencesLocked())
	return seq, nil
}

// Sequence returns a sequence by id.
func (s *Store) Sequence(id string) (*model.Sequence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.sequences[id]
	return seq, ok
}

// UpdateSequence replaces a sequence's fields.
func (s *Store) UpdateSequence(id string, name string, loop bool, steps []model.SequenceStep) (*model.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.sequences[id]
	if !ok {
		return nil, &NotFoundError{Kind: "sequence", ID: id}
	}
	if len(steps) > model.MaxSequenceSteps {
		return nil, fmt.Errorf("steps exceeds %d", model.MaxSequenceSteps)
	}
	if name != "" {
		seq.Name = name
	}
	seq.Loop = loop
	if steps != nil {
		seq.Steps = append([]model.SequenceStep(nil), steps...)
	}
	s.persist("sequences", s.listSequencesLocked())
	s.broadcast("sequences_updated", s.listSequencesLocked())
	return seq, nil
}

// DeleteSequence removes a sequence by id.
func (s *Store) DeleteSequence(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sequences[id]; !ok {
		return &NotFoundError{Kind: "sequence", ID: id}
	}
	delete(s.sequences, id)
	s.sequenceIDs = removeID(s.sequenceIDs, id)
	s.persist("sequences", s.listSequencesLocked())
	s.broadcast("sequences_updated", s.listSequencesLocked())
	return nil
}

// ListSequences returns all sequences in insertion order.
func (s *Store) ListSequences() []*model.Sequence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSequencesLocked()
}

func (s *Store) listSequencesLocked() []*model.Sequence {
	out := make([]*model.Sequence, 0, len(s.sequenceIDs))
	for _, id := range s.sequenceIDs {
		out = append(out, s.sequences[id])
	}
	return out
}

// Snapshot returns the full current state, used for a new subscriber's
// initial push.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Snapshot{
		Devices:   s.listDevicesLocked(),
		Scenes:    s.listScenesLocked(),
		Groups:    s.listGroupsLocked(),
		Effects:   s.listEffectsLocked(),
		Sequences: s.listSequencesLocked(),
	}
}

// Restore installs previously persisted state wholesale, keeping the ids
// the entities were saved with. Intended for startup only; it neither
// persists nor broadcasts.
// Device values are re-normalized to channel_count and clamped in case the
// files were edited by hand.
func (s *Store) Restore(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range snap.Devices {
		if d == nil || d.ID == "" {
			continue
		}
		values := make([]int, d.ChannelCount)
		for i := range values {
			if i < len(d.Values) {
				values[i] = model.ClampChannel(d.Values[i])
			}
		}
		d.Values = values
		s.devices[d.ID] = d
		s.deviceIDs = append(s.deviceIDs, d.ID)
	}
	for _, sc := range snap.Scenes {
		if sc == nil || sc.ID == "" {
			continue
		}
		s.scenes[sc.ID] = sc
		s.sceneIDs = append(s.sceneIDs, sc.ID)
	}
	for _, g := range snap.Groups {
		if g == nil || g.ID == "" {
			continue
		}
		s.groups[g.ID] = g
		s.groupIDs = append(s.groupIDs, g.ID)
	}
	for _, e := range snap.Effects {
		if e == nil || e.ID == "" {
			continue
		}
		s.effects[e.ID] = e
		s.effectIDs = append(s.effectIDs, e.ID)
	}
	for _, seq := range snap.Sequences {
		if seq == nil || seq.ID == "" {
			continue
		}
		s.sequences[seq.ID] = seq
		s.sequenceIDs = append(s.sequenceIDs, seq.ID)
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func trimName(name string) string {
	return strings.TrimSpace(name)
}
