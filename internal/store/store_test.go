package store

import (
	"fmt"
	"testing"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

func TestCreateDeviceRoundTrip(t *testing.T) {
	s := New(nil, nil)

	dev, err := s.CreateDevice("Par 1", "10.0.0.5", 0, 1, 3, model.DeviceRGB)
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if dev.ID == "" {
		t.Fatal("expected server-assigned id")
	}
	if len(dev.Values) != 3 {
		t.Fatalf("expected 3 zero values, got %v", dev.Values)
	}
	for _, v := range dev.Values {
		if v != 0 {
			t.Fatalf("expected zeroed values, got %v", dev.Values)
		}
	}

	got, ok := s.Device(dev.ID)
	if !ok {
		t.Fatal("expected device to be found")
	}
	if got.Name != "Par 1" || got.IP != "10.0.0.5" || got.Universe != 0 || got.StartChannel != 1 || got.ChannelCount != 3 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreateDeviceRejectsDuplicateAddress(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.CreateDevice("A", "10.0.0.5", 0, 1, 3, model.DeviceRGB); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.CreateDevice("B", "10.0.0.5", 0, 1, 3, model.DeviceRGB)
	if err == nil {
		t.Fatal("expected duplicate-address rejection")
	}
	if _, ok := err.(*DuplicateError); !ok {
		t.Fatalf("expected *DuplicateError, got %T: %v", err, err)
	}
}

func TestCreateDeviceEnforcesCap(t *testing.T) {
	s := New(nil, nil)
	for i := 0; i < model.MaxDevices; i++ {
		ip := fmt.Sprintf("10.0.1.%d", i+1)
		if _, err := s.CreateDevice("D", ip, i%16, 1, 1, model.DeviceDimmer); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	_, err := s.CreateDevice("overflow", "192.168.1.1", 0, 1, 1, model.DeviceDimmer)
	if err == nil {
		t.Fatal("expected cap rejection")
	}
	if _, ok := err.(*LimitError); !ok {
		t.Fatalf("expected *LimitError, got %T", err)
	}
}

func TestDeviceAccessorMissingReturnsFalse(t *testing.T) {
	s := New(nil, nil)
	if _, ok := s.Device("nope"); ok {
		t.Fatal("expected false for unknown device id")
	}
}

func TestDeleteDeviceThenMutateIsSilentlyDropped(t *testing.T) {
	s := New(nil, nil)
	dev, _ := s.CreateDevice("A", "10.0.0.9", 0, 1, 2, model.DeviceDimmer)
	if err := s.DeleteDevice(dev.ID); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	ok := s.MutateDeviceValues(dev.ID, func(values []int, d *model.Device) {
		values[0] = 255
	})
	if ok {
		t.Fatal("expected mutate against deleted device to report false")
	}
}

func TestSetDeviceChannelClamps(t *testing.T) {
	s := New(nil, nil)
	dev, _ := s.CreateDevice("A", "10.0.0.9", 0, 1, 2, model.DeviceDimmer)
	got, err := s.SetDeviceChannel(dev.ID, 0, 9000)
	if err != nil {
		t.Fatalf("SetDeviceChannel: %v", err)
	}
	if got.Values[0] != 255 {
		t.Fatalf("expected clamp to 255, got %d", got.Values[0])
	}
}

func TestResolveTargetsDedupsAndSkipsMissing(t *testing.T) {
	s := New(nil, nil)
	d1, _ := s.CreateDevice("A", "10.0.0.1", 0, 1, 1, model.DeviceDimmer)
	d2, _ := s.CreateDevice("B", "10.0.0.2", 0, 1, 1, model.DeviceDimmer)
	g, err := s.CreateGroup("G", []string{d1.ID, d2.ID, d1.ID, "ghost"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	ids := s.ResolveTargets([]string{g.ID}, true)
	if len(ids) != 2 {
		t.Fatalf("expected 2 deduped resolved ids, got %v", ids)
	}
}

func TestCreateSceneDefaultsToCurrentValues(t *testing.T) {
	s := New(nil, nil)
	d, _ := s.CreateDevice("Par 1", "10.0.0.1", 0, 1, 2, model.DeviceDimmer)
	s.SetDeviceValues(d.ID, []int{10, 20})

	sc, err := s.CreateScene("Warm", "#fff", nil)
	if err != nil {
		t.Fatalf("CreateScene: %v", err)
	}
	vals, ok := sc.DeviceValues["Par 1"]
	if !ok {
		t.Fatal("expected scene to capture device by name")
	}
	if vals[0] != 10 || vals[1] != 20 {
		t.Fatalf("expected captured values [10 20], got %v", vals)
	}
}

func TestCreateGroupRejectsEmptyDeviceIDs(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.CreateGroup("G", nil); err == nil {
		t.Fatal("expected error for empty device_ids")
	}
}

func TestCreateEffectRejectsUnknownType(t *testing.T) {
	s := New(nil, nil)
	d, _ := s.CreateDevice("A", "10.0.0.1", 0, 1, 1, model.DeviceDimmer)
	_, err := s.CreateEffect("bad", model.EffectType("not_a_type"), []string{d.ID}, nil, false)
	if err == nil {
		t.Fatal("expected error for unknown effect type")
	}
}

func TestCreateSequenceEnforcesStepCap(t *testing.T) {
	s := New(nil, nil)
	steps := make([]model.SequenceStep, model.MaxSequenceSteps+1)
	for i := range steps {
		steps[i] = model.SequenceStep{Type: model.StepWait, DurationMs: 100}
	}
	_, err := s.CreateSequence("Too Long", false, steps)
	if err == nil {
		t.Fatal("expected step cap rejection")
	}
}

type fakePersistence struct {
	saved map[string]any
}

func (f *fakePersistence) Save(kind string, data any) error {
	if f.saved == nil {
		f.saved = make(map[string]any)
	}
	f.saved[kind] = data
	return nil
}

type fakeBroadcaster struct {
	events []string
}

func (f *fakeBroadcaster) Broadcast(kind string, payload any) {
	f.events = append(f.events, kind)
}

func TestCreateDeviceNotifiesPersistenceAndBroadcaster(t *testing.T) {
	p := &fakePersistence{}
	b := &fakeBroadcaster{}
	s := New(p, b)

	if _, err := s.CreateDevice("A", "10.0.0.1", 0, 1, 1, model.DeviceDimmer); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if _, ok := p.saved["devices"]; !ok {
		t.Fatal("expected persistence.Save to be called with kind=devices")
	}
	if len(b.events) == 0 || b.events[0] != "devices_updated" {
		t.Fatalf("expected devices_updated broadcast, got %v", b.events)
	}
}

func TestRestoreKeepsIDsAndNormalizesValues(t *testing.T) {
	s := New(nil, nil)
	s.Restore(model.Snapshot{
		Devices: []*model.Device{
			{ID: "dev1", Name: "A", IP: "10.0.0.1", Universe: 0, StartChannel: 1, ChannelCount: 3, Values: []int{999, -4}},
		},
		Scenes: []*model.Scene{{ID: "sc1", Name: "S"}},
	})

	d, ok := s.Device("dev1")
	if !ok {
		t.Fatal("expected restored device to be found by its saved id")
	}
	if len(d.Values) != 3 {
		t.Fatalf("expected values re-normalized to channel_count, got %v", d.Values)
	}
	if d.Values[0] != 255 || d.Values[1] != 0 || d.Values[2] != 0 {
		t.Fatalf("expected clamped values [255 0 0], got %v", d.Values)
	}
	if _, ok := s.Scene("sc1"); !ok {
		t.Fatal("expected restored scene to be found")
	}
}

func TestSnapshotReflectsAllCollections(t *testing.T) {
	s := New(nil, nil)
	d, _ := s.CreateDevice("A", "10.0.0.1", 0, 1, 1, model.DeviceDimmer)
	s.CreateScene("S", "", nil)
	s.CreateGroup("G", []string{d.ID})
	s.CreateEffect("E", model.EffectStrobe, []string{d.ID}, nil, false)
	s.CreateSequence("Q", false, nil)

	snap := s.Snapshot()
	if len(snap.Devices) != 1 || len(snap.Scenes) != 1 || len(snap.Groups) != 1 ||
		len(snap.Effects) != 1 || len(snap.Sequences) != 1 {
		t.Fatalf("unexpected snapshot shape: %+v", snap)
	}
}
