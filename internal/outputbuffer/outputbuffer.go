// Package outputbuffer computes the per-device 512-channel universe frame
//: device.Values[i] lands at start_channel-1+i, every other
// position is zero. Two devices sharing a universe but not overlapping
// windows are never merged by this package — each device's frame only
// ever carries its own channels. Overlapping universes are not a
// supported topology.
package outputbuffer

import "github.com/IT-Networks/dmx-lighting-engine/internal/model"

// UniverseSize is the number of channels in one DMX-512 universe.
const UniverseSize = 512

// Frame computes device's full 512-channel output, clamped to [0,255].
// Only the device's own window is populated.
func Frame(d *model.Device) []byte {
	out := make([]byte, UniverseSize)
	for i, v := range d.Values {
		pos := d.StartChannel - 1 + i
		if pos < 0 || pos >= UniverseSize {
			continue
		}
		out[pos] = byte(model.ClampChannel(v))
	}
	return out
}
