package effects

import (
	"math"
	"sort"
	"time"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

// customTick is the keyframe effect's loop rate.
const customTick = time.Second / 30

type keyframe struct {
	time        float64 // 0..100, normalized position within duration
	easing      string
	values      map[string][3]int // spot mode: device id (or "default") -> RGB
	patternType string             // strip mode
	pattern     map[string]any     // strip mode, pattern-specific fields
}

type customState struct {
	keyframes []keyframe
	duration  float64
	mode      string
	startTime time.Time
}

// newCustomState parses the keyframes/duration/mode params once at
// registration time. A config with fewer than 2 keyframes degrades
// to holding position, since there is nothing to interpolate between.
func newCustomState(params map[string]any) *customState {
	s := &customState{
		duration: paramFloat(params, "duration", 10.0),
		mode:     paramString(params, "mode", "spot"),
	}

	raw, _ := params["keyframes"].([]any)
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		kf := keyframe{
			time:   paramFloat(m, "time", 0),
			easing: paramString(m, "easing", "linear"),
		}
		if vm, ok := m["values"].(map[string]any); ok {
			kf.values = make(map[string][3]int, len(vm))
			for id, v := range vm {
				kf.values[id] = colorOf(map[string]any{"c": v}, "c", [3]int{255, 255, 255})
			}
		}
		if pt, ok := m["pattern_type"].(string); ok {
			kf.patternType = pt
		}
		if pm, ok := m["pattern"].(map[string]any); ok {
			kf.pattern = pm
		}
		s.keyframes = append(s.keyframes, kf)
	}

	sort.Slice(s.keyframes, func(i, j int) bool { return s.keyframes[i].time < s.keyframes[j].time })
	return s
}

func stepCustom(e *Engine, _ map[string]any, s *customState, targets []string, now time.Time) (any, time.Duration) {
	if len(s.keyframes) < 2 {
		return s, customTick
	}
	if s.startTime.IsZero() {
		s.startTime = now
	}

	duration := s.duration
	if duration <= 0 {
		duration = 10
	}
	elapsed := now.Sub(s.startTime).Seconds()
	elapsedMod := math.Mod(elapsed, duration)
	pos := elapsedMod / duration * 100

	kp, kn := bracketKeyframes(s.keyframes, pos)
	f := 0.0
	if kn.time != kp.time {
		f = (pos - kp.time) / (kn.time - kp.time)
	}
	f = applyEasing(clip01(f), kp.easing)

	if s.mode == "strip" {
		for _, id := range targets {
			writeStripPattern(e, id, kp, kn, f)
		}
	} else {
		for _, id := range targets {
			writeSpotColor(e, id, kp, kn, f)
		}
	}
	return s, customTick
}

// bracketKeyframes finds the pair of keyframes that bracket pos, wrapping
// from the last back to the first for the segment beyond the final
// keyframe (the loop's last leg).
func bracketKeyframes(kfs []keyframe, pos float64) (keyframe, keyframe) {
	for i := 0; i < len(kfs)-1; i++ {
		if pos >= kfs[i].time && pos <= kfs[i+1].time {
			return kfs[i], kfs[i+1]
		}
	}
	if pos < kfs[0].time {
		return kfs[len(kfs)-1], kfs[0]
	}
	return kfs[len(kfs)-1], kfs[0]
}

// applyEasing implements the four supported easing curves.
func applyEasing(f float64, kind string) float64 {
	switch kind {
	case "ease-in":
		return f * f
	case "ease-out":
		return 1 - (1-f)*(1-f)
	case "ease-in-out":
		return 3*f*f - 2*f*f*f
	default: // "linear"
		return f
	}
}

func writeSpotColor(e *Engine, deviceID string, kp, kn keyframe, f float64) {
	start := lookupSpotColor(kp.values, deviceID)
	end := lookupSpotColor(kn.values, deviceID)

	e.writeDevice(deviceID, func(values []int, dev *model.Device) {
		for c := 0; c < 3; c++ {
			setChannel(values, c, int(float64(start[c])+(float64(end[c])-float64(start[c]))*f))
		}
	})
}

func lookupSpotColor(values map[string][3]int, deviceID string) [3]int {
	if values == nil {
		return [3]int{255, 255, 255}
	}
	if c, ok := values[deviceID]; ok {
		return c
	}
	if c, ok := values["default"]; ok {
		return c
	}
	return [3]int{255, 255, 255}
}

// writeStripPattern renders one strip frame. The pattern type and the
// wave/gradient/chase parameters come from the approaching keyframe; only
// solid blends the two keyframes' colors.
func writeStripPattern(e *Engine, deviceID string, kp, kn keyframe, f float64) {
	patternType := kn.patternType
	if patternType == "" {
		patternType = "solid"
	}

	e.writeDevice(deviceID, func(values []int, dev *model.Device) {
		numPixels := len(values) / 3
		if numPixels == 0 {
			return
		}
		for pixel := 0; pixel < numPixels; pixel++ {
			c := stripPixelColor(patternType, kp.pattern, kn.pattern, f, pixel, numPixels)
			base := pixel * 3
			setChannel(values, base, c[0])
			setChannel(values, base+1, c[1])
			setChannel(values, base+2, c[2])
		}
	})
}

func stripPixelColor(patternType string, kp, kn map[string]any, f float64, pixel, numPixels int) [3]int {
	switch patternType {
	case "gradient":
		start := colorOf(kn, "start_color", [3]int{255, 0, 0})
		end := colorOf(kn, "end_color", [3]int{0, 0, 255})
		frac := 0.0
		if numPixels > 1 {
			frac = float64(pixel) / float64(numPixels-1)
		}
		return lerpColor(start, end, frac)

	case "wave":
		color := colorOf(kn, "color", [3]int{255, 255, 255})
		wavelength := paramFloat(kn, "wavelength", 10)
		amplitude := paramFloat(kn, "amplitude", 255)
		if wavelength == 0 {
			wavelength = 10
		}
		brightness := (math.Sin((float64(pixel)+f*wavelength)*2*math.Pi/wavelength) + 1) / 2 * (amplitude / 255)
		return scaleColor(color, brightness)

	case "chase":
		color := colorOf(kn, "color", [3]int{255, 255, 255})
		width := paramFloat(kn, "width", 3)
		if width <= 0 {
			width = 3
		}
		brightPos := f * float64(numPixels)
		dist := math.Abs(float64(pixel) - brightPos)
		falloff := 1 - dist/width
		if falloff < 0 {
			falloff = 0
		}
		return scaleColor(color, falloff)

	default: // "solid"
		start := colorOf(kp, "color", [3]int{255, 255, 255})
		end := colorOf(kn, "color", [3]int{255, 255, 255})
		return lerpColor(start, end, f)
	}
}

func colorOf(m map[string]any, key string, def [3]int) [3]int {
	v, ok := m[key]
	if !ok {
		return def
	}
	raw, ok := v.([]any)
	if !ok || len(raw) != 3 {
		return def
	}
	var out [3]int
	for i := 0; i < 3; i++ {
		switch n := raw[i].(type) {
		case float64:
			out[i] = int(n)
		case int:
			out[i] = n
		}
	}
	return out
}

func lerpColor(a, b [3]int, f float64) [3]int {
	var out [3]int
	for i := 0; i < 3; i++ {
		out[i] = model.ClampChannel(int(float64(a[i]) + (float64(b[i])-float64(a[i]))*f))
	}
	return out
}

func scaleColor(c [3]int, scale float64) [3]int {
	var out [3]int
	for i := 0; i < 3; i++ {
		out[i] = model.ClampChannel(int(float64(c[i]) * scale))
	}
	return out
}
