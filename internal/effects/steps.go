package effects

import (
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

func secs(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

// newState allocates the per-type mutable state an effect carries between
// scheduler ticks, standing in for the local variables a dedicated
// goroutine per effect would otherwise carry.
func newState(t model.EffectType, params map[string]any) any {
	switch t {
	case model.EffectStrobe:
		return &strobeState{}
	case model.EffectRainbow:
		return &rainbowState{}
	case model.EffectChase:
		return &chaseState{}
	case model.EffectPulse:
		return &pulseState{dir: 1}
	case model.EffectColorFade:
		return &colorFadeState{}
	case model.EffectSoundReactive:
		return &soundReactiveState{}
	case model.EffectFire:
		return &fireState{}
	case model.EffectLightning:
		return &lightningState{mode: "quiet"}
	case model.EffectScanner:
		return &scannerState{dir: 1}
	case model.EffectMatrix:
		return &matrixState{}
	case model.EffectTwinkle:
		return &twinkleState{}
	case model.EffectCustom:
		return newCustomState(params)
	default:
		return nil
	}
}

// step dispatches a single tick to the effect-type-specific step function.
func step(e *Engine, effect *model.Effect, state any, targets []string, now time.Time) (any, time.Duration) {
	p := effect.Params
	switch effect.Type {
	case model.EffectStrobe:
		return stepStrobe(e, p, state.(*strobeState), targets)
	case model.EffectRainbow:
		return stepRainbow(e, p, state.(*rainbowState), targets)
	case model.EffectChase:
		return stepChase(e, p, state.(*chaseState), targets)
	case model.EffectPulse:
		return stepPulse(e, p, state.(*pulseState), targets)
	case model.EffectColorFade:
		return stepColorFade(e, p, state.(*colorFadeState), targets)
	case model.EffectSoundReactive:
		return stepSoundReactive(e, p, state.(*soundReactiveState), targets, now)
	case model.EffectFire:
		return stepFire(e, p, state.(*fireState), targets)
	case model.EffectLightning:
		return stepLightning(e, p, state.(*lightningState), targets)
	case model.EffectScanner:
		return stepScanner(e, p, state.(*scannerState), targets)
	case model.EffectMatrix:
		return stepMatrix(e, p, state.(*matrixState), targets)
	case model.EffectTwinkle:
		return stepTwinkle(e, p, state.(*twinkleState), targets)
	case model.EffectCustom:
		return stepCustom(e, p, state.(*customState), targets, now)
	default:
		return state, tickInterval
	}
}

func setAllChannels(e *Engine, deviceID string, value int) {
	e.writeDevice(deviceID, func(values []int, dev *model.Device) {
		for i := range values {
			values[i] = value
		}
	})
}

// ---- strobe ----------------------------------------------------

type strobeState struct{ on bool }

func stepStrobe(e *Engine, p map[string]any, s *strobeState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 0.1)
	s.on = !s.on
	value := 0
	if s.on {
		value = 255
	}
	for _, id := range targets {
		setAllChannels(e, id, value)
	}
	return s, secs(speed)
}

// ---- rainbow -----------------------------------------------------

type rainbowState struct{ hue float64 }

func stepRainbow(e *Engine, p map[string]any, s *rainbowState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 0.05)
	s.hue = math.Mod(s.hue+1, 360)
	r, g, b := colorful.Hsv(s.hue, 1, 1).RGB255()

	for _, id := range targets {
		e.writeDevice(id, func(values []int, dev *model.Device) {
			if !isRGBLike(dev) {
				return
			}
			setChannel(values, 0, int(r))
			setChannel(values, 1, int(g))
			setChannel(values, 2, int(b))
		})
	}
	return s, secs(speed)
}

func setChannel(values []int, idx, v int) {
	if idx >= 0 && idx < len(values) {
		values[idx] = model.ClampChannel(v)
	}
}

// ---- chase -------------------------------------------------------

type chaseState struct{ idx int }

func stepChase(e *Engine, p map[string]any, s *chaseState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 0.2)
	if len(targets) == 0 {
		return s, secs(speed)
	}
	lit := s.idx % len(targets)
	for i, id := range targets {
		value := 0
		if i == lit {
			value = 255
		}
		setAllChannels(e, id, value)
	}
	s.idx++
	return s, secs(speed)
}

// ---- pulse ---------------------------------------------------------

type pulseState struct {
	value float64
	dir   int
}

func stepPulse(e *Engine, p map[string]any, s *pulseState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 0.02)
	s.value += float64(s.dir) * 5
	if s.value >= 255 {
		s.value = 255
		s.dir = -1
	} else if s.value <= 0 {
		s.value = 0
		s.dir = 1
	}
	v := clampByte(s.value)
	for _, id := range targets {
		setAllChannels(e, id, v)
	}
	return s, secs(speed)
}

// ---- color_fade -----------------------------------------------------

const colorFadeSubSteps = 50

type colorFadeState struct {
	segment int
	sub     int
}

var defaultColorFadeColors = [][3]int{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}}

func stepColorFade(e *Engine, p map[string]any, s *colorFadeState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 2.0)
	colors := paramColors(p, "colors", defaultColorFadeColors)
	if len(colors) < 2 {
		colors = defaultColorFadeColors
	}

	cur := colors[s.segment%len(colors)]
	next := colors[(s.segment+1)%len(colors)]
	f := float64(s.sub) / float64(colorFadeSubSteps)

	for _, id := range targets {
		e.writeDevice(id, func(values []int, dev *model.Device) {
			if !isRGBLike(dev) {
				return
			}
			for c := 0; c < 3; c++ {
				lerped := float64(cur[c]) + (float64(next[c])-float64(cur[c]))*f
				setChannel(values, c, int(lerped))
			}
		})
	}

	s.sub++
	if s.sub >= colorFadeSubSteps {
		s.sub = 0
		s.segment = (s.segment + 1) % len(colors)
	}
	return s, secs(speed / colorFadeSubSteps)
}

// ---- sound_reactive -------------------------------------------------

type soundReactiveState struct {
	lastTrigger time.Time
	pulseUntil  time.Time
}

const soundReactiveTick = 20 * time.Millisecond

func stepSoundReactive(e *Engine, p map[string]any, s *soundReactiveState, targets []string, now time.Time) (any, time.Duration) {
	mode := paramString(p, "mode", "intensity")
	band := paramString(p, "frequency_band", "overall")
	sensitivity := paramFloat(p, "sensitivity", 1.0)
	raw := e.audio.Current().Band(band)

	switch mode {
	case "flash":
		if now.Before(s.pulseUntil) {
			for _, id := range targets {
				setAllChannels(e, id, 255)
			}
			return s, s.pulseUntil.Sub(now)
		}
		threshold := 0.7
		if sensitivity != 0 {
			threshold = 0.7 / sensitivity
		}
		if raw > threshold && now.Sub(s.lastTrigger) >= 100*time.Millisecond {
			s.lastTrigger = now
			s.pulseUntil = now.Add(50 * time.Millisecond)
			for _, id := range targets {
				setAllChannels(e, id, 255)
			}
			return s, 50 * time.Millisecond
		}
		for _, id := range targets {
			setAllChannels(e, id, 0)
		}
		return s, 20 * time.Millisecond

	case "color":
		level := clip01(raw * sensitivity)
		hue := level * 270
		r, g, b := colorful.Hsv(hue, 1, 1).RGB255()
		for _, id := range targets {
			e.writeDevice(id, func(values []int, dev *model.Device) {
				if !isRGBLike(dev) {
					return
				}
				setChannel(values, 0, int(r))
				setChannel(values, 1, int(g))
				setChannel(values, 2, int(b))
			})
		}
		return s, soundReactiveTick

	default: // "intensity"
		level := clip01(raw * sensitivity)
		v := clampByte(level * 255)
		for _, id := range targets {
			setAllChannels(e, id, v)
		}
		return s, soundReactiveTick
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ---- fire ------------------------------------------------------

type fireState struct{}

func stepFire(e *Engine, p map[string]any, s *fireState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 0.05)
	intensity := paramFloat(p, "intensity", 1.0)

	for _, id := range targets {
		flicker := 0.7 + rngFloat()*0.3
		red := clampByte(255 * intensity * flicker)
		green := clampByte(100 * intensity * (0.3 + rngFloat()*0.4) * flicker)

		e.writeDevice(id, func(values []int, dev *model.Device) {
			switch dev.DeviceType {
			case model.DeviceRGB, model.DeviceRGBW:
				setChannel(values, 0, red)
				setChannel(values, 1, green)
				setChannel(values, 2, 0)
			case model.DeviceDimmer:
				setChannel(values, 0, red)
			}
		})
	}
	return s, secs(speed)
}

// ---- lightning --------------------------------------------------

type lightningState struct {
	mode      string // "on", "on_wait", "quiet"
	remaining int
}

func stepLightning(e *Engine, p map[string]any, s *lightningState, targets []string) (any, time.Duration) {
	minDelay := paramFloat(p, "min_delay", 0.5)
	maxDelay := paramFloat(p, "max_delay", 3.0)

	switch s.mode {
	case "on":
		for _, id := range targets {
			setAllChannels(e, id, 0)
		}
		s.remaining--
		if s.remaining > 0 {
			s.mode = "on_wait"
			return s, randBetween(50, 150) * time.Millisecond
		}
		s.mode = "quiet"
		return s, secs(randRange(minDelay, maxDelay))
	case "on_wait":
		for _, id := range targets {
			setAllChannels(e, id, 255)
		}
		s.mode = "on"
		return s, randBetween(30, 80) * time.Millisecond
	default: // "quiet" or unset: start a new burst
		s.remaining = 1 + rngIntn(3) // N in {1,2,3}
		s.mode = "on"
		for _, id := range targets {
			setAllChannels(e, id, 255)
		}
		return s, randBetween(30, 80) * time.Millisecond
	}
}

// ---- scanner -----------------------------------------------------

type scannerState struct {
	pos float64
	dir int
}

func stepScanner(e *Engine, p map[string]any, s *scannerState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 0.1)
	rng := paramFloat(p, "range", 180)

	step := rng / 20
	s.pos += float64(s.dir) * step
	if s.pos >= rng {
		s.pos = rng
		s.dir = -1
	} else if s.pos <= 0 {
		s.pos = 0
		s.dir = 1
	}

	pan := 0
	if rng > 0 {
		pan = clampByte(s.pos / rng * 255)
	}
	for _, id := range targets {
		e.writeDevice(id, func(values []int, dev *model.Device) {
			setChannel(values, 0, pan)
			setChannel(values, 5, 255)
		})
	}
	return s, secs(speed)
}

// ---- matrix -------------------------------------------------------

type matrixState struct{ frame int }

func stepMatrix(e *Engine, p map[string]any, s *matrixState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 0.2)
	pattern := paramString(p, "pattern", "wave")

	cols := int(math.Sqrt(float64(len(targets))))
	if cols < 1 {
		cols = 1
	}
	rows := (len(targets) + cols - 1) / cols

	for i, id := range targets {
		x := i % cols
		y := i / cols
		value := matrixIntensity(pattern, x, y, cols, rows, s.frame)
		setAllChannels(e, id, value)
	}
	s.frame++
	return s, secs(speed)
}

func matrixIntensity(pattern string, x, y, cols, rows, frame int) int {
	switch pattern {
	case "circle":
		centerX := float64(cols) / 2
		centerY := float64(rows) / 2
		dist := math.Hypot(float64(x)-centerX, float64(y)-centerY)
		return clampByte((math.Sin(float64(frame)*0.2-dist*0.5) + 1) / 2 * 255)
	case "checker":
		if (x+y+frame/5)%2 == 0 {
			return 255
		}
		return 0
	default: // "wave", horizontal
		return clampByte((math.Sin(float64(frame)*0.1+float64(x)*0.5) + 1) / 2 * 255)
	}
}

// ---- twinkle -------------------------------------------------------

type twinkleState struct{}

func stepTwinkle(e *Engine, p map[string]any, s *twinkleState, targets []string) (any, time.Duration) {
	speed := paramFloat(p, "speed", 0.1)
	density := paramFloat(p, "density", 0.3)

	for _, id := range targets {
		var v int
		if rngFloat() < density {
			v = int(200 + rngFloat()*55)
		} else {
			v = int(rngFloat() * 50)
		}
		setAllChannels(e, id, v)
	}
	return s, secs(speed)
}
