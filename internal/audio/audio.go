// Package audio implements the Audio Feature Store: a single
// process-wide latest AudioFrame, pushed by clients and read by
// sound-reactive effects. There is no smoothing or decay — readers always
// see the raw last-pushed sample. This is intentional for latency.
package audio

import (
	"sync"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

// Store holds the single latest AudioFrame.
type Store struct {
	mu    sync.RWMutex
	frame model.AudioFrame
}

// New creates an empty Store (all bands at zero).
func New() *Store {
	return &Store{}
}

// Update replaces the current frame, clamping each band to [0,1].
func (s *Store) Update(frame model.AudioFrame) {
	frame.Bass = clamp01(frame.Bass)
	frame.Mid = clamp01(frame.Mid)
	frame.High = clamp01(frame.High)
	frame.Overall = clamp01(frame.Overall)
	if frame.Peak < 0 {
		frame.Peak = 0
	}

	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
}

// Current returns the latest frame. Readers accept staleness up to one
// client push interval; this is the intended behavior, not a bug.
func (s *Store) Current() model.AudioFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
