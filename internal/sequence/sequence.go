// Package sequence implements the Sequence Player: a state machine
// stepping through scene/effect/wait steps with per-step duration and an
// optional loop. Each running sequence is one cancellable goroutine; a
// timer per step blocks until it fires or the sequence is stopped, which
// matches the sequential "sleep between steps regardless of type"
// contract better than a chain of independently-scheduled timers would.
package sequence

import (
	"time"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

// Store is the subset of the Mutation Coordinator the player reads from.
type Store interface {
	Scene(id string) (*model.Scene, bool)
	Effect(id string) (*model.Effect, bool)
}

// Fader is the subset of the Scene Fader the player drives. Activate is
// fire-and-forget: the player does not wait for the fade to finish.
type Fader interface {
	Activate(scene *model.Scene) bool
}

// Supervisor is the subset of the Task Supervisor the player uses to start
// and stop the ephemeral effect a "effect" step spawns for its duration.
type Supervisor interface {
	StartEffect(id string, effect *model.Effect)
	StopEffect(id string)
}

// Player turns a Sequence definition into a runnable step function suitable
// for Supervisor.StartSequence.
type Player struct {
	store      Store
	fader      Fader
	supervisor Supervisor
}

// New creates a Player.
func New(store Store, fader Fader, supervisor Supervisor) *Player {
	return &Player{store: store, fader: fader, supervisor: supervisor}
}

// Run returns the step function that executes seq's steps in order,
// looping if seq.Loop, until stop closes. Intended to be launched via
// Supervisor.StartSequence(seq.ID, player.Run(seq)).
func (p *Player) Run(seq *model.Sequence) func(stop <-chan struct{}) {
	return func(stop <-chan struct{}) {
		var ephemeralID string
		defer func() {
			if ephemeralID != "" {
				p.supervisor.StopEffect(ephemeralID)
			}
		}()

		for {
			for _, st := range seq.Steps {
				select {
				case <-stop:
					return
				default:
				}

				switch st.Type {
				case model.StepScene:
					if scene, ok := p.store.Scene(st.TargetID); ok {
						p.fader.Activate(scene)
					}
				case model.StepEffect:
					if effect, ok := p.store.Effect(st.TargetID); ok {
						ephemeralID = effect.ID + "_seq"
						p.supervisor.StartEffect(ephemeralID, effect)
					}
				case model.StepWait:
					// nothing to start; the inter-step sleep below is the wait.
				}

				if !sleep(stop, time.Duration(st.DurationMs)*time.Millisecond) {
					return
				}

				if st.Type == model.StepEffect && ephemeralID != "" {
					p.supervisor.StopEffect(ephemeralID)
					ephemeralID = ""
				}
			}
			if !seq.Loop {
				return
			}
		}
	}
}

// sleep blocks for d or until stop closes, whichever comes first. Reports
// whether it returned because d elapsed (true) rather than a cancellation
// (false). A non-positive d returns immediately as if it had elapsed.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
