// Package supervisor implements the Task Supervisor: per-class
// concurrency caps, oldest-insertion eviction, wall-clock timeouts, and
// leak-free deregistration for running effects and sequences. One task
// abstraction is shared by both classes instead of duplicating the
// map/timer bookkeeping per concern.
package supervisor

import (
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

// Class names the two task populations the supervisor bounds independently.
type Class string

const (
	ClassEffect   Class = "effect"
	ClassSequence Class = "sequence"
)

const (
	effectTimeout   = time.Hour
	sequenceTimeout = 2 * time.Hour
	replaceWait     = 100 * time.Millisecond
)

// Engine is the subset of the Effect Engine the supervisor drives directly
// for effect-class tasks: register at start, unregister at stop/timeout.
type Engine interface {
	Register(runID string, effect *model.Effect)
	Unregister(runID string)
}

type task struct {
	id      string
	cancel  func()
	done    chan struct{}
	started time.Time
}

// Supervisor owns the effect_id->task and sequence_id->task maps.
type Supervisor struct {
	engine Engine

	mu    sync.Mutex
	tasks map[Class]map[string]*task
	order map[Class][]string
}

// New creates a Supervisor. engine must be non-nil; it is only exercised by
// StartEffect/StopEffect.
func New(engine Engine) *Supervisor {
	return &Supervisor{
		engine: engine,
		tasks: map[Class]map[string]*task{
			ClassEffect:   {},
			ClassSequence: {},
		},
		order: map[Class][]string{
			ClassEffect:   {},
			ClassSequence: {},
		},
	}
}

func classCap(class Class) int {
	if class == ClassSequence {
		return model.MaxActiveSequences
	}
	return model.MaxActiveEffects
}

func classTimeout(class Class) time.Duration {
	if class == ClassSequence {
		return sequenceTimeout
	}
	return effectTimeout
}

// start registers id under class, replacing any existing task with the same
// id (cancel + wait ~100ms for its goroutine to exit), evicting the oldest
// entry if the class is at its cap, then runs work in its own goroutine
// bound by the class's wall-clock timeout. work must return once its stop
// channel closes.
func (s *Supervisor) start(class Class, id string, work func(stop <-chan struct{})) {
	s.mu.Lock()
	if old, ok := s.tasks[class][id]; ok {
		old.cancel()
		s.removeLocked(class, id)
		s.mu.Unlock()
		select {
		case <-old.done:
		case <-time.After(replaceWait):
		}
		s.mu.Lock()
	}

	for len(s.tasks[class]) >= classCap(class) {
		oldestID := s.order[class][0]
		oldest := s.tasks[class][oldestID]
		s.removeLocked(class, oldestID)
		oldest.cancel()
		log.Printf("🧹 %s cap reached, evicting oldest %q to make room for %q", class, oldestID, id)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	var once sync.Once
	t := &task{
		id:      id,
		cancel:  func() { once.Do(func() { close(stop) }) },
		done:    done,
		started: time.Now(),
	}
	s.tasks[class][id] = t
	s.order[class] = append(s.order[class], id)
	s.mu.Unlock()

	timeout := classTimeout(class)
	go func() {
		defer close(done)

		timer := time.AfterFunc(timeout, func() {
			log.Printf("⏱️  %s %q hit its %s wall-clock timeout", class, id, timeout)
			t.cancel()
		})
		defer timer.Stop()

		work(stop)

		s.deregister(class, id, t)
		log.Printf("🏁 %s %q finished", class, id)
	}()
}

func (s *Supervisor) removeLocked(class Class, id string) {
	delete(s.tasks[class], id)
	order := s.order[class]
	for i, existing := range order {
		if existing == id {
			s.order[class] = append(order[:i], order[i+1:]...)
			break
		}
	}
}

func (s *Supervisor) deregister(class Class, id string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Only remove the entry if it's still the one we started: a replace may
	// have already swapped it out from under a task that is only now
	// noticing its stop channel closed.
	if cur, ok := s.tasks[class][id]; ok && cur == t {
		cur.cancel()
		s.removeLocked(class, id)
	}
}

// stop cancels id's running task, if any, and waits briefly for it to exit.
func (s *Supervisor) stop(class Class, id string) {
	s.mu.Lock()
	t, ok := s.tasks[class][id]
	if ok {
		s.removeLocked(class, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
	select {
	case <-t.done:
	case <-time.After(replaceWait):
	}
}

// StartEffect registers effect under id with the Effect Engine and
// schedules its wall-clock timeout. Re-starting an id already running
// replaces it.
func (s *Supervisor) StartEffect(id string, effect *model.Effect) {
	s.start(ClassEffect, id, func(stop <-chan struct{}) {
		s.engine.Register(id, effect)
		<-stop
		s.engine.Unregister(id)
	})
}

// StopEffect cancels id's render task, if running.
func (s *Supervisor) StopEffect(id string) { s.stop(ClassEffect, id) }

// StartSequence runs work (the Sequence Player's step loop) under id, bound
// by the sequence class's cap and timeout.
func (s *Supervisor) StartSequence(id string, work func(stop <-chan struct{})) {
	s.start(ClassSequence, id, work)
}

// StopSequence cancels id's running sequence, if any.
func (s *Supervisor) StopSequence(id string) { s.stop(ClassSequence, id) }

// ActiveCount reports how many tasks of class are currently registered.
func (s *Supervisor) ActiveCount(class Class) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks[class])
}

// Running reports whether id is currently registered under class.
func (s *Supervisor) Running(class Class, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[class][id]
	return ok
}

// StopAll cancels every running task of both classes and waits briefly for
// them to exit. Used during graceful shutdown. Teardown is
// concurrent: each stop waits up to ~100ms for its task, and shutdown
// should not pay that serially across a full complement of 25 tasks.
func (s *Supervisor) StopAll() {
	var g errgroup.Group
	for _, class := range []Class{ClassEffect, ClassSequence} {
		s.mu.Lock()
		ids := append([]string(nil), s.order[class]...)
		s.mu.Unlock()
		for _, id := range ids {
			class, id := class, id
			g.Go(func() error {
				s.stop(class, id)
				return nil
			})
		}
	}
	_ = g.Wait()
}
