// Package player replays a recorded token stream at a wall-clock pace.
package player

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tinytelemetry/chartstream/internal/model"
)

var (
	// ErrNoEvents is returned by Play when no sequence is loaded. Its text is
	// also the message handed to Handler.OnError.
	ErrNoEvents = errors.New("no events to play")

	// ErrClosed is returned by Play after Close.
	ErrClosed = errors.New("player: scheduler closed")

	// ErrInvalidSpeed is returned by SetSpeed for unsupported multipliers.
	ErrInvalidSpeed = errors.New("player: unsupported speed")
)

// Handler receives playback output. Callbacks run on the scheduler's step
// goroutine, one at a time and in event order, without the scheduler lock
// held; they may call back into the Scheduler.
type Handler struct {
	OnToken func(delta string)
	OnDone  func()
	OnError func(message string)
}

// Config holds tunable parameters for a Scheduler.
type Config struct {
	Clock Clock     // defaults to RealClock
	Delay DelayFunc // defaults to DefaultDelay()
	Speed model.PlaybackSpeed
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	State   model.PlaybackState
	Speed   model.PlaybackSpeed
	Cursor  int
	Total   int
	Pending int
}

// Scheduler walks a loaded event sequence, delivering one event per step.
//
// Every scheduled step is tracked by id and tagged with the generation it was
// scheduled in. Pause, Stop, Load and Close stop all tracked timers and bump
// the generation before returning, so a step that is already racing to run
// finds a stale generation and does nothing.
type Scheduler struct {
	mu      sync.Mutex
	events  []model.StreamEvent
	state   model.PlaybackState
	speed   model.PlaybackSpeed
	cursor  int
	gen     uint64
	nextID  uint64
	timers  map[uint64]Timer
	closed  bool
	clock   Clock
	delay   DelayFunc
	handler Handler

	// deliverMu serializes step execution so callbacks never overlap.
	deliverMu sync.Mutex
}

// New creates an idle Scheduler with no events loaded.
func New(handler Handler, conf ...Config) *Scheduler {
	cfg := Config{}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Delay == nil {
		cfg.Delay = DefaultDelay()
	}
	if !cfg.Speed.Valid() {
		cfg.Speed = model.DefaultSpeed
	}
	return &Scheduler{
		state:   model.StateIdle,
		speed:   cfg.Speed,
		timers:  make(map[uint64]Timer),
		clock:   cfg.Clock,
		delay:   cfg.Delay,
		handler: handler,
	}
}

// Load replaces the event sequence and returns the scheduler to Idle at the
// first event. Any playback in progress is cancelled.
func (s *Scheduler) Load(events []model.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.events = append([]model.StreamEvent(nil), events...)
	s.cursor = 0
	s.state = model.StateIdle
}

// Play starts or resumes playback. It is a no-op while streaming. From Idle
// it continues at the cursor (0 after Load or Stop, the paused position after
// Pause); a cursor already past the last event schedules the step that ends
// playback. From Done or Error it restarts at the first event.
func (s *Scheduler) Play() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == model.StateStreaming {
		s.mu.Unlock()
		return nil
	}
	if len(s.events) == 0 {
		s.cancelLocked()
		s.state = model.StateError
		onError := s.handler.OnError
		s.mu.Unlock()
		if onError != nil {
			onError(ErrNoEvents.Error())
		}
		return ErrNoEvents
	}

	if s.state.Terminal() {
		s.cursor = 0
	}
	s.cancelLocked()
	s.state = model.StateStreaming
	s.scheduleLocked(0)
	s.mu.Unlock()
	return nil
}

// Pause cancels pending steps and returns to Idle, keeping the cursor.
// It only has an effect while streaming.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.StateStreaming {
		return
	}
	s.cancelLocked()
	s.state = model.StateIdle
}

// Stop cancels pending steps, rewinds to the first event and returns to Idle
// from any state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.cursor = 0
	s.state = model.StateIdle
}

// Close stops playback for good. Later Play calls return ErrClosed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.cursor = 0
	s.state = model.StateIdle
	s.closed = true
}

// SetSpeed changes the delay multiplier. Steps already scheduled keep their
// delay; the new speed applies from the next scheduled step.
func (s *Scheduler) SetSpeed(speed model.PlaybackSpeed) error {
	if !speed.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, float64(speed))
	}
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
	return nil
}

// State returns the current playback state.
func (s *Scheduler) State() model.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Speed returns the current delay multiplier.
func (s *Scheduler) Speed() model.PlaybackSpeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Pending returns the number of scheduled steps that have neither fired nor
// been cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Snapshot returns the current state, speed, position and pending count.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:   s.state,
		Speed:   s.speed,
		Cursor:  s.cursor,
		Total:   len(s.events),
		Pending: len(s.timers),
	}
}

// cancelLocked revokes every tracked timer and invalidates steps that are
// already running.
func (s *Scheduler) cancelLocked() {
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.gen++
}

func (s *Scheduler) scheduleLocked(d time.Duration) {
	id := s.nextID
	s.nextID++
	gen := s.gen
	s.timers[id] = s.clock.AfterFunc(d, func() { s.step(gen, id) })
}

func (s *Scheduler) step(gen, id uint64) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	delete(s.timers, id)
	if gen != s.gen || s.state != model.StateStreaming {
		s.mu.Unlock()
		return
	}
	h := s.handler

	if s.cursor >= len(s.events) {
		s.state = model.StateDone
		s.mu.Unlock()
		if h.OnDone != nil {
			h.OnDone()
		}
		return
	}

	ev := s.events[s.cursor]
	s.cursor++

	switch ev.Kind {
	case model.EventError:
		s.state = model.StateError
		s.mu.Unlock()
		if h.OnError != nil {
			h.OnError(ev.Message)
		}
		return

	case model.EventDone:
		s.state = model.StateDone
		s.mu.Unlock()
		if h.OnDone != nil {
			h.OnDone()
		}
		return
	}

	s.mu.Unlock()
	if ev.Kind == model.EventToken && h.OnToken != nil {
		h.OnToken(ev.Delta)
	}

	// The successor is scheduled only after the callback returns, and only if
	// the callback did not pause, stop or restart playback.
	s.mu.Lock()
	if gen == s.gen && s.state == model.StateStreaming {
		s.scheduleLocked(s.speed.Scale(s.delay()))
	}
	s.mu.Unlock()
}
