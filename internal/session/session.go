// Package session drives one replay: it owns the scheduler, the accumulated
// output text and the extraction cache, and fans results out to an Observer.
package session

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/chartstream/internal/eventlog"
	"github.com/tinytelemetry/chartstream/internal/extract"
	"github.com/tinytelemetry/chartstream/internal/model"
	"github.com/tinytelemetry/chartstream/internal/player"
)

// ErrBusy is returned by Load while a replay is streaming.
var ErrBusy = errors.New("session: cannot load while streaming")

// Observer receives session output. Any field may be nil. Callbacks are
// invoked without session locks held.
type Observer struct {
	OnText   func(text string)
	OnSpec   func(spec model.Spec)
	OnStatus func(state model.PlaybackState, message string)
}

// Config holds tunable parameters for a Session.
type Config struct {
	Player   player.Config
	Recorder model.RunRecorder // optional; receives a summary when a run ends
}

// Status is a point-in-time view of the session.
type Status struct {
	Source    string
	State     model.PlaybackState
	Speed     model.PlaybackSpeed
	Cursor    int
	Events    int
	Tokens    int
	TextLen   int
	LastError string
	HasSpec   bool
}

// Session is the consumer side of a replay.
type Session struct {
	scheduler *player.Scheduler
	cache     *extract.Cache
	observer  Observer
	recorder  model.RunRecorder

	mu        sync.Mutex
	buf       strings.Builder
	source    string
	events    int
	tokens    int
	lastError string
	startedAt time.Time
}

// New creates a Session with its own scheduler and extraction cache.
func New(observer Observer, conf ...Config) *Session {
	cfg := Config{}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	s := &Session{
		observer: observer,
		recorder: cfg.Recorder,
	}
	s.cache = extract.NewCache(s.onSpec)
	s.scheduler = player.New(player.Handler{
		OnToken: s.onToken,
		OnDone:  s.onDone,
		OnError: s.onError,
	}, cfg.Player)
	return s
}

// Load installs a new event sequence. An empty sequence is refused with
// eventlog.ErrNoEvents and leaves the current session untouched.
func (s *Session) Load(source string, events []model.StreamEvent) error {
	if len(events) == 0 {
		return eventlog.ErrNoEvents
	}

	s.mu.Lock()
	if s.scheduler.State() == model.StateStreaming {
		s.mu.Unlock()
		return ErrBusy
	}
	s.scheduler.Load(events)
	s.source = source
	s.events = len(events)
	s.lastError = ""
	s.resetLocked()
	s.mu.Unlock()

	s.notifyText("")
	s.notifySpec(nil)
	s.notifyStatus()
	return nil
}

// LoadContent parses JSONL content and loads it.
func (s *Session) LoadContent(source, content string) error {
	return s.Load(source, eventlog.Parse(content))
}

// LoadFile reads a JSONL recording from path ("-" for stdin) and loads it.
func (s *Session) LoadFile(path string, maxLineSize int) error {
	events, err := eventlog.Load(path, maxLineSize)
	if err != nil {
		return err
	}
	return s.Load(path, events)
}

// Play starts, resumes or restarts playback. Restarting from Done or Error
// clears the accumulated text first.
func (s *Session) Play() error {
	snap := s.scheduler.Snapshot()
	if snap.State == model.StateStreaming {
		return nil
	}

	fresh := snap.State.Terminal() || snap.Cursor == 0
	s.mu.Lock()
	s.lastError = ""
	if fresh {
		s.resetLocked()
		s.startedAt = time.Now()
	}
	s.mu.Unlock()

	if fresh {
		s.notifyText("")
		s.notifySpec(nil)
	}

	if err := s.scheduler.Play(); err != nil {
		return err
	}
	s.notifyStatus()
	return nil
}

// Pause halts playback, keeping the position and text.
func (s *Session) Pause() {
	s.scheduler.Pause()
	s.notifyStatus()
}

// Stop halts playback, rewinds and clears the text and extracted spec.
func (s *Session) Stop() {
	s.mu.Lock()
	s.scheduler.Stop()
	s.resetLocked()
	s.mu.Unlock()

	s.notifyText("")
	s.notifySpec(nil)
	s.notifyStatus()
}

// SetSpeed changes the playback multiplier for subsequent steps.
func (s *Session) SetSpeed(speed model.PlaybackSpeed) error {
	return s.scheduler.SetSpeed(speed)
}

// Close tears the session down. No callback fires after Close returns
// except one that was already being delivered.
func (s *Session) Close() {
	s.scheduler.Close()
}

// Text returns the accumulated output.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Spec returns the current extracted chart spec, or nil.
func (s *Session) Spec() model.Spec {
	return s.cache.Current()
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	snap := s.scheduler.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Source:    s.source,
		State:     snap.State,
		Speed:     snap.Speed,
		Cursor:    snap.Cursor,
		Events:    snap.Total,
		Tokens:    s.tokens,
		TextLen:   s.buf.Len(),
		LastError: s.lastError,
		HasSpec:   s.cache.Current() != nil,
	}
}

// resetLocked clears the buffer and the cache together, so a token that read
// the old cache generation cannot store its spec afterwards.
func (s *Session) resetLocked() {
	s.buf.Reset()
	s.tokens = 0
	s.cache.Reset()
}

func (s *Session) onToken(delta string) {
	s.mu.Lock()
	// A Stop that won the race has already cleared the buffer.
	if s.scheduler.State() != model.StateStreaming {
		s.mu.Unlock()
		return
	}
	s.buf.WriteString(delta)
	s.tokens++
	text := s.buf.String()
	gen := s.cache.Generation()
	s.mu.Unlock()

	s.notifyText(text)
	s.cache.UpdateAt(gen, text)

	// A Stop, Load or restart ran meanwhile, possibly from inside OnText.
	// Its cleared output may have been announced before ours, so announce
	// the current state again.
	if s.cache.Generation() != gen {
		s.notifyText(s.Text())
		s.notifySpec(s.cache.Current())
	}
}

func (s *Session) onDone() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
	s.notifyStatus()
	s.recordRun(model.StateDone, "")
}

func (s *Session) onError(message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
	s.notifyStatus()
	s.recordRun(model.StateError, message)
}

func (s *Session) onSpec(spec model.Spec) {
	s.notifySpec(spec)
}

func (s *Session) recordRun(state model.PlaybackState, message string) {
	if s.recorder == nil {
		return
	}

	s.mu.Lock()
	if s.events == 0 {
		s.mu.Unlock()
		return
	}
	run := model.RunSummary{
		Source:    s.source,
		Events:    s.events,
		Tokens:    s.tokens,
		Status:    state,
		Message:   message,
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
	}
	s.mu.Unlock()

	specJSON, err := extract.Canonical(s.cache.Current())
	if err != nil {
		specJSON = "null"
	}
	run.SpecJSON = specJSON

	if _, err := s.recorder.RecordRun(run); err != nil {
		log.Printf("session: failed to record run for %q: %v", run.Source, err)
	}
}

func (s *Session) notifyText(text string) {
	if s.observer.OnText != nil {
		s.observer.OnText(text)
	}
}

func (s *Session) notifySpec(spec model.Spec) {
	if s.observer.OnSpec != nil {
		s.observer.OnSpec(spec)
	}
}

func (s *Session) notifyStatus() {
	if s.observer.OnStatus == nil {
		return
	}
	st := s.scheduler.State()
	s.mu.Lock()
	message := s.lastError
	s.mu.Unlock()
	s.observer.OnStatus(st, message)
}
