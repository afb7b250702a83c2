package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventKind discriminates the StreamEvent union.
type EventKind string

const (
	EventToken EventKind = "token"
	EventDone  EventKind = "done"
	EventError EventKind = "error"
)

// StreamEvent is one replayed step of a recorded generation stream.
// Only token events carry text; done and error are terminal markers.
type StreamEvent struct {
	Kind    EventKind
	Delta   string // token only
	Message string // error only
}

// Token builds a token event.
func Token(delta string) StreamEvent { return StreamEvent{Kind: EventToken, Delta: delta} }

// Done builds a done event.
func Done() StreamEvent { return StreamEvent{Kind: EventDone} }

// Error builds an error event.
func Error(message string) StreamEvent { return StreamEvent{Kind: EventError, Message: message} }

// Terminal reports whether the event ends playback.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// PlaybackState is the replay scheduler's state.
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateStreaming
	StateDone
	StateError
)

func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name so JSON and YAML output stay readable.
func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState is the inverse of PlaybackState.String.
func ParseState(name string) (PlaybackState, error) {
	switch name {
	case "idle":
		return StateIdle, nil
	case "streaming":
		return StateStreaming, nil
	case "done":
		return StateDone, nil
	case "error":
		return StateError, nil
	}
	return StateIdle, fmt.Errorf("unknown playback state %q", name)
}

// Terminal reports whether the state is Done or Error.
func (s PlaybackState) Terminal() bool {
	return s == StateDone || s == StateError
}

// PlaybackSpeed is a multiplier applied to the inter-event delay.
type PlaybackSpeed float64

// Speeds lists the supported multipliers in ascending order.
var Speeds = []PlaybackSpeed{0.5, 1, 1.5, 2}

// Valid reports whether s is one of Speeds.
func (s PlaybackSpeed) Valid() bool {
	for _, v := range Speeds {
		if v == s {
			return true
		}
	}
	return false
}

func (s PlaybackSpeed) String() string {
	return strconv.FormatFloat(float64(s), 'f', -1, 64) + "x"
}

// Scale divides d by the speed multiplier.
func (s PlaybackSpeed) Scale(d time.Duration) time.Duration {
	if s <= 0 {
		return d
	}
	return time.Duration(float64(d) / float64(s))
}

// Next returns the next faster supported speed, or s when already fastest.
func (s PlaybackSpeed) Next() PlaybackSpeed {
	for _, v := range Speeds {
		if v > s {
			return v
		}
	}
	return s
}

// Prev returns the next slower supported speed, or s when already slowest.
func (s PlaybackSpeed) Prev() PlaybackSpeed {
	for i := len(Speeds) - 1; i >= 0; i-- {
		if Speeds[i] < s {
			return Speeds[i]
		}
	}
	return s
}

// ParseSpeed accepts "1.5", "1.5x" or "2X".
func ParseSpeed(raw string) (PlaybackSpeed, error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(raw), "x"), "X")
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid speed %q: %w", raw, err)
	}
	s := PlaybackSpeed(f)
	if !s.Valid() {
		return 0, fmt.Errorf("unsupported speed %q", raw)
	}
	return s, nil
}

// Spec is an extracted chart specification (a JSON object). Nil means absent.
type Spec map[string]any

// Dataset is an extracted tabular dataset: a JSON array whose first element
// is a non-empty object. Later rows are kept as decoded.
type Dataset []any

// RunSummary describes one finished playback run.
type RunSummary struct {
	ID        uint64        `json:"id"`
	Source    string        `json:"source"`
	Events    int           `json:"events"`
	Tokens    int           `json:"tokens"`
	Status    PlaybackState `json:"status"`
	Message   string        `json:"message,omitempty"` // last error message, empty unless Status is StateError
	SpecJSON  string        `json:"spec_json"`         // canonical JSON of the final spec, "null" when absent
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}
