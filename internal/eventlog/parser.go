// Package eventlog decodes newline-delimited recordings of a token stream.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// ErrNoEvents is returned by loaders when content holds no valid events.
// Parse itself never fails; callers refuse to start a session on this error.
var ErrNoEvents = errors.New("eventlog: no valid events")

// ParseLine decodes one JSONL record. Blank and invalid lines return false;
// invalid lines are logged.
func ParseLine(line string) (model.StreamEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.StreamEvent{}, false
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil || raw == nil {
		log.Printf("eventlog: failed to parse event line %q: %v", line, err)
		return model.StreamEvent{}, false
	}

	kind, _ := raw["event"].(string)
	if kind == "" {
		log.Printf("eventlog: invalid event: missing or non-string \"event\" field: %s", line)
		return model.StreamEvent{}, false
	}

	switch model.EventKind(kind) {
	case model.EventToken:
		delta, ok := stringField(raw["data"], "delta")
		if !ok {
			log.Printf("eventlog: invalid token event: missing or invalid delta: %s", line)
			return model.StreamEvent{}, false
		}
		return model.Token(delta), true

	case model.EventDone:
		return model.Done(), true

	case model.EventError:
		message, ok := stringField(raw["data"], "message")
		if !ok {
			log.Printf("eventlog: invalid error event: missing or invalid message: %s", line)
			return model.StreamEvent{}, false
		}
		return model.Error(message), true
	}

	log.Printf("eventlog: unknown event type: %s", kind)
	return model.StreamEvent{}, false
}

func stringField(data interface{}, key string) (string, bool) {
	obj, ok := data.(map[string]interface{})
	if !ok {
		return "", false
	}
	s, ok := obj[key].(string)
	return s, ok
}

// Parse decodes every line of content in order, dropping invalid records.
// The result is empty when nothing is valid.
func Parse(content string) []model.StreamEvent {
	events := make([]model.StreamEvent, 0)
	for _, line := range strings.Split(content, "\n") {
		if ev, ok := ParseLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Read decodes a JSONL stream. maxLineSize <= 0 selects model.DefaultMaxLineSize.
// A line longer than maxLineSize aborts the read.
func Read(r io.Reader, maxLineSize int) ([]model.StreamEvent, error) {
	if maxLineSize <= 0 {
		maxLineSize = model.DefaultMaxLineSize
	}

	initial := min(64*1024, maxLineSize)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLineSize)

	events := make([]model.StreamEvent, 0)
	for scanner.Scan() {
		if ev, ok := ParseLine(scanner.Text()); ok {
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("eventlog: line exceeded max size (%d bytes): %w", maxLineSize, err)
		}
		return nil, fmt.Errorf("eventlog: read: %w", err)
	}
	return events, nil
}

// Load reads a recording from path ("-" reads stdin) and returns ErrNoEvents
// when it contains no valid events.
func Load(path string, maxLineSize int) ([]model.StreamEvent, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("eventlog: open: %w", err)
		}
		defer f.Close()
		r = f
	}

	events, err := Read(r, maxLineSize)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	return events, nil
}
