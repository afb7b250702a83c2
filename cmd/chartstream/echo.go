package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// echoWriter mirrors the session's accumulated text to w as it grows.
// The session reports the whole buffer on every token, so only the unseen
// suffix is written; a shorter buffer means playback restarted.
type echoWriter struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
}

func newEchoWriter(w io.Writer) *echoWriter {
	return &echoWriter{w: w}
}

func (e *echoWriter) OnText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(text) < e.printed {
		if e.printed > 0 {
			fmt.Fprintln(e.w)
		}
		e.printed = 0
	}
	if len(text) > e.printed {
		io.WriteString(e.w, text[e.printed:])
		e.printed = len(text)
	}
}

func (e *echoWriter) OnStatus(state model.PlaybackState, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch state {
	case model.StateDone:
		fmt.Fprintln(e.w)
	case model.StateError:
		fmt.Fprintf(e.w, "\n[error] %s\n", message)
	}
}
