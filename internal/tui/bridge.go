package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/chartstream/internal/model"
	"github.com/tinytelemetry/chartstream/internal/session"
)

// TextMsg carries the accumulated output text.
type TextMsg struct{ Text string }

// SpecMsg carries a newly extracted chart spec, nil when it was cleared.
type SpecMsg struct{ Spec model.Spec }

// StatusMsg carries a playback state transition.
type StatusMsg struct {
	State   model.PlaybackState
	Message string
}

// Bridge forwards session callbacks into a running Bubble Tea program.
// Callbacks that arrive before Attach are dropped.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// Attach routes subsequent callbacks to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.send = p.Send
	b.mu.Unlock()
}

// Observer returns a session.Observer that emits TextMsg, SpecMsg and
// StatusMsg.
func (b *Bridge) Observer() session.Observer {
	return session.Observer{
		OnText:   func(text string) { b.emit(TextMsg{Text: text}) },
		OnSpec:   func(spec model.Spec) { b.emit(SpecMsg{Spec: spec}) },
		OnStatus: func(state model.PlaybackState, message string) { b.emit(StatusMsg{State: state, Message: message}) },
	}
}

func (b *Bridge) emit(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}
