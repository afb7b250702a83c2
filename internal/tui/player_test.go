package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/chartstream/internal/model"
	"github.com/tinytelemetry/chartstream/internal/session"
)

type fakeController struct {
	mu      sync.Mutex
	calls   []string
	status  session.Status
	playErr error
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeController) Play() error {
	f.record("play")
	if f.playErr != nil {
		return f.playErr
	}
	f.mu.Lock()
	f.status.State = model.StateStreaming
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Pause() {
	f.record("pause")
	f.mu.Lock()
	f.status.State = model.StateIdle
	f.mu.Unlock()
}

func (f *fakeController) Stop() {
	f.record("stop")
	f.mu.Lock()
	f.status.State = model.StateIdle
	f.status.Cursor = 0
	f.mu.Unlock()
}

func (f *fakeController) SetSpeed(speed model.PlaybackSpeed) error {
	f.record("speed " + speed.String())
	f.mu.Lock()
	f.status.Speed = speed
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Status() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newFakeController() *fakeController {
	return &fakeController{status: session.Status{State: model.StateIdle, Speed: 1, Events: 3, Source: "demo.jsonl"}}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key to the page and feeds the resulting control result back.
func press(t *testing.T, p *PlayerPage, k string) {
	t.Helper()
	cmd, _ := p.Update(keyMsg(k))
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		p.Update(msg)
	}
}

func TestPlayerPage_PlayPauseToggle(t *testing.T) {
	t.Parallel()
	ctrl := newFakeController()
	p := NewPlayerPage(ctrl, false)

	press(t, p, " ")
	if p.status.State != model.StateStreaming {
		t.Fatalf("state after space = %v, want streaming", p.status.State)
	}
	press(t, p, " ")
	if p.status.State != model.StateIdle {
		t.Fatalf("state after second space = %v, want idle", p.status.State)
	}

	got := strings.Join(ctrl.Calls(), ",")
	if got != "play,pause" {
		t.Errorf("calls = %s, want play,pause", got)
	}
}

func TestPlayerPage_ControlKeys(t *testing.T) {
	t.Parallel()
	ctrl := newFakeController()
	p := NewPlayerPage(ctrl, false)

	press(t, p, "+")
	press(t, p, "+")
	press(t, p, "-")
	press(t, p, "s")
	press(t, p, "r")

	want := "speed 1.5x,speed 2x,speed 1.5x,stop,stop,play"
	if got := strings.Join(ctrl.Calls(), ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
}

func TestPlayerPage_PlayErrorShown(t *testing.T) {
	t.Parallel()
	ctrl := newFakeController()
	ctrl.playErr = errors.New("no events to play")
	p := NewPlayerPage(ctrl, false)
	p.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	press(t, p, " ")
	if p.message != "no events to play" {
		t.Fatalf("message = %q", p.message)
	}
	if view := p.View(120, 30); !strings.Contains(view, "no events to play") {
		t.Error("view should show the playback error")
	}
}

func TestPlayerPage_Autoplay(t *testing.T) {
	t.Parallel()
	ctrl := newFakeController()
	p := NewPlayerPage(ctrl, true)

	cmd := p.Init()
	if cmd == nil {
		t.Fatal("autoplay Init returned no command")
	}
	p.Update(cmd())
	if p.status.State != model.StateStreaming {
		t.Errorf("state = %v, want streaming", p.status.State)
	}
	if p.Init() != nil {
		t.Error("autoplay should only fire once")
	}
}

func TestPlayerPage_SessionMessages(t *testing.T) {
	t.Parallel()
	ctrl := newFakeController()
	p := NewPlayerPage(ctrl, false)
	p.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	p.Update(TextMsg{Text: "hello world"})
	p.Update(SpecMsg{Spec: model.Spec{"mark": "bar", "encoding": map[string]any{}}})
	p.Update(StatusMsg{State: model.StateError, Message: "rate limited"})

	if p.text != "hello world" {
		t.Errorf("text = %q", p.text)
	}
	if p.chart.Spec() == nil {
		t.Error("chart spec not set")
	}
	if p.message != "rate limited" || p.status.State != model.StateError {
		t.Errorf("status = %v message = %q", p.status.State, p.message)
	}

	view := p.View(120, 30)
	for _, want := range []string{"hello world", "rate limited", "ERROR", "bar"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	p.Update(StatusMsg{State: model.StateStreaming})
	if p.message != "" {
		t.Errorf("message should clear when streaming resumes, got %q", p.message)
	}
}

func TestPlayerPage_QuitAndNav(t *testing.T) {
	t.Parallel()
	p := NewPlayerPage(newFakeController(), false)

	cmd, _ := p.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not produce tea.QuitMsg")
	}

	_, nav := p.Update(keyMsg("tab"))
	if nav == nil || nav.PageID != HistoryPageID {
		t.Errorf("tab nav = %+v, want history", nav)
	}
}
