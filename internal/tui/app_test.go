package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/chartstream/internal/model"
)

type fakeRuns struct {
	runs []model.RunSummary
	err  error
}

func (f *fakeRuns) RecentRuns(limit int) ([]model.RunSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.runs[:min(limit, len(f.runs))], nil
}

func (f *fakeRuns) RunCount() (int64, error) { return int64(len(f.runs)), nil }

// runInit executes a page Init command and returns the messages it produces,
// minus spinner ticks.
func runInit(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		if c == nil {
			continue
		}
		if m := c(); m != nil {
			if _, tick := m.(SpinnerTickMsg); !tick {
				out = append(out, m)
			}
		}
	}
	return out
}

func TestApp_PageNavigation(t *testing.T) {
	t.Parallel()
	runs := &fakeRuns{runs: []model.RunSummary{
		{ID: 1, Source: "a.jsonl", Events: 3, Tokens: 2, Status: model.StateDone, EndedAt: time.Now()},
		{ID: 2, Source: "b.jsonl", Events: 4, Tokens: 1, Status: model.StateError, Message: "rate limited", EndedAt: time.Now()},
	}}
	player := NewPlayerPage(newFakeController(), false)
	history := NewHistoryPage(runs, 10)
	app := NewApp(player, history)

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	if player.width != 120 {
		t.Fatal("window size not delivered")
	}
	if app.ActivePage() != PlayerPageID {
		t.Fatalf("active page = %s, want player", app.ActivePage())
	}

	_, cmd := app.Update(keyMsg("tab"))
	if app.ActivePage() != HistoryPageID {
		t.Fatalf("active page = %s, want history", app.ActivePage())
	}
	for _, msg := range runInit(cmd) {
		app.Update(msg)
	}

	view := app.View()
	for _, want := range []string{"Run history", "a.jsonl", "rate limited"} {
		if !strings.Contains(view, want) {
			t.Errorf("history view missing %q", want)
		}
	}

	// Playback output still reaches the player while history is shown.
	app.Update(TextMsg{Text: "streamed while away"})
	if player.text != "streamed while away" {
		t.Errorf("player text = %q", player.text)
	}

	app.Update(keyMsg("tab"))
	if app.ActivePage() != PlayerPageID {
		t.Errorf("active page = %s, want player", app.ActivePage())
	}
}

func TestHistoryPage_States(t *testing.T) {
	t.Parallel()

	disabled := NewHistoryPage(nil, 0)
	if disabled.Init() != nil {
		t.Error("disabled history should not load")
	}
	if view := disabled.View(100, 20); !strings.Contains(view, "disabled") {
		t.Errorf("disabled view = %q", view)
	}

	failing := NewHistoryPage(&fakeRuns{err: errors.New("db locked")}, 5)
	for _, msg := range runInit(failing.Init()) {
		failing.Update(msg)
	}
	if view := failing.View(100, 20); !strings.Contains(view, "db locked") {
		t.Errorf("error view = %q", view)
	}

	empty := NewHistoryPage(&fakeRuns{}, 5)
	for _, msg := range runInit(empty.Init()) {
		empty.Update(msg)
	}
	if view := empty.View(100, 20); !strings.Contains(view, "No runs recorded yet") {
		t.Errorf("empty view = %q", view)
	}
}

func TestHistoryPage_CursorBounds(t *testing.T) {
	t.Parallel()
	h := NewHistoryPage(&fakeRuns{}, 5)
	h.Update(runsLoadedMsg{runs: []model.RunSummary{{ID: 1}, {ID: 2}}})

	h.Update(keyMsg("k"))
	if h.cursor != 0 {
		t.Errorf("cursor = %d after up at top", h.cursor)
	}
	h.Update(keyMsg("j"))
	h.Update(keyMsg("j"))
	if h.cursor != 1 {
		t.Errorf("cursor = %d, want 1", h.cursor)
	}
}

func TestBridge_ForwardsObserverCallbacks(t *testing.T) {
	t.Parallel()
	var got []tea.Msg
	b := &Bridge{}
	obs := b.Observer()

	obs.OnText("dropped before attach")
	b.send = func(m tea.Msg) { got = append(got, m) }

	obs.OnText("hi")
	obs.OnSpec(nil)
	obs.OnStatus(model.StateDone, "")

	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	if m, ok := got[0].(TextMsg); !ok || m.Text != "hi" {
		t.Errorf("got[0] = %#v", got[0])
	}
	if m, ok := got[1].(SpecMsg); !ok || m.Spec != nil {
		t.Errorf("got[1] = %#v", got[1])
	}
	if m, ok := got[2].(StatusMsg); !ok || m.State != model.StateDone {
		t.Errorf("got[2] = %#v", got[2])
	}
}
