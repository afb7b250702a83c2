package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// HistoryPageID identifies the run history page.
const HistoryPageID = "history"

type runsLoadedMsg struct {
	runs []model.RunSummary
	err  error
}

// HistoryPage lists recently finished runs. A nil querier renders a notice
// that history is disabled.
type HistoryPage struct {
	runs    model.RunQuerier
	limit   int
	keys    KeyMap
	help    help.Model
	list    []model.RunSummary
	cursor  int
	loading bool
	err     error
}

func NewHistoryPage(runs model.RunQuerier, limit int) *HistoryPage {
	if limit <= 0 {
		limit = model.DefaultRunsLimit
	}
	return &HistoryPage{
		runs:  runs,
		limit: limit,
		keys:  DefaultKeyMap(),
		help:  help.New(),
	}
}

func (h *HistoryPage) ID() string { return HistoryPageID }

// Init reloads the list each time the page is shown.
func (h *HistoryPage) Init() tea.Cmd {
	if h.runs == nil {
		return nil
	}
	h.loading = true
	runs, limit := h.runs, h.limit
	return tea.Batch(
		func() tea.Msg {
			list, err := runs.RecentRuns(limit)
			return runsLoadedMsg{runs: list, err: err}
		},
		spinnerTick(),
	)
}

func (h *HistoryPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case runsLoadedMsg:
		h.loading = false
		h.err = msg.err
		if msg.err == nil {
			h.list = msg.runs
			h.cursor = min(h.cursor, max(len(h.list)-1, 0))
		}
		return nil, nil

	case SpinnerTickMsg:
		if h.loading {
			return spinnerTick(), nil
		}
		return nil, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, h.keys.Quit), key.Matches(msg, h.keys.ForceQuit):
			return tea.Quit, nil
		case key.Matches(msg, h.keys.NextPage):
			return nil, &PageNav{PageID: PlayerPageID}
		case key.Matches(msg, h.keys.Refresh):
			return h.Init(), nil
		case key.Matches(msg, h.keys.Up):
			if h.cursor > 0 {
				h.cursor--
			}
		case key.Matches(msg, h.keys.Down):
			if h.cursor < len(h.list)-1 {
				h.cursor++
			}
		}
	}
	return nil, nil
}

func (h *HistoryPage) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	h.help.Width = width
	footer := h.help.View(historyKeys{h.keys})
	bodyHeight := max(height-lipgloss.Height(footer), 3)

	title := chartTitleStyle.Render("Run history")
	var content string
	switch {
	case h.runs == nil:
		content = helpStyle.Render("Run history is disabled (history-enabled: false)")
	case h.loading && len(h.list) == 0:
		content = renderLoadingPlaceholder(max(width-4, 10), max(bodyHeight-3, 1))
	case h.err != nil:
		content = errorStyle.Render("failed to load runs: " + h.err.Error())
	case len(h.list) == 0:
		content = helpStyle.Render("No runs recorded yet")
	default:
		content = h.renderTable(max(width-4, 20), max(bodyHeight-3, 1))
	}

	box := sectionStyle.Width(max(width-2, 1)).Height(max(bodyHeight-2, 1)).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	return lipgloss.JoinVertical(lipgloss.Left, box, footer)
}

func (h *HistoryPage) renderTable(width, height int) string {
	header := lipgloss.NewStyle().Foreground(ColorWhite).Bold(true).
		Render(fmt.Sprintf("%-19s  %-9s  %6s  %6s  %s", "Ended", "Status", "Events", "Tokens", "Source"))
	lines := []string{header}

	start := 0
	if visible := height - 1; visible > 0 && h.cursor >= visible {
		start = h.cursor - visible + 1
	}
	for i := start; i < len(h.list) && len(lines) < height; i++ {
		r := h.list[i]
		detail := r.Source
		if r.Message != "" {
			detail += " (" + r.Message + ")"
		}
		row := fmt.Sprintf("%-19s  %-9s  %6d  %6d  %s",
			r.EndedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.Events, r.Tokens, detail)
		row = truncate(row, width)
		if i == h.cursor {
			row = lipgloss.NewStyle().Background(ColorNavy).Foreground(ColorWhite).Render(row)
		} else if r.Status == model.StateError {
			row = lipgloss.NewStyle().Foreground(ColorRed).Render(row)
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}
