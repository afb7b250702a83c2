package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/chartstream/internal/model"
	"github.com/tinytelemetry/chartstream/internal/session"
)

// PlayerPageID identifies the playback page.
const PlayerPageID = "player"

// Controller is the narrow session contract required by the player page.
type Controller interface {
	Play() error
	Pause()
	Stop()
	SetSpeed(speed model.PlaybackSpeed) error
	Status() session.Status
}

// controlResultMsg reports the outcome of a control command.
type controlResultMsg struct {
	status session.Status
	err    error
}

// PlayerPage shows the streaming output next to the extracted chart.
//
// Control calls run inside tea.Cmds rather than in Update: the session emits
// observer callbacks synchronously, and those are delivered with
// Program.Send, which must not be called from the event loop.
type PlayerPage struct {
	ctrl     Controller
	keys     KeyMap
	help     help.Model
	output   viewport.Model
	chart    *SpecChart
	status   session.Status
	text     string
	message  string // last playback error or control failure
	width    int
	height   int
	autoplay bool
}

// NewPlayerPage creates the player page. When autoplay is set, playback
// starts as soon as the program starts.
func NewPlayerPage(ctrl Controller, autoplay bool) *PlayerPage {
	return &PlayerPage{
		ctrl:     ctrl,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		output:   viewport.New(80, 20),
		chart:    NewSpecChart(),
		status:   ctrl.Status(),
		autoplay: autoplay,
	}
}

func (p *PlayerPage) ID() string { return PlayerPageID }

func (p *PlayerPage) Init() tea.Cmd {
	if p.autoplay {
		p.autoplay = false
		return p.control(func() error { return p.ctrl.Play() })
	}
	return nil
}

func (p *PlayerPage) control(fn func() error) tea.Cmd {
	return func() tea.Msg {
		err := fn()
		return controlResultMsg{status: p.ctrl.Status(), err: err}
	}
}

func (p *PlayerPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		p.resize()
		return nil, nil

	case TextMsg:
		p.setText(msg.Text)
		return nil, nil

	case SpecMsg:
		p.chart.SetSpec(msg.Spec)
		return nil, nil

	case StatusMsg:
		p.status = p.ctrl.Status()
		p.status.State = msg.State
		if msg.Message != "" {
			p.message = msg.Message
		} else if !msg.State.Terminal() {
			p.message = ""
		}
		return nil, nil

	case controlResultMsg:
		p.status = msg.status
		if msg.err != nil {
			p.message = msg.err.Error()
		}
		return nil, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return nil, nil
}

func (p *PlayerPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.Quit), key.Matches(msg, p.keys.ForceQuit):
		return tea.Quit, nil

	case key.Matches(msg, p.keys.NextPage):
		return nil, &PageNav{PageID: HistoryPageID}

	case key.Matches(msg, p.keys.Help):
		p.help.ShowAll = !p.help.ShowAll
		p.resize()
		return nil, nil

	case key.Matches(msg, p.keys.PlayPause):
		if p.status.State == model.StateStreaming {
			return p.control(func() error { p.ctrl.Pause(); return nil }), nil
		}
		return p.control(p.ctrl.Play), nil

	case key.Matches(msg, p.keys.Stop):
		return p.control(func() error { p.ctrl.Stop(); return nil }), nil

	case key.Matches(msg, p.keys.Restart):
		return p.control(func() error {
			p.ctrl.Stop()
			return p.ctrl.Play()
		}), nil

	case key.Matches(msg, p.keys.SpeedUp):
		next := p.status.Speed.Next()
		return p.control(func() error { return p.ctrl.SetSpeed(next) }), nil

	case key.Matches(msg, p.keys.SpeedDown):
		prev := p.status.Speed.Prev()
		return p.control(func() error { return p.ctrl.SetSpeed(prev) }), nil

	case key.Matches(msg, p.keys.Home):
		p.output.GotoTop()
		return nil, nil

	case key.Matches(msg, p.keys.End):
		p.output.GotoBottom()
		return nil, nil
	}

	var cmd tea.Cmd
	p.output, cmd = p.output.Update(msg)
	return cmd, nil
}

// setText replaces the output, following the tail unless the user has
// scrolled up.
func (p *PlayerPage) setText(text string) {
	follow := p.output.AtBottom()
	p.text = text
	p.output.SetContent(p.wrap(text))
	if follow {
		p.output.GotoBottom()
	}
}

func (p *PlayerPage) wrap(text string) string {
	if p.output.Width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(p.output.Width).Render(text)
}

// layout splits the screen into the output pane and the chart pane.
func (p *PlayerPage) layout() (outWidth, chartWidth, bodyHeight int) {
	helpHeight := lipgloss.Height(p.help.View(p.keys))
	bodyHeight = max(p.height-helpHeight-1, 5)
	if p.width < 80 {
		return p.width, p.width, bodyHeight / 2
	}
	outWidth = p.width / 2
	return outWidth, p.width - outWidth, bodyHeight
}

func (p *PlayerPage) resize() {
	if p.width <= 0 || p.height <= 0 {
		return
	}
	p.help.Width = p.width
	outWidth, _, bodyHeight := p.layout()
	p.output.Width = max(outWidth-4, 10)
	p.output.Height = max(bodyHeight-3, 1)
	p.setText(p.text)
}

func (p *PlayerPage) View(width, height int) string {
	if width != p.width || height != p.height {
		p.width, p.height = width, height
		p.resize()
	}
	if p.width <= 0 || p.height <= 0 {
		return renderLoadingPlaceholder(80, 3)
	}

	outWidth, chartWidth, bodyHeight := p.layout()

	title := chartTitleStyle.Render("Output")
	if p.status.Source != "" {
		title = chartTitleStyle.Render("Output · " + p.status.Source)
	}
	outPane := sectionStyle.Width(max(outWidth-2, 1)).Height(max(bodyHeight-2, 1)).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, p.output.View()))
	chartPane := p.chart.Render(chartWidth, bodyHeight, p.chart.Spec() != nil)

	var body string
	if p.width < 80 {
		body = lipgloss.JoinVertical(lipgloss.Left, outPane, chartPane)
	} else {
		body = lipgloss.JoinHorizontal(lipgloss.Top, outPane, chartPane)
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, p.statusLine(), p.help.View(p.keys))
}

func (p *PlayerPage) statusLine() string {
	st := p.status
	state := stateStyle(st.State.String()).Render(strings.ToUpper(st.State.String()))
	info := fmt.Sprintf(" %s  %d/%d events  %d tokens", st.Speed, st.Cursor, st.Events, st.Tokens)
	line := state + statusBarStyle.Render(info)
	if p.message != "" {
		line += " " + errorStyle.Render(p.message)
	}
	return lipgloss.NewStyle().MaxWidth(max(p.width, 1)).Render(line)
}
