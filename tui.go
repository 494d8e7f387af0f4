package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"minute/audio"
	"minute/conn"
	"minute/export"
	"minute/session"
	"minute/transcript"
	"minute/view"
)

// TUI message types
type StateMsg struct{ State session.State }
type CaptionMsg struct{ Event transcript.Event }
type LevelMsg struct {
	Source audio.Kind
	RMS    float64
	Speech bool
}
type StatusMsg struct{ Text string }
type FailureMsg struct{ Text string }
type AnalysisReadyMsg struct{}
type startedMsg struct{ err error }
type exportedMsg struct {
	path string
	err  error
}
type tickMsg time.Time

const captionRows = 10

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	stateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	youStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	otherStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	viewBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type tuiModel struct {
	ctrl      *session.Controller
	link      *conn.Manager
	exportDir string

	state    session.State
	mode     audio.Mode
	captions []transcript.Event // newest first, display only
	micLevel float64
	sysLevel float64
	speaking bool
	status   string
	errLine  string
	started  time.Time

	viewMode    view.Mode
	showingView bool

	width, height int
}

func newTUIModel(ctrl *session.Controller, link *conn.Manager, mode audio.Mode, exportDir string) tuiModel {
	return tuiModel{
		ctrl:      ctrl,
		link:      link,
		exportDir: exportDir,
		state:     session.StateIdle,
		mode:      mode,
		viewMode:  view.ModeExtracted,
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		// Levels decay between callbacks so the meters fall back down.
		m.micLevel *= 0.5
		m.sysLevel *= 0.5
		return m, tuiTick()

	case StateMsg:
		m.state = msg.State
		if msg.State == session.StateActive {
			m.started = time.Now()
			m.captions = nil
			m.errLine = ""
			m.showingView = false
		}

	case CaptionMsg:
		m.captions = append([]transcript.Event{msg.Event}, m.captions...)
		if len(m.captions) > captionRows {
			m.captions = m.captions[:captionRows]
		}

	case LevelMsg:
		if msg.Source == audio.KindSystem {
			m.sysLevel = msg.RMS
		} else {
			m.micLevel = msg.RMS
			m.speaking = msg.Speech
		}

	case StatusMsg:
		m.status = msg.Text

	case FailureMsg:
		m.errLine = msg.Text

	case AnalysisReadyMsg:
		m.status = "analysis ready — press v to cycle views"

	case startedMsg:
		if msg.err != nil {
			m.errLine = msg.err.Error()
		}

	case exportedMsg:
		if msg.err != nil {
			m.errLine = msg.err.Error()
		} else if msg.path != "" {
			m.status = "exported " + msg.path
		} else {
			m.status = "copied to clipboard"
		}
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "r":
		if m.state == session.StateActive || m.state == session.StateRequesting {
			ctrl := m.ctrl
			return m, func() tea.Msg {
				ctrl.Stop()
				return nil
			}
		}
		ctrl, mode := m.ctrl, m.mode
		return m, func() tea.Msg {
			return startedMsg{err: ctrl.Start(mode)}
		}

	case "m":
		if m.state != session.StateActive {
			m.mode = nextMode(m.mode)
		}

	case "v":
		m.showingView = true
		m.viewMode = nextViewMode(m.viewMode)

	case "tab":
		m.showingView = !m.showingView

	case "e":
		snap, mode, dir := m.ctrl.Snapshot(), m.viewMode, m.exportDir
		return m, func() tea.Msg {
			path, err := export.File(snap, mode, dir, time.Now())
			return exportedMsg{path: path, err: err}
		}

	case "c":
		snap, mode := m.ctrl.Snapshot(), m.viewMode
		return m, func() tea.Msg {
			return exportedMsg{err: export.Copy(snap, mode, time.Now())}
		}
	}
	return m, nil
}

func nextMode(m audio.Mode) audio.Mode {
	switch m {
	case audio.ModeMicrophone:
		return audio.ModeScreen
	case audio.ModeScreen:
		return audio.ModeMixed
	default:
		return audio.ModeMicrophone
	}
}

func nextViewMode(m view.Mode) view.Mode {
	for i, v := range view.Modes {
		if v == m {
			return view.Modes[(i+1)%len(view.Modes)]
		}
	}
	return view.ModeExtracted
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("minute — live meeting transcription"))
	b.WriteString("\n\n")

	stateLine := fmt.Sprintf("session: %s | mode: %s | link: %s", m.state, m.mode, m.link.State())
	if m.state == session.StateActive {
		stateLine += fmt.Sprintf(" | %s", time.Since(m.started).Round(time.Second))
	}
	b.WriteString(stateStyle.Render(stateLine))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("mic %s  sys %s", levelBar(m.micLevel), levelBar(m.sysLevel)))
	if m.speaking {
		b.WriteString(youStyle.Render("  ● speaking"))
	}
	b.WriteString("\n\n")

	if m.showingView {
		b.WriteString(dimStyle.Render("view: " + string(m.viewMode)))
		b.WriteString("\n")
		b.WriteString(viewBoxStyle.Render(view.Render(m.ctrl.Snapshot(), m.viewMode)))
		b.WriteString("\n")
	} else {
		for _, ev := range m.captions {
			style := otherStyle
			if ev.Speaker == transcript.SpeakerYou {
				style = youStyle
			}
			b.WriteString(style.Render(string(ev.Speaker)+": ") + ev.Text)
			b.WriteString("\n")
		}
		if len(m.captions) == 0 {
			b.WriteString(dimStyle.Render("(no captions yet)"))
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + dimStyle.Render(m.status) + "\n")
	}
	if m.errLine != "" {
		b.WriteString("\n" + errorStyle.Render("error: "+m.errLine) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("r record/stop · m mode · v views · tab captions · e export · c copy · q quit"))
	return b.String()
}

func levelBar(rms float64) string {
	const width = 12
	filled := int(rms * 4 * width)
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("·", width-filled) + "]"
}
