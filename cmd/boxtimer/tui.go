package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nm-morais/go-boxtimer/pkg/config"
	"github.com/nm-morais/go-boxtimer/pkg/engine"
	"github.com/nm-morais/go-boxtimer/pkg/event"
	"github.com/nm-morais/go-boxtimer/pkg/state"
)

const barWidth = 40

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	prepStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	workStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	restStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")).Blink(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doneStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
)

// engineEventMsg wraps a timer event for the TUI.
type engineEventMsg event.Event

type model struct {
	eng      *engine.Engine
	cfg      config.TimerConfig
	st       state.TimerState
	phaseBar progress.Model
	totalBar progress.Model
	lastCue  string
	quitting bool
}

var _ tea.Model = model{}

func newModel(eng *engine.Engine) model {
	phaseBar := progress.New(progress.WithDefaultGradient())
	phaseBar.Width = barWidth
	totalBar := progress.New(progress.WithSolidFill("63"))
	totalBar.Width = barWidth
	return model{
		eng:      eng,
		cfg:      eng.Config(),
		st:       eng.State(),
		phaseBar: phaseBar,
		totalBar: totalBar,
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		m.eng.Start()
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case engineEventMsg:
		// The engine goroutine blocks in program.Send until Update
		// returns, so Update must never call back into the engine.
		// The config is fetched once in newModel; the TUI never
		// issues UpdateConfig.
		ev := event.Event(msg)
		m.st = ev.State
		switch ev.Type {
		case event.PreparationStart:
			m.lastCue = "get ready"
		case event.PhaseChange:
			if ev.Payload.NewPhase == state.PhaseWork {
				m.lastCue = fmt.Sprintf("round %d - fight!", ev.State.CurrentRound)
			} else {
				m.lastCue = "rest"
			}
		case event.Warning:
			m.lastCue = fmt.Sprintf("%ds left in round %d", m.cfg.WarningDuration, ev.Payload.Round)
		case event.RoundComplete:
			m.lastCue = fmt.Sprintf("round %d complete", ev.Payload.Round)
		case event.WorkoutComplete:
			m.lastCue = fmt.Sprintf("workout complete - %d rounds", ev.Payload.TotalRounds)
		case event.Error:
			m.lastCue = "error: " + ev.Payload.Message
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Engine commands must not run on the engine goroutine, so they are
	// issued as commands rather than called inside event handlers.
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case " ":
		eng, status := m.eng, m.st.Status
		return m, func() tea.Msg {
			switch status {
			case state.StatusRunning:
				eng.Pause()
			case state.StatusPaused:
				eng.Resume()
			default:
				eng.Start()
			}
			return nil
		}
	case "s":
		eng := m.eng
		return m, func() tea.Msg {
			eng.Stop()
			return nil
		}
	case "r":
		eng := m.eng
		return m, func() tea.Msg {
			eng.Reset()
			eng.Start()
			return nil
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("boxtimer") + "\n\n")

	phase := m.st.Phase.String()
	switch m.st.Phase {
	case state.PhasePreparation:
		phase = prepStyle.Render(phase)
	case state.PhaseWork:
		phase = workStyle.Render(phase)
	case state.PhaseRest:
		phase = restStyle.Render(phase)
	}
	status := m.st.Status.String()
	if m.st.Status == state.StatusCompleted {
		status = doneStyle.Render(status)
	}
	b.WriteString(fmt.Sprintf("%s  %s  round %d/%d\n", status, phase, m.st.CurrentRound, m.cfg.TotalRounds))

	remaining := fmtClock(m.st.TimeRemaining)
	if m.st.WarningTriggered && m.st.Status == state.StatusRunning {
		remaining = warningStyle.Render(remaining)
	}
	b.WriteString(fmt.Sprintf("\n%s remaining\n", remaining))
	b.WriteString(m.phaseBar.ViewAs(m.st.Progress) + "\n\n")
	b.WriteString(dimStyle.Render("workout") + "\n")
	b.WriteString(m.totalBar.ViewAs(m.st.WorkoutProgress) + "\n")

	if m.lastCue != "" {
		b.WriteString("\n" + m.lastCue + "\n")
	}
	b.WriteString(dimStyle.Render("\nspace pause/resume - r restart - s stop - q quit\n"))
	return b.String()
}

func fmtClock(d time.Duration) string {
	d = d.Round(100 * time.Millisecond)
	mins := int(d.Minutes())
	secs := d.Seconds() - float64(mins*60)
	return fmt.Sprintf("%02d:%04.1f", mins, secs)
}
