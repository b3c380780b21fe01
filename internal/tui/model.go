// Package tui provides the Bubble Tea attempt interface.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typegrade/internal/align"
	"github.com/verte-zerg/typegrade/internal/model"
	"github.com/verte-zerg/typegrade/internal/report"
	"github.com/verte-zerg/typegrade/internal/session"
	"github.com/verte-zerg/typegrade/internal/store"
)

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	resultStyle      = lipgloss.NewStyle().
				Padding(1, 2).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#C89A3A"))
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// Model implements the Bubble Tea attempt UI. It is a thin host-UI
// collaborator: all input policy and grading lives in the controller.
type Model struct {
	ctrl    *session.Controller
	store   *store.Store
	profile model.ExamProfile

	countdown    timer.Model
	timerStarted bool
	startedAt    time.Time

	width  int
	height int

	done       bool
	resultText string
}

// NewModel constructs an attempt TUI model. The store may be nil to
// skip persistence.
func NewModel(ctrl *session.Controller, st *store.Store) *Model {
	profile := ctrl.Profile()
	limit := time.Duration(profile.DurationSeconds) * time.Second
	return &Model{
		ctrl:      ctrl,
		store:     st,
		profile:   profile,
		countdown: timer.NewWithInterval(limit, time.Second),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case timer.TickMsg, timer.StartStopMsg:
		var cmd tea.Cmd
		m.countdown, cmd = m.countdown.Update(msg)
		m.ctrl.Tick()
		if m.ctrl.State() == session.StateFinished && !m.done {
			m.finish()
		}
		return m, cmd
	case timer.TimeoutMsg:
		m.ctrl.Tick()
		if _, err := m.ctrl.Finalize(); err != nil {
			logErrf("failed to finalize attempt: %v\n", err)
		}
		if !m.done {
			m.finish()
		}
		return m, nil
	case tea.BlurMsg:
		// Visibility loss pauses the attempt until focus returns.
		if m.timerStarted && !m.done {
			m.ctrl.Pause()
			return m, m.countdown.Stop()
		}
		return m, nil
	case tea.FocusMsg:
		if m.ctrl.State() == session.StatePaused {
			m.ctrl.Resume()
			return m, m.countdown.Start()
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		if m.done {
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyBackspace, tea.KeyDelete:
		m.ctrl.HandleKey(model.KeyEvent{Key: session.KeyBackspace})
		return m, nil
	case tea.KeySpace:
		return m.forwardRunes([]rune{' '})
	case tea.KeyRunes:
		return m.forwardRunes(msg.Runes)
	default:
		return m, nil
	}
}

func (m *Model) forwardRunes(runes []rune) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	for _, r := range runes {
		m.ctrl.HandleKey(m.keyEvent(r))
	}
	var cmd tea.Cmd
	if !m.timerStarted && m.ctrl.State() == session.StateRunning {
		m.timerStarted = true
		m.startedAt = time.Now()
		if m.profile.DurationSeconds > 0 {
			cmd = m.countdown.Init()
		}
	}
	if m.ctrl.State() == session.StateFinished {
		m.finish()
	}
	return m, cmd
}

// keyEvent translates a terminal rune into the controller event shape.
// With a layout configured the physical key is reported lowercased with
// an explicit shift flag so the layout map resolves the character.
func (m *Model) keyEvent(r rune) model.KeyEvent {
	if m.profile.Layout == "" {
		return model.KeyEvent{Key: string(r)}
	}
	if unicode.IsUpper(r) {
		return model.KeyEvent{Key: string(unicode.ToLower(r)), Shift: true}
	}
	return model.KeyEvent{Key: string(r)}
}

func (m *Model) finish() {
	result, err := m.ctrl.Finalize()
	if err != nil {
		logErrf("failed to finalize attempt: %v\n", err)
		return
	}
	m.done = true
	m.saveAttempt(result)

	var buf bytes.Buffer
	if err := report.RenderResult(&buf, m.profile, m.ctrl.Stats(), result); err != nil {
		logErrf("failed to render result: %v\n", err)
	}
	m.resultText = strings.TrimRight(buf.String(), "\n") + "\n\nPress enter to exit."
}

func (m *Model) saveAttempt(result model.ExamResult) {
	if m.store == nil {
		return
	}
	stats := m.ctrl.Stats()
	endedAt := time.Now()
	startedAt := m.startedAt
	if startedAt.IsZero() {
		startedAt = endedAt
	}
	rec := model.AttemptRecord{
		ProfileID:  m.profile.ID,
		Lang:       m.profile.Lang,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
		Keystrokes: stats.TotalKeystrokes,
		Backspaces: stats.BackspaceCount,
		DurationMs: int64(stats.TimeTakenSeconds * 1000),
		Result:     result,
	}
	if _, err := m.store.InsertAttempt(context.Background(), rec, WordErrors(m.ctrl.Entries())); err != nil {
		logErrf("failed to save attempt: %v\n", err)
	}
}

// WordErrors converts the non-match alignment entries into persistence
// rows, keyed by their passage position.
func WordErrors(entries []align.Entry) []model.WordError {
	var out []model.WordError
	for i, e := range entries {
		if e.Status == align.StatusMatch {
			continue
		}
		out = append(out, model.WordError{
			Position:  i,
			Reference: e.Reference,
			Typed:     e.Typed,
			Status:    string(e.Status),
		})
	}
	return out
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.done {
		card := resultStyle.Render(m.resultText)
		if m.width == 0 || m.height == 0 {
			return card
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, card)
	}

	targetRunes := []rune(m.ctrl.Reference())
	inputRunes := []rune(m.ctrl.TypedText())
	cursorIndex := -1
	if len(inputRunes) < len(targetRunes) {
		cursorIndex = len(inputRunes)
	}
	styledRunes := buildStyledRunes(targetRunes, inputRunes, cursorIndex, m.profile.Highlight)
	if m.width == 0 || m.height == 0 {
		return renderStyledRunes(styledRunes)
	}
	contentWidth := int(float64(m.width) * 0.70)
	if contentWidth < 1 {
		contentWidth = 1
	}
	wrapped := wrapStyledRunes(styledRunes, contentWidth)
	content := lipgloss.NewStyle().Width(contentWidth).Render(wrapped)
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderFooter() string {
	targetLen := len([]rune(m.ctrl.Reference()))
	if targetLen == 0 {
		return ""
	}
	if m.ctrl.State() == session.StatePaused {
		return pausedStyle.Render("Paused. Return focus to resume.")
	}
	progress := len([]rune(m.ctrl.TypedText())) * 100 / targetLen
	segments := []string{
		fmt.Sprintf("%s · %s", m.profile.Name, m.profile.Lang),
		fmt.Sprintf("Progress %d%%", progress),
		fmt.Sprintf("Errors %d", m.ctrl.LiveErrors()),
	}
	if m.profile.DurationSeconds > 0 {
		segments = append(segments, fmt.Sprintf("Time %s", formatRemaining(m.ctrl.Remaining())))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func formatRemaining(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
