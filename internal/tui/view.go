package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/tempo/internal/tab"
	"github.com/npratt/tempo/internal/timer"
)

const (
	minWidth  = 40
	minHeight = 12
)

// View implements tea.Model.
func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.width < minWidth || m.height < minHeight {
		return fmt.Sprintf("Terminal too small (%dx%d), need %dx%d", m.width, m.height, minWidth, minHeight)
	}

	sections := []string{
		m.renderHeader(),
		m.renderDivider(),
		m.renderClock(),
		m.renderShared(),
	}
	if notices := m.renderNotices(); notices != "" {
		sections = append(sections, m.renderDivider(), notices)
	}
	sections = append(sections, m.renderDivider(), styles.Footer.Render(m.help.View(m.keys)))

	rendered := styles.Container.
		Width(max(0, m.width-2)).
		Render(strings.Join(sections, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, rendered)
}

// renderHeader shows the timer types with the current one highlighted.
func (m model) renderHeader() string {
	current := m.tab.Switcher().CurrentMode()
	parts := make([]string, 0, len(timer.Modes))
	for _, mode := range timer.Modes {
		label := modeLabel(mode)
		if mode == current {
			parts = append(parts, styles.ModeActive.Render(label))
		} else {
			parts = append(parts, styles.ModeInactive.Render(label))
		}
	}
	return strings.Join(parts, "  ") + "   " + styles.Activity.Render(string(m.tick.Activity))
}

func modeLabel(mode timer.Mode) string {
	switch mode {
	case timer.ModeStopwatch:
		return "Stopwatch"
	case timer.ModeCountdown:
		return "Timer"
	case timer.ModePomodoro:
		return "Pomodoro"
	}
	return string(mode)
}

func (m model) renderDivider() string {
	return styles.Divider.Render(strings.Repeat("─", max(0, m.width-6)))
}

// renderClock shows the live value, a progress bar for bounded timers, and
// the engine state.
func (m model) renderClock() string {
	tk := m.tick
	var lines []string

	switch tk.Mode {
	case timer.ModeStopwatch:
		lines = append(lines, styles.Clock.Render(tab.FormatClock(tk.Elapsed)))
	default:
		lines = append(lines, styles.Clock.Render(tab.FormatClock(tk.Remaining)))
		if tk.Target > 0 {
			lines = append(lines, m.bar.ViewAs(float64(tk.Elapsed)/float64(tk.Target)))
		}
	}

	lines = append(lines, m.renderState())

	switch tk.Mode {
	case timer.ModeCountdown:
		lines = append(lines, styles.Detail.Render("Target "+tab.FormatClock(tk.Target)))
	case timer.ModePomodoro:
		left := tk.Cycles - tk.Cycle
		lines = append(lines, styles.Detail.Render(
			fmt.Sprintf("%s · cycle %d/%d · %d focus left before long break", tk.Segment, tk.Cycle, tk.Cycles, left),
		))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderState() string {
	tk := m.tick
	switch {
	case tk.Paused:
		return styles.Paused.Render("paused")
	case tk.State == timer.StateCompleted:
		return styles.Done.Render("completed")
	case tk.State == timer.StateBreak:
		return styles.Break.Render("on a break")
	case tk.Running():
		return m.spinner.View() + styles.Running.Render(string(tk.State))
	default:
		return styles.Idle.Render("idle")
	}
}

// renderShared shows the session-wide indicator and the daily total.
func (m model) renderShared() string {
	var b strings.Builder
	if m.snap.IsRunning {
		b.WriteString(styles.Running.Render(fmt.Sprintf("● %d running in this session", m.snap.RunningCount)))
	} else {
		b.WriteString(styles.Idle.Render("○ nothing running in this session"))
	}
	if m.hasTotal {
		b.WriteString(styles.Detail.Render("   today " + tab.FormatClock(m.dailyTotal)))
	}
	return b.String()
}

func (m model) renderNotices() string {
	if len(m.log) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.log))
	for _, n := range m.log {
		line := n.At.Format("15:04:05") + " " + n.Text
		if n.Level == NoticeError {
			lines = append(lines, styles.Error.Render(line))
		} else {
			lines = append(lines, styles.Info.Render(line))
		}
	}
	return strings.Join(lines, "\n")
}
