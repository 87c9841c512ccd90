package tui

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/tempo/internal/sharedstate"
	"github.com/npratt/tempo/internal/timer"
)

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-10))
		return m, nil

	case refreshMsg:
		m.tick = m.tab.Switcher().Current().Tick(m.ctx)
		return m, doRefresh()

	case snapshotMsg:
		m.snap = sharedstate.Snapshot(msg)
		return m, waitForSnapshot(m.shared)

	case noticeMsg:
		m.push(Notice(msg))
		return m, waitForNotice(m.notices)

	case dailyTotalMsg:
		m.dailyTotal = time.Duration(msg)
		m.hasTotal = true
		return m, waitForTotal(m.totals)

	case sourceClosed:
		slog.Debug("tui source closed")
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

// handleKey maps keys onto engine operations.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sw := m.tab.Switcher()
	engine := sw.Current()

	if !key.Matches(msg, m.keys.Quit) {
		m.quitArmed = false
	}

	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		return m.quit()

	case key.Matches(msg, m.keys.Quit):
		if m.tab.Guard().BeforeUnload() && !m.quitArmed {
			m.quitArmed = true
			m.info("A timer is running and its time will not be logged. Press q again to quit.")
			return m, nil
		}
		return m.quit()

	case key.Matches(msg, m.keys.Toggle):
		if engine.Running() {
			engine.Stop(m.ctx, timer.UserStop)
		} else if err := engine.Start(m.ctx); err != nil {
			m.fail(err)
		}

	case key.Matches(msg, m.keys.Pause):
		p, ok := engine.(timer.Pauser)
		if !ok {
			m.info(fmt.Sprintf("%s cannot pause", engine.Mode()))
			break
		}
		if p.Paused() {
			p.Resume()
		} else {
			p.Pause()
		}

	case key.Matches(msg, m.keys.Skip):
		if s, ok := engine.(timer.Skipper); ok {
			s.Skip(m.ctx)
		}

	case key.Matches(msg, m.keys.Mode):
		if _, err := sw.Cycle(); err != nil {
			m.fail(err)
		}

	case key.Matches(msg, m.keys.Activity):
		if err := sw.SetActivity(engine.Activity().Next()); err != nil {
			m.fail(err)
		}

	case key.Matches(msg, m.keys.Longer), key.Matches(msg, m.keys.Shorter):
		if engine.Mode() != timer.ModeCountdown {
			break
		}
		steps := 1
		if key.Matches(msg, m.keys.Shorter) {
			steps = -1
		}
		if _, err := m.tab.Countdown().AdjustTarget(steps); err != nil {
			m.fail(err)
		}

	case key.Matches(msg, m.keys.Reset):
		m.tab.Reset()
		m.info("Shared running indicator cleared")

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.tick = sw.Current().Status()
	m.snap = m.tab.Store().Snapshot()
	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.onQuit != nil {
		m.onQuit()
	}
	return m, tea.Quit
}
