package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/tempo/internal/sharedstate"
	"github.com/npratt/tempo/internal/tab"
	"github.com/npratt/tempo/internal/timer"
)

const (
	// maxNotices is the number of notice lines kept on screen.
	maxNotices = 4
	// refreshInterval is how often the clock is redrawn.
	refreshInterval = 250 * time.Millisecond
)

// model is the bubbletea model for the TUI.
type model struct {
	ctx context.Context
	tab *tab.Tab

	// Sources
	shared  <-chan sharedstate.Snapshot
	unwatch func()
	notices <-chan Notice
	totals  <-chan time.Duration

	// State
	tick       timer.Tick
	snap       sharedstate.Snapshot
	dailyTotal time.Duration
	hasTotal   bool
	log        []Notice
	quitArmed  bool

	// UI state
	width    int
	height   int
	keys     keyMap
	help     help.Model
	bar      progress.Model
	spinner  spinner.Model
	quitting bool

	onQuit func()
}

// Message types.
type (
	refreshMsg    time.Time
	snapshotMsg   sharedstate.Snapshot
	noticeMsg     Notice
	dailyTotalMsg time.Duration
	sourceClosed  struct{}
)

func newModel(ctx context.Context, t *tab.Tab, notices <-chan Notice, totals <-chan time.Duration, onQuit func()) model {
	if ctx == nil {
		ctx = context.Background()
	}
	shared, unwatch := t.Store().Watch()
	return model{
		ctx:     ctx,
		tab:     t,
		shared:  shared,
		unwatch: unwatch,
		notices: notices,
		totals:  totals,
		tick:    t.Switcher().Current().Status(),
		snap:    t.Store().Snapshot(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Running)),
		onQuit:  onQuit,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		doRefresh(),
		waitForSnapshot(m.shared),
		waitForNotice(m.notices),
		waitForTotal(m.totals),
		m.spinner.Tick,
	)
}

func doRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// waitForSnapshot delivers the next shared state change.
func waitForSnapshot(ch <-chan sharedstate.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return sourceClosed{}
		}
		return snapshotMsg(snap)
	}
}

func waitForNotice(ch <-chan Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return sourceClosed{}
		}
		return noticeMsg(n)
	}
}

func waitForTotal(ch <-chan time.Duration) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return sourceClosed{}
		}
		return dailyTotalMsg(d)
	}
}

// push appends a notice, keeping the newest maxNotices.
func (m *model) push(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	m.log = append(m.log, n)
	if len(m.log) > maxNotices {
		m.log = m.log[len(m.log)-maxNotices:]
	}
}

func (m *model) info(text string) {
	m.push(Notice{Text: text, Level: NoticeInfo})
}

func (m *model) fail(err error) {
	m.push(Notice{Text: err.Error(), Level: NoticeError})
}
