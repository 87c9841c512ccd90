// Package tui provides the terminal UI of a tab using bubbletea.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/tempo/internal/tab"
)

// NoticeLevel classifies a notice line.
type NoticeLevel int

// Notice levels.
const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a short message shown under the timer, like a toast.
type Notice struct {
	Text  string
	Level NoticeLevel
	At    time.Time
}

// TUI is the terminal UI for one tab.
type TUI struct {
	tab     *tab.Tab
	notices <-chan Notice
	totals  <-chan time.Duration
	onQuit  func()
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a TUI driving t.
func New(t *tab.Tab, opts ...Option) *TUI {
	ui := &TUI{tab: t}
	for _, opt := range opts {
		opt(ui)
	}
	return ui
}

// WithNotices shows every notice received on ch.
func WithNotices(ch <-chan Notice) Option {
	return func(t *TUI) {
		t.notices = ch
	}
}

// WithDailyTotals updates the accrued-today line from ch.
func WithDailyTotals(ch <-chan time.Duration) Option {
	return func(t *TUI) {
		t.totals = ch
	}
}

// WithOnQuit sets the callback invoked when the user quits.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) {
		t.onQuit = fn
	}
}

// Run starts the TUI and blocks until it exits or ctx is done.
func (t *TUI) Run(ctx context.Context) error {
	m := newModel(ctx, t.tab, t.notices, t.totals, t.onQuit)

	defer m.unwatch()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
