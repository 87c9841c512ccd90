// Package tab assembles one tab: its copy of the shared state, the broadcast
// channel receive loop, the three timer engines, the session logger and the
// lifecycle guard.
package tab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/npratt/tempo/internal/broadcast"
	"github.com/npratt/tempo/internal/config"
	"github.com/npratt/tempo/internal/lifecycle"
	"github.com/npratt/tempo/internal/sessionlog"
	"github.com/npratt/tempo/internal/sharedstate"
	"github.com/npratt/tempo/internal/timer"
)

// Options configure a Tab.
type Options struct {
	ID      string
	Config  *config.Config
	Channel broadcast.Channel // required

	Storage  sharedstate.Storage // optional session-scoped persistence
	Appender sessionlog.Appender // optional; nil disables recording
	Notifier timer.Notifier      // optional
	Clock    clockwork.Clock     // defaults to the real clock
	Logger   *slog.Logger

	OnRecordError func(timer.Interval, error)
	OnDailyTotal  func(time.Duration)
}

// Tab is one cooperating timer instance of a session.
type Tab struct {
	id       string
	store    *sharedstate.Store
	channel  broadcast.Channel
	appender sessionlog.Appender
	onTotal  func(time.Duration)
	log      *slog.Logger

	stopwatch *timer.Stopwatch
	countdown *timer.Countdown
	pomodoro  *timer.Pomodoro
	switcher  *timer.Switcher
	guard     *lifecycle.Guard

	closeOnce sync.Once
}

// New wires a tab. The tab does not receive broadcasts until Run is called.
func New(opts Options) (*Tab, error) {
	if opts.Channel == nil {
		return nil, errors.New("tab: channel is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("tab_id", opts.ID)

	activity, err := timer.ParseActivity(cfg.Activity)
	if err != nil {
		return nil, fmt.Errorf("tab: %w", err)
	}
	mode, err := timer.ParseMode(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("tab: %w", err)
	}

	var storeOpts []sharedstate.Option
	if opts.Storage != nil {
		storeOpts = append(storeOpts, sharedstate.WithStorage(opts.Storage))
	}
	store := sharedstate.New(storeOpts...)

	t := &Tab{
		id:       opts.ID,
		store:    store,
		channel:  opts.Channel,
		appender: opts.Appender,
		onTotal:  opts.OnDailyTotal,
		log:      logger,
		guard:    lifecycle.New(logger),
	}

	deps := timer.Deps{
		Store:         store,
		Broadcaster:   opts.Channel,
		Notifier:      opts.Notifier,
		Clock:         opts.Clock,
		Logger:        logger,
		Activity:      activity,
		TickInterval:  cfg.TickInterval,
		OnRecordError: opts.OnRecordError,
	}
	if opts.Appender != nil {
		deps.Recorder = newRecorder(cfg, opts.Appender, opts.OnDailyTotal, logger)
	}

	t.stopwatch = timer.NewStopwatch(deps)
	t.countdown = timer.NewCountdown(deps, timer.TargetBounds{
		Min:  cfg.Countdown.Min,
		Max:  cfg.Countdown.Max,
		Step: cfg.Countdown.Step,
	}, cfg.Countdown.Default)
	t.pomodoro = timer.NewPomodoro(deps, timer.PomodoroSettings{
		Focus:      cfg.Pomodoro.Focus,
		ShortBreak: cfg.Pomodoro.ShortBreak,
		LongBreak:  cfg.Pomodoro.LongBreak,
		Cycles:     cfg.Pomodoro.Cycles,
	})

	t.switcher, err = timer.NewSwitcher(mode, t.stopwatch, t.countdown, t.pomodoro)
	if err != nil {
		return nil, fmt.Errorf("tab: %w", err)
	}
	t.guard.Register(t.stopwatch, t.countdown, t.pomodoro)

	return t, nil
}

func newRecorder(cfg *config.Config, a sessionlog.Appender, onTotal func(time.Duration), logger *slog.Logger) *sessionlog.Logger {
	opts := []sessionlog.LoggerOption{sessionlog.WithLogger(logger)}
	if lo, hi, ok := cfg.FilterBounds(); ok {
		opts = append(opts, sessionlog.WithFilter(&sessionlog.Filter{Min: lo, Max: hi}))
	}
	if onTotal != nil {
		opts = append(opts, sessionlog.WithDailyTotal(onTotal))
	}
	return sessionlog.NewLogger(a, opts...)
}

// ID returns the tab id.
func (t *Tab) ID() string { return t.id }

// Store returns the tab's copy of the shared state.
func (t *Tab) Store() *sharedstate.Store { return t.store }

// Channel returns the tab's broadcast channel.
func (t *Tab) Channel() broadcast.Channel { return t.channel }

// Switcher returns the timer type selector.
func (t *Tab) Switcher() *timer.Switcher { return t.switcher }

// Guard returns the tab's lifecycle guard.
func (t *Tab) Guard() *lifecycle.Guard { return t.guard }

// Stopwatch returns the stopwatch engine.
func (t *Tab) Stopwatch() *timer.Stopwatch { return t.stopwatch }

// Countdown returns the countdown engine.
func (t *Tab) Countdown() *timer.Countdown { return t.countdown }

// Pomodoro returns the pomodoro engine.
func (t *Tab) Pomodoro() *timer.Pomodoro { return t.pomodoro }

// Run applies every envelope from other tabs to the local store, last
// writer wins, until the channel closes or ctx is done.
func (t *Tab) Run(ctx context.Context) error {
	msgs := t.channel.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-msgs:
			if !ok {
				return nil
			}
			t.apply(env)
		}
	}
}

func (t *Tab) apply(env broadcast.Envelope) {
	if err := env.Validate(); err != nil {
		t.log.Warn("ignoring message", "error", err, "sender", env.Sender)
		return
	}
	snap := t.store.Apply(env.Data)
	t.log.Debug("applied remote state",
		"sender", env.Sender,
		"running_count", snap.RunningCount,
	)
}

// Reset clears the shared running indicator in every tab without stopping
// any engine.
func (t *Tab) Reset() {
	snap := t.store.Reset()
	if err := t.channel.Broadcast(snap); err != nil {
		t.log.Warn("broadcast failed", "error", err)
	}
	t.log.Info("shared state reset")
}

// RefreshDailyTotal reads today's accrued time and reports it through
// OnDailyTotal.
func (t *Tab) RefreshDailyTotal(ctx context.Context) (time.Duration, error) {
	if t.appender == nil {
		return 0, nil
	}
	total, err := t.appender.DailyTotal(ctx)
	if err != nil {
		return 0, fmt.Errorf("daily total: %w", err)
	}
	if t.onTotal != nil {
		t.onTotal(total)
	}
	return total, nil
}

// WaitRecorded blocks until every interval already queued by the engines
// has been submitted or has failed.
func (t *Tab) WaitRecorded() {
	for _, e := range t.switcher.Engines() {
		e.WaitRecorded()
	}
}

// Close unloads the tab: running engines release their slots and broadcast
// without recording, then the channel is left. Submissions queued before
// Close still complete.
func (t *Tab) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.guard.Unload()
		for _, e := range t.switcher.Engines() {
			e.Close()
		}
		err = t.channel.Close()
		t.WaitRecorded()
	})
	return err
}
