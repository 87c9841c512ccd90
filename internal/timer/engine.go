// Package timer implements the stopwatch, countdown and pomodoro engines.
//
// Every engine holds one slot in the shared running count while it runs:
// starting increments the shared count and broadcasts, stopping decrements
// and broadcasts. Elapsed time is always recomputed from the segment's
// absolute start instant, never accumulated from tick deltas, so a tab that
// was throttled or suspended catches up on its next tick.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/npratt/tempo/internal/sharedstate"
)

// Sentinel errors.
var (
	ErrRunning            = errors.New("timer is running")
	ErrSwitchWhileRunning = errors.New("cannot switch timer type while a timer is running")
	ErrUnknownMode        = errors.New("unknown timer mode")
	ErrInvalidActivity    = errors.New("invalid activity")
)

// Mode identifies an engine type.
type Mode string

// Engine modes.
const (
	ModeStopwatch Mode = "stopwatch"
	ModeCountdown Mode = "timer"
	ModePomodoro  Mode = "pomodoro"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeStopwatch, ModeCountdown, ModePomodoro}

// ParseMode parses a mode name. "countdown" is accepted as an alias for "timer".
func ParseMode(s string) (Mode, error) {
	switch s {
	case string(ModeStopwatch):
		return ModeStopwatch, nil
	case string(ModeCountdown), "countdown":
		return ModeCountdown, nil
	case string(ModePomodoro):
		return ModePomodoro, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// State is an engine's position in its state machine.
type State string

// Engine states. Not every engine uses every state.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFocus     State = "focus"
	StateBreak     State = "break"
)

// Tick is a point-in-time view of an engine.
type Tick struct {
	Mode      Mode
	State     State
	Activity  Activity
	Elapsed   time.Duration // active time in the current segment
	Remaining time.Duration // zero for the stopwatch
	Target    time.Duration // current segment length, zero for the stopwatch
	Segment   Segment       // pomodoro only
	Cycle     int           // pomodoro focus segments completed in the current set
	Cycles    int           // pomodoro set size
	Paused    bool
	At        time.Time
}

// Running reports whether the engine held a running slot at the time of the tick.
func (t Tick) Running() bool {
	return t.State != StateIdle && t.State != StateCompleted
}

// Engine is the contract shared by all timer types.
type Engine interface {
	Mode() Mode
	// Start begins a run. ctx bounds the engine's background ticker; its
	// values, not its cancellation, reach intervals recorded on completion.
	Start(ctx context.Context) error
	// Stop ends the run and queues the current interval for recording
	// unless it is excluded. It does not wait for the recorder. Stop on an
	// idle engine is a no-op.
	Stop(ctx context.Context, reason StopReason)
	// Tick advances the engine to now, performing any due transitions, and
	// notifies tick subscribers.
	Tick(ctx context.Context) Tick
	// Status returns the current view without performing transitions.
	Status() Tick
	// Running reports whether the engine holds a running slot.
	Running() bool
	// OnTick registers fn for every tick. The returned func unsubscribes.
	OnTick(fn func(Tick)) (unsubscribe func())
	SetActivity(a Activity) error
	Activity() Activity
	// Abandon releases the running slot without recording anything.
	// It reports whether a slot was released.
	Abandon() bool
	// WaitRecorded blocks until queued intervals reach the recorder.
	WaitRecorded()
	// Close stops the background ticker and drops all tick subscribers.
	Close()
}

// Pauser is implemented by engines that can pause.
type Pauser interface {
	Pause()
	Resume()
	Paused() bool
}

// Skipper is implemented by engines with segments that can be skipped.
type Skipper interface {
	Skip(ctx context.Context)
}

// Broadcaster forwards a shared state snapshot to other tabs.
type Broadcaster interface {
	Broadcast(snap sharedstate.Snapshot) error
}

// Recorder persists finished intervals. recorded is false when the
// recorder deliberately skipped iv.
type Recorder interface {
	Record(ctx context.Context, iv Interval) (recorded bool, err error)
}

// Notifier shows a user-facing notification.
type Notifier interface {
	Notify(title, body string)
}

// Deps are the collaborators shared by every engine in a tab.
type Deps struct {
	Store       *sharedstate.Store
	Broadcaster Broadcaster     // optional
	Recorder    Recorder        // optional
	Notifier    Notifier        // optional
	Clock       clockwork.Clock // defaults to the real clock
	Logger      *slog.Logger    // defaults to slog.Default()
	Activity    Activity        // initial activity, defaults to Study

	// TickInterval drives the background ticker. Zero disables it; the
	// owner then calls Tick itself.
	TickInterval time.Duration

	// OnRecordError is called when the recorder rejects an interval. It
	// runs on the recording goroutine, never on the caller of Stop or Tick.
	OnRecordError func(Interval, error)
}
