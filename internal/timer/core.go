package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/npratt/tempo/internal/sharedstate"
)

// core is the machinery every engine embeds: the running-slot hold on the
// shared store, the background ticker, tick subscribers, and the deferred
// side effects of a transition.
type core struct {
	mode  Mode
	deps  Deps
	clock clockwork.Clock
	log   *slog.Logger

	mu       sync.Mutex
	activity Activity
	holding  bool
	runCtx   context.Context
	stopLoop chan struct{}
	subs     map[int]func(Tick)
	nextSub  int

	recMu   sync.Mutex
	recTail chan struct{} // closed when the latest queued recording finishes
}

func newCore(mode Mode, deps Deps) core {
	if deps.Store == nil {
		deps.Store = sharedstate.New()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	activity := deps.Activity
	if !activity.Valid() {
		activity = ActivityStudy
	}
	return core{
		mode:     mode,
		deps:     deps,
		clock:    clock,
		log:      log.With("mode", string(mode)),
		activity: activity,
		subs:     make(map[int]func(Tick)),
	}
}

// effects are collected under the lock and applied after it is released.
type effects struct {
	snap    *sharedstate.Snapshot
	records []Interval
	notes   [][2]string
	tick    *Tick
}

func (fx *effects) broadcast(snap sharedstate.Snapshot) {
	fx.snap = &snap
}

func (fx *effects) record(iv Interval) {
	fx.records = append(fx.records, iv)
}

func (fx *effects) notify(title, body string) {
	fx.notes = append(fx.notes, [2]string{title, body})
}

// acquire takes a running slot. Caller holds mu.
func (c *core) acquire(now time.Time) sharedstate.Snapshot {
	st := c.deps.Store
	st.Increment()
	st.SetStartTime(now)
	c.holding = true
	return st.SetDisplayTime(0)
}

// release gives the running slot back. Caller holds mu.
func (c *core) release(display time.Duration) (sharedstate.Snapshot, bool) {
	if !c.holding {
		return sharedstate.Snapshot{}, false
	}
	st := c.deps.Store
	st.SetDisplayTime(display.Milliseconds())
	c.holding = false
	return st.Decrement(), true
}

// cycle ends one segment and begins the next. The running slot is kept;
// only the start instant and display value move. Caller holds mu.
func (c *core) cycle(at time.Time, display time.Duration) sharedstate.Snapshot {
	st := c.deps.Store
	st.SetStartTime(at)
	return st.SetDisplayTime(display.Milliseconds())
}

// startLoop runs tick on every TickInterval until stopped or ctx is done.
// Caller holds mu.
func (c *core) startLoop(ctx context.Context, tick func(context.Context) Tick) {
	c.runCtx = ctx
	if c.deps.TickInterval <= 0 || c.stopLoop != nil {
		return
	}
	stop := make(chan struct{})
	c.stopLoop = stop
	ticker := c.clock.NewTicker(c.deps.TickInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.Chan():
				tick(ctx)
			}
		}
	}()
}

// haltLoop cancels the background ticker. Caller holds mu.
func (c *core) haltLoop() {
	if c.stopLoop != nil {
		close(c.stopLoop)
		c.stopLoop = nil
	}
}

// resumeLoop restarts the ticker with the context of the current run.
// Caller holds mu.
func (c *core) resumeLoop(tick func(context.Context) Tick) {
	ctx := c.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	c.startLoop(ctx, tick)
}

// flush applies the side effects of a transition. Must not hold mu.
func (c *core) flush(ctx context.Context, fx effects) {
	if fx.snap != nil && c.deps.Broadcaster != nil {
		if err := c.deps.Broadcaster.Broadcast(*fx.snap); err != nil {
			c.log.Warn("broadcast failed", "error", err)
		}
	}

	for _, n := range fx.notes {
		if c.deps.Notifier != nil {
			c.deps.Notifier.Notify(n[0], n[1])
		}
	}

	c.queueRecords(ctx, fx.records)

	if fx.tick != nil {
		c.mu.Lock()
		subs := make([]func(Tick), 0, len(c.subs))
		for _, fn := range c.subs {
			subs = append(subs, fn)
		}
		c.mu.Unlock()
		for _, fn := range subs {
			fn(*fx.tick)
		}
	}
}

// queueRecords hands ivs to the recorder on a background goroutine. Each
// batch waits for the previous one, so intervals arrive in order.
func (c *core) queueRecords(ctx context.Context, ivs []Interval) {
	var pending []Interval
	for _, iv := range ivs {
		if iv.Duration <= 0 {
			c.log.Debug("skipping empty interval", "reason", iv.Reason.String())
			continue
		}
		pending = append(pending, iv)
	}
	if len(pending) == 0 || c.deps.Recorder == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// A tab quitting right after a stop must not cancel the submission.
	ctx = context.WithoutCancel(ctx)

	done := make(chan struct{})
	c.recMu.Lock()
	prev := c.recTail
	c.recTail = done
	c.recMu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		for _, iv := range pending {
			c.recordInterval(ctx, iv)
		}
	}()
}

func (c *core) recordInterval(ctx context.Context, iv Interval) {
	recorded, err := c.deps.Recorder.Record(ctx, iv)
	if err != nil {
		c.log.Error("interval not recorded",
			"error", err,
			"duration_ms", iv.Duration.Milliseconds(),
			"activity", string(iv.Activity),
		)
		if c.deps.OnRecordError != nil {
			c.deps.OnRecordError(iv, err)
		}
		return
	}
	if !recorded {
		return
	}
	c.log.Info("interval recorded",
		"duration_ms", iv.Duration.Milliseconds(),
		"activity", string(iv.Activity),
		"reason", iv.Reason.String(),
	)
}

// WaitRecorded blocks until every interval queued so far has been
// submitted or has failed.
func (c *core) WaitRecorded() {
	c.recMu.Lock()
	tail := c.recTail
	c.recMu.Unlock()
	if tail != nil {
		<-tail
	}
}

// Mode returns the engine's mode.
func (c *core) Mode() Mode {
	return c.mode
}

// OnTick registers fn for every tick.
func (c *core) OnTick(fn func(Tick)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Activity returns the activity new intervals are tagged with.
func (c *core) Activity() Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity
}

// SetActivity changes the activity. Refused while running.
func (c *core) SetActivity(a Activity) error {
	if !a.Valid() {
		return ErrInvalidActivity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holding {
		return ErrRunning
	}
	c.activity = a
	return nil
}

// Running reports whether the engine holds a running slot.
func (c *core) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holding
}

// Close stops the background ticker and drops all subscribers.
// A running engine keeps its slot; use Abandon to release it.
func (c *core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLoop()
	c.subs = make(map[int]func(Tick))
}
