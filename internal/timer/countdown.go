package timer

import (
	"context"
	"fmt"
	"time"
)

// TargetBounds constrains countdown targets.
type TargetBounds struct {
	Min  time.Duration
	Max  time.Duration
	Step time.Duration
}

// DefaultTargetBounds are ten minutes to three hours in ten-minute steps.
var DefaultTargetBounds = TargetBounds{
	Min:  10 * time.Minute,
	Max:  3 * time.Hour,
	Step: 10 * time.Minute,
}

// Snap rounds d to the nearest Step (halves round up) and clamps it to [Min, Max].
func (b TargetBounds) Snap(d time.Duration) time.Duration {
	if b.Step > 0 {
		d = ((d + b.Step/2) / b.Step) * b.Step
	}
	if d < b.Min {
		d = b.Min
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Countdown counts down from a target to zero.
// States: Idle, Running, Paused, Completed.
type Countdown struct {
	core
	bounds TargetBounds
	target time.Duration
	state  State

	segStart    time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
}

// NewCountdown creates an idle countdown with the given initial target,
// snapped to bounds.
func NewCountdown(deps Deps, bounds TargetBounds, target time.Duration) *Countdown {
	return &Countdown{
		core:   newCore(ModeCountdown, deps),
		bounds: bounds,
		target: bounds.Snap(target),
		state:  StateIdle,
	}
}

// Bounds returns the target bounds.
func (c *Countdown) Bounds() TargetBounds {
	return c.bounds
}

// Target returns the selected duration.
func (c *Countdown) Target() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetTarget snaps and stores a new target. Refused while running.
func (c *Countdown) SetTarget(d time.Duration) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holding {
		return c.target, ErrRunning
	}
	c.target = c.bounds.Snap(d)
	if c.state == StateCompleted {
		c.state = StateIdle
	}
	return c.target, nil
}

// AdjustTarget moves the target by steps increments of Step.
func (c *Countdown) AdjustTarget(steps int) (time.Duration, error) {
	return c.SetTarget(c.Target() + time.Duration(steps)*c.bounds.Step)
}

// Start begins counting down from the target. A completed countdown
// restarts from the full target.
func (c *Countdown) Start(ctx context.Context) error {
	var fx effects

	c.mu.Lock()
	if c.holding {
		c.mu.Unlock()
		return ErrRunning
	}
	now := c.clock.Now()
	c.state = StateRunning
	c.segStart = now
	c.pausedTotal = 0
	fx.broadcast(c.acquire(now))
	c.startLoop(ctx, c.Tick)
	t := c.statusLocked(now)
	fx.tick = &t
	c.mu.Unlock()

	c.log.Info("timer started", "target", c.target, "activity", string(t.Activity))
	c.flush(ctx, fx)
	return nil
}

// Stop ends the run early and records the partial elapsed time.
// Stop on an idle or completed countdown is a no-op.
func (c *Countdown) Stop(ctx context.Context, reason StopReason) {
	var fx effects

	c.mu.Lock()
	if !c.holding {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	if c.dueLocked(now) {
		c.completeLocked(&fx)
	} else {
		c.settlePauseLocked(now)
		iv := newInterval(c.mode, c.activity, c.segStart, now, c.pausedTotal, reason)
		c.haltLoop()
		snap, _ := c.release(iv.Duration)
		fx.broadcast(snap)
		fx.record(iv)
		c.state = StateIdle
		c.log.Info("timer stopped", "reason", reason.String(), "elapsed", iv.Duration)
	}
	t := c.statusLocked(now)
	fx.tick = &t
	c.mu.Unlock()

	c.flush(ctx, fx)
}

// Pause freezes the countdown. No-op unless running.
func (c *Countdown) Pause() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	c.state = StatePaused
	c.pausedAt = now
	c.haltLoop()
	t := c.statusLocked(now)
	c.mu.Unlock()

	c.flush(context.Background(), effects{tick: &t})
}

// Resume continues a paused countdown. No-op unless paused.
func (c *Countdown) Resume() {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	c.settlePauseLocked(now)
	c.state = StateRunning
	c.resumeLoop(c.Tick)
	t := c.statusLocked(now)
	c.mu.Unlock()

	c.flush(context.Background(), effects{tick: &t})
}

// Paused reports whether the countdown is paused.
func (c *Countdown) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StatePaused
}

// Reset returns a completed countdown to Idle. Refused while running.
func (c *Countdown) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holding {
		return ErrRunning
	}
	c.state = StateIdle
	return nil
}

// Tick completes the countdown once the target has elapsed and notifies
// subscribers.
func (c *Countdown) Tick(ctx context.Context) Tick {
	var fx effects

	c.mu.Lock()
	now := c.clock.Now()
	if c.dueLocked(now) {
		c.completeLocked(&fx)
	}
	t := c.statusLocked(now)
	fx.tick = &t
	c.mu.Unlock()

	c.flush(ctx, fx)
	return t
}

// Status returns the current view without completing the countdown.
func (c *Countdown) Status() Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(c.clock.Now())
}

// Abandon releases the running slot without recording anything.
func (c *Countdown) Abandon() bool {
	c.mu.Lock()
	if !c.holding {
		c.mu.Unlock()
		return false
	}
	now := c.clock.Now()
	elapsed := c.elapsedLocked(now)
	c.haltLoop()
	snap, _ := c.release(elapsed)
	c.state = StateIdle
	c.mu.Unlock()

	c.flush(context.Background(), effects{snap: &snap})
	return true
}

func (c *Countdown) elapsedLocked(now time.Time) time.Duration {
	switch c.state {
	case StateRunning:
		return now.Sub(c.segStart) - c.pausedTotal
	case StatePaused:
		return c.pausedAt.Sub(c.segStart) - c.pausedTotal
	case StateCompleted:
		return c.target
	}
	return 0
}

func (c *Countdown) dueLocked(now time.Time) bool {
	return c.state == StateRunning && c.elapsedLocked(now) >= c.target
}

// settlePauseLocked folds an open pause into the paused total.
func (c *Countdown) settlePauseLocked(now time.Time) {
	if c.state == StatePaused {
		c.pausedTotal += now.Sub(c.pausedAt)
		c.state = StateRunning
	}
}

// completeLocked finishes the run at the exact instant the target elapsed.
// The logged duration is the selected target, regardless of when the tick
// that noticed completion fired.
func (c *Countdown) completeLocked(fx *effects) {
	end := c.segStart.Add(c.target + c.pausedTotal)
	iv := newInterval(c.mode, c.activity, c.segStart, end, c.pausedTotal, NaturalCompletion)
	c.haltLoop()
	snap, _ := c.release(iv.Duration)
	fx.broadcast(snap)
	fx.record(iv)
	fx.notify("Timer complete", "Your "+formatMinutes(c.target)+" timer has finished.")
	c.state = StateCompleted
	c.log.Info("timer completed", "target", c.target)
}

func (c *Countdown) statusLocked(now time.Time) Tick {
	t := Tick{
		Mode:     c.mode,
		State:    c.state,
		Activity: c.activity,
		Target:   c.target,
		Paused:   c.state == StatePaused,
		At:       now,
	}
	t.Elapsed = c.elapsedLocked(now)
	if t.Elapsed > c.target {
		t.Elapsed = c.target
	}
	if t.Elapsed < 0 {
		t.Elapsed = 0
	}
	t.Remaining = c.target - t.Elapsed
	if c.state == StateIdle {
		t.Remaining = c.target
	}
	return t
}

func formatMinutes(d time.Duration) string {
	return fmt.Sprintf("%d-minute", int(d.Round(time.Minute)/time.Minute))
}
