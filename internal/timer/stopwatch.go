package timer

import (
	"context"
	"time"
)

// Stopwatch counts up without bound. States: Idle, Running.
type Stopwatch struct {
	core
	started time.Time
}

// NewStopwatch creates an idle stopwatch.
func NewStopwatch(deps Deps) *Stopwatch {
	return &Stopwatch{core: newCore(ModeStopwatch, deps)}
}

// Start begins counting. Returns ErrRunning if already running.
func (s *Stopwatch) Start(ctx context.Context) error {
	var fx effects

	s.mu.Lock()
	if s.holding {
		s.mu.Unlock()
		return ErrRunning
	}
	now := s.clock.Now()
	s.started = now
	fx.broadcast(s.acquire(now))
	s.startLoop(ctx, s.Tick)
	t := s.statusLocked(now)
	fx.tick = &t
	s.mu.Unlock()

	s.log.Info("timer started", "activity", string(t.Activity))
	s.flush(ctx, fx)
	return nil
}

// Stop records the full elapsed run. A second Stop is a no-op.
func (s *Stopwatch) Stop(ctx context.Context, reason StopReason) {
	var fx effects

	s.mu.Lock()
	if !s.holding {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	iv := newInterval(s.mode, s.activity, s.started, now, 0, reason)
	s.haltLoop()
	snap, _ := s.release(iv.Duration)
	fx.broadcast(snap)
	fx.record(iv)
	t := s.statusLocked(now)
	fx.tick = &t
	s.mu.Unlock()

	s.log.Info("timer stopped", "reason", reason.String(), "elapsed", iv.Duration)
	s.flush(ctx, fx)
}

// Tick notifies subscribers of the current elapsed time.
func (s *Stopwatch) Tick(ctx context.Context) Tick {
	t := s.Status()
	s.flush(ctx, effects{tick: &t})
	return t
}

// Status returns the current view.
func (s *Stopwatch) Status() Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(s.clock.Now())
}

func (s *Stopwatch) statusLocked(now time.Time) Tick {
	t := Tick{Mode: s.mode, State: StateIdle, Activity: s.activity, At: now}
	if s.holding {
		t.State = StateRunning
		t.Elapsed = now.Sub(s.started)
	}
	return t
}

// Abandon releases the running slot without recording the run.
func (s *Stopwatch) Abandon() bool {
	s.mu.Lock()
	if !s.holding {
		s.mu.Unlock()
		return false
	}
	now := s.clock.Now()
	s.haltLoop()
	snap, _ := s.release(now.Sub(s.started))
	s.mu.Unlock()

	s.flush(context.Background(), effects{snap: &snap})
	return true
}
