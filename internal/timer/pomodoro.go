package timer

import (
	"context"
	"time"
)

// Segment is a pomodoro phase.
type Segment int

// Pomodoro segments.
const (
	SegmentFocus Segment = iota
	SegmentShortBreak
	SegmentLongBreak
)

func (s Segment) String() string {
	switch s {
	case SegmentFocus:
		return "focus"
	case SegmentShortBreak:
		return "short break"
	case SegmentLongBreak:
		return "long break"
	default:
		return "unknown"
	}
}

// IsBreak reports whether s is a break segment.
func (s Segment) IsBreak() bool {
	return s == SegmentShortBreak || s == SegmentLongBreak
}

// PomodoroSettings are the segment lengths and the set size.
type PomodoroSettings struct {
	Focus      time.Duration
	ShortBreak time.Duration
	LongBreak  time.Duration
	Cycles     int // focus segments before a long break
}

// DefaultPomodoroSettings are 25/5/15 minutes with a long break every 4 focus segments.
var DefaultPomodoroSettings = PomodoroSettings{
	Focus:      25 * time.Minute,
	ShortBreak: 5 * time.Minute,
	LongBreak:  15 * time.Minute,
	Cycles:     4,
}

// Pomodoro alternates focus and break segments automatically.
// States: Idle, Focus, Break, Paused. Only focus time is recorded.
type Pomodoro struct {
	core
	settings PomodoroSettings

	running     bool
	seg         Segment
	segStart    time.Time
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration
	completed   int
}

// NewPomodoro creates an idle pomodoro.
func NewPomodoro(deps Deps, settings PomodoroSettings) *Pomodoro {
	if settings.Cycles < 1 {
		settings.Cycles = 1
	}
	return &Pomodoro{
		core:     newCore(ModePomodoro, deps),
		settings: settings,
	}
}

// Settings returns the segment configuration.
func (p *Pomodoro) Settings() PomodoroSettings {
	return p.settings
}

// Start begins a focus segment.
func (p *Pomodoro) Start(ctx context.Context) error {
	var fx effects

	p.mu.Lock()
	if p.holding {
		p.mu.Unlock()
		return ErrRunning
	}
	now := p.clock.Now()
	p.running = true
	p.seg = SegmentFocus
	p.segStart = now
	p.paused = false
	p.pausedTotal = 0
	p.completed = 0
	fx.broadcast(p.acquire(now))
	p.startLoop(ctx, p.Tick)
	t := p.statusLocked(now)
	fx.tick = &t
	p.mu.Unlock()

	p.log.Info("pomodoro started", "focus", p.settings.Focus, "activity", string(t.Activity))
	p.flush(ctx, fx)
	return nil
}

// Stop ends the pomodoro. A focus segment in progress is recorded with its
// partial elapsed time; a break is not. No-op when idle.
func (p *Pomodoro) Stop(ctx context.Context, reason StopReason) {
	var fx effects

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	now := p.clock.Now()
	p.advanceLocked(now, &fx)
	p.settlePauseLocked(now)

	elapsed := p.elapsedLocked(now)
	seg := p.seg
	if seg == SegmentFocus {
		fx.record(newInterval(p.mode, p.activity, p.segStart, now, p.pausedTotal, reason))
	}
	p.haltLoop()
	snap, _ := p.release(elapsed)
	fx.broadcast(snap)
	p.running = false
	p.seg = SegmentFocus
	p.completed = 0
	t := p.statusLocked(now)
	fx.tick = &t
	p.mu.Unlock()

	p.log.Info("pomodoro stopped", "reason", reason.String(), "segment", seg.String())
	p.flush(ctx, fx)
}

// Skip ends the current segment immediately. A focus segment records its
// partial time before the break begins; a skipped break records nothing.
func (p *Pomodoro) Skip(ctx context.Context) {
	var fx effects

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	now := p.clock.Now()
	p.advanceLocked(now, &fx)
	p.settlePauseLocked(now)
	p.transitionLocked(now, p.elapsedLocked(now), false, &fx)
	if p.stopLoop == nil {
		p.resumeLoop(p.Tick)
	}
	t := p.statusLocked(now)
	fx.tick = &t
	p.mu.Unlock()

	p.flush(ctx, fx)
}

// Pause freezes the current segment. No-op when idle or already paused.
func (p *Pomodoro) Pause() {
	p.mu.Lock()
	if !p.running || p.paused {
		p.mu.Unlock()
		return
	}
	now := p.clock.Now()
	var fx effects
	p.advanceLocked(now, &fx)
	p.paused = true
	p.pausedAt = now
	p.haltLoop()
	t := p.statusLocked(now)
	fx.tick = &t
	p.mu.Unlock()

	p.flush(p.ctxOrBackground(), fx)
}

// Resume continues a paused segment. No-op unless paused.
func (p *Pomodoro) Resume() {
	p.mu.Lock()
	if !p.running || !p.paused {
		p.mu.Unlock()
		return
	}
	now := p.clock.Now()
	p.settlePauseLocked(now)
	p.resumeLoop(p.Tick)
	t := p.statusLocked(now)
	p.mu.Unlock()

	p.flush(context.Background(), effects{tick: &t})
}

// Paused reports whether the pomodoro is paused.
func (p *Pomodoro) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && p.paused
}

// Tick performs every transition that has come due and notifies subscribers.
func (p *Pomodoro) Tick(ctx context.Context) Tick {
	var fx effects

	p.mu.Lock()
	now := p.clock.Now()
	p.advanceLocked(now, &fx)
	t := p.statusLocked(now)
	fx.tick = &t
	p.mu.Unlock()

	p.flush(ctx, fx)
	return t
}

// Status returns the current view without performing transitions.
func (p *Pomodoro) Status() Tick {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked(p.clock.Now())
}

// Abandon releases the running slot without recording anything.
func (p *Pomodoro) Abandon() bool {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return false
	}
	now := p.clock.Now()
	elapsed := p.elapsedLocked(now)
	p.haltLoop()
	snap, _ := p.release(elapsed)
	p.running = false
	p.paused = false
	p.seg = SegmentFocus
	p.completed = 0
	p.mu.Unlock()

	p.flush(context.Background(), effects{snap: &snap})
	return true
}

func (p *Pomodoro) ctxOrBackground() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runCtx != nil {
		return p.runCtx
	}
	return context.Background()
}

func (p *Pomodoro) lengthOf(seg Segment) time.Duration {
	switch seg {
	case SegmentShortBreak:
		return p.settings.ShortBreak
	case SegmentLongBreak:
		return p.settings.LongBreak
	default:
		return p.settings.Focus
	}
}

func (p *Pomodoro) elapsedLocked(now time.Time) time.Duration {
	if !p.running {
		return 0
	}
	if p.paused {
		now = p.pausedAt
	}
	d := now.Sub(p.segStart) - p.pausedTotal
	if d < 0 {
		d = 0
	}
	return d
}

func (p *Pomodoro) settlePauseLocked(now time.Time) {
	if p.paused {
		p.pausedTotal += now.Sub(p.pausedAt)
		p.paused = false
	}
}

// advanceLocked runs every segment that has fully elapsed by now, each
// transition happening at the exact instant its segment ended.
func (p *Pomodoro) advanceLocked(now time.Time, fx *effects) {
	if !p.running || p.paused {
		return
	}
	for {
		length := p.lengthOf(p.seg)
		end := p.segStart.Add(length + p.pausedTotal)
		if now.Before(end) {
			return
		}
		p.transitionLocked(end, length, true, fx)
	}
}

// transitionLocked closes the current segment at instant at, with active
// time elapsed, and opens the next one. Only natural transitions notify.
func (p *Pomodoro) transitionLocked(at time.Time, elapsed time.Duration, natural bool, fx *effects) {
	from := p.seg
	if from == SegmentFocus {
		fx.record(newInterval(p.mode, p.activity, p.segStart, at, p.pausedTotal, IntervalTransition))
		p.completed++
		if p.completed >= p.settings.Cycles {
			p.seg = SegmentLongBreak
		} else {
			p.seg = SegmentShortBreak
		}
		if natural {
			fx.notify("Focus complete", "Time for a "+p.seg.String()+".")
		}
	} else {
		if from == SegmentLongBreak {
			p.completed = 0
		}
		p.seg = SegmentFocus
		if natural {
			fx.notify("Break over", "Back to "+string(p.activity)+".")
		}
	}
	p.segStart = at
	p.pausedTotal = 0
	fx.broadcast(p.cycle(at, elapsed))

	p.log.Info("pomodoro transition",
		"from", from.String(),
		"to", p.seg.String(),
		"cycle", p.completed,
	)
}

func (p *Pomodoro) statusLocked(now time.Time) Tick {
	t := Tick{
		Mode:     p.mode,
		State:    StateIdle,
		Activity: p.activity,
		Segment:  p.seg,
		Cycle:    p.completed,
		Cycles:   p.settings.Cycles,
		Target:   p.lengthOf(p.seg),
		At:       now,
	}
	if !p.running {
		t.Remaining = t.Target
		return t
	}
	switch {
	case p.paused:
		t.State = StatePaused
		t.Paused = true
	case p.seg.IsBreak():
		t.State = StateBreak
	default:
		t.State = StateFocus
	}
	t.Elapsed = p.elapsedLocked(now)
	if t.Elapsed > t.Target {
		t.Elapsed = t.Target
	}
	t.Remaining = t.Target - t.Elapsed
	return t
}
