package timer

import (
	"context"
	"testing"
	"time"
)

func newTestPomodoro(h *harness) *Pomodoro {
	return NewPomodoro(h.deps, DefaultPomodoroSettings)
}

func TestPomodoro_FocusThenBreak(t *testing.T) {
	h := newHarness(t)
	p := newTestPomodoro(h)
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if tk := p.Status(); tk.State != StateFocus || tk.Remaining != 25*time.Minute {
		t.Fatalf("status = %+v, want focus with 25m", tk)
	}

	h.clock.Advance(25 * time.Minute)
	tk := p.Tick(ctx)
	if tk.State != StateBreak || tk.Segment != SegmentShortBreak {
		t.Fatalf("after focus: %+v, want short break", tk)
	}
	h.assertCount(t, 1)

	got := h.recorded(p)
	if len(got) != 1 || got[0].Duration != 25*time.Minute {
		t.Fatalf("recorded %+v, want one 25m focus", got)
	}

	// Break runs out and focus resumes; the break is never recorded
	h.clock.Advance(5 * time.Minute)
	if tk := p.Tick(ctx); tk.State != StateFocus {
		t.Fatalf("after break: %+v, want focus", tk)
	}
	if n := len(h.recorded(p)); n != 1 {
		t.Errorf("recorded %d intervals after break, want 1", n)
	}
	if h.notifier.count() != 2 {
		t.Errorf("notifications = %d, want 2", h.notifier.count())
	}
}

func TestPomodoro_PauseSubtractedFromFocus(t *testing.T) {
	h := newHarness(t)
	p := newTestPomodoro(h)
	ctx := context.Background()

	const pause = 7 * time.Minute
	_ = p.Start(ctx)
	h.clock.Advance(10 * time.Minute)
	p.Pause()
	if tk := p.Status(); tk.State != StatePaused {
		t.Fatalf("State = %s, want paused", tk.State)
	}
	h.clock.Advance(pause)
	p.Resume()
	h.clock.Advance(8 * time.Minute)

	wall := 25 * time.Minute
	p.Stop(ctx, UserStop)

	got := h.recorded(p)
	if len(got) != 1 {
		t.Fatalf("recorded %d intervals, want 1", len(got))
	}
	if got[0].Duration != wall-pause {
		t.Errorf("Duration = %v, want %v", got[0].Duration, wall-pause)
	}
	h.assertCount(t, 0)
}

func TestPomodoro_PausedFocusRunsFullLength(t *testing.T) {
	h := newHarness(t)
	p := newTestPomodoro(h)
	ctx := context.Background()

	_ = p.Start(ctx)
	h.clock.Advance(20 * time.Minute)
	p.Pause()
	h.clock.Advance(10 * time.Minute)
	if tk := p.Tick(ctx); tk.State != StatePaused || tk.Remaining != 5*time.Minute {
		t.Fatalf("paused tick = %+v", tk)
	}
	p.Resume()
	h.clock.Advance(5 * time.Minute)
	p.Tick(ctx)

	got := h.recorded(p)
	if len(got) != 1 || got[0].Duration != 25*time.Minute {
		t.Fatalf("recorded %+v, want one 25m focus", got)
	}
	if wall := got[0].EndTime.Sub(got[0].StartTime); wall != 35*time.Minute {
		t.Errorf("wall span = %v, want 35m", wall)
	}
}

func TestPomodoro_BreakNeverRecorded(t *testing.T) {
	h := newHarness(t)
	p := newTestPomodoro(h)
	ctx := context.Background()

	_ = p.Start(ctx)
	h.clock.Advance(25 * time.Minute)
	p.Tick(ctx)
	h.clock.Advance(3 * time.Minute)
	p.Stop(ctx, UserStop)

	if n := len(h.recorded(p)); n != 1 {
		t.Errorf("recorded %d intervals, want only the focus", n)
	}
	h.assertCount(t, 0)
}

func TestPomodoro_LongBreakAfterCycles(t *testing.T) {
	h := newHarness(t)
	p := NewPomodoro(h.deps, PomodoroSettings{
		Focus:      10 * time.Minute,
		ShortBreak: 2 * time.Minute,
		LongBreak:  6 * time.Minute,
		Cycles:     2,
	})
	ctx := context.Background()

	_ = p.Start(ctx)
	h.clock.Advance(10 * time.Minute)
	if tk := p.Tick(ctx); tk.Segment != SegmentShortBreak || tk.Cycle != 1 {
		t.Fatalf("first break = %+v", tk)
	}
	h.clock.Advance(2*time.Minute + 10*time.Minute)
	if tk := p.Tick(ctx); tk.Segment != SegmentLongBreak || tk.Cycle != 2 {
		t.Fatalf("second break = %+v, want long break", tk)
	}
	h.clock.Advance(6 * time.Minute)
	if tk := p.Tick(ctx); tk.Segment != SegmentFocus || tk.Cycle != 0 {
		t.Fatalf("after long break = %+v, want fresh set", tk)
	}
}

func TestPomodoro_CatchUpAfterSuspend(t *testing.T) {
	h := newHarness(t)
	p := newTestPomodoro(h)
	ctx := context.Background()

	_ = p.Start(ctx)
	// Focus 25 + break 5 + focus 25 + break 5 = 60m, then 3m into focus
	h.clock.Advance(63 * time.Minute)
	tk := p.Tick(ctx)

	if tk.State != StateFocus || tk.Elapsed != 3*time.Minute {
		t.Fatalf("tick = %+v, want focus 3m in", tk)
	}
	got := h.recorded(p)
	if len(got) != 2 {
		t.Fatalf("recorded %d intervals, want 2", len(got))
	}
	if !got[1].StartTime.Equal(epoch.Add(30 * time.Minute)) {
		t.Errorf("second focus start = %v, want %v", got[1].StartTime, epoch.Add(30*time.Minute))
	}
	h.assertCount(t, 1)
}

func TestPomodoro_SkipFocusRecordsPartial(t *testing.T) {
	h := newHarness(t)
	p := newTestPomodoro(h)
	ctx := context.Background()

	_ = p.Start(ctx)
	h.clock.Advance(9 * time.Minute)
	p.Skip(ctx)

	if tk := p.Status(); tk.State != StateBreak {
		t.Fatalf("State = %s, want break", tk.State)
	}
	got := h.recorded(p)
	if len(got) != 1 || got[0].Duration != 9*time.Minute {
		t.Fatalf("recorded %+v, want one 9m partial", got)
	}

	h.clock.Advance(time.Minute)
	p.Skip(ctx)
	if tk := p.Status(); tk.State != StateFocus || tk.Elapsed != 0 {
		t.Fatalf("after skipping break: %+v", tk)
	}
	if n := len(h.recorded(p)); n != 1 {
		t.Errorf("skipped break recorded: %d intervals", n)
	}
	if h.notifier.count() != 0 {
		t.Errorf("skips sent %d notifications, want 0", h.notifier.count())
	}
	h.assertCount(t, 1)
}

func TestPomodoro_IdleOpsAreNoops(t *testing.T) {
	h := newHarness(t)
	p := newTestPomodoro(h)
	ctx := context.Background()

	p.Pause()
	p.Resume()
	p.Skip(ctx)
	p.Stop(ctx, UserStop)

	if p.Paused() || p.Running() {
		t.Error("idle pomodoro changed state")
	}
	if h.bc.count() != 0 || len(h.recorded(p)) != 0 {
		t.Errorf("idle ops had side effects: %d broadcasts, %d records", h.bc.count(), len(h.recorded(p)))
	}
}

func TestPomodoro_TransitionKeepsCount(t *testing.T) {
	h := newHarness(t)
	p := newTestPomodoro(h)
	ctx := context.Background()

	_ = p.Start(ctx)
	before := h.bc.count()
	h.clock.Advance(25 * time.Minute)
	p.Tick(ctx)

	if h.bc.count() != before+1 {
		t.Errorf("transition broadcasts = %d, want 1", h.bc.count()-before)
	}
	last := h.bc.last()
	if last.RunningCount != 1 {
		t.Errorf("RunningCount after transition = %d, want 1", last.RunningCount)
	}
	if last.StartTime == nil || !last.StartTime.Equal(epoch.Add(25*time.Minute)) {
		t.Errorf("StartTime = %v, want break start", last.StartTime)
	}
}
