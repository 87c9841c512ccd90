package tab

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/npratt/tempo/internal/broadcast"
	"github.com/npratt/tempo/internal/timer"
)

func newConsole(t *testing.T) (*Console, *Tab, *bytes.Buffer) {
	t.Helper()
	bus := broadcast.NewBus(0)
	t.Cleanup(bus.Close)

	tb, err := New(Options{ID: "c", Config: testConfig(), Channel: bus.Join("c")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = tb.Close() })

	var out bytes.Buffer
	return NewConsole(tb, &out), tb, &out
}

func TestConsole_SwitchRefusedWhileRunning(t *testing.T) {
	c, tb, _ := newConsole(t)
	ctx := context.Background()

	if _, err := c.Exec(ctx, "start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := c.Exec(ctx, "mode stopwatch")
	if !errors.Is(err, timer.ErrSwitchWhileRunning) {
		t.Errorf("mode while running = %v, want ErrSwitchWhileRunning", err)
	}
	if tb.Switcher().CurrentMode() != timer.ModePomodoro || !tb.Pomodoro().Running() {
		t.Error("engine left running state or mode changed")
	}
	if _, err := c.Exec(ctx, "activity coding"); !errors.Is(err, timer.ErrRunning) {
		t.Errorf("activity while running = %v, want ErrRunning", err)
	}

	if _, err := c.Exec(ctx, "stop"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := c.Exec(ctx, "mode countdown"); err != nil {
		t.Errorf("mode after stop: %v", err)
	}
	if tb.Switcher().CurrentMode() != timer.ModeCountdown {
		t.Errorf("mode = %s", tb.Switcher().CurrentMode())
	}
}

func TestConsole_QuitWarnsWhileRunning(t *testing.T) {
	c, _, out := newConsole(t)
	ctx := context.Background()

	if quit, _ := c.Exec(ctx, "quit"); !quit {
		t.Fatal("idle quit should exit immediately")
	}

	_, _ = c.Exec(ctx, "start")
	if quit, _ := c.Exec(ctx, "quit"); quit {
		t.Fatal("first quit while running should only warn")
	}
	if !strings.Contains(out.String(), "quit again") {
		t.Errorf("no warning in output: %q", out.String())
	}
	if quit, _ := c.Exec(ctx, "quit"); !quit {
		t.Error("second quit should exit")
	}
}

func TestConsole_Target(t *testing.T) {
	c, tb, _ := newConsole(t)
	ctx := context.Background()

	tests := []struct {
		line string
		want time.Duration
	}{
		{"target 44m", 40 * time.Minute},
		{"target 45m", 50 * time.Minute},
		{"+", time.Hour},
		{"-", 50 * time.Minute},
		{"target 5h", 3 * time.Hour},
		{"target 1m", 10 * time.Minute},
	}
	for _, tt := range tests {
		if _, err := c.Exec(ctx, tt.line); err != nil {
			t.Fatalf("%q: %v", tt.line, err)
		}
		if got := tb.Countdown().Target(); got != tt.want {
			t.Errorf("%q: target = %v, want %v", tt.line, got, tt.want)
		}
	}

	if _, err := c.Exec(ctx, "target soon"); err == nil {
		t.Error("invalid duration accepted")
	}
}

func TestConsole_Errors(t *testing.T) {
	c, _, _ := newConsole(t)
	ctx := context.Background()

	if _, err := c.Exec(ctx, "mode stopwatch"); err != nil {
		t.Fatalf("mode: %v", err)
	}
	if _, err := c.Exec(ctx, "pause"); err == nil {
		t.Error("stopwatch pause should fail")
	}
	if _, err := c.Exec(ctx, "skip"); err == nil {
		t.Error("stopwatch skip should fail")
	}
	if _, err := c.Exec(ctx, "dance"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown = %v", err)
	}
	if quit, err := c.Exec(ctx, "   "); quit || err != nil {
		t.Error("blank line should be ignored")
	}
}

func TestConsole_Run(t *testing.T) {
	c, tb, out := newConsole(t)

	in := strings.NewReader("activity reading\nstart\nstop\nbogus\nquit\n")
	if err := c.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tb.Switcher().Current().Activity() != timer.ActivityReading {
		t.Error("activity not applied")
	}
	if !strings.Contains(out.String(), "error: unknown command") {
		t.Errorf("output missing error line: %q", out.String())
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{90 * time.Second, "01:30"},
		{25 * time.Minute, "25:00"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.d); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
