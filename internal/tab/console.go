package tab

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/npratt/tempo/internal/timer"
)

// ErrUnknownCommand is returned for unrecognized console input.
var ErrUnknownCommand = errors.New("unknown command")

const consoleHelp = `commands:
  start | stop | pause | resume | skip
  mode stopwatch|timer|pomodoro
  activity <name>
  target <duration> | + | -
  status | reset | help | quit`

// Console drives a tab from line-oriented input. It is the headless
// counterpart of the terminal UI.
type Console struct {
	tab    *Tab
	out    io.Writer
	warned bool
}

// NewConsole returns a console for t writing to out.
func NewConsole(t *Tab, out io.Writer) *Console {
	return &Console{tab: t, out: out}
}

// Run executes commands from in until quit, EOF, or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	c.println(c.Status())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			quit, err := c.Exec(ctx, line)
			if err != nil {
				c.println("error: " + err.Error())
			}
			if quit {
				return nil
			}
		}
	}
}

// Exec runs one command line. quit is true when the tab should exit.
func (c *Console) Exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	if cmd != "quit" && cmd != "exit" && cmd != "q" {
		c.warned = false
	}

	sw := c.tab.Switcher()
	engine := sw.Current()

	switch cmd {
	case "start":
		if err := engine.Start(ctx); err != nil {
			return false, err
		}
	case "stop":
		engine.Stop(ctx, timer.UserStop)
	case "pause", "resume":
		p, ok := engine.(timer.Pauser)
		if !ok {
			return false, fmt.Errorf("%s cannot pause", engine.Mode())
		}
		if cmd == "pause" {
			p.Pause()
		} else {
			p.Resume()
		}
	case "skip":
		s, ok := engine.(timer.Skipper)
		if !ok {
			return false, fmt.Errorf("%s has no segments to skip", engine.Mode())
		}
		s.Skip(ctx)
	case "mode":
		if len(args) != 1 {
			return false, errors.New("usage: mode stopwatch|timer|pomodoro")
		}
		mode, err := timer.ParseMode(args[0])
		if err != nil {
			return false, err
		}
		if err := sw.Select(mode); err != nil {
			return false, err
		}
	case "activity":
		if len(args) != 1 {
			return false, errors.New("usage: activity <name>")
		}
		a, err := timer.ParseActivity(args[0])
		if err != nil {
			return false, err
		}
		if err := sw.SetActivity(a); err != nil {
			return false, err
		}
	case "target", "+", "-":
		if err := c.target(cmd, args); err != nil {
			return false, err
		}
	case "reset":
		c.tab.Reset()
	case "status":
	case "help", "?":
		c.println(consoleHelp)
		return false, nil
	case "quit", "exit", "q":
		if c.tab.Guard().BeforeUnload() && !c.warned {
			c.warned = true
			c.println("a timer is running and its time will not be logged; quit again to leave")
			return false, nil
		}
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}

	c.println(c.Status())
	return false, nil
}

func (c *Console) target(cmd string, args []string) error {
	cd := c.tab.Countdown()
	var err error
	switch cmd {
	case "+":
		_, err = cd.AdjustTarget(1)
	case "-":
		_, err = cd.AdjustTarget(-1)
	default:
		if len(args) != 1 {
			return errors.New("usage: target <duration>")
		}
		d, perr := time.ParseDuration(args[0])
		if perr != nil {
			return fmt.Errorf("invalid duration: %w", perr)
		}
		_, err = cd.SetTarget(d)
	}
	return err
}

// Status describes the current engine and the shared indicator on one line.
func (c *Console) Status() string {
	return Describe(c.tab.Switcher().Current().Status(), c.tab.Store().Snapshot().RunningCount)
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}

// Describe renders a tick and the shared running count for humans.
func Describe(tk timer.Tick, runningCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", tk.Mode, tk.State, tk.Activity)
	switch tk.Mode {
	case timer.ModeStopwatch:
		fmt.Fprintf(&b, " %s", FormatClock(tk.Elapsed))
	case timer.ModeCountdown:
		fmt.Fprintf(&b, " %s of %s", FormatClock(tk.Remaining), FormatClock(tk.Target))
	case timer.ModePomodoro:
		fmt.Fprintf(&b, " %s %s, %d/%d", tk.Segment, FormatClock(tk.Remaining), tk.Cycle, tk.Cycles)
	}
	if tk.Paused {
		b.WriteString(" (paused)")
	}
	fmt.Fprintf(&b, " | running in session: %d", runningCount)
	return b.String()
}

// FormatClock renders d as MM:SS, or H:MM:SS from one hour up.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	if h := s / 3600; h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
