package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/npratt/tempo/internal/broadcast"
	"github.com/npratt/tempo/internal/sharedstate"
	"github.com/npratt/tempo/internal/testutil"
)

// startHub runs a hub until the test ends.
func startHub(t *testing.T) (*Daemon, *Client) {
	t.Helper()
	sock := testutil.ShortSocketPath(t)
	d := New(sock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	c := NewClient(sock)
	testutil.WaitFor(t, 2*time.Second, c.IsRunning, "hub socket")

	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
	})
	return d, c
}

func receive(t *testing.T, s *Subscription) broadcast.Envelope {
	t.Helper()
	select {
	case env, ok := <-s.Messages():
		if !ok {
			t.Fatal("subscription closed")
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for envelope")
	}
	return broadcast.Envelope{}
}

func assertQuiet(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case env := <-s.Messages():
		t.Errorf("unexpected envelope from %q", env.Sender)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDaemon_StartStop(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	d := New(sock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	testutil.WaitFor(t, 2*time.Second, d.Running, "hub running")

	info, err := os.Stat(sock)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if perm := info.Mode().Perm(); perm != socketPermissions {
		t.Errorf("socket permissions = %o, want %o", perm, socketPermissions)
	}

	if err := d.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop within timeout")
	}

	if d.Running() {
		t.Error("hub should not be running after Stop")
	}
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Error("socket should be removed after Stop")
	}
	if err := d.Stop(); err != nil {
		t.Errorf("Stop() should be idempotent: %v", err)
	}
}

func TestDaemon_Status(t *testing.T) {
	d, c := startHub(t)

	status, err := c.Status()
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if status.SessionID == "" || status.SessionID != d.SessionID() {
		t.Errorf("session id = %q, want %q", status.SessionID, d.SessionID())
	}
	if status.Tabs != 0 || status.Last != nil {
		t.Errorf("fresh hub status = %+v", status)
	}
}

func TestDaemon_UnknownMethodAndInvalidJSON(t *testing.T) {
	d, _ := startHub(t)

	tests := []struct {
		name, line, want string
	}{
		{"unknown method", `{"method":"explode"}`, "unknown method"},
		{"invalid json", `{not json`, "decode error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := net.Dial("unix", d.SocketPath())
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer func() { _ = conn.Close() }()

			if _, err := conn.Write([]byte(tt.line + "\n")); err != nil {
				t.Fatalf("write: %v", err)
			}
			line, err := bufio.NewReader(conn).ReadBytes('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			var resp Response
			if err := json.Unmarshal(line, &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.Contains(resp.Error, tt.want) {
				t.Errorf("error = %q, want %q", resp.Error, tt.want)
			}
		})
	}
}

func TestDaemon_RelaysToOtherTabsOnly(t *testing.T) {
	d, c := startHub(t)
	ctx := context.Background()

	a, err := c.Subscribe(ctx, "tab-a")
	if err != nil {
		t.Fatalf("Subscribe a: %v", err)
	}
	defer func() { _ = a.Close() }()
	b, err := c.Subscribe(ctx, "tab-b")
	if err != nil {
		t.Fatalf("Subscribe b: %v", err)
	}
	defer func() { _ = b.Close() }()

	if a.SessionID() != d.SessionID() || b.TabID() != "tab-b" {
		t.Errorf("ack: session=%q tab=%q", a.SessionID(), b.TabID())
	}
	testutil.WaitFor(t, time.Second, func() bool { return d.Tabs() == 2 }, "two tabs")

	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	snap := sharedstate.Snapshot{IsRunning: true, RunningCount: 1, DisplayTime: 1500, StartTime: &start}
	if err := a.Broadcast(snap); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	env := receive(t, b)
	if env.Type != broadcast.TypeTimerUpdate || env.Sender != "tab-a" || !env.Data.Equal(snap) {
		t.Errorf("b received %+v", env)
	}
	assertQuiet(t, a)

	testutil.WaitFor(t, time.Second, func() bool { return d.Last() != nil }, "last snapshot")
	if !d.Last().Equal(snap) {
		t.Errorf("Last() = %+v", d.Last())
	}
}

func TestDaemon_ResetReachesEveryTab(t *testing.T) {
	d, c := startHub(t)
	ctx := context.Background()

	subs := make([]*Subscription, 3)
	for i := range subs {
		s, err := c.Subscribe(ctx, "")
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer func() { _ = s.Close() }()
		if s.TabID() == "" {
			t.Error("hub should assign a tab id")
		}
		subs[i] = s
	}
	testutil.WaitFor(t, time.Second, func() bool { return d.Tabs() == 3 }, "three tabs")

	snap, err := c.Reset()
	if err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if snap.RunningCount != 0 || snap.IsRunning {
		t.Errorf("Reset() = %+v", snap)
	}

	for _, s := range subs {
		env := receive(t, s)
		if env.Sender != hubSender || env.Data.RunningCount != 0 {
			t.Errorf("tab %s received %+v", s.TabID(), env)
		}
	}
}

func TestDaemon_SubscriberLeaves(t *testing.T) {
	d, c := startHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := c.Subscribe(ctx, "tab-x")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	testutil.WaitFor(t, time.Second, func() bool { return d.Tabs() == 1 }, "tab joined")

	cancel()
	testutil.WaitFor(t, 2*time.Second, func() bool { return d.Tabs() == 0 }, "tab left")

	if err := s.Broadcast(sharedstate.Snapshot{}); !errors.Is(err, broadcast.ErrClosed) {
		t.Errorf("Broadcast after close = %v, want ErrClosed", err)
	}
}

func TestDaemon_RejectsDuplicateTabID(t *testing.T) {
	d, c := startHub(t)
	ctx := context.Background()

	a, err := c.Subscribe(ctx, "tab-dup")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer func() { _ = a.Close() }()
	testutil.WaitFor(t, time.Second, func() bool { return d.Tabs() == 1 }, "tab joined")

	if _, err := c.Subscribe(ctx, "tab-dup"); err == nil || !strings.Contains(err.Error(), "already joined") {
		t.Errorf("second Subscribe = %v, want tab id in use", err)
	}
	if got := d.Tabs(); got != 1 {
		t.Errorf("Tabs = %d, want 1", got)
	}
}

func TestDaemon_StopClosesSubscriptions(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	d := New(sock, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Start(ctx)
		close(done)
	}()

	c := NewClient(sock)
	testutil.WaitFor(t, 2*time.Second, c.IsRunning, "hub socket")

	s, err := c.Subscribe(context.Background(), "tab")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	cancel()
	<-done

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed when hub stopped")
	}
	if _, ok := <-s.Messages(); ok {
		t.Error("Messages should be closed")
	}
}

func TestClient_NotRunning(t *testing.T) {
	c := NewClient(testutil.ShortSocketPath(t))
	c.SetTimeout(200 * time.Millisecond)

	if c.IsRunning() {
		t.Error("IsRunning() should be false")
	}
	if _, err := c.Status(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Status() = %v, want ErrNotRunning", err)
	}
	if _, err := c.Subscribe(context.Background(), "t"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Subscribe() = %v, want ErrNotRunning", err)
	}
}
