package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/npratt/tempo/internal/sharedstate"
)

var epoch = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fakeRecorder struct {
	mu        sync.Mutex
	intervals []Interval
	err       error
	gate      chan struct{} // when set, Record waits for it to close
}

func (r *fakeRecorder) Record(_ context.Context, iv Interval) (bool, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	r.intervals = append(r.intervals, iv)
	return true, nil
}

func (r *fakeRecorder) recorded() []Interval {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Interval(nil), r.intervals...)
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	snaps []sharedstate.Snapshot
}

func (b *fakeBroadcaster) Broadcast(snap sharedstate.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = append(b.snaps, snap)
	return nil
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snaps)
}

func (b *fakeBroadcaster) last() sharedstate.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.snaps) == 0 {
		return sharedstate.Snapshot{}
	}
	return b.snaps[len(b.snaps)-1]
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *fakeNotifier) Notify(title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

type harness struct {
	clock    *clockwork.FakeClock
	store    *sharedstate.Store
	rec      *fakeRecorder
	bc       *fakeBroadcaster
	notifier *fakeNotifier
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    clockwork.NewFakeClockAt(epoch),
		store:    sharedstate.New(),
		rec:      &fakeRecorder{},
		bc:       &fakeBroadcaster{},
		notifier: &fakeNotifier{},
	}
	h.deps = Deps{
		Store:       h.store,
		Broadcaster: h.bc,
		Recorder:    h.rec,
		Notifier:    h.notifier,
		Clock:       h.clock,
	}
	return h
}

// recorded waits for e's queued intervals, then returns everything recorded.
func (h *harness) recorded(e interface{ WaitRecorded() }) []Interval {
	e.WaitRecorded()
	return h.rec.recorded()
}

func (h *harness) assertCount(t *testing.T, want int) {
	t.Helper()
	snap := h.store.Snapshot()
	if snap.RunningCount != want {
		t.Errorf("RunningCount = %d, want %d", snap.RunningCount, want)
	}
	if snap.IsRunning != (snap.RunningCount > 0) {
		t.Errorf("IsRunning = %v with RunningCount %d", snap.IsRunning, snap.RunningCount)
	}
}

var errRejected = errors.New("rejected")
