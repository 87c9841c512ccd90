package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/npratt/tempo/internal/sharedstate"
)

func receive(t *testing.T, ep *Endpoint) Envelope {
	t.Helper()
	select {
	case env, ok := <-ep.Messages():
		if !ok {
			t.Fatal("messages channel closed")
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for envelope")
	}
	return Envelope{}
}

func assertEmpty(t *testing.T, ep *Endpoint) {
	t.Helper()
	select {
	case env := <-ep.Messages():
		t.Fatalf("unexpected envelope %+v", env)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNewBus(t *testing.T) {
	t.Run("default buffer size", func(t *testing.T) {
		b := NewBus(0)
		if b.bufferSize != DefaultBufferSize {
			t.Errorf("expected buffer size %d, got %d", DefaultBufferSize, b.bufferSize)
		}
	})

	t.Run("custom buffer size", func(t *testing.T) {
		b := NewBus(5)
		if b.bufferSize != 5 {
			t.Errorf("expected buffer size 5, got %d", b.bufferSize)
		}
	})
}

func TestBus_SenderExcluded(t *testing.T) {
	b := NewBus(10)
	defer b.Close()

	a := b.Join("a")
	c := b.Join("c")
	d := b.Join("d")

	if err := a.Broadcast(sharedstate.Snapshot{RunningCount: 1, IsRunning: true}); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	for _, ep := range []*Endpoint{c, d} {
		env := receive(t, ep)
		if env.Type != TypeTimerUpdate {
			t.Errorf("Type = %q, want %q", env.Type, TypeTimerUpdate)
		}
		if env.Sender != "a" {
			t.Errorf("Sender = %q, want a", env.Sender)
		}
		if env.Data.RunningCount != 1 {
			t.Errorf("RunningCount = %d, want 1", env.Data.RunningCount)
		}
	}
	assertEmpty(t, a)
}

func TestBus_DropWhenFull(t *testing.T) {
	b := NewBus(1)
	defer b.Close()

	sender := b.Join("sender")
	slow := b.Join("slow")

	for i := 0; i < 5; i++ {
		_ = sender.Broadcast(sharedstate.Snapshot{DisplayTime: int64(i)})
	}

	env := receive(t, slow)
	if env.Data.DisplayTime != 0 {
		t.Errorf("first kept envelope DisplayTime = %d, want 0", env.Data.DisplayTime)
	}
	assertEmpty(t, slow)
}

func TestEndpoint_Close(t *testing.T) {
	b := NewBus(10)
	defer b.Close()

	a := b.Join("a")
	c := b.Join("c")

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}
	if _, ok := <-c.Messages(); ok {
		t.Error("messages channel open after Close")
	}
	if err := c.Broadcast(sharedstate.Snapshot{}); err != ErrClosed {
		t.Errorf("Broadcast after Close = %v, want ErrClosed", err)
	}

	// Remaining endpoint keeps working
	_ = a.Broadcast(sharedstate.Snapshot{})
}

func TestBus_JoinUniqueRefusesDuplicate(t *testing.T) {
	b := NewBus(10)
	defer b.Close()

	first, err := b.JoinUnique("tab-a")
	if err != nil {
		t.Fatalf("JoinUnique: %v", err)
	}
	if _, err := b.JoinUnique("tab-a"); !errors.Is(err, ErrTabIDInUse) {
		t.Errorf("duplicate JoinUnique = %v, want ErrTabIDInUse", err)
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}

	// The id is free again once its endpoint leaves
	_ = first.Close()
	if _, err := b.JoinUnique("tab-a"); err != nil {
		t.Errorf("JoinUnique after leave: %v", err)
	}
}

func TestBus_Close(t *testing.T) {
	b := NewBus(10)
	a := b.Join("a")

	b.Close()
	b.Close()

	if _, ok := <-a.Messages(); ok {
		t.Error("endpoint channel open after bus Close")
	}
	if err := a.Close(); err != nil {
		t.Errorf("endpoint Close after bus Close: %v", err)
	}

	late := b.Join("late")
	if _, ok := <-late.Messages(); ok {
		t.Error("late join on closed bus has open channel")
	}
	b.Publish(NewUpdate("x", sharedstate.Snapshot{})) // no-op, no panic
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := NewBus(1000)
	defer b.Close()

	const tabs = 5
	const perTab = 20
	eps := make([]*Endpoint, tabs)
	for i := range eps {
		eps[i] = b.Join(string(rune('a' + i)))
	}

	var wg sync.WaitGroup
	for _, ep := range eps {
		wg.Add(1)
		go func(ep *Endpoint) {
			defer wg.Done()
			for i := 0; i < perTab; i++ {
				_ = ep.Broadcast(sharedstate.Snapshot{DisplayTime: int64(i)})
			}
		}(ep)
	}
	wg.Wait()

	for _, ep := range eps {
		if got := len(ep.Messages()); got != (tabs-1)*perTab {
			t.Errorf("endpoint %s got %d envelopes, want %d", ep.ID(), got, (tabs-1)*perTab)
		}
	}
}

func TestEnvelope_Validate(t *testing.T) {
	if err := NewUpdate("a", sharedstate.Snapshot{}).Validate(); err != nil {
		t.Errorf("Validate(timer-update) = %v", err)
	}
	if err := (Envelope{Type: "other"}).Validate(); err == nil {
		t.Error("Validate(other) = nil, want error")
	}
}
