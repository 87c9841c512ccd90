package broadcast

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/npratt/tempo/internal/sharedstate"
)

// DefaultBufferSize is the default per-endpoint queue length.
const DefaultBufferSize = 64

// Sentinel errors.
var (
	ErrClosed     = errors.New("broadcast channel closed")
	ErrTabIDInUse = errors.New("tab id already joined")
)

// Bus is an in-process broadcast channel. Posting is non-blocking: when an
// endpoint's queue is full the message is dropped for that endpoint and a
// warning is logged.
type Bus struct {
	endpoints  []*Endpoint
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

// NewBus creates a bus. If bufferSize is 0 or negative, DefaultBufferSize is used.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{bufferSize: bufferSize}
}

// Join adds a tab to the bus and returns its endpoint.
// Joining a closed bus yields an endpoint whose Messages channel is closed.
func (b *Bus) Join(tabID string) *Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.joinLocked(tabID)
}

// JoinUnique is Join for a tab id no current endpoint uses. Publish skips
// endpoints by sender id, so two endpoints sharing an id would never hear
// each other.
func (b *Bus) JoinUnique(tabID string) (*Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ep := range b.endpoints {
		if ep.id == tabID {
			return nil, fmt.Errorf("%w: %q", ErrTabIDInUse, tabID)
		}
	}
	return b.joinLocked(tabID), nil
}

// joinLocked adds an endpoint. Caller holds mu.
func (b *Bus) joinLocked(tabID string) *Endpoint {
	ep := &Endpoint{bus: b, id: tabID, ch: make(chan Envelope, b.bufferSize)}
	if b.closed {
		ep.closed = true
		close(ep.ch)
		return ep
	}
	b.endpoints = append(b.endpoints, ep)
	return ep
}

// Publish delivers env to every endpoint except the one that sent it.
// Publish on a closed bus is a no-op.
func (b *Bus) Publish(env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ep := range b.endpoints {
		if ep.id == env.Sender {
			continue
		}
		select {
		case ep.ch <- env:
		default:
			slog.Warn("broadcast dropped: endpoint queue full",
				"sender", env.Sender,
				"receiver", ep.id,
			)
		}
	}
}

// Len returns the number of joined endpoints.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.endpoints)
}

func (b *Bus) leave(ep *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.endpoints {
		if e == ep {
			b.endpoints = append(b.endpoints[:i], b.endpoints[i+1:]...)
			close(ep.ch)
			return
		}
	}
}

// Close closes every endpoint's Messages channel. Safe to call multiple times.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ep := range b.endpoints {
		close(ep.ch)
	}
	b.endpoints = nil
}

// Endpoint is one tab's membership on a Bus. It implements Channel.
type Endpoint struct {
	bus *Bus
	id  string
	ch  chan Envelope

	mu     sync.Mutex
	closed bool
}

// ID returns the tab id the endpoint joined with.
func (e *Endpoint) ID() string {
	return e.id
}

// Broadcast posts snap to every other endpoint on the bus.
func (e *Endpoint) Broadcast(snap sharedstate.Snapshot) error {
	return e.Post(NewUpdate(e.id, snap))
}

// Post publishes a prepared envelope, stamping it with this endpoint as sender.
func (e *Endpoint) Post(env Envelope) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	env.Sender = e.id
	e.bus.Publish(env)
	return nil
}

// Messages returns the endpoint's receive queue.
func (e *Endpoint) Messages() <-chan Envelope {
	return e.ch
}

// Close leaves the bus. Safe to call multiple times.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.bus.leave(e)
	return nil
}
