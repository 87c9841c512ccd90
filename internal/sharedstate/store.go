package sharedstate

import (
	"log/slog"
	"sync"
	"time"
)

// WatchBufferSize is the channel buffer for Watch subscribers.
const WatchBufferSize = 16

// Store is one tab's copy of the shared timer state.
// Mutations never broadcast; callers forward the resulting Snapshot
// to the other tabs themselves.
type Store struct {
	mu       sync.Mutex
	state    Snapshot
	storage  Storage
	watchers map[chan Snapshot]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithStorage persists every mutation to s and seeds the store from it.
func WithStorage(s Storage) Option {
	return func(st *Store) {
		st.storage = s
	}
}

// New creates a Store with zeroed state, or the state loaded from storage.
func New(opts ...Option) *Store {
	s := &Store{
		watchers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.storage != nil {
		snap, err := s.storage.Load()
		if err != nil {
			slog.Warn("shared state load failed, starting fresh", "error", err)
		} else {
			s.state = snap.normalize()
		}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.normalize()
}

// Increment records one more running timer.
func (s *Store) Increment() Snapshot {
	return s.mutate(func(st *Snapshot) {
		st.RunningCount++
	})
}

// Decrement records one fewer running timer, never going below zero.
func (s *Store) Decrement() Snapshot {
	return s.mutate(func(st *Snapshot) {
		if st.RunningCount > 0 {
			st.RunningCount--
		}
	})
}

// SetDisplayTime stores the last display value in milliseconds.
func (s *Store) SetDisplayTime(ms int64) Snapshot {
	return s.mutate(func(st *Snapshot) {
		st.DisplayTime = ms
	})
}

// SetStartTime stores the start of the most recently started timer.
func (s *Store) SetStartTime(t time.Time) Snapshot {
	return s.mutate(func(st *Snapshot) {
		t := t
		st.StartTime = &t
	})
}

// Reset zeroes the state.
func (s *Store) Reset() Snapshot {
	return s.mutate(func(st *Snapshot) {
		*st = Snapshot{}
	})
}

// Apply overwrites the local state with a snapshot received from another tab.
// The last message applied wins.
func (s *Store) Apply(snap Snapshot) Snapshot {
	return s.mutate(func(st *Snapshot) {
		*st = snap
	})
}

// Watch returns a channel that receives the state after every mutation.
// Slow watchers miss intermediate values. Call cancel to stop watching.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, WatchBufferSize)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) mutate(fn func(*Snapshot)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	s.state = s.state.normalize()
	snap := s.state.normalize()

	if s.storage != nil {
		if err := s.storage.Save(snap); err != nil {
			slog.Warn("shared state save failed", "error", err)
		}
	}

	for ch := range s.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
	return snap
}
