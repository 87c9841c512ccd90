package timer

import (
	"fmt"
	"sync"
)

// Switcher holds one engine per mode and tracks which one is selected.
// Changing the selection is refused while the selected engine runs, so a
// run is never orphaned behind a different timer type.
type Switcher struct {
	mu      sync.Mutex
	engines map[Mode]Engine
	order   []Mode
	current Mode
}

// NewSwitcher creates a switcher over engines with initial selected.
func NewSwitcher(initial Mode, engines ...Engine) (*Switcher, error) {
	s := &Switcher{engines: make(map[Mode]Engine, len(engines))}
	for _, e := range engines {
		if _, dup := s.engines[e.Mode()]; dup {
			return nil, fmt.Errorf("duplicate engine for mode %q", e.Mode())
		}
		s.engines[e.Mode()] = e
		s.order = append(s.order, e.Mode())
	}
	if _, ok := s.engines[initial]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, initial)
	}
	s.current = initial
	return s, nil
}

// Current returns the selected engine.
func (s *Switcher) Current() Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engines[s.current]
}

// Engine returns the engine for mode, or nil.
func (s *Switcher) Engine(mode Mode) Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engines[mode]
}

// Engines returns every engine in registration order.
func (s *Switcher) Engines() []Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Engine, 0, len(s.order))
	for _, m := range s.order {
		out = append(out, s.engines[m])
	}
	return out
}

// Select makes mode the current engine.
func (s *Switcher) Select(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.engines[mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if mode == s.current {
		return nil
	}
	if s.engines[s.current].Running() || next.Running() {
		return ErrSwitchWhileRunning
	}
	s.current = mode
	return nil
}

// Cycle selects the next mode in registration order.
func (s *Switcher) Cycle() (Mode, error) {
	s.mu.Lock()
	next := s.current
	for i, m := range s.order {
		if m == s.current {
			next = s.order[(i+1)%len(s.order)]
			break
		}
	}
	s.mu.Unlock()

	if err := s.Select(next); err != nil {
		return s.CurrentMode(), err
	}
	return next, nil
}

// CurrentMode returns the selected mode.
func (s *Switcher) CurrentMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetActivity applies a to every engine. Refused while any engine runs.
func (s *Switcher) SetActivity(a Activity) error {
	if !a.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidActivity, a)
	}
	engines := s.Engines()
	for _, e := range engines {
		if e.Running() {
			return ErrRunning
		}
	}
	for _, e := range engines {
		if err := e.SetActivity(a); err != nil {
			return err
		}
	}
	return nil
}

// Running reports whether any engine holds a running slot.
func (s *Switcher) Running() bool {
	for _, e := range s.Engines() {
		if e.Running() {
			return true
		}
	}
	return false
}
