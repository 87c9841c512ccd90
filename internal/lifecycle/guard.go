// Package lifecycle reconciles the shared running count when a tab goes away
// without stopping its timers.
package lifecycle

import (
	"log/slog"
	"os"
	"sync"

	"github.com/npratt/tempo/internal/shutdown"
)

// Holder is anything that may hold a running slot. Timer engines satisfy it.
type Holder interface {
	Running() bool
	// Abandon releases the slot and broadcasts without recording.
	Abandon() bool
}

// Guard intercepts tab termination.
type Guard struct {
	log *slog.Logger

	mu      sync.Mutex
	holders []Holder
	once    sync.Once
	freed   int
}

// New creates a Guard. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{log: logger}
}

// Register adds holders reconciled on unload.
func (g *Guard) Register(holders ...Holder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holders = append(g.holders, holders...)
}

// BeforeUnload reports whether leaving now would abandon a running timer,
// in which case the caller should warn. It never blocks.
func (g *Guard) BeforeUnload() bool {
	g.mu.Lock()
	holders := append([]Holder(nil), g.holders...)
	g.mu.Unlock()

	for _, h := range holders {
		if h.Running() {
			return true
		}
	}
	return false
}

// Unload releases every held slot synchronously. Each release decrements the
// shared store and broadcasts; nothing is recorded and no network call is
// made, so the in-progress interval is lost. Only the first call acts.
// Unload returns the number of slots released.
func (g *Guard) Unload() int {
	g.once.Do(func() {
		g.mu.Lock()
		holders := append([]Holder(nil), g.holders...)
		g.mu.Unlock()

		for _, h := range holders {
			if h.Abandon() {
				g.freed++
			}
		}
		if g.freed > 0 {
			g.log.Warn("released running timers on unload", "count", g.freed)
		}
	})
	return g.freed
}

// WatchSignals runs Unload when a termination signal arrives, then calls
// then (if non-nil) so the caller can exit. The returned func stops watching.
func (g *Guard) WatchSignals(then func(os.Signal)) (stop func()) {
	return shutdown.OnSignal(func(sig os.Signal) {
		g.log.Info("termination signal", "signal", sig.String())
		g.Unload()
		if then != nil {
			then(sig)
		}
	})
}
