// Package daemon implements the hub: a per-session relay on a unix socket
// that fans timer-state broadcasts out to every connected tab.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/tempo/internal/broadcast"
	"github.com/npratt/tempo/internal/sharedstate"
)

// Daemon is the hub process state.
type Daemon struct {
	sockPath  string
	sessionID string
	bus       *broadcast.Bus
	startTime time.Time
	logger    *slog.Logger

	listener net.Listener
	running  bool
	last     *sharedstate.Snapshot
	mu       sync.RWMutex
}

// New creates a hub listening on sockPath. Each hub mints a fresh session id;
// tab state persisted under an older id is not restored.
func New(sockPath string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Daemon{
		sockPath:  sockPath,
		sessionID: id,
		bus:       broadcast.NewBus(0),
		logger:    logger.With("session_id", id),
	}
}

// Running returns whether the hub is currently serving.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// SessionID returns the id shared by every tab of this hub's session.
func (d *Daemon) SessionID() string {
	return d.sessionID
}

// StartTime returns when the hub was started.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}

// Tabs returns the number of subscribed tabs.
func (d *Daemon) Tabs() int {
	return d.bus.Len()
}

// Last returns the most recent snapshot relayed, or nil.
func (d *Daemon) Last() *sharedstate.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return nil
	}
	s := *d.last
	return &s
}

func (d *Daemon) remember(snap sharedstate.Snapshot) {
	d.mu.Lock()
	d.last = &snap
	d.mu.Unlock()
}

// Reset publishes a zeroed snapshot to every tab. Timers keep running; only
// the shared indicator is cleared.
func (d *Daemon) Reset() sharedstate.Snapshot {
	snap := sharedstate.Snapshot{}
	d.remember(snap)
	d.bus.Publish(broadcast.NewUpdate(hubSender, snap))
	d.logger.Info("shared state reset", "tabs", d.bus.Len())
	return snap
}
