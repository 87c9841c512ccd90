// Package broadcast relays shared timer state between the tabs of a session.
//
// Every tab joins one named channel. A message posted by a tab reaches every
// other tab on the channel, never the sender itself. Delivery order between
// two messages from different senders is not guaranteed.
package broadcast

import (
	"fmt"

	"github.com/npratt/tempo/internal/sharedstate"
)

// ChannelName is the name every tab of a session joins.
const ChannelName = "timer-channel"

// TypeTimerUpdate tags a message carrying a full shared state snapshot.
const TypeTimerUpdate = "timer-update"

// Envelope is one message on the channel.
type Envelope struct {
	Type   string               `json:"type"`
	Sender string               `json:"sender,omitempty"`
	Data   sharedstate.Snapshot `json:"data"`
}

// NewUpdate wraps a snapshot in a timer-update envelope from sender.
func NewUpdate(sender string, snap sharedstate.Snapshot) Envelope {
	return Envelope{Type: TypeTimerUpdate, Sender: sender, Data: snap}
}

// Validate rejects envelopes a tab does not know how to apply.
func (e Envelope) Validate() error {
	if e.Type != TypeTimerUpdate {
		return fmt.Errorf("unknown message type %q", e.Type)
	}
	return nil
}

// Channel is one tab's handle on the session's broadcast channel.
type Channel interface {
	// Broadcast posts a snapshot to every other tab.
	Broadcast(snap sharedstate.Snapshot) error
	// Messages yields envelopes posted by other tabs. It is closed when
	// the channel is closed.
	Messages() <-chan Envelope
	// Close leaves the channel.
	Close() error
}
