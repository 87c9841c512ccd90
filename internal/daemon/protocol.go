package daemon

import (
	"encoding/json"

	"github.com/npratt/tempo/internal/sharedstate"
)

// Hub methods.
const (
	MethodStatus    = "status"
	MethodReset     = "reset"
	MethodSubscribe = "subscribe"
	MethodBroadcast = "broadcast"
)

// hubSender is the sender id stamped on messages the hub originates.
const hubSender = "hub"

// Request is one newline-delimited JSON request from a client.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     int             `json:"id,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StatusResponse describes the running hub.
type StatusResponse struct {
	SessionID string                `json:"session_id"`
	Tabs      int                   `json:"tabs"`
	Uptime    string                `json:"uptime"`
	StartTime string                `json:"start_time"`
	Last      *sharedstate.Snapshot `json:"last,omitempty"`
}

// SubscribeParams are the parameters of the subscribe method.
type SubscribeParams struct {
	TabID string `json:"tab_id"`
}

// SubscribeResult acknowledges a subscription.
type SubscribeResult struct {
	SessionID string `json:"session_id"`
	TabID     string `json:"tab_id"`
}
