package daemon

import (
	"fmt"
	"time"
)

// handleRequest dispatches a one-shot request.
func (d *Daemon) handleRequest(req *Request) Response {
	switch req.Method {
	case MethodStatus:
		return d.handleStatus()
	case MethodReset:
		return Response{Result: d.Reset()}
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

func (d *Daemon) handleStatus() Response {
	startTime := d.StartTime()
	return Response{
		Result: StatusResponse{
			SessionID: d.sessionID,
			Tabs:      d.bus.Len(),
			Uptime:    time.Since(startTime).Truncate(time.Second).String(),
			StartTime: startTime.Format(time.RFC3339),
			Last:      d.Last(),
		},
	}
}
