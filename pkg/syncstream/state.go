// ABOUTME: Connection state and user-facing status
// ABOUTME: Defines ConnectionState and the Status values passed to OnStatus
package syncstream

import (
	"fmt"
	"sync/atomic"
)

// ConnectionState is the lifecycle state of the server connection
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// stateCell stores a ConnectionState for lock-free reads
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) Load() ConnectionState {
	return ConnectionState(c.v.Load())
}

func (c *stateCell) Store(s ConnectionState) {
	c.v.Store(int32(s))
}

// Status is a human-readable status update
type Status struct {
	State ConnectionState
	Text  string
	Code  int   // WebSocket close code, set on disconnects
	Err   error // Set for error statuses
}

func statusConnecting() Status {
	return Status{State: Connecting, Text: "Connecting…"}
}

func statusConnected() Status {
	return Status{State: Connected, Text: "Connected"}
}

func statusDisconnected(code int) Status {
	return Status{State: Disconnected, Text: fmt.Sprintf("Disconnected (%d)", code), Code: code}
}

func statusStopped() Status {
	return Status{State: Disconnected, Text: "Stopped"}
}

func statusError(err error) Status {
	return Status{State: Disconnected, Text: "Error: " + err.Error(), Err: err}
}
