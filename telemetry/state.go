package telemetry

import "fmt"

// State is the broker link state as last observed from lifecycle events.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateOffline:
		return "offline"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Event is a transport lifecycle notification. Transport implementations
// translate their native callbacks into this enum; the connection monitor
// is the single consumer.
type Event int

const (
	EventConnect Event = iota
	EventError
	EventDisconnect
	EventOffline
	EventReconnect
)

func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventError:
		return "error"
	case EventDisconnect:
		return "disconnect"
	case EventOffline:
		return "offline"
	case EventReconnect:
		return "reconnect"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}
