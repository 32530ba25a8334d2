package stream

// State of a stream client. Stopped is terminal.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TransitionFunc observes state changes. It runs on the goroutine that made the change
// and must not call back into the client.
type TransitionFunc func(strategyID uint, from, to State)
