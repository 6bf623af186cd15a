package syncagent

import "fmt"

// State is the agent's connection lifecycle position. Transitions are
// validated so a bug that skips a phase (say, synchronized without an
// acknowledged handshake) fails loudly instead of corrupting the loop.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSynchronized
	StateReconnectPending
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateSynchronized:
		return "Synchronized"
	case StateReconnectPending:
		return "ReconnectPending"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	// Explicit stop may land anywhere.
	if newState == StateDisconnected {
		return nil
	}
	switch s {
	case StateDisconnected:
		if newState == StateConnecting {
			return nil
		}
	case StateConnecting:
		switch newState {
		case StateAuthenticating, StateReconnectPending:
			return nil
		}
	case StateAuthenticating:
		switch newState {
		case StateSynchronized, StateReconnectPending:
			return nil
		}
	case StateSynchronized:
		if newState == StateReconnectPending {
			return nil
		}
	case StateReconnectPending:
		if newState == StateConnecting {
			return nil
		}
	}
	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
