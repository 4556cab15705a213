package lifecycle

import (
	"fmt"
	"strings"
)

// ServerState is the externally visible readiness of the server.
// Transitions: NoConfig -> Running and NoConfig -> Failed.
type ServerState int32

const (
	StateNoConfig ServerState = iota
	StateRunning
	StateFailed
)

func (s ServerState) String() string {
	switch s {
	case StateNoConfig:
		return "no_config"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s ServerState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ServerState) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "no_config":
		*s = StateNoConfig
	case "running":
		*s = StateRunning
	case "failed":
		*s = StateFailed
	default:
		return fmt.Errorf("unknown server state %q", string(b))
	}
	return nil
}

// Host is the capability the core calls back into. The core never depends
// on host types; the process layer decides what a state change or a
// shutdown request means.
type Host interface {
	ServerStateChanged(state ServerState)
	ShutdownRequested(reason string)
}

// HostFuncs adapts plain functions to Host. Nil fields are ignored.
type HostFuncs struct {
	OnState    func(ServerState)
	OnShutdown func(reason string)
}

func (h HostFuncs) ServerStateChanged(s ServerState) {
	if h.OnState != nil {
		h.OnState(s)
	}
}

func (h HostFuncs) ShutdownRequested(reason string) {
	if h.OnShutdown != nil {
		h.OnShutdown(reason)
	}
}
