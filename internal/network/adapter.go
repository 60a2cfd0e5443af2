// Package network fans OneBot events out to transport adapters and routes the
// action calls they receive back into the action map.
package network

import (
	"context"
	"encoding/json"

	"github.com/dayuer/onebot-bridge/internal/action"
	"github.com/dayuer/onebot-bridge/internal/onebot"
)

// State is the lifecycle state of a registered adapter.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Adapter is one transport. Open must not block past startup; Deliver is
// called from a single goroutine per adapter, in emission order.
type Adapter interface {
	// Name identifies the adapter in logs and status output.
	Name() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Deliver(ctx context.Context, ev onebot.Event) error
}

// Dispatcher runs inbound action calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, params json.RawMessage) action.Response
}

// ActionReceiver is implemented by adapters that accept action calls.
type ActionReceiver interface {
	SetDispatcher(d Dispatcher)
}
