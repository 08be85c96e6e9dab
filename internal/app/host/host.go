// Package host connects the player to the host process: the shell that owns
// system media controls, notifications and other outward integrations.
package host

import "context"

// Commands invoked on the host.
const (
	CmdSetMetadata = "set_metadata" // args: {"track": TrackPayload | nil}
	CmdSetPlayback = "set_playback" // args: {"playing": bool, "progress": float64 | nil}
)

// Events emitted by the host.
const (
	EventPlay     = "play"
	EventPause    = "pause"
	EventToggle   = "toggle"
	EventNext     = "next"
	EventPrevious = "previous"
)

// Events lists every host event the player reacts to.
var Events = []string{EventPlay, EventPause, EventToggle, EventNext, EventPrevious}

// Invoker sends commands to a host backend.
type Invoker interface {
	// Name returns the backend name (used in config and logs).
	Name() string
	// Invoke runs cmd on the host. args must only contain JSON-compatible
	// values.
	Invoke(ctx context.Context, cmd string, args map[string]any) error
}

// EventSource delivers host events.
type EventSource interface {
	// Listen registers fn for event and returns the function that removes it.
	Listen(event string, fn func()) (unlisten func())
}

// Bridge is the full host surface the player talks to.
type Bridge interface {
	Invoker
	EventSource
}
