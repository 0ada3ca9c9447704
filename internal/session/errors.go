package session

import "errors"

// ErrQueueFull is returned when a session's command queue is at its
// 100-entry capacity (spec.md §4.3/§8).
var ErrQueueFull = errors.New("queue full")

// ErrInvalidWait is returned for waitToCancelMs values below the 1000ms
// floor.
var ErrInvalidWait = errors.New("validation: waitToCancelMs must be >= 1000")

// ErrNoActiveCommand is the informational, non-fatal result of cancelling
// an idle session.
var ErrNoActiveCommand = errors.New("NO_ACTIVE_MCP_COMMAND")

// ErrDisposing is returned for submissions arriving after teardown begins.
var ErrDisposing = errors.New("session disposing")

// ErrSessionNotFound / ErrSessionExists are Registry-level errors.
var ErrSessionNotFound = errors.New("session not found")
var ErrSessionExists = errors.New("session already exists")
var ErrMaxSessionsReached = errors.New("maximum number of sessions reached")

// GatingError is returned when an MCP-initiated command is refused because
// browser_commands_executed is true (the "Command State Synchronization"
// gate, spec.md §4.3).
type GatingError struct {
	BrowserCommands []BrowserCommandEntry
}

func (e *GatingError) Error() string {
	return "BROWSER_COMMANDS_EXECUTED"
}
