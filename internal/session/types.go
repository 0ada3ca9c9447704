// Package session implements the SSH session core: the PTY-backed shell
// conversation, output broadcast and history, the browser command buffer,
// the dual-initiator command dispatcher, and the process-global registry.
package session

import (
	"sync"
	"time"
)

// Initiator identifies which client population submitted a command.
type Initiator string

const (
	InitiatorBrowser Initiator = "browser"
	InitiatorMCP     Initiator = "mcp"
)

// SourceTag classifies a span of broadcast/history bytes.
type SourceTag string

const (
	SourceSystem           SourceTag = "system"
	SourceUserCommandEcho  SourceTag = "user-command-echo"
	SourceClaudeCommandEcho SourceTag = "claude-command-echo"
	SourceCommandOutput    SourceTag = "command-output"
	SourcePrompt           SourceTag = "prompt"
)

// CommandStatus is the per-command lifecycle state.
type CommandStatus string

const (
	CommandQueued      CommandStatus = "queued"
	CommandExecuting   CommandStatus = "executing"
	CommandCompleted   CommandStatus = "completed"
	CommandInterrupted CommandStatus = "interrupted"
	CommandTimedOut    CommandStatus = "timed-out"
	CommandCancelled   CommandStatus = "cancelled"
	CommandStale       CommandStatus = "stale"
)

// CancellationPolicy is the optional auto-cancel-after-W-ms declaration a
// submitter may attach to a command.
type CancellationPolicy struct {
	Cancel  bool
	WaitMs  int
}

// CommandResult is the structured outcome surfaced to the submitter.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode string
}

// Command is one queued/executing/resolved unit of work.
type Command struct {
	ID           string
	Text         string
	Initiator    Initiator
	SubmittedAt  time.Time
	ResolvedAt   time.Time
	Cancellation *CancellationPolicy

	mu     sync.Mutex
	stdout []byte
	stderr []byte
	exit   string
	detail string
	status CommandStatus
	done   chan struct{}
}

// NewCommand constructs a freshly-queued command record.
func NewCommand(id, text string, initiator Initiator, policy *CancellationPolicy) *Command {
	return &Command{
		ID:           id,
		Text:         text,
		Initiator:    initiator,
		SubmittedAt:  time.Now(),
		Cancellation: policy,
		status:       CommandQueued,
		done:         make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (c *Command) Status() CommandStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Command) setStatus(s CommandStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// AppendStdout appends captured output bytes to the command's accumulator.
func (c *Command) AppendStdout(b []byte) {
	c.mu.Lock()
	c.stdout = append(c.stdout, b...)
	c.mu.Unlock()
}

// Resolve transitions the command to a terminal status exactly once and
// unblocks Wait. detail carries the spec's descriptive status wording
// (e.g. "interrupted-by-disconnect", "interrupted-by-timeout") where the
// coarse CommandStatus enum isn't precise enough on its own.
func (c *Command) Resolve(status CommandStatus, exitCode, detail string) {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
	}
	c.status = status
	c.exit = exitCode
	c.detail = detail
	c.ResolvedAt = time.Now()
	c.mu.Unlock()
	close(c.done)
}

// Wait blocks until the command is resolved.
func (c *Command) Wait() <-chan struct{} {
	return c.done
}

// Detail returns the descriptive resolution label, if any.
func (c *Command) Detail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detail
}

// SetStdout overwrites the accumulated stdout, used once completion
// detection strips the trailing prompt match out of the accumulator.
func (c *Command) SetStdout(b []byte) {
	c.mu.Lock()
	c.stdout = b
	c.mu.Unlock()
}

// Result snapshots the command's current stdout/stderr/exit-code.
func (c *Command) Result() CommandResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CommandResult{
		Stdout:   string(c.stdout),
		Stderr:   string(c.stderr),
		ExitCode: c.exit,
	}
}

// HistoryEntry is one sequence-numbered, source-tagged span of output.
type HistoryEntry struct {
	Sequence uint64
	Data     []byte
	Source   SourceTag
}

// BrowserCommandEntry is one resolved browser-initiated command kept for
// the gating error payload and §4.4's buffer.
type BrowserCommandEntry struct {
	CommandString string
	CommandID     string
	Timestamp     time.Time
	Result        CommandResult
}

// OutputFrame is what a live Listener receives.
type OutputFrame struct {
	Sequence uint64
	Data     []byte
	Source   SourceTag
}

// Listener is one subscriber to a session's broadcast stream, keyed by an
// internal handle (ID).
type Listener struct {
	ID   string
	Ch   chan OutputFrame
	done chan struct{}
}

// Closed reports whether the listener has been evicted/unsubscribed.
func (l *Listener) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
