package session

import (
	"bytes"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// queueCapacity is the FIFO queue's fixed capacity (spec.md §4.3/§8).
	queueCapacity = 100
	// staleAfter discards queued commands that have waited this long.
	staleAfter = 5 * time.Minute
	// promptGracePeriod is how long the PTY must sit idle before a
	// trailing prompt match is trusted as command completion (spec.md
	// §4.3: "idle for a short grace period (≈50-200ms)").
	promptGracePeriod = 150 * time.Millisecond
)

// Dispatcher is the dual-channel command dispatcher (spec.md §4.3): it
// serializes command submission onto one PTY, enforces the
// browser_commands_executed gate, cancellation, and timeouts, and
// reconciles the MCP/browser echo-duplication problem the source
// struggled with (§9's "double-echo bug" note).
type Dispatcher struct {
	pty         PTY
	broadcaster *Broadcaster
	browserBuf  *BrowserCommandBuffer

	promptRegex    *regexp.Regexp
	defaultTimeout time.Duration

	writerMu sync.Mutex

	mu                      sync.Mutex
	current                 *Command
	browserCommandsExecuted bool
	pendingResolution       CommandStatus
	queue                   chan *Command
	stopCh                  chan struct{}
	stopped                 bool

	awaitingEcho  bool
	echoInitiator Initiator
	echoBuf       []byte
	// trailingPrompt holds the bytes of the prompt currently sitting at the
	// tail of the broadcast stream, or nil if none is present. It is
	// consulted (and consumed) when injecting an MCP synthetic echo, so the
	// dispatcher never emits two consecutive prompts with nothing between
	// them (spec.md §4.3 "Prompt accounting").
	trailingPrompt []byte
	idleTimer      *time.Timer
}

// NewDispatcher constructs a Dispatcher bound to one session's PTY,
// broadcaster and browser command buffer, and starts its runner goroutine.
func NewDispatcher(pty PTY, b *Broadcaster, buf *BrowserCommandBuffer, promptRegex *regexp.Regexp, defaultTimeout time.Duration) *Dispatcher {
	d := &Dispatcher{
		pty:            pty,
		broadcaster:    b,
		browserBuf:     buf,
		promptRegex:    promptRegex,
		defaultTimeout: defaultTimeout,
		queue:          make(chan *Command, queueCapacity),
		stopCh:         make(chan struct{}),
	}
	go d.run()
	return d
}

// currentIsSet reports whether a command is presently executing, used by
// Session.Status to distinguish "ready" from "busy".
func (d *Dispatcher) currentIsSet() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current != nil
}

// BrowserCommandsExecuted reports the gating flag's current value.
func (d *Dispatcher) BrowserCommandsExecuted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.browserCommandsExecuted
}

// Acknowledge clears the gate (spec.md §9 open question, resolved in
// SPEC_FULL.md §4.6.a as a dedicated tool call) and drains the Browser
// Command Buffer, returning what was drained for the caller to report.
func (d *Dispatcher) Acknowledge() []BrowserCommandEntry {
	d.mu.Lock()
	d.browserCommandsExecuted = false
	d.mu.Unlock()
	return d.browserBuf.Clear()
}

// Submit enqueues a new command, generating its id. Gating is checked here,
// before the PTY is touched, so a gated MCP submission never reaches the
// queue (spec.md §4.3: "fails immediately... without touching the PTY").
func (d *Dispatcher) Submit(initiator Initiator, text string, policy *CancellationPolicy) (*Command, error) {
	return d.SubmitWithID(uuid.New().String(), initiator, text, policy)
}

// SubmitWithID enqueues a new command under a caller-supplied id. The
// WebSocket endpoint uses this to correlate a terminal_input frame's
// commandId with the resulting Command (spec.md §4.5). An empty id falls
// back to a generated one.
func (d *Dispatcher) SubmitWithID(id string, initiator Initiator, text string, policy *CancellationPolicy) (*Command, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if policy != nil && policy.Cancel && policy.WaitMs < 1000 {
		return nil, ErrInvalidWait
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil, ErrDisposing
	}
	if initiator == InitiatorMCP && d.browserCommandsExecuted {
		snapshot := d.browserBuf.Snapshot()
		d.mu.Unlock()
		return nil, &GatingError{BrowserCommands: snapshot}
	}
	d.mu.Unlock()

	cmd := NewCommand(id, text, initiator, policy)

	select {
	case d.queue <- cmd:
		return cmd, nil
	default:
		return nil, ErrQueueFull
	}
}

// NoteTrailingPrompt records that `text` (the session's init-banner prompt,
// published directly by Session before the dispatcher's own echo filtering
// takes over) is now sitting at the tail of the broadcast stream, so the
// first MCP command's synthetic echo also consumes it instead of treating
// none as present.
func (d *Dispatcher) NoteTrailingPrompt(text []byte) {
	d.mu.Lock()
	d.trailingPrompt = append([]byte(nil), text...)
	d.mu.Unlock()
}

// Cancel injects SIGINT for whichever command is currently executing.
// Returns ErrNoActiveCommand if the session is idle (spec.md §4.3).
func (d *Dispatcher) Cancel() error {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()
	if cur == nil {
		return ErrNoActiveCommand
	}
	d.cancelCurrent(cur, CommandInterrupted, "interrupted-by-signal")
	return nil
}

// Ingest feeds one chunk of raw PTY ingress bytes through echo filtering,
// prompt-idle completion detection, history append, and broadcast. It is
// the session's sole entry point for bytes arriving from the remote shell.
func (d *Dispatcher) Ingest(chunk []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.awaitingEcho {
		d.consumeEchoLocked(chunk)
		return
	}
	d.processOutputLocked(chunk)
}

// consumeEchoLocked swallows the PTY's own echo of a just-written command
// line up through the first CRLF. For MCP-initiated commands this echo is
// discarded outright because a synthetic echo was already broadcast at
// submission time (DESIGN.md's echo-suppression note resolves why both clauses of §4.3 -
// "remote echo is enabled" and "must not emit a second echo" - are
// consistent: the real echo is suppressed here rather than the synthetic
// one being skipped). For browser-initiated commands the real echo *is*
// the visible command echo and is forwarded tagged accordingly.
func (d *Dispatcher) consumeEchoLocked(chunk []byte) {
	combined := append(d.echoBuf, chunk...)
	idx := bytes.Index(combined, []byte("\r\n"))
	if idx == -1 {
		d.echoBuf = combined
		return
	}

	echoSpan := combined[:idx+2]
	rest := combined[idx+2:]
	d.awaitingEcho = false
	d.echoBuf = nil

	if d.echoInitiator == InitiatorBrowser {
		d.broadcaster.Publish(echoSpan, SourceUserCommandEcho)
	}

	if len(rest) > 0 {
		d.processOutputLocked(rest)
	}
}

// processOutputLocked handles bytes once past echo filtering: broadcasts
// them as command output, feeds them to the executing command's
// accumulator, and schedules (or fires immediately) the completion check.
func (d *Dispatcher) processOutputLocked(data []byte) {
	if len(data) == 0 {
		return
	}

	d.broadcaster.Publish(data, SourceCommandOutput)

	if d.current != nil {
		d.current.AppendStdout(data)
		d.scheduleCompletionCheckLocked()
		return
	}

	if start, ok := trailingPromptMatch(d.promptRegex, data); ok {
		d.trailingPrompt = append([]byte(nil), data[start:]...)
	} else {
		d.trailingPrompt = nil
	}
}

// trailingPromptMatch reports the start offset of the last prompt match in
// data, if that match reaches exactly to the end of data.
func trailingPromptMatch(re *regexp.Regexp, data []byte) (start int, ok bool) {
	matches := re.FindAllIndex(data, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	if last[1] != len(data) {
		return 0, false
	}
	return last[0], true
}

// scheduleCompletionCheckLocked arms the completion check. spec.md §4.3
// trusts a trailing prompt match immediately when a CRLF directly precedes
// it (the fast path); otherwise it waits out promptGracePeriod in case the
// match is actually embedded inside still-arriving output.
func (d *Dispatcher) scheduleCompletionCheckLocked() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	delay := promptGracePeriod
	data := []byte(d.current.Result().Stdout)
	if start, ok := trailingPromptMatch(d.promptRegex, data); ok && start >= 2 && bytes.Equal(data[start-2:start], []byte("\r\n")) {
		delay = 0
	}
	d.idleTimer = time.AfterFunc(delay, d.checkCompletion)
}

// checkCompletion runs once a trailing prompt is trusted (see
// scheduleCompletionCheckLocked). If the executing command's accumulated
// output ends in exactly one prompt match, that match is stripped out and
// the command resolves.
func (d *Dispatcher) checkCompletion() {
	d.mu.Lock()
	cmd := d.current
	if cmd == nil {
		d.mu.Unlock()
		return
	}

	data := []byte(cmd.Result().Stdout)
	start, ok := trailingPromptMatch(d.promptRegex, data)
	if !ok {
		d.mu.Unlock()
		return
	}

	clean := append([]byte(nil), data[:start]...)
	cmd.SetStdout(clean)

	status := d.pendingResolution
	detail := ""
	switch status {
	case CommandTimedOut:
		detail = "interrupted-by-timeout"
	case CommandInterrupted:
		detail = "interrupted-by-signal"
	case "":
		status = CommandCompleted
	}
	d.pendingResolution = ""
	d.current = nil
	d.trailingPrompt = append([]byte(nil), data[start:]...)
	d.mu.Unlock()

	// A browser command is recorded (and the gate set) before it resolves,
	// so a waiter unblocked by Resolve already observes the gate.
	if cmd.Initiator == InitiatorBrowser {
		d.recordBrowserCommand(cmd, "0")
	}

	cmd.Resolve(status, "0", detail)

	logrus.Debugf("command %s resolved as %s", cmd.ID, status)
}

func (d *Dispatcher) recordBrowserCommand(cmd *Command, exitCode string) {
	result := cmd.Result()
	result.ExitCode = exitCode
	d.browserBuf.Append(BrowserCommandEntry{
		CommandString: cmd.Text,
		CommandID:     cmd.ID,
		Timestamp:     time.Now(),
		Result:        result,
	})
	d.mu.Lock()
	d.browserCommandsExecuted = true
	d.mu.Unlock()
}

func (d *Dispatcher) timeoutCurrent(cmd *Command) {
	d.cancelCurrent(cmd, CommandTimedOut, "interrupted-by-timeout")
}

func (d *Dispatcher) cancelCurrent(cmd *Command, status CommandStatus, detail string) {
	d.mu.Lock()
	if d.current != cmd {
		d.mu.Unlock()
		return
	}
	d.pendingResolution = status
	d.mu.Unlock()
	_ = detail

	d.writerMu.Lock()
	_, err := d.pty.Write([]byte{0x03})
	d.writerMu.Unlock()
	if err != nil {
		logrus.Warnf("failed to write SIGINT: %v", err)
	}
}

// run is the single-consumer serialization loop (I1): exactly one command
// is dequeued and executed at a time.
func (d *Dispatcher) run() {
	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		select {
		case cmd := <-d.queue:
			d.execute(cmd)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) execute(cmd *Command) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		cmd.Resolve(CommandCancelled, "", "cancelled-by-disconnect")
		return
	}
	d.mu.Unlock()

	if time.Since(cmd.SubmittedAt) > staleAfter {
		cmd.Resolve(CommandStale, "", "stale")
		return
	}

	d.mu.Lock()
	d.current = cmd
	d.pendingResolution = ""
	d.awaitingEcho = true
	d.echoInitiator = cmd.Initiator
	d.echoBuf = nil
	if cmd.Initiator == InitiatorMCP {
		// A trailing prompt already present at the stream's tail (the
		// common case: the prior command's completion, or the session's
		// init banner, already put one there) is consumed here rather than
		// re-broadcast, so the synthetic echo never produces two
		// consecutive prompts with nothing between them (spec.md §4.3
		// "Prompt accounting"). d.trailingPrompt carries no further use
		// once a new command starts, so it is cleared either way.
		d.trailingPrompt = nil
		d.broadcaster.Publish([]byte(cmd.Text+"\r\n"), SourceClaudeCommandEcho)
	}
	d.mu.Unlock()

	d.writerMu.Lock()
	_, err := d.pty.Write([]byte(cmd.Text + "\n"))
	d.writerMu.Unlock()
	if err != nil {
		d.mu.Lock()
		d.current = nil
		d.mu.Unlock()
		cmd.Resolve(CommandInterrupted, "", "interrupted-by-disconnect")
		return
	}

	var cancelTimer *time.Timer
	if cmd.Cancellation != nil && cmd.Cancellation.Cancel {
		wait := time.Duration(cmd.Cancellation.WaitMs) * time.Millisecond
		cancelTimer = time.AfterFunc(wait, func() {
			d.cancelCurrent(cmd, CommandInterrupted, "interrupted-by-signal")
		})
	}
	timeoutTimer := time.AfterFunc(d.defaultTimeout, func() {
		d.timeoutCurrent(cmd)
	})

	<-cmd.Wait()

	if cancelTimer != nil {
		cancelTimer.Stop()
	}
	timeoutTimer.Stop()

	d.mu.Lock()
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	d.mu.Unlock()
}

// Stop drains the dispatcher (spec.md §4.3 shutdown drain / I4): it
// refuses new submissions, resolves the in-flight command as
// interrupted-by-disconnect, resolves every queued command as
// cancelled-by-disconnect, and wipes the Browser Command Buffer.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	cur := d.current
	d.current = nil
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	close(d.stopCh)
	d.mu.Unlock()

	if cur != nil {
		cur.Resolve(CommandInterrupted, "", "interrupted-by-disconnect")
	}

drain:
	for {
		select {
		case cmd := <-d.queue:
			cmd.Resolve(CommandCancelled, "", "cancelled-by-disconnect")
		default:
			break drain
		}
	}

	d.browserBuf.Clear()
}
