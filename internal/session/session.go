package session

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is a session's coarse lifecycle state (spec.md §3 "Lifecycle").
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusReady       Status = "ready"
	StatusBusy        Status = "busy"
	StatusDisposing   Status = "disposing"
	StatusGone        Status = "gone"
)

// initPromptTimeout bounds how long Session.Start waits to observe the
// first prompt emitted after installing the PS1 banner, before giving up
// and treating the connection as failed.
const initPromptTimeout = 10 * time.Second

// Session is one persistent SSH shell with PTY, shared between the MCP and
// browser initiators (spec.md §3).
type Session struct {
	Name     string
	Host     string
	Username string

	pty         PTY
	History     *History
	Broadcaster *Broadcaster
	BrowserBuf  *BrowserCommandBuffer
	Dispatcher  *Dispatcher

	promptRegex *regexp.Regexp

	statusVal atomic.Value // Status

	initMu          sync.Mutex
	suppressingInit bool
	initBuf         []byte
	initDone        chan struct{}

	disposeOnce sync.Once
}

// NewSession wires together the History/Broadcaster/BrowserCommandBuffer/
// Dispatcher quartet around an already-opened PTY and starts the ingress
// read loop. It does not block on the shell actually becoming ready; call
// Start to do that.
func NewSession(name, host, username string, pty PTY, defaultTimeout time.Duration) *Session {
	promptRegex := buildPromptRegex(username, host)
	history := NewHistory()
	broadcaster := NewBroadcaster(history)
	browserBuf := NewBrowserCommandBuffer()
	dispatcher := NewDispatcher(pty, broadcaster, browserBuf, promptRegex, defaultTimeout)

	s := &Session{
		Name:            name,
		Host:            host,
		Username:        username,
		pty:             pty,
		History:         history,
		Broadcaster:     broadcaster,
		BrowserBuf:      browserBuf,
		Dispatcher:      dispatcher,
		promptRegex:     promptRegex,
		suppressingInit: true,
		initDone:        make(chan struct{}),
	}
	s.statusVal.Store(StatusConnecting)

	go s.readLoop()
	return s
}

func buildPromptRegex(username, host string) *regexp.Regexp {
	pattern := fmt.Sprintf(`\[%s@%s [^\]]*\]\$ `, regexp.QuoteMeta(username), regexp.QuoteMeta(host))
	return regexp.MustCompile(pattern)
}

// Start installs the stable bracket-format prompt (spec.md §4.1) and waits
// for it to be observed once before returning, bringing the session to
// StatusReady.
func (s *Session) Start() error {
	ps1 := fmt.Sprintf("export PS1='[%s@%s \\w]$ '\n", s.Username, s.Host)
	if _, err := s.pty.Write([]byte(ps1)); err != nil {
		return fmt.Errorf("failed to install prompt: %w", err)
	}

	select {
	case <-s.initDone:
		s.statusVal.Store(StatusReady)
		return nil
	case <-time.After(initPromptTimeout):
		return fmt.Errorf("timed out waiting for initial shell prompt")
	}
}

// Status reports the session's current coarse lifecycle state.
func (s *Session) Status() Status {
	if v, ok := s.statusVal.Load().(Status); ok {
		if v == StatusReady && s.Dispatcher.currentIsSet() {
			return StatusBusy
		}
		return v
	}
	return StatusConnecting
}

// readLoop is the PTY ingress reader. It never blocks the broadcaster: the
// init-banner filter and the dispatcher's own echo filtering are the only
// synchronous work performed before handing bytes to the broadcaster.
func (s *Session) readLoop() {
	buf := make([]byte, 8192)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.handleIngress(chunk)
		}
		if err != nil {
			logrus.Debugf("session %s ingress read ended: %v", s.Name, err)
			s.onFatal()
			return
		}
	}
}

func (s *Session) handleIngress(chunk []byte) {
	s.initMu.Lock()
	if s.suppressingInit {
		s.initBuf = append(s.initBuf, chunk...)
		loc := s.promptRegex.FindIndex(s.initBuf)
		if loc == nil {
			// cap unbounded growth from a shell that never prompts
			if len(s.initBuf) > 64*1024 {
				s.initBuf = s.initBuf[len(s.initBuf)-64*1024:]
			}
			s.initMu.Unlock()
			return
		}
		matched := append([]byte(nil), s.initBuf[loc[0]:loc[1]]...)
		rest := append([]byte(nil), s.initBuf[loc[1]:]...)
		s.suppressingInit = false
		s.initBuf = nil
		s.initMu.Unlock()

		s.Broadcaster.Publish(matched, SourcePrompt)
		s.Dispatcher.NoteTrailingPrompt(matched)
		close(s.initDone)

		if len(rest) > 0 {
			s.Dispatcher.Ingest(rest)
		}
		return
	}
	s.initMu.Unlock()
	s.Dispatcher.Ingest(chunk)
}

func (s *Session) onFatal() {
	s.Dispose()
}

// SubmitCommand hands a new command to the Dispatcher.
func (s *Session) SubmitCommand(initiator Initiator, text string, policy *CancellationPolicy) (*Command, error) {
	return s.Dispatcher.Submit(initiator, text, policy)
}

// SubmitCommandWithID hands a new command to the Dispatcher under a
// caller-supplied id (used by the WebSocket endpoint to honor a browser's
// commandId).
func (s *Session) SubmitCommandWithID(id string, initiator Initiator, text string, policy *CancellationPolicy) (*Command, error) {
	return s.Dispatcher.SubmitWithID(id, initiator, text, policy)
}

// Cancel injects SIGINT for the currently-executing command, if any.
func (s *Session) Cancel() error {
	return s.Dispatcher.Cancel()
}

// Acknowledge clears the browser_commands_executed gate.
func (s *Session) Acknowledge() []BrowserCommandEntry {
	return s.Dispatcher.Acknowledge()
}

// SubscribeWithReplay registers a new live listener and snapshots History
// atomically with respect to Publish, so a connecting client never sees
// the same output entry delivered twice (once via the snapshot, once via
// the listener's live channel) and never misses one landing in the gap
// between the two steps.
func (s *Session) SubscribeWithReplay() (*Listener, []HistoryEntry) {
	return s.Broadcaster.SubscribeWithReplay()
}

// Unsubscribe removes a previously-registered listener.
func (s *Session) Unsubscribe(l *Listener) {
	s.Broadcaster.Unsubscribe(l)
}

// Resize changes the PTY window size.
func (s *Session) Resize(cols, rows uint16) error {
	return s.pty.Resize(cols, rows)
}

// Dispose tears the session down exactly once: drains the dispatcher
// (I4), closes the PTY/SSH transport, and marks the session gone.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.statusVal.Store(StatusDisposing)
		s.Dispatcher.Stop()
		if err := s.pty.Close(); err != nil {
			logrus.Warnf("session %s: error closing PTY: %v", s.Name, err)
		}
		s.statusVal.Store(StatusGone)
	})
}
