package session

import (
	"testing"
	"time"
)

func startReadySession(t *testing.T) (*Session, *fakePTY) {
	t.Helper()
	pty := newFakePTY()
	s := NewSession("t", "host", "user", pty, time.Second)

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start() }()

	// give Start's write a moment to land, then simulate the shell
	// emitting the freshly-installed prompt.
	time.Sleep(20 * time.Millisecond)
	pty.emit("[user@host ~]$ ")

	select {
	case err := <-startErr:
		if err != nil {
			t.Fatalf("Start() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() never returned")
	}

	return s, pty
}

func TestMCPEchoHappyPath(t *testing.T) {
	s, pty := startReadySession(t)

	cmd, err := s.SubmitCommand(InitiatorMCP, "echo hello", nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// the dispatcher writes "echo hello\n"; the fake remote echoes it back
	// followed by the command's real output and a fresh prompt.
	time.Sleep(20 * time.Millisecond)
	pty.emit("echo hello\r\n")
	pty.emit("hello\r\n")
	pty.emit("[user@host ~]$ ")

	select {
	case <-cmd.Wait():
	case <-time.After(2 * time.Second):
		t.Fatal("command never resolved")
	}

	if cmd.Status() != CommandCompleted {
		t.Fatalf("expected completed, got %s", cmd.Status())
	}
	res := cmd.Result()
	if res.Stdout != "hello\r\n" {
		t.Fatalf("expected stdout %q, got %q", "hello\r\n", res.Stdout)
	}
}

func TestBrowserCommandSetsGateExactlyOnce(t *testing.T) {
	s, pty := startReadySession(t)

	cmd, err := s.SubmitCommand(InitiatorBrowser, "pwd", nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	// browser commands rely on the PTY's own echo, not a synthetic one.
	pty.emit("pwd\r\n")
	pty.emit("/home/user\r\n")
	pty.emit("[user@host ~]$ ")

	<-cmd.Wait()

	if !s.Dispatcher.BrowserCommandsExecuted() {
		t.Fatal("expected browser_commands_executed to be true after a resolved browser command")
	}

	if _, err := s.SubmitCommand(InitiatorMCP, "date", nil); err == nil {
		t.Fatal("expected MCP submission to be gated after a browser command completed")
	} else if _, ok := err.(*GatingError); !ok {
		t.Fatalf("expected GatingError, got %T: %v", err, err)
	}

	// browser submissions are never gated.
	if _, err := s.SubmitCommand(InitiatorBrowser, "ls", nil); err != nil {
		t.Fatalf("browser submission should never be gated: %v", err)
	}
}

func TestCancelIdleSessionReturnsNoActiveCommand(t *testing.T) {
	s, _ := startReadySession(t)

	if err := s.Cancel(); err != ErrNoActiveCommand {
		t.Fatalf("expected ErrNoActiveCommand, got %v", err)
	}
}

func TestInvalidWaitToCancelMsRejected(t *testing.T) {
	s, _ := startReadySession(t)

	_, err := s.SubmitCommand(InitiatorMCP, "sleep 60", &CancellationPolicy{Cancel: true, WaitMs: 500})
	if err != ErrInvalidWait {
		t.Fatalf("expected ErrInvalidWait, got %v", err)
	}
}

func TestQueueFullAtCapacity(t *testing.T) {
	pty := newFakePTY()
	s := NewSession("t2", "host", "user", pty, time.Second)
	// bypass Start/init-banner suppression for this pure queue-capacity test
	s.suppressingInit = false

	accepted := 0
	for i := 0; i < queueCapacity+1; i++ {
		if _, err := s.SubmitCommand(InitiatorBrowser, "sleep 1", nil); err == nil {
			accepted++
		} else if err != ErrQueueFull {
			t.Fatalf("unexpected error at submission %d: %v", i, err)
		}
	}

	// one command is immediately dequeued into "executing" by the runner,
	// so up to queueCapacity+1 may be accepted before the cap bites.
	if accepted < queueCapacity {
		t.Fatalf("expected at least %d accepted submissions before queue-full, got %d", queueCapacity, accepted)
	}
}

func TestCRLFPrecededPromptResolvesWithoutWaitingOutGracePeriod(t *testing.T) {
	s, pty := startReadySession(t)

	cmd, err := s.SubmitCommand(InitiatorMCP, "echo hello", nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	started := time.Now()
	pty.emit("echo hello\r\n")
	// output and prompt land in the same CRLF-anchored chunk, so completion
	// should be trusted immediately rather than waiting promptGracePeriod.
	pty.emit("hello\r\n[user@host ~]$ ")

	select {
	case <-cmd.Wait():
	case <-time.After(2 * time.Second):
		t.Fatal("command never resolved")
	}

	if elapsed := time.Since(started); elapsed >= promptGracePeriod {
		t.Fatalf("expected CRLF fast path to resolve well under the %s grace period, took %s", promptGracePeriod, elapsed)
	}
}

func TestMCPSyntheticEchoConsumesExistingTrailingPrompt(t *testing.T) {
	s, pty := startReadySession(t)

	first, err := s.SubmitCommand(InitiatorMCP, "echo one", nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	pty.emit("echo one\r\n")
	pty.emit("one\r\n")
	pty.emit("[user@host ~]$ ")
	<-first.Wait()

	// the prior command's completion left a trailing prompt; the
	// dispatcher must have recorded it rather than discarding it.
	if s.Dispatcher.trailingPrompt == nil {
		t.Fatal("expected trailingPrompt to be set after a command completes at a prompt")
	}

	second, err := s.SubmitCommand(InitiatorMCP, "echo two", nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// the synthetic echo injected for the second command must have
	// consumed (cleared) the pending trailing prompt, not re-broadcast it.
	time.Sleep(20 * time.Millisecond)
	if s.Dispatcher.trailingPrompt != nil {
		t.Fatalf("expected trailingPrompt to be consumed once the next MCP command starts, got %q", s.Dispatcher.trailingPrompt)
	}

	pty.emit("echo two\r\n")
	pty.emit("two\r\n")
	pty.emit("[user@host ~]$ ")
	<-second.Wait()

	if second.Status() != CommandCompleted {
		t.Fatalf("expected completed, got %s", second.Status())
	}
}
