package mcpserver

import (
	"testing"
	"time"

	"github.com/duoterm/duoterm/internal/session"
)

type loopbackPTY struct {
	out chan []byte
}

func newLoopbackPTY() *loopbackPTY {
	return &loopbackPTY{out: make(chan []byte, 16)}
}

func (p *loopbackPTY) Read(b []byte) (int, error) {
	chunk := <-p.out
	return copy(b, chunk), nil
}
func (p *loopbackPTY) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	p.out <- cp
	return len(b), nil
}
func (p *loopbackPTY) Resize(cols, rows uint16) error { return nil }
func (p *loopbackPTY) Close() error                   { return nil }
func (p *loopbackPTY) Done() <-chan struct{}          { return make(chan struct{}) }

func newTestServer(t *testing.T) (*Server, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(0)
	s := &Server{registry: registry, baseURL: "http://localhost:8080", defaultTimeout: time.Second}
	return s, registry
}

func TestExecPayloadReportsSessionNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	got := s.execPayload(ExecArgs{SessionName: "missing", Command: "ls"})
	if got.Success {
		t.Fatal("expected failure for unknown session")
	}
	if got.Error != session.ErrSessionNotFound.Error() {
		t.Fatalf("unexpected error: %q", got.Error)
	}
}

func TestMonitoringURLPayloadBuildsExpectedShape(t *testing.T) {
	s, registry := newTestServer(t)

	pty := newLoopbackPTY()
	sess := session.NewSession("box", "10.0.0.1", "root", pty, time.Second)
	if err := registry.Add(sess); err != nil {
		t.Fatalf("registry.Add failed: %v", err)
	}

	got := s.monitoringURLPayload(SessionNameArgs{SessionName: "box"})
	if !got.Success {
		t.Fatalf("expected success, got %+v", got)
	}
	want := "http://localhost:8080/session/box"
	if got.MonitoringURL != want {
		t.Fatalf("expected url %q, got %q", want, got.MonitoringURL)
	}
}

func TestMonitoringURLPayloadReportsMissingSession(t *testing.T) {
	s, _ := newTestServer(t)

	got := s.monitoringURLPayload(SessionNameArgs{SessionName: "missing"})
	if got.Success {
		t.Fatal("expected failure for unknown session")
	}
}

func TestListSessionsPayloadReflectsRegistry(t *testing.T) {
	s, registry := newTestServer(t)

	pty := newLoopbackPTY()
	sess := session.NewSession("box", "10.0.0.1", "root", pty, time.Second)
	if err := registry.Add(sess); err != nil {
		t.Fatalf("registry.Add failed: %v", err)
	}

	got := s.listSessionsPayload(ListSessionsArgs{})
	if len(got.Sessions) != 1 || got.Sessions[0].Name != "box" {
		t.Fatalf("unexpected sessions list: %+v", got.Sessions)
	}
}

func TestDisconnectPayloadRemovesSession(t *testing.T) {
	s, registry := newTestServer(t)

	pty := newLoopbackPTY()
	sess := session.NewSession("box", "10.0.0.1", "root", pty, time.Second)
	if err := registry.Add(sess); err != nil {
		t.Fatalf("registry.Add failed: %v", err)
	}

	got := s.disconnectPayload(SessionNameArgs{SessionName: "box"})
	if !got.Success {
		t.Fatalf("expected success, got %+v", got)
	}
	if _, ok := registry.Get("box"); ok {
		t.Fatal("expected session to be removed from registry")
	}
}
