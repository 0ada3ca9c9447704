// Package mcpserver exposes the session registry as a JSON-RPC 2.0 tool
// surface over stdio. It reuses mcp-golang the same way the teacher's
// uvm-api/src/mcp/server.go does (mcp_golang.NewServer + RegisterTool),
// swapping the teacher's WebSocketTransport for the library's own stdio
// transport, which already gives the newline-delimited, noise-tolerant
// framing spec.md §4.6 requires.
package mcpserver

import (
	"fmt"
	"time"

	mcp_golang "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"github.com/sirupsen/logrus"

	"github.com/duoterm/duoterm/internal/session"
	"github.com/duoterm/duoterm/internal/sshshell"
)

// Server is the stdio MCP tool surface over a session.Registry.
type Server struct {
	mcpServer      *mcp_golang.Server
	registry       *session.Registry
	baseURL        string
	defaultTimeout time.Duration
}

// NewServer builds the stdio MCP server and registers every tool. baseURL
// is the scheme://host:port the URL Coordinator bound (used to build
// ssh_get_monitoring_url responses).
func NewServer(registry *session.Registry, baseURL string, defaultTimeout time.Duration) (*Server, error) {
	s := &Server{
		mcpServer:      mcp_golang.NewServer(stdio.NewStdioServerTransport()),
		registry:       registry,
		baseURL:        baseURL,
		defaultTimeout: defaultTimeout,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("register mcp tools: %w", err)
	}

	return s, nil
}

// Serve blocks, reading JSON-RPC requests from stdin until it is closed.
func (s *Server) Serve() error {
	logrus.Info("mcpserver: serving tools over stdio")
	return s.mcpServer.Serve()
}

func (s *Server) registerTools() error {
	registrations := []struct {
		name string
		desc string
		fn   interface{}
	}{
		{"ssh_connect", "Connect to a remote host over SSH and start a persistent shell session", s.handleConnect},
		{"ssh_exec", "Execute a command in a connected SSH session", s.handleExec},
		{"ssh_cancel_command", "Cancel the command currently executing in a session", s.handleCancel},
		{"ssh_list_sessions", "List all active SSH sessions", s.handleListSessions},
		{"ssh_disconnect", "Disconnect and tear down an SSH session", s.handleDisconnect},
		{"ssh_get_monitoring_url", "Get the browser monitoring URL for a session", s.handleMonitoringURL},
		{"ssh_acknowledge_browser_commands", "Clear the browser-commands-executed gate for a session", s.handleAcknowledge},
	}

	for _, r := range registrations {
		if err := s.mcpServer.RegisterTool(r.name, r.desc, r.fn); err != nil {
			return fmt.Errorf("register tool %s: %w", r.name, err)
		}
	}
	return nil
}

// handle* methods are the direct RegisterTool targets; each wraps the
// corresponding *Payload method, which carries the actual logic and is
// exercised directly in tests.

func (s *Server) handleConnect(args ConnectArgs) (*mcp_golang.ToolResponse, error) {
	return toolResponse(s.connectPayload(args))
}

func (s *Server) handleExec(args ExecArgs) (*mcp_golang.ToolResponse, error) {
	return toolResponse(s.execPayload(args))
}

func (s *Server) handleCancel(args SessionNameArgs) (*mcp_golang.ToolResponse, error) {
	return toolResponse(s.cancelPayload(args))
}

func (s *Server) handleListSessions(args ListSessionsArgs) (*mcp_golang.ToolResponse, error) {
	return toolResponse(s.listSessionsPayload(args))
}

func (s *Server) handleDisconnect(args SessionNameArgs) (*mcp_golang.ToolResponse, error) {
	return toolResponse(s.disconnectPayload(args))
}

func (s *Server) handleMonitoringURL(args SessionNameArgs) (*mcp_golang.ToolResponse, error) {
	return toolResponse(s.monitoringURLPayload(args))
}

func (s *Server) handleAcknowledge(args SessionNameArgs) (*mcp_golang.ToolResponse, error) {
	return toolResponse(s.acknowledgePayload(args))
}

func (s *Server) connectPayload(args ConnectArgs) ConnectResult {
	shell, err := sshshell.Dial(sshshell.Credentials{
		Host:        args.Host,
		Username:    args.Username,
		Password:    args.Password,
		KeyFilePath: args.KeyFilePath,
	})
	if err != nil {
		return ConnectResult{Success: false, Error: err.Error()}
	}

	sess := session.NewSession(args.Name, args.Host, args.Username, shell, s.defaultTimeout)
	if err := s.registry.Add(sess); err != nil {
		sess.Dispose()
		return ConnectResult{Success: false, Error: err.Error()}
	}

	if err := sess.Start(); err != nil {
		s.registry.Remove(args.Name)
		sess.Dispose()
		return ConnectResult{Success: false, Error: err.Error()}
	}

	return ConnectResult{Success: true}
}

func (s *Server) execPayload(args ExecArgs) ExecResult {
	sess, ok := s.registry.Get(args.SessionName)
	if !ok {
		return ExecResult{Success: false, Error: session.ErrSessionNotFound.Error()}
	}

	var policy *session.CancellationPolicy
	if args.Cancel {
		policy = &session.CancellationPolicy{Cancel: true, WaitMs: args.WaitToCancelMs}
	}

	cmd, err := sess.SubmitCommand(session.InitiatorMCP, args.Command, policy)
	if err != nil {
		if gating, ok := err.(*session.GatingError); ok {
			return ExecResult{
				Success:         false,
				Error:           gating.Error(),
				BrowserCommands: convertBrowserCommands(gating.BrowserCommands),
			}
		}
		return ExecResult{Success: false, Error: err.Error()}
	}

	<-cmd.Wait()
	result := cmd.Result()
	return ExecResult{
		Success: true,
		Result: &ExecResultPayload{
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
		},
	}
}

func (s *Server) cancelPayload(args SessionNameArgs) CancelResult {
	sess, ok := s.registry.Get(args.SessionName)
	if !ok {
		return CancelResult{Success: false, Error: session.ErrSessionNotFound.Error()}
	}

	if err := sess.Cancel(); err != nil {
		return CancelResult{Success: false, Error: err.Error()}
	}
	return CancelResult{Success: true}
}

func (s *Server) listSessionsPayload(args ListSessionsArgs) ListSessionsResult {
	sessions := s.registry.List()
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, SessionSummary{
			Name:     sess.Name,
			Host:     sess.Host,
			Username: sess.Username,
			Status:   string(sess.Status()),
		})
	}
	return ListSessionsResult{Success: true, Sessions: summaries}
}

func (s *Server) disconnectPayload(args SessionNameArgs) DisconnectResult {
	if err := s.registry.Disconnect(args.SessionName); err != nil {
		return DisconnectResult{Success: false, Error: err.Error()}
	}
	return DisconnectResult{Success: true}
}

func (s *Server) monitoringURLPayload(args SessionNameArgs) MonitoringURLResult {
	if _, ok := s.registry.Get(args.SessionName); !ok {
		return MonitoringURLResult{Success: false, Error: session.ErrSessionNotFound.Error()}
	}
	url := fmt.Sprintf("%s/session/%s", s.baseURL, args.SessionName)
	return MonitoringURLResult{Success: true, MonitoringURL: url}
}

func (s *Server) acknowledgePayload(args SessionNameArgs) AcknowledgeResult {
	sess, ok := s.registry.Get(args.SessionName)
	if !ok {
		return AcknowledgeResult{Success: false, Error: session.ErrSessionNotFound.Error()}
	}
	cleared := sess.Acknowledge()
	return AcknowledgeResult{Success: true, BrowserCommands: convertBrowserCommands(cleared)}
}

func convertBrowserCommands(entries []session.BrowserCommandEntry) []BrowserCommandEntry {
	out := make([]BrowserCommandEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, BrowserCommandEntry{
			CommandString: e.CommandString,
			CommandID:     e.CommandID,
			Timestamp:     e.Timestamp.Format(time.RFC3339Nano),
			Result: ExecResultPayload{
				Stdout:   e.Result.Stdout,
				Stderr:   e.Result.Stderr,
				ExitCode: e.Result.ExitCode,
			},
		})
	}
	return out
}
