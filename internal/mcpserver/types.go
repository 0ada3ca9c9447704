package mcpserver

import (
	"encoding/json"
	"fmt"

	mcp_golang "github.com/metoro-io/mcp-golang"
)

// toolResponse marshals data as indented JSON and wraps it in the single
// text content block mcp-golang tool handlers are expected to return,
// mirroring the teacher's mcp.CreateJSONResponse helper.
func toolResponse(data interface{}) (*mcp_golang.ToolResponse, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool response: %w", err)
	}
	return mcp_golang.NewToolResponse(mcp_golang.NewTextContent(string(jsonBytes))), nil
}

// ConnectArgs are the parameters of ssh_connect.
type ConnectArgs struct {
	Name        string `json:"name" jsonschema:"required,description=Unique name for this SSH session"`
	Host        string `json:"host" jsonschema:"required,description=Remote host to connect to"`
	Username    string `json:"username" jsonschema:"required,description=SSH username"`
	Password    string `json:"password" jsonschema:"description=Password for password authentication"`
	KeyFilePath string `json:"keyFilePath" jsonschema:"description=Path to a private key file, ~ expands to the home directory"`
}

// ConnectResult is the ssh_connect response payload.
type ConnectResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExecArgs are the parameters of ssh_exec.
type ExecArgs struct {
	SessionName    string `json:"sessionName" jsonschema:"required,description=Name of the connected session"`
	Command        string `json:"command" jsonschema:"required,description=Shell command to run"`
	Cancel         bool   `json:"cancel" jsonschema:"description=Whether a timeout should cancel the command"`
	WaitToCancelMs int    `json:"waitToCancelMs" jsonschema:"description=Milliseconds to wait before cancelling, minimum 1000"`
}

// ExecResultPayload carries a resolved command's output.
type ExecResultPayload struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode string `json:"exitCode"`
}

// ExecResult is the ssh_exec response payload.
type ExecResult struct {
	Success         bool                  `json:"success"`
	Result          *ExecResultPayload    `json:"result,omitempty"`
	Error           string                `json:"error,omitempty"`
	BrowserCommands []BrowserCommandEntry `json:"browserCommands,omitempty"`
}

// BrowserCommandEntry mirrors session.BrowserCommandEntry for the gating
// payload, kept as a distinct type so the MCP wire shape doesn't depend on
// internal/session's in-process struct layout.
type BrowserCommandEntry struct {
	CommandString string             `json:"commandString"`
	CommandID     string             `json:"commandId"`
	Timestamp     string             `json:"timestamp"`
	Result        ExecResultPayload  `json:"result"`
}

// SessionNameArgs identify a single session by name.
type SessionNameArgs struct {
	SessionName string `json:"sessionName" jsonschema:"required,description=Name of the session"`
}

// CancelResult is the ssh_cancel_command response payload.
type CancelResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ListSessionsArgs takes no parameters.
type ListSessionsArgs struct{}

// SessionSummary describes one session for ssh_list_sessions.
type SessionSummary struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

// ListSessionsResult is the ssh_list_sessions response payload.
type ListSessionsResult struct {
	Success  bool             `json:"success"`
	Sessions []SessionSummary `json:"sessions"`
}

// DisconnectResult is the ssh_disconnect response payload.
type DisconnectResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MonitoringURLResult is the ssh_get_monitoring_url response payload.
type MonitoringURLResult struct {
	Success        bool   `json:"success"`
	MonitoringURL  string `json:"monitoringUrl,omitempty"`
	Error          string `json:"error,omitempty"`
}

// AcknowledgeResult is the ssh_acknowledge_browser_commands response
// payload (supplemented tool, §7).
type AcknowledgeResult struct {
	Success         bool                  `json:"success"`
	BrowserCommands []BrowserCommandEntry `json:"browserCommands"`
	Error           string                `json:"error,omitempty"`
}
