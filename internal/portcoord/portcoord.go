// Package portcoord owns the single host:port that both the MCP agent and
// browser clients use to reach the monitoring HTTP/WebSocket surface. It
// probes for a free port starting at 8080 and records the chosen port in a
// discovery file so the launching wrapper (or a second process) can find
// it without a side channel.
package portcoord

import (
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	defaultStartPort = 8080
	probeRange       = 100
	discoveryFile    = ".ssh-mcp-server.port"
)

// Coordinator owns the bound port and the discovery file lifecycle.
type Coordinator struct {
	port     int
	filePath string
}

// Bind picks a listening port. If preferredPort is > 0 it is used as-is
// (no probing); otherwise probeRange contiguous ports starting at
// defaultStartPort are tried until one is free.
func Bind(preferredPort int) (*Coordinator, error) {
	if preferredPort > 0 {
		if !portFree(preferredPort) {
			return nil, fmt.Errorf("portcoord: requested port %d is already in use", preferredPort)
		}
		return &Coordinator{port: preferredPort}, nil
	}

	for p := defaultStartPort; p < defaultStartPort+probeRange; p++ {
		if portFree(p) {
			return &Coordinator{port: p}, nil
		}
	}
	return nil, fmt.Errorf("portcoord: no free port found in range [%d, %d)", defaultStartPort, defaultStartPort+probeRange)
}

func portFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// Port returns the bound port.
func (c *Coordinator) Port() int {
	return c.port
}

// BaseURL returns the http://host:port prefix clients should use.
func (c *Coordinator) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d", c.port)
}

// WriteDiscoveryFile records the bound port in the working directory so
// external launchers can discover it.
func (c *Coordinator) WriteDiscoveryFile() error {
	path := discoveryFile
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", c.port)), 0644); err != nil {
		return fmt.Errorf("portcoord: write discovery file: %w", err)
	}
	c.filePath = path
	logrus.WithField("port", c.port).Info("portcoord: discovery file written")
	return nil
}

// RemoveDiscoveryFile removes the discovery file on shutdown. Safe to call
// even if WriteDiscoveryFile was never called or the file is already gone.
func (c *Coordinator) RemoveDiscoveryFile() {
	if c.filePath == "" {
		return
	}
	if err := os.Remove(c.filePath); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("portcoord: failed to remove discovery file")
	}
}
