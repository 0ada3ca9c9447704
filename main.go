package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duoterm/duoterm/internal/api"
	"github.com/duoterm/duoterm/internal/config"
	"github.com/duoterm/duoterm/internal/mcpserver"
	"github.com/duoterm/duoterm/internal/portcoord"
	"github.com/duoterm/duoterm/internal/session"
)

// @title       duoterm monitoring API
// @version     1.0
// @description SSH multiplexing bridge between an MCP agent and browser terminal clients.

// @host      localhost:8080
// @BasePath  /
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	config.ApplyLogLevel(cfg)

	registry := session.NewRegistry(cfg.MaxSessions)

	coord, err := portcoord.Bind(cfg.WebPort)
	if err != nil {
		logrus.Fatalf("failed to bind monitoring port: %v", err)
	}
	if err := coord.WriteDiscoveryFile(); err != nil {
		logrus.Warnf("failed to write port discovery file: %v", err)
	}
	defer coord.RemoveDiscoveryFile()

	router := api.SetupRouter(registry, false)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", coord.Port()),
		Handler: router,
	}

	go func() {
		logrus.WithField("port", coord.Port()).Info("duoterm: monitoring HTTP/WebSocket server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("monitoring server failed: %v", err)
		}
	}()

	mcpSrv, err := mcpserver.NewServer(registry, coord.BaseURL(), cfg.SSHTimeout())
	if err != nil {
		logrus.Fatalf("failed to create MCP server: %v", err)
	}

	mcpDone := make(chan error, 1)
	go func() {
		mcpDone <- mcpSrv.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logrus.WithField("signal", sig).Info("duoterm: shutting down")
	case err := <-mcpDone:
		if err != nil {
			logrus.Errorf("mcp stdio transport closed: %v", err)
		}
	}

	shutdown(registry, httpServer)
}

// shutdown drains every registered session (spec.md §4.3 shutdown drain /
// I4), stops accepting HTTP/WebSocket work, and removes the discovery
// file via the deferred RemoveDiscoveryFile above.
func shutdown(registry *session.Registry, httpServer *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.Warnf("duoterm: error during HTTP shutdown: %v", err)
	}

	registry.TeardownAll()
	logrus.Info("duoterm: all sessions torn down, exiting")
}
