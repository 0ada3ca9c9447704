// Package wsterm implements the browser-facing WebSocket terminal endpoint:
// connect, replay history, then exchange input/resize/signal frames with a
// session's Command Dispatcher. Modeled on the teacher's
// handler/terminal.go HandleTerminalWS, generalized from a single local PTY
// per connection to a shared, multi-listener session.
package wsterm

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/duoterm/duoterm/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// InboundFrame is the JSON schema accepted from the browser (spec.md §4.5).
type InboundFrame struct {
	Type        string `json:"type"`
	SessionName string `json:"sessionName,omitempty"`
	Command     string `json:"command,omitempty"`
	CommandID   string `json:"commandId,omitempty"`
	Signal      string `json:"signal,omitempty"`
	Rows        uint16 `json:"rows,omitempty"`
	Cols        uint16 `json:"cols,omitempty"`
}

// OutboundFrame is the JSON schema pushed to the browser.
type OutboundFrame struct {
	Type        string `json:"type"`
	SessionName string `json:"sessionName"`
	Data        string `json:"data"`
	Sequence    uint64 `json:"sequence"`
	Source      string `json:"source"`
}

// Handler upgrades HTTP connections into the terminal WebSocket protocol.
type Handler struct {
	registry *session.Registry
}

// NewHandler builds a wsterm Handler bound to the given session registry.
func NewHandler(registry *session.Registry) *Handler {
	return &Handler{registry: registry}
}

// HandleWS serves ws://host:port/ws/session/{sessionName}.
func (h *Handler) HandleWS(c *gin.Context) {
	name := c.Param("name")

	sess, ok := h.registry.Get(name)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("wsterm: failed to upgrade connection")
		return
	}
	defer conn.Close()

	// Listener registration and the history snapshot happen as one atomic
	// step (Broadcaster.Publish is locked across its own append-and-fan-out),
	// so no output entry can ever reach both this replay loop and the live
	// channel below, and none can fall in the gap between them (I5, S6).
	listener, history := sess.SubscribeWithReplay()
	defer sess.Unsubscribe(listener)

	var writeMu sync.Mutex
	writeJSON := func(frame OutboundFrame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(frame)
	}

	// Replay and live delivery share this one outbound path so ordering is
	// preserved across the boundary (I5).
	for _, entry := range history {
		if err := writeJSON(OutboundFrame{
			Type:        "terminal_output",
			SessionName: name,
			Data:        string(entry.Data),
			Sequence:    entry.Sequence,
			Source:      string(entry.Source),
		}); err != nil {
			return
		}
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() { close(done) })
	}

	go func() {
		for {
			select {
			case frame, ok := <-listener.Ch:
				if !ok {
					closeDone()
					return
				}
				if err := writeJSON(OutboundFrame{
					Type:        "terminal_output",
					SessionName: name,
					Data:        string(frame.Data),
					Sequence:    frame.Sequence,
					Source:      string(frame.Source),
				}); err != nil {
					closeDone()
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeDone()
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logrus.WithError(err).Warn("wsterm: discarding malformed inbound frame")
			continue
		}

		switch frame.Type {
		case "terminal_input":
			if _, err := sess.SubmitCommandWithID(frame.CommandID, session.InitiatorBrowser, frame.Command, nil); err != nil {
				logrus.WithError(err).Warn("wsterm: browser command submission failed")
			}
		case "terminal_signal":
			if frame.Signal == "SIGINT" {
				if err := sess.Cancel(); err != nil && err != session.ErrNoActiveCommand {
					logrus.WithError(err).Warn("wsterm: cancel failed")
				}
			}
		case "terminal_resize":
			if frame.Rows > 0 && frame.Cols > 0 {
				if err := sess.Resize(frame.Cols, frame.Rows); err != nil {
					logrus.WithError(err).Warn("wsterm: resize failed")
				}
			}
		default:
			logrus.Warnf("wsterm: unknown inbound frame type %q", frame.Type)
		}
	}
}
