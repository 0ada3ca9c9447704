package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duoterm/duoterm/internal/session"
)

// handleSessionPage serves the monitoring UI shell for a single session. It
// opens a WebSocket to /ws/session/{name} and renders the terminal output,
// mirroring the teacher's HandleTerminalPage but generalized to a named,
// already-connected session rather than one it creates itself.
func handleSessionPage(registry *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if _, ok := registry.Get(name); !ok {
			sendError(c, http.StatusNotFound, fmt.Errorf("session %q not found", name))
			return
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, monitoringPageHTML(name))
	}
}

func monitoringPageHTML(name string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>duoterm: %[1]s</title></head>
<body style="background:#111;color:#ddd;font-family:monospace;margin:0">
<pre id="term" style="padding:8px;white-space:pre-wrap"></pre>
<script>
(function() {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "/ws/session/%[1]s");
  var term = document.getElementById("term");
  ws.onmessage = function(ev) {
    var frame = JSON.parse(ev.data);
    if (frame.type === "terminal_output") {
      term.textContent += frame.data;
      window.scrollTo(0, document.body.scrollHeight);
    }
  };
  window.addEventListener("keydown", function() {});
})();
</script>
</body>
</html>`, name)
}
