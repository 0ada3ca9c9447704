package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/duoterm/duoterm/internal/session"
)

var startTime = time.Now()

// HealthResponse is the response body for /health, grounded on the
// teacher's handler/system.go HandleHealth (supplemented feature, §7).
type HealthResponse struct {
	Status        string `json:"status"`
	GoVersion     string `json:"goVersion"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	ActiveSessions int   `json:"activeSessions"`
}

func handleHealth(registry *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		uptime := time.Since(startTime)
		c.JSON(http.StatusOK, HealthResponse{
			Status:         "ok",
			GoVersion:      runtime.Version(),
			OS:             runtime.GOOS,
			Arch:           runtime.GOARCH,
			Uptime:         uptime.String(),
			UptimeSeconds:  int64(uptime.Seconds()),
			ActiveSessions: len(registry.List()),
		})
	}
}
