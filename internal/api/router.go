// Package api wires the gin router for the monitoring HTTP/WebSocket
// surface: the session page, the WebSocket terminal endpoint, health, and
// Swagger docs. Grounded on the teacher's src/api/router.go.
package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/duoterm/duoterm/internal/api/docs"
	"github.com/duoterm/duoterm/internal/session"
	"github.com/duoterm/duoterm/internal/wsterm"
)

// SetupRouter builds the gin engine serving the monitoring UI, health
// check, Swagger docs, and the WebSocket terminal endpoint.
func SetupRouter(registry *session.Registry, disableRequestLogging bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(noCacheMiddleware())
	if !disableRequestLogging {
		r.Use(logrusMiddleware())
	}

	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(301, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/health", handleHealth(registry))

	r.GET("/session/:name", handleSessionPage(registry))

	wsHandler := wsterm.NewHandler(registry)
	r.GET("/ws/session/:name", wsHandler.HandleWS)

	r.GET("/", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(200, "<html><body><h1>duoterm</h1><p>Active sessions: see /health</p></body></html>")
	})

	return r
}
