package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/duoterm/duoterm/internal/session"
)

func TestHealthEndpointReportsStatusOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := session.NewRegistry(0)
	r := SetupRouter(registry, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %q", body.Status)
	}
}

func TestSessionPageReturns404ForUnknownSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := session.NewRegistry(0)
	r := SetupRouter(registry, true)

	req := httptest.NewRequest(http.MethodGet, "/session/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
