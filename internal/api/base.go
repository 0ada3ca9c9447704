package api

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error body for the monitoring HTTP surface.
type ErrorResponse struct {
	Error string `json:"error"`
}

// sendError writes a standardized error response, mirroring the teacher's
// BaseHandler.SendError.
func sendError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
