package handler

import (
	"time"

	"github.com/gin-gonic/gin"
)

// apiResponse is the envelope of every JSON body except the probes.
type apiResponse struct {
	Code        int       `json:"code"`
	Message     string    `json:"message"`
	Data        any       `json:"data,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

func respond(c *gin.Context, status int, message string, data any) {
	code := 0
	if status >= 400 {
		code = status
	}
	c.JSON(status, apiResponse{
		Code:        code,
		Message:     message,
		Data:        data,
		GeneratedAt: time.Now().UTC(),
	})
}
