package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adevnylo/hll-seed-ping/internal/monitor"
)

type StatusSource interface {
	Status() monitor.Status
}

type HealthHandler struct {
	Monitor StatusSource
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

// @Summary Health check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Description Ready once the game server has answered at least one status query.
// @Tags health
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	if h.Monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "monitor_missing"})
		return
	}
	if !h.Monitor.Status().Ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no_successful_check"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
