package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adevnylo/hll-seed-ping/internal/metrics"
)

type StatusHandler struct {
	Monitor StatusSource
	Metrics *metrics.Metrics
}

func (h *StatusHandler) Register(r *gin.Engine) {
	r.GET("/status", h.status)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
}

// @Summary Monitor status
// @Description Last observed player count, regime and schedule.
// @Tags status
// @Produce json
// @Success 200 {object} apiResponse{data=monitor.Status}
// @Failure 503 {object} apiResponse
// @Router /status [get]
func (h *StatusHandler) status(c *gin.Context) {
	if h.Monitor == nil {
		respond(c, http.StatusServiceUnavailable, "monitor not configured", nil)
		return
	}
	respond(c, http.StatusOK, "ok", h.Monitor.Status())
}
