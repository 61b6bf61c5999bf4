package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Root godoc
// @Summary      Keep-alive check
// @Description  Plain text liveness line for uptime pingers
// @Tags         health
// @Produce      plain
// @Success      200  {string}  string
// @Router       / [get]
func (h *Handler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Horizon Crypto : système opérationnel ✅")
}

// Health godoc
// @Summary      Health check
// @Description  Returns the health status and uptime of the service
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	now := h.now()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"time":           now.Format(time.RFC3339),
		"uptime_seconds": int64(now.Sub(h.started).Seconds()),
	})
}
