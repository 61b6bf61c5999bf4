package handler

import (
	"net/http"

	"crypto-herald/internal/job"
	"crypto-herald/internal/pipeline"

	"github.com/gin-gonic/gin"
)

type statusResponse struct {
	Pipeline pipeline.Status  `json:"pipeline"`
	Tasks    []job.TaskStatus `json:"tasks"`
}

// Status godoc
// @Summary      Pipeline and scheduler status
// @Description  Last cycle per kind, ledger pool sizes, startup flag and scheduled tasks
// @Tags         status
// @Produce      json
// @Success      200  {object}  statusResponse
// @Router       /api/status [get]
func (h *Handler) Status(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.status")
	defer span.End()

	resp := statusResponse{Pipeline: h.pipeline.Status(), Tasks: []job.TaskStatus{}}
	if h.tasks != nil {
		resp.Tasks = h.tasks.Tasks()
	}
	c.JSON(http.StatusOK, resp)
}
