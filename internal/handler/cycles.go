package handler

import (
	"errors"
	"net/http"
	"strings"

	"crypto-herald/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// TriggerCycle godoc
// @Summary      Run a cycle now
// @Description  Runs the global update ("global") or one category (news, flash, prices, market, setup, watchlist, sentiment, opportunities, social) and returns its result
// @Tags         cycles
// @Produce      json
// @Param        kind       path    string  true   "cycle kind"
// @Param        X-API-Key  header  string  false  "API key (or Authorization: Bearer), triggers are refused when API_KEY is unset"
// @Success      200  {object}  pipeline.CycleResult
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/cycles/{kind} [post]
func (h *Handler) TriggerCycle(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-cycle")
	defer span.End()

	kind := strings.ToLower(strings.TrimSpace(c.Param("kind")))
	span.SetAttributes(attribute.String("cycle.kind", kind))
	log.Info().Str("component", "http").Str("kind", kind).Msg("manual cycle requested")

	if kind == "global" {
		c.JSON(http.StatusOK, h.pipeline.RunGlobalUpdate(ctx, pipeline.TriggerManual))
		return
	}
	res, err := h.pipeline.RunCategory(ctx, kind)
	if errors.Is(err, pipeline.ErrUnknownCategory) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
