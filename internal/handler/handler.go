package handler

import (
	"context"
	"net/http"
	"time"

	"crypto-herald/internal/job"
	"crypto-herald/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline is the part of the pipeline the HTTP surface reads and triggers.
type Pipeline interface {
	RunGlobalUpdate(ctx context.Context, trigger pipeline.Trigger) pipeline.CycleResult
	RunCategory(ctx context.Context, name string) (pipeline.CycleResult, error)
	Status() pipeline.Status
}

type TaskLister interface {
	Tasks() []job.TaskStatus
}

type Handler struct {
	tracer   trace.Tracer
	pipeline Pipeline
	tasks    TaskLister
	started  time.Time
	now      func() time.Time
}

func New(tracer trace.Tracer, p Pipeline, tasks TaskLister) *Handler {
	return &Handler{
		tracer:   tracer,
		pipeline: p,
		tasks:    tasks,
		started:  time.Now(),
		now:      time.Now,
	}
}

// RegisterRoutes mounts the keep-alive, status and trigger routes. Triggers
// refuse every request when apiKey is empty. metrics may be nil.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string, metrics http.Handler) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/api/status", h.Status)
	if apiKey == "" {
		log.Warn().Str("component", "http").Msg("API_KEY not set, manual cycle triggers disabled")
	}
	r.POST("/api/cycles/:kind", APIKeyAuth(apiKey), h.TriggerCycle)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
}
