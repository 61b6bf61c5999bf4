// Package mcpserver exposes read-only market and pipeline tools over the
// Model Context Protocol (streamable HTTP transport).
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"crypto-herald/internal/domain"
	"crypto-herald/internal/job"
	"crypto-herald/internal/pipeline"
	"crypto-herald/internal/snapshot"
	"crypto-herald/pkg/ratelimit"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MarketSource fetches live data and remembers the last good snapshot.
type MarketSource interface {
	Fetch(ctx context.Context, parts snapshot.Part) *domain.MarketSnapshot
	Last(ctx context.Context) (*domain.MarketSnapshot, error)
}

type HeadlineClassifier interface {
	Classify(item domain.NewsItem) domain.Classification
}

type StatusSource interface {
	Status() pipeline.Status
}

type TaskLister interface {
	Tasks() []job.TaskStatus
}

type Deps struct {
	Market     MarketSource
	Classifier HeadlineClassifier
	Status     StatusSource
	Tasks      TaskLister
}

type Server struct {
	tracer trace.Tracer
	deps   Deps
	mcp    *mcp.Server
}

func New(tracer trace.Tracer, version string, deps Deps) *Server {
	s := &Server{
		tracer: tracer,
		deps:   deps,
		mcp:    mcp.NewServer(&mcp.Implementation{Name: "crypto-herald", Version: version}, nil),
	}
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "market_snapshot",
		Description: "Current prices, fear & greed index, BTC dominance and market cap change",
	}, s.marketSnapshot)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "classify_headline",
		Description: "Classify a news headline as URGENT or ROUTINE with its category",
	}, s.classifyHeadline)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pipeline_status",
		Description: "Scheduled tasks, last cycle results and dedup ledger sizes",
	}, s.pipelineStatus)
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Handler serves the streamable transport behind bearer auth and a per-minute
// request budget. An empty token disables auth; perMinute <= 0 disables the
// budget.
func (s *Server) Handler(token string, perMinute int) http.Handler {
	var h http.Handler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
	if perMinute > 0 {
		h = rateLimited(ratelimit.New(perMinute, time.Minute/time.Duration(perMinute)), h)
	}
	return bearerAuth(token, h)
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr, token string, perMinute int) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(token, perMinute),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "mcp").Str("addr", addr).Msg("MCP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mcp listen: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func bearerAuth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(got) != token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimited(l *ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) span(ctx context.Context, tool string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "mcp.tool")
	span.SetAttributes(attribute.String("mcp.tool", tool))
	return ctx, span
}
