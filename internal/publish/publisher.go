// Package publish delivers composed messages to named destinations. Delivery
// failures are logged and reported as false, never returned or panicked.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"
	"crypto-herald/internal/metrics"
	"crypto-herald/pkg/ratelimit"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrUnknownDestination = errors.New("destination not configured")

// Transport sends one message to a platform channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, channelID string, msg compose.Message) error
}

type mirror struct {
	transport Transport
	target    string
	dests     map[domain.Destination]bool
}

type Publisher struct {
	tracer    trace.Tracer
	transport Transport
	routes    map[domain.Destination]string
	interval  time.Duration
	metrics   *metrics.Metrics

	global *ratelimit.Limiter
	mu     sync.Mutex
	pacers map[domain.Destination]*ratelimit.Limiter
	mirror *mirror
}

// New returns a publisher routing destinations to channel ids. interval is
// the minimum spacing between two posts, both overall and per destination.
func New(tracer trace.Tracer, transport Transport, routes map[domain.Destination]string, interval time.Duration, m *metrics.Metrics) *Publisher {
	r := make(map[domain.Destination]string, len(routes))
	for d, id := range routes {
		if id != "" {
			r[d] = id
		}
	}
	return &Publisher{
		tracer:    tracer,
		transport: transport,
		routes:    r,
		interval:  interval,
		metrics:   m,
		global:    ratelimit.New(1, interval),
		pacers:    make(map[domain.Destination]*ratelimit.Limiter),
	}
}

// Mirror copies successful posts to dests onto a second transport.
func (p *Publisher) Mirror(t Transport, target string, dests ...domain.Destination) {
	if t == nil || target == "" {
		return
	}
	set := make(map[domain.Destination]bool, len(dests))
	for _, d := range dests {
		set[d] = true
	}
	p.mirror = &mirror{transport: t, target: target, dests: set}
}

// Has reports whether dest is mapped to a channel.
func (p *Publisher) Has(dest domain.Destination) bool {
	_, ok := p.routes[dest]
	return ok
}

// Channel returns the channel id for dest, or "".
func (p *Publisher) Channel(dest domain.Destination) string {
	return p.routes[dest]
}

// Destinations lists the mapped destinations.
func (p *Publisher) Destinations() []domain.Destination {
	out := make([]domain.Destination, 0, len(p.routes))
	for _, d := range domain.AllDestinations {
		if p.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (p *Publisher) pacer(dest domain.Destination) *ratelimit.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.pacers[dest]
	if !ok {
		l = ratelimit.New(1, p.interval)
		p.pacers[dest] = l
	}
	return l
}

// Publish delivers msg to dest and reports whether it was accepted.
func (p *Publisher) Publish(ctx context.Context, dest domain.Destination, msg compose.Message) (ok bool) {
	ctx, span := p.tracer.Start(ctx, "publish.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("publish.destination", string(dest)),
		attribute.String("publish.kind", msg.Kind),
	)

	logger := log.With().Str("component", "publish").Str("destination", string(dest)).Str("kind", msg.Kind).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("publish panicked")
			ok = false
		}
		p.metrics.Publish(string(dest), ok)
	}()

	channel, mapped := p.routes[dest]
	if !mapped || p.transport == nil {
		logger.Warn().Err(ErrUnknownDestination).Msg("delivery skipped")
		return false
	}

	if err := p.wait(ctx, dest); err != nil {
		logger.Warn().Err(err).Msg("delivery cancelled")
		return false
	}
	if err := p.transport.Send(ctx, channel, msg); err != nil {
		span.RecordError(err)
		logger.Warn().Str("transport", p.transport.Name()).Err(err).Msg("delivery failed")
		return false
	}
	logger.Info().Str("title", msg.Title).Msg("published")

	if p.mirror != nil && p.mirror.dests[dest] {
		if err := p.mirror.transport.Send(ctx, p.mirror.target, msg); err != nil {
			logger.Warn().Str("transport", p.mirror.transport.Name()).Err(err).Msg("mirror delivery failed")
		}
	}
	return true
}

// SendTo delivers msg straight to a channel id, as used for command replies.
func (p *Publisher) SendTo(ctx context.Context, channelID string, msg compose.Message) error {
	if p.transport == nil {
		return fmt.Errorf("send to %s: %w", channelID, ErrUnknownDestination)
	}
	if err := p.global.Wait(ctx); err != nil {
		return err
	}
	return p.transport.Send(ctx, channelID, msg)
}

func (p *Publisher) wait(ctx context.Context, dest domain.Destination) error {
	if err := p.pacer(dest).Wait(ctx); err != nil {
		return err
	}
	return p.global.Wait(ctx)
}
