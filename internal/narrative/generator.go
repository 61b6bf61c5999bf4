// Package narrative turns snapshots and headlines into short persona-voiced
// commentary. Every call is best effort: failures yield an empty string.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"
	"crypto-herald/internal/metrics"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTimeout = 30 * time.Second

// Asker is a persona-bound completion call, satisfied by llm.Voice.
type Asker interface {
	Ask(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// token budgets per report kind
var budgets = map[string]int{
	compose.KindFearGreed:     500,
	compose.KindSetup:         600,
	compose.KindMarket:        600,
	compose.KindWatchlist:     700,
	compose.KindSentiment:     500,
	compose.KindOpportunities: 700,
}

var errNoData = errors.New("snapshot lacks data for this report")

// Voices are the completion calls a generator can use. Full serves the long
// reports, Mini the two-line headline notes and Copy the social posts. Any of
// them may be nil, in which case those calls return "".
type Voices struct {
	Full Asker
	Mini Asker
	Copy Asker
}

type Generator struct {
	tracer  trace.Tracer
	voices  Voices
	timeout time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(tracer trace.Tracer, voices Voices, timeout time.Duration, m *metrics.Metrics) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{
		tracer:  tracer,
		voices:  voices,
		timeout: timeout,
		metrics: m,
		now:     time.Now,
	}
}

// Generate writes the commentary for one report kind.
func (g *Generator) Generate(ctx context.Context, kind string, s *domain.MarketSnapshot) string {
	prompt, err := g.prompt(kind, s)
	if err != nil {
		log.Debug().Str("component", "narrative").Str("kind", kind).Err(err).Msg("skipping narrative")
		return ""
	}
	return g.ask(ctx, kind, g.voices.Full, prompt, budgets[kind])
}

// Summarize writes the two-line digest summary of a headline.
func (g *Generator) Summarize(ctx context.Context, item domain.NewsItem) string {
	return g.ask(ctx, compose.KindNews, g.voices.Mini, newsSummaryPrompt(item), 0)
}

// Analyze writes the two-line market impact of an urgent headline.
func (g *Generator) Analyze(ctx context.Context, item domain.NewsItem) string {
	return g.ask(ctx, compose.KindFlash, g.voices.Mini, flashPrompt(item), 0)
}

// Situation writes the two-line market status used by the flash command.
func (g *Generator) Situation(ctx context.Context, s *domain.MarketSnapshot) string {
	if s == nil || len(s.Prices) == 0 {
		return ""
	}
	return g.ask(ctx, compose.KindSituation, g.voices.Mini, situationPrompt(s), 0)
}

// SocialPosts drafts the Twitter, Instagram and LinkedIn posts for a theme.
func (g *Generator) SocialPosts(ctx context.Context, theme string, s *domain.MarketSnapshot) string {
	return g.ask(ctx, compose.KindSocial, g.voices.Copy, socialPrompt(theme, s), 1500)
}

func (g *Generator) prompt(kind string, s *domain.MarketSnapshot) (string, error) {
	if s == nil {
		return "", errNoData
	}
	switch kind {
	case compose.KindFearGreed:
		if s.Sentiment == nil {
			return "", errNoData
		}
		return fearGreedPrompt(s), nil
	case compose.KindSetup:
		if len(s.Prices) == 0 {
			return "", errNoData
		}
		return setupPrompt(s), nil
	case compose.KindMarket:
		if s.Global == nil {
			return "", errNoData
		}
		return marketPrompt(s), nil
	case compose.KindWatchlist:
		if len(s.Movers) == 0 {
			return "", errNoData
		}
		return watchlistPrompt(s), nil
	case compose.KindSentiment:
		if s.Sentiment == nil {
			return "", errNoData
		}
		return sentimentPrompt(s), nil
	case compose.KindOpportunities:
		if len(s.Prices) == 0 {
			return "", errNoData
		}
		return opportunitiesPrompt(s, g.now()), nil
	default:
		return "", fmt.Errorf("unknown narrative kind %q", kind)
	}
}

func (g *Generator) ask(ctx context.Context, kind string, voice Asker, prompt string, maxTokens int) string {
	if voice == nil {
		return ""
	}
	ctx, span := g.tracer.Start(ctx, "narrative.generate")
	defer span.End()
	span.SetAttributes(attribute.String("narrative.kind", kind))

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := voice.Ask(ctx, prompt, maxTokens)
	if err != nil {
		span.RecordError(err)
		g.metrics.NarrativeFailed(kind)
		log.Warn().Str("component", "narrative").Str("kind", kind).Err(err).Msg("narrative unavailable")
		return ""
	}
	return text
}
