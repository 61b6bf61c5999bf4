// Package advisor answers member questions: the quota-limited VIP Q&A and
// the community Oracle.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crypto-herald/internal/domain"
	"crypto-herald/internal/metrics"
	"crypto-herald/internal/snapshot"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrQuotaExceeded = errors.New("daily question limit reached")
	ErrUnavailable   = errors.New("advisor unavailable")
	ErrEmptyQuestion = errors.New("empty question")
)

// AnswerTokens bounds a VIP answer.
const AnswerTokens = 600

// Asker sends one prompt to a persona.
type Asker interface {
	Ask(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// MarketSource provides the live context for a question.
type MarketSource interface {
	Fetch(ctx context.Context, parts snapshot.Part) *domain.MarketSnapshot
}

// Answer is a successful reply. Remaining is -1 for users without a quota.
type Answer struct {
	Text      string
	Remaining int
	Market    string
}

type Service struct {
	tracer  trace.Tracer
	voice   Asker
	market  MarketSource
	quota   *Quota
	metrics *metrics.Metrics
}

func NewService(tracer trace.Tracer, voice Asker, market MarketSource, quota *Quota, m *metrics.Metrics) *Service {
	if quota == nil {
		quota = NewQuota(0, nil)
	}
	return &Service{tracer: tracer, voice: voice, market: market, quota: quota, metrics: m}
}

func (s *Service) Available() bool { return s.voice != nil }

func (s *Service) Quota() *Quota { return s.quota }

// Remaining is the user's quota left today, or -1 for admins.
func (s *Service) Remaining(userID string, isAdmin bool) int {
	if isAdmin {
		return -1
	}
	return s.quota.Remaining(userID)
}

// Ask answers question with live market context. A credit is held while the
// model answers and given back when no answer is produced.
func (s *Service) Ask(ctx context.Context, userID string, isAdmin bool, question string) (Answer, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.ask")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Bool("user.admin", isAdmin))

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if s.voice == nil {
		s.metrics.Ask("unavailable")
		return Answer{}, ErrUnavailable
	}
	remaining := -1
	if !isAdmin {
		left, ok := s.quota.Reserve(userID)
		if !ok {
			s.metrics.Ask("quota")
			return Answer{}, ErrQuotaExceeded
		}
		remaining = left
	}

	goldAsked := MentionsGold(question)
	parts := snapshot.PartPrices | snapshot.PartGlobal | snapshot.PartSentiment
	if goldAsked {
		parts |= snapshot.PartGold
	}
	var snap *domain.MarketSnapshot
	if s.market != nil {
		snap = s.market.Fetch(ctx, parts)
	}
	var gold *float64
	if snap != nil {
		gold = snap.GoldUSD
	}

	prompt := BuildPrompt(question, FormatMarketContext(snap, ExtractSymbols(question)), goldAsked, gold)
	reply, err := s.voice.Ask(ctx, prompt, AnswerTokens)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		if !isAdmin {
			s.quota.Release(userID)
		}
		span.RecordError(err)
		s.metrics.Ask("error")
		log.Warn().Str("component", "advisor").Str("user", userID).Err(err).Msg("question not answered")
		return Answer{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.metrics.Ask("ok")
	log.Info().Str("component", "advisor").Str("user", userID).Int("remaining", remaining).Msg("question answered")
	return Answer{Text: strings.TrimSpace(reply), Remaining: remaining, Market: MarketLine(snap)}, nil
}
