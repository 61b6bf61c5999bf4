// Package pipeline runs the fetch, classify, compose and publish cycles. One
// Pipeline serves one persona; its ledger and delta baselines live for the
// process lifetime.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"
	"crypto-herald/internal/ledger"
	"crypto-herald/internal/metrics"
	"crypto-herald/internal/snapshot"
	"crypto-herald/internal/urgency"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Fetcher interface {
	Fetch(ctx context.Context, parts snapshot.Part) *domain.MarketSnapshot
}

type Narrator interface {
	Generate(ctx context.Context, kind string, s *domain.MarketSnapshot) string
	Summarize(ctx context.Context, item domain.NewsItem) string
	Analyze(ctx context.Context, item domain.NewsItem) string
	Situation(ctx context.Context, s *domain.MarketSnapshot) string
	SocialPosts(ctx context.Context, theme string, s *domain.MarketSnapshot) string
}

type Publisher interface {
	Publish(ctx context.Context, dest domain.Destination, msg compose.Message) bool
}

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerStartup   Trigger = "startup"
	TriggerManual    Trigger = "manual"
)

const (
	KindGlobalUpdate  = "global_update"
	KindNewsCheck     = "news_check"
	KindNewsDigest    = "news_digest"
	KindPriceCheck    = "price_check"
	KindOpportunities = "opportunities"
	KindSocialPosts   = "social_posts"
	KindCategory      = "category"
)

var ErrUnknownCategory = errors.New("unknown category")

// CycleResult summarizes one cycle. Errors lists the sub-steps that failed;
// a cycle never aborts on them.
type CycleResult struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Trigger   Trigger   `json:"trigger,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Published int       `json:"published"`
	Skipped   int       `json:"skipped"`
	Errors    []string  `json:"errors,omitempty"`
}

func (r *CycleResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

type Config struct {
	Persona     string
	Location    *time.Location
	MorningHour int

	FlashScanLimit int
	DigestBatch    int

	OpportunityFearBelow  float64
	OpportunityGreedOver  float64
	OpportunityMarketMove float64
}

func DefaultConfig() Config {
	return Config{
		Persona:               "Grok",
		Location:              time.UTC,
		MorningHour:           8,
		FlashScanLimit:        10,
		DigestBatch:           3,
		OpportunityFearBelow:  25,
		OpportunityGreedOver:  75,
		OpportunityMarketMove: 5,
	}
}

type Pipeline struct {
	tracer     trace.Tracer
	fetcher    Fetcher
	narrator   Narrator
	ledger     *ledger.Ledger
	classifier *urgency.Classifier
	deltas     *urgency.DeltaClassifier
	composer   *compose.Composer
	publisher  Publisher
	metrics    *metrics.Metrics
	cfg        Config
	now        func() time.Time

	startupDone atomic.Bool

	// news guards the check, publish and mark sequence on the ledger pools,
	// which cycles started from the scheduler, chat and HTTP share.
	news sync.Mutex

	mu   sync.Mutex
	last map[string]CycleResult
}

type Deps struct {
	Fetcher    Fetcher
	Narrator   Narrator
	Ledger     *ledger.Ledger
	Classifier *urgency.Classifier
	Deltas     *urgency.DeltaClassifier
	Composer   *compose.Composer
	Publisher  Publisher
	Metrics    *metrics.Metrics
}

func New(tracer trace.Tracer, deps Deps, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Persona == "" {
		cfg.Persona = def.Persona
	}
	if cfg.MorningHour <= 0 || cfg.MorningHour > 23 {
		cfg.MorningHour = def.MorningHour
	}
	if cfg.FlashScanLimit <= 0 {
		cfg.FlashScanLimit = def.FlashScanLimit
	}
	if cfg.DigestBatch <= 0 {
		cfg.DigestBatch = def.DigestBatch
	}
	if cfg.OpportunityFearBelow <= 0 {
		cfg.OpportunityFearBelow = def.OpportunityFearBelow
	}
	if cfg.OpportunityGreedOver <= 0 {
		cfg.OpportunityGreedOver = def.OpportunityGreedOver
	}
	if cfg.OpportunityMarketMove <= 0 {
		cfg.OpportunityMarketMove = def.OpportunityMarketMove
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.NewDefault(ledger.DigestPoolConfig.MinDelay)
	}
	if deps.Classifier == nil {
		deps.Classifier = urgency.NewClassifier(urgency.DefaultTable())
	}
	if deps.Deltas == nil {
		deps.Deltas = urgency.NewDeltaClassifier()
	}
	if deps.Composer == nil {
		deps.Composer = compose.New(cfg.Persona)
	}
	return &Pipeline{
		tracer:     tracer,
		fetcher:    deps.Fetcher,
		narrator:   deps.Narrator,
		ledger:     deps.Ledger,
		classifier: deps.Classifier,
		deltas:     deps.Deltas,
		composer:   deps.Composer,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		cfg:        cfg,
		now:        time.Now,
		last:       make(map[string]CycleResult),
	}
}

// SetClock replaces the time source used for cycle timestamps and the
// morning check.
func (p *Pipeline) SetClock(now func() time.Time) { p.now = now }

func (p *Pipeline) begin(ctx context.Context, kind string, trigger Trigger) (context.Context, trace.Span, *CycleResult, zerolog.Logger) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+kind)
	res := &CycleResult{
		ID:      uuid.NewString(),
		Kind:    kind,
		Trigger: trigger,
		Started: p.now(),
	}
	span.SetAttributes(
		attribute.String("cycle.id", res.ID),
		attribute.String("cycle.trigger", string(trigger)),
	)
	logger := log.With().Str("component", "pipeline").Str("cycle", res.ID).Str("kind", kind).Logger()
	logger.Info().Str("trigger", string(trigger)).Msg("cycle started")
	return ctx, span, res, logger
}

func (p *Pipeline) finish(span trace.Span, res *CycleResult, logger zerolog.Logger) CycleResult {
	res.Finished = p.now()
	span.SetAttributes(
		attribute.Int("cycle.published", res.Published),
		attribute.Int("cycle.errors", len(res.Errors)),
	)
	span.End()

	p.mu.Lock()
	p.last[res.Kind] = *res
	p.mu.Unlock()

	p.metrics.Cycle(res.Kind, len(res.Errors) == 0)
	for pool, st := range p.ledger.Stats() {
		p.metrics.SetLedgerSize(string(pool), st.Size)
	}
	logger.Info().
		Int("published", res.Published).
		Int("skipped", res.Skipped).
		Strs("errors", res.Errors).
		Dur("took", res.Finished.Sub(res.Started)).
		Msg("cycle finished")
	return *res
}

// emit publishes msg when the composer produced one. A composer refusal
// counts as skipped, a delivery failure as an error.
func (p *Pipeline) emit(ctx context.Context, res *CycleResult, dest domain.Destination, msg compose.Message, ok bool) bool {
	if !ok {
		res.Skipped++
		return false
	}
	if !p.publisher.Publish(ctx, dest, msg) {
		res.fail("%s: delivery to %s failed", msg.Kind, dest)
		return false
	}
	res.Published++
	return true
}

// step runs one sub-step, turning a panic into a recorded error.
func (p *Pipeline) step(res *CycleResult, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "pipeline").Str("step", name).Interface("panic", r).Msg("step panicked")
			res.fail("%s: panic: %v", name, r)
		}
	}()
	fn()
}

func (p *Pipeline) isMorning(trigger Trigger) bool {
	if trigger == TriggerStartup || trigger == TriggerManual {
		return true
	}
	return p.now().In(p.cfg.Location).Hour() == p.cfg.MorningHour
}

// Status is the introspection view used by commands and the admin API.
type Status struct {
	Persona     string                           `json:"persona"`
	StartupDone bool                             `json:"startup_done"`
	Ledger      map[domain.Pool]ledger.PoolStats `json:"ledger"`
	Baseline    []urgency.Reading                `json:"baseline"`
	Cycles      []CycleResult                    `json:"cycles"`
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	cycles := make([]CycleResult, 0, len(p.last))
	for _, r := range p.last {
		cycles = append(cycles, r)
	}
	p.mu.Unlock()
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Kind < cycles[j].Kind })

	return Status{
		Persona:     p.cfg.Persona,
		StartupDone: p.startupDone.Load(),
		Ledger:      p.ledger.Stats(),
		Baseline:    p.deltas.Baseline(),
		Cycles:      cycles,
	}
}

// Classify exposes the headline classifier to the tool surfaces.
func (p *Pipeline) Classify(title string) domain.Classification {
	return p.classifier.ClassifyText(title)
}
