// Package snapshot gathers one MarketSnapshot per cycle from the independent
// market, sentiment, social and news sources.
package snapshot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"crypto-herald/internal/cache"
	"crypto-herald/internal/domain"
	"crypto-herald/internal/metrics"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type PriceSource interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error)
	FetchMarkets(ctx context.Context, n int) ([]domain.PriceQuote, error)
	FetchGlobal(ctx context.Context) (*domain.GlobalStats, error)
	FetchTrending(ctx context.Context, n int) ([]domain.TrendingCoin, error)
}

type SentimentSource interface {
	FetchIndex(ctx context.Context, days int) (*domain.Sentiment, error)
}

type NewsSource interface {
	FetchNews(ctx context.Context, limit int) ([]domain.NewsItem, error)
}

type FeedSource interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]domain.NewsItem, error)
}

type DerivativesSource interface {
	FetchLiquidations(ctx context.Context) (*domain.Liquidations, error)
	FetchFunding(ctx context.Context, symbols []string) ([]domain.FundingRate, error)
}

type SocialSource interface {
	Enabled() bool
	FetchSocial(ctx context.Context, n int) ([]domain.SocialMetric, error)
}

type MentionSource interface {
	FetchMentions(ctx context.Context, subreddits []string, limit int) ([]domain.SocialMetric, error)
}

type YieldSource interface {
	FetchYields(ctx context.Context, n int) ([]domain.YieldPool, error)
}

type GoldSource interface {
	FetchGold(ctx context.Context) (float64, error)
}

// Sources holds one client per data family. Nil sources are reported as
// missing parts.
type Sources struct {
	Prices      PriceSource
	Sentiment   SentimentSource
	News        NewsSource
	Feeds       FeedSource
	Derivatives DerivativesSource
	Social      SocialSource
	Mentions    MentionSource
	Yields      YieldSource
	Gold        GoldSource
}

// Part selects which sections of a snapshot to fetch.
type Part uint16

const (
	PartPrices Part = 1 << iota
	PartGlobal
	PartSentiment
	PartTrending
	PartMovers
	PartDerivatives
	PartSocial
	PartYields
	PartNews
	PartGold

	PartAll = PartPrices | PartGlobal | PartSentiment | PartTrending | PartMovers |
		PartDerivatives | PartSocial | PartYields | PartNews | PartGold
)

var partNames = []struct {
	part Part
	name string
}{
	{PartPrices, "prices"},
	{PartGlobal, "global"},
	{PartSentiment, "sentiment"},
	{PartTrending, "trending"},
	{PartMovers, "movers"},
	{PartDerivatives, "derivatives"},
	{PartSocial, "social"},
	{PartYields, "yields"},
	{PartNews, "news"},
	{PartGold, "gold"},
}

func (p Part) Has(q Part) bool { return p&q == q }

func (p Part) String() string {
	var names []string
	for _, pn := range partNames {
		if p.Has(pn.part) {
			names = append(names, pn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

var errNotConfigured = errors.New("source not configured")

type Options struct {
	Symbols        []string
	FundingSymbols []string
	MoversLimit    int
	TrendingLimit  int
	NewsLimit      int
	NewsFeeds      []string
	Subreddits     []string
	SocialLimit    int
	YieldLimit     int
	SentimentDays  int
	Concurrency    int
	CacheTTL       time.Duration
}

func DefaultOptions() Options {
	return Options{
		Symbols:        domain.WatchlistSymbols,
		FundingSymbols: []string{"BTC", "ETH", "SOL"},
		MoversLimit:    50,
		TrendingLimit:  7,
		NewsLimit:      20,
		SocialLimit:    10,
		YieldLimit:     5,
		SentimentDays:  7,
		Concurrency:    4,
		CacheTTL:       30 * time.Minute,
	}
}

const lastKey = "snapshot:last"

type Fetcher struct {
	src     Sources
	opts    Options
	tracer  trace.Tracer
	store   *cache.Store
	metrics *metrics.Metrics
	now     func() time.Time

	mu   sync.RWMutex
	last *domain.MarketSnapshot
}

func New(src Sources, opts Options, tracer trace.Tracer, store *cache.Store, m *metrics.Metrics) *Fetcher {
	def := DefaultOptions()
	if len(opts.Symbols) == 0 {
		opts.Symbols = def.Symbols
	}
	if len(opts.FundingSymbols) == 0 {
		opts.FundingSymbols = def.FundingSymbols
	}
	if opts.MoversLimit <= 0 {
		opts.MoversLimit = def.MoversLimit
	}
	if opts.TrendingLimit <= 0 {
		opts.TrendingLimit = def.TrendingLimit
	}
	if opts.NewsLimit <= 0 {
		opts.NewsLimit = def.NewsLimit
	}
	if opts.SocialLimit <= 0 {
		opts.SocialLimit = def.SocialLimit
	}
	if opts.YieldLimit <= 0 {
		opts.YieldLimit = def.YieldLimit
	}
	if opts.SentimentDays <= 0 {
		opts.SentimentDays = def.SentimentDays
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	return &Fetcher{
		src:     src,
		opts:    opts,
		tracer:  tracer,
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// Fetch gathers the requested parts concurrently. A part whose source fails
// is left empty and named in Missing; Fetch itself never fails.
func (f *Fetcher) Fetch(ctx context.Context, parts Part) *domain.MarketSnapshot {
	ctx, span := f.tracer.Start(ctx, "snapshot.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("snapshot.parts", parts.String()))

	snap := &domain.MarketSnapshot{TakenAt: f.now().UTC()}
	var missingMu sync.Mutex
	miss := func(name string, err error) {
		missingMu.Lock()
		defer missingMu.Unlock()
		if snap.Missing == nil {
			snap.Missing = make(map[string]string)
		}
		snap.Missing[name] = err.Error()
		log.Warn().Str("component", "snapshot").Str("source", name).Err(err).Msg("data unavailable")
		f.metrics.SourceFailed(name)
	}

	var g errgroup.Group
	g.SetLimit(f.opts.Concurrency)
	run := func(p Part, fn func(ctx context.Context)) {
		if !parts.Has(p) {
			return
		}
		g.Go(func() error {
			fn(ctx)
			return nil
		})
	}

	run(PartPrices, func(ctx context.Context) {
		if f.src.Prices == nil {
			miss("prices", errNotConfigured)
			return
		}
		prices, err := f.src.Prices.FetchPrices(ctx, f.opts.Symbols)
		if err != nil {
			miss("prices", err)
			return
		}
		snap.Prices = prices
	})
	run(PartGlobal, func(ctx context.Context) {
		if f.src.Prices == nil {
			miss("global", errNotConfigured)
			return
		}
		global, err := f.src.Prices.FetchGlobal(ctx)
		if err != nil {
			miss("global", err)
			return
		}
		snap.Global = global
	})
	run(PartSentiment, func(ctx context.Context) {
		if f.src.Sentiment == nil {
			miss("sentiment", errNotConfigured)
			return
		}
		s, err := f.src.Sentiment.FetchIndex(ctx, f.opts.SentimentDays)
		if err != nil {
			miss("sentiment", err)
			return
		}
		snap.Sentiment = s
	})
	run(PartTrending, func(ctx context.Context) {
		if f.src.Prices == nil {
			miss("trending", errNotConfigured)
			return
		}
		trending, err := f.src.Prices.FetchTrending(ctx, f.opts.TrendingLimit)
		if err != nil {
			miss("trending", err)
			return
		}
		snap.Trending = trending
	})
	run(PartMovers, func(ctx context.Context) {
		if f.src.Prices == nil {
			miss("movers", errNotConfigured)
			return
		}
		movers, err := f.src.Prices.FetchMarkets(ctx, f.opts.MoversLimit)
		if err != nil {
			miss("movers", err)
			return
		}
		snap.Movers = movers
	})
	run(PartDerivatives, func(ctx context.Context) {
		if f.src.Derivatives == nil {
			miss("derivatives", errNotConfigured)
			return
		}
		liq, err := f.src.Derivatives.FetchLiquidations(ctx)
		if err != nil {
			miss("liquidations", err)
		} else {
			snap.Liquidations = liq
		}
		funding, err := f.src.Derivatives.FetchFunding(ctx, f.opts.FundingSymbols)
		if err != nil {
			miss("funding", err)
		} else {
			snap.Funding = funding
		}
	})
	run(PartSocial, func(ctx context.Context) {
		social, err := f.fetchSocial(ctx)
		if err != nil {
			miss("social", err)
			return
		}
		snap.Social = social
	})
	run(PartYields, func(ctx context.Context) {
		if f.src.Yields == nil {
			miss("yields", errNotConfigured)
			return
		}
		yields, err := f.src.Yields.FetchYields(ctx, f.opts.YieldLimit)
		if err != nil {
			miss("yields", err)
			return
		}
		snap.Yields = yields
	})
	run(PartNews, func(ctx context.Context) {
		news, err := f.fetchNews(ctx)
		if err != nil {
			miss("news", err)
			return
		}
		snap.News = news
	})
	run(PartGold, func(ctx context.Context) {
		if f.src.Gold == nil {
			miss("gold", errNotConfigured)
			return
		}
		gold, err := f.src.Gold.FetchGold(ctx)
		if err != nil {
			miss("gold", err)
			return
		}
		snap.GoldUSD = &gold
	})

	_ = g.Wait()
	span.SetAttributes(attribute.Int("snapshot.missing", len(snap.Missing)))

	if !snap.Empty() {
		f.remember(ctx, snap)
	}
	return snap
}

// fetchSocial prefers LunarCrush and falls back to reddit mention counts.
func (f *Fetcher) fetchSocial(ctx context.Context) ([]domain.SocialMetric, error) {
	var primaryErr error
	if f.src.Social != nil && f.src.Social.Enabled() {
		social, err := f.src.Social.FetchSocial(ctx, f.opts.SocialLimit)
		if err == nil && len(social) > 0 {
			return social, nil
		}
		primaryErr = err
	}
	if f.src.Mentions == nil || len(f.opts.Subreddits) == 0 {
		if primaryErr != nil {
			return nil, primaryErr
		}
		return nil, errNotConfigured
	}
	mentions, err := f.src.Mentions.FetchMentions(ctx, f.opts.Subreddits, 25)
	if err != nil {
		return nil, err
	}
	if len(mentions) > f.opts.SocialLimit {
		mentions = mentions[:f.opts.SocialLimit]
	}
	return mentions, nil
}

// fetchNews reads the aggregator first and tops up from RSS feeds when it
// fails or returns nothing. Items are unique by id, aggregator first.
func (f *Fetcher) fetchNews(ctx context.Context) ([]domain.NewsItem, error) {
	var (
		items   []domain.NewsItem
		lastErr error
	)
	if f.src.News != nil {
		news, err := f.src.News.FetchNews(ctx, f.opts.NewsLimit)
		if err != nil {
			lastErr = err
		}
		items = news
	}
	if len(items) > 0 {
		return items, nil
	}
	if f.src.Feeds == nil || len(f.opts.NewsFeeds) == 0 {
		if lastErr == nil {
			lastErr = errNotConfigured
		}
		return nil, lastErr
	}

	seen := make(map[string]struct{})
	for _, feed := range f.opts.NewsFeeds {
		if len(items) >= f.opts.NewsLimit {
			break
		}
		feedItems, err := f.src.Feeds.FetchFeed(ctx, feed, f.opts.NewsLimit)
		if err != nil {
			lastErr = err
			log.Debug().Str("component", "snapshot").Str("feed", feed).Err(err).Msg("feed unavailable")
			continue
		}
		for _, it := range feedItems {
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
			items = append(items, it)
			if len(items) >= f.opts.NewsLimit {
				break
			}
		}
	}
	if len(items) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no news items")
		}
		return nil, lastErr
	}
	return items, nil
}

func (f *Fetcher) remember(ctx context.Context, snap *domain.MarketSnapshot) {
	f.mu.Lock()
	f.last = snap
	f.mu.Unlock()

	if err := f.store.SetJSON(ctx, lastKey, snap, f.opts.CacheTTL); err != nil {
		log.Warn().Str("component", "snapshot").Err(err).Msg("cache write failed")
	}
}

// Last returns the most recent non-empty snapshot from this process, or the
// cached one when this process has not fetched yet.
func (f *Fetcher) Last(ctx context.Context) (*domain.MarketSnapshot, error) {
	f.mu.RLock()
	last := f.last
	f.mu.RUnlock()
	if last != nil {
		return last, nil
	}

	var snap domain.MarketSnapshot
	if err := f.store.GetJSON(ctx, lastKey, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
