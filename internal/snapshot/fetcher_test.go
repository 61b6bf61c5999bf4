package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crypto-herald/internal/cache"
	"crypto-herald/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

type stubPrices struct {
	pricesErr error
	calls     []string
	mu        sync.Mutex
}

func (s *stubPrices) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stubPrices) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	s.record("prices")
	if s.pricesErr != nil {
		return nil, s.pricesErr
	}
	return map[string]domain.PriceQuote{"BTC": {Symbol: "BTC", PriceUSD: 65000, Change24hPct: 1}}, nil
}

func (s *stubPrices) FetchMarkets(ctx context.Context, n int) ([]domain.PriceQuote, error) {
	s.record("markets")
	return []domain.PriceQuote{{Symbol: "SOL", Change24hPct: 9}}, nil
}

func (s *stubPrices) FetchGlobal(ctx context.Context) (*domain.GlobalStats, error) {
	s.record("global")
	return &domain.GlobalStats{BTCDominance: 54.2}, nil
}

func (s *stubPrices) FetchTrending(ctx context.Context, n int) ([]domain.TrendingCoin, error) {
	s.record("trending")
	return []domain.TrendingCoin{{Symbol: "PEPE", Rank: 1}}, nil
}

type stubSentiment struct{ value int }

func (s stubSentiment) FetchIndex(ctx context.Context, days int) (*domain.Sentiment, error) {
	return &domain.Sentiment{SentimentPoint: domain.SentimentPoint{Value: s.value, Classification: "Extreme Fear"}}, nil
}

type stubNews struct {
	items []domain.NewsItem
	err   error
}

func (s stubNews) FetchNews(ctx context.Context, limit int) ([]domain.NewsItem, error) {
	return s.items, s.err
}

type stubFeeds map[string][]domain.NewsItem

func (s stubFeeds) FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]domain.NewsItem, error) {
	items, ok := s[feedURL]
	if !ok {
		return nil, errors.New("feed down")
	}
	return items, nil
}

type stubSocial struct {
	enabled bool
	err     error
}

func (s stubSocial) Enabled() bool { return s.enabled }

func (s stubSocial) FetchSocial(ctx context.Context, n int) ([]domain.SocialMetric, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.SocialMetric{{Symbol: "BTC", Influence: 80}}, nil
}

type stubMentions struct{ called bool }

func (s *stubMentions) FetchMentions(ctx context.Context, subreddits []string, limit int) ([]domain.SocialMetric, error) {
	s.called = true
	return []domain.SocialMetric{{Symbol: "ETH", Mentions: 12}, {Symbol: "SOL", Mentions: 4}}, nil
}

type stubGold struct{ err error }

func (s stubGold) FetchGold(ctx context.Context) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return 2350, nil
}

func newTestFetcher(src Sources, opts Options, store *cache.Store) *Fetcher {
	f := New(src, opts, trace.NewNoopTracerProvider().Tracer("test"), store, nil)
	f.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

func TestFetchSelectedParts(t *testing.T) {
	prices := &stubPrices{}
	f := newTestFetcher(Sources{Prices: prices, Sentiment: stubSentiment{value: 18}}, Options{}, nil)

	snap := f.Fetch(context.Background(), PartPrices|PartSentiment)

	if q, ok := snap.Price("BTC"); !ok || q.PriceUSD != 65000 {
		t.Fatalf("expected BTC price, got %+v", snap.Prices)
	}
	if snap.Sentiment == nil || snap.Sentiment.Value != 18 {
		t.Fatalf("expected sentiment 18, got %+v", snap.Sentiment)
	}
	if snap.Global != nil || len(snap.Movers) != 0 {
		t.Fatal("parts not requested should stay empty")
	}
	if len(prices.calls) != 1 {
		t.Fatalf("expected one price call, got %v", prices.calls)
	}
	if len(snap.Missing) != 0 {
		t.Fatalf("expected nothing missing, got %v", snap.Missing)
	}
	if !snap.TakenAt.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", snap.TakenAt)
	}
}

func TestFetchFailedPartIsAbsent(t *testing.T) {
	prices := &stubPrices{pricesErr: errors.New("timeout")}
	f := newTestFetcher(Sources{
		Prices:    prices,
		Sentiment: stubSentiment{value: 50},
		Gold:      stubGold{err: errors.New("no key")},
	}, Options{}, nil)

	snap := f.Fetch(context.Background(), PartAll)

	if snap.Prices != nil {
		t.Fatal("failed prices should be nil")
	}
	if snap.Global == nil || len(snap.Trending) != 1 || len(snap.Movers) != 1 {
		t.Fatal("other parts should still be present")
	}
	for _, name := range []string{"prices", "gold", "derivatives", "yields", "news", "social"} {
		if _, ok := snap.Missing[name]; !ok {
			t.Fatalf("expected %s to be reported missing, got %v", name, snap.Missing)
		}
	}
	if snap.GoldUSD != nil {
		t.Fatal("gold should be absent")
	}
}

func TestFetchNewsFallsBackToFeeds(t *testing.T) {
	feeds := stubFeeds{
		"https://a": {{ID: "a1", Title: "one"}, {ID: "shared", Title: "two"}},
		"https://b": {{ID: "shared", Title: "two"}, {ID: "b1", Title: "three"}},
	}
	f := newTestFetcher(Sources{
		News:  stubNews{err: errors.New("503")},
		Feeds: feeds,
	}, Options{NewsFeeds: []string{"https://down", "https://a", "https://b"}}, nil)

	snap := f.Fetch(context.Background(), PartNews)

	if len(snap.News) != 3 {
		t.Fatalf("expected 3 unique items, got %+v", snap.News)
	}
	if snap.News[0].ID != "a1" || snap.News[2].ID != "b1" {
		t.Fatalf("unexpected order %+v", snap.News)
	}
	if _, ok := snap.Missing["news"]; ok {
		t.Fatal("news recovered from feeds should not be missing")
	}
}

func TestFetchNewsPrefersAggregator(t *testing.T) {
	f := newTestFetcher(Sources{
		News:  stubNews{items: []domain.NewsItem{{ID: "n1", Title: "Exchange hacked for $200 million"}}},
		Feeds: stubFeeds{},
	}, Options{NewsFeeds: []string{"https://a"}}, nil)

	snap := f.Fetch(context.Background(), PartNews)
	if len(snap.News) != 1 || snap.News[0].ID != "n1" {
		t.Fatalf("expected aggregator item, got %+v", snap.News)
	}
}

func TestFetchSocialFallsBackToMentions(t *testing.T) {
	mentions := &stubMentions{}
	f := newTestFetcher(Sources{
		Social:   stubSocial{enabled: false},
		Mentions: mentions,
	}, Options{Subreddits: []string{"Bitcoin"}, SocialLimit: 1}, nil)

	snap := f.Fetch(context.Background(), PartSocial)
	if !mentions.called {
		t.Fatal("expected reddit fallback")
	}
	if len(snap.Social) != 1 || snap.Social[0].Symbol != "ETH" {
		t.Fatalf("expected trimmed mentions, got %+v", snap.Social)
	}
}

func TestFetchSocialUsesPrimaryWhenEnabled(t *testing.T) {
	mentions := &stubMentions{}
	f := newTestFetcher(Sources{
		Social:   stubSocial{enabled: true},
		Mentions: mentions,
	}, Options{Subreddits: []string{"Bitcoin"}}, nil)

	snap := f.Fetch(context.Background(), PartSocial)
	if mentions.called {
		t.Fatal("fallback should not run when primary succeeds")
	}
	if len(snap.Social) != 1 || snap.Social[0].Symbol != "BTC" {
		t.Fatalf("unexpected social %+v", snap.Social)
	}
}

type memRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := value.([]byte); ok {
		m.data[key] = string(b)
	}
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *memRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	v, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func TestLastReadsCacheAcrossFetchers(t *testing.T) {
	mem := &memRedis{data: map[string]string{}}
	store := cache.NewStore(mem, "herald:")
	ctx := context.Background()

	first := newTestFetcher(Sources{Sentiment: stubSentiment{value: 71}}, Options{}, store)
	first.Fetch(ctx, PartSentiment)
	if _, ok := mem.data["herald:snapshot:last"]; !ok {
		t.Fatalf("expected snapshot cached, got keys %v", mem.data)
	}

	second := newTestFetcher(Sources{}, Options{}, store)
	last, err := second.Last(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last.Sentiment == nil || last.Sentiment.Value != 71 {
		t.Fatalf("expected cached sentiment, got %+v", last.Sentiment)
	}
}

func TestLastWithoutDataIsMiss(t *testing.T) {
	f := newTestFetcher(Sources{}, Options{}, nil)
	f.Fetch(context.Background(), PartPrices)
	if _, err := f.Last(context.Background()); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("empty snapshots are not remembered, got %v", err)
	}
}

func TestPartString(t *testing.T) {
	if got := (PartPrices | PartNews).String(); got != "prices,news" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Part(0).String(); got != "none" {
		t.Fatalf("unexpected %q", got)
	}
}
