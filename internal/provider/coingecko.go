package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"crypto-herald/internal/domain"
	"crypto-herald/pkg/ratelimit"

	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoProvider reads prices, global stats and trending coins from the
// CoinGecko free API.
type CoinGeckoProvider struct {
	source
}

// NewCoinGeckoProvider is limited to 8 requests per minute, the free tier budget.
func NewCoinGeckoProvider(tracer trace.Tracer, timeout time.Duration) *CoinGeckoProvider {
	p := &CoinGeckoProvider{source: newSource("coingecko", coingeckoBaseURL, tracer, timeout)}
	p.limiter = ratelimit.New(8, 7500*time.Millisecond)
	return p
}

type cgMarketRow struct {
	ID                    string   `json:"id"`
	Symbol                string   `json:"symbol"`
	Name                  string   `json:"name"`
	CurrentPrice          float64  `json:"current_price"`
	MarketCap             float64  `json:"market_cap"`
	TotalVolume           float64  `json:"total_volume"`
	PriceChangePct24h     *float64 `json:"price_change_percentage_24h"`
	PriceChangePct1hInCur *float64 `json:"price_change_percentage_1h_in_currency"`
}

func (r cgMarketRow) quote() domain.PriceQuote {
	sym := domain.CoinGeckoIDToSymbol[r.ID]
	if sym == "" {
		sym = strings.ToUpper(r.Symbol)
	}
	q := domain.PriceQuote{
		Symbol:       sym,
		PriceUSD:     r.CurrentPrice,
		MarketCapUSD: r.MarketCap,
		Volume24hUSD: r.TotalVolume,
	}
	if r.PriceChangePct24h != nil {
		q.Change24hPct = *r.PriceChangePct24h
	}
	if r.PriceChangePct1hInCur != nil {
		q.Change1hPct = *r.PriceChangePct1hInCur
	}
	return q
}

func (p *CoinGeckoProvider) markets(ctx context.Context, span string, q url.Values) ([]cgMarketRow, error) {
	q.Set("vs_currency", "usd")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "1h,24h")
	var rows []cgMarketRow
	if err := p.getJSON(ctx, span, p.url("/coins/markets?"+q.Encode()), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchPrices returns quotes with 1h and 24h change for the given symbols.
// Unknown symbols are ignored.
func (p *CoinGeckoProvider) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if id, ok := domain.CoinGeckoID[sym]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no supported symbols in %v", symbols)
	}
	sort.Strings(ids)

	rows, err := p.markets(ctx, "coingecko.fetch-prices", url.Values{"ids": {strings.Join(ids, ",")}})
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	out := make(map[string]domain.PriceQuote, len(rows))
	for _, r := range rows {
		q := r.quote()
		out[q.Symbol] = q
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fetch prices: empty response")
	}
	return out, nil
}

// FetchMarkets returns the top n coins by market cap.
func (p *CoinGeckoProvider) FetchMarkets(ctx context.Context, n int) ([]domain.PriceQuote, error) {
	if n <= 0 || n > 250 {
		n = 50
	}
	rows, err := p.markets(ctx, "coingecko.fetch-markets", url.Values{
		"order":    {"market_cap_desc"},
		"per_page": {fmt.Sprint(n)},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	out := make([]domain.PriceQuote, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.quote())
	}
	return out, nil
}

// FetchGlobal returns total market cap, volume and dominance.
func (p *CoinGeckoProvider) FetchGlobal(ctx context.Context) (*domain.GlobalStats, error) {
	var payload struct {
		Data struct {
			TotalMarketCap      map[string]float64 `json:"total_market_cap"`
			TotalVolume         map[string]float64 `json:"total_volume"`
			MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
			MarketCapChange24h  float64            `json:"market_cap_change_percentage_24h_usd"`
		} `json:"data"`
	}
	if err := p.getJSON(ctx, "coingecko.fetch-global", p.url("/global"), &payload); err != nil {
		return nil, fmt.Errorf("fetch global: %w", err)
	}
	d := payload.Data
	if d.TotalMarketCap["usd"] <= 0 {
		return nil, fmt.Errorf("fetch global: missing market cap")
	}
	return &domain.GlobalStats{
		TotalMarketCapUSD:  d.TotalMarketCap["usd"],
		TotalVolumeUSD:     d.TotalVolume["usd"],
		MarketCapChange24h: d.MarketCapChange24h,
		BTCDominance:       d.MarketCapPercentage["btc"],
		ETHDominance:       d.MarketCapPercentage["eth"],
	}, nil
}

// FetchTrending returns up to n trending coins in rank order.
func (p *CoinGeckoProvider) FetchTrending(ctx context.Context, n int) ([]domain.TrendingCoin, error) {
	var payload struct {
		Coins []struct {
			Item struct {
				Symbol        string `json:"symbol"`
				Name          string `json:"name"`
				MarketCapRank int    `json:"market_cap_rank"`
			} `json:"item"`
		} `json:"coins"`
	}
	if err := p.getJSON(ctx, "coingecko.fetch-trending", p.url("/search/trending"), &payload); err != nil {
		return nil, fmt.Errorf("fetch trending: %w", err)
	}
	if n <= 0 {
		n = 7
	}
	out := make([]domain.TrendingCoin, 0, n)
	for _, c := range payload.Coins {
		if len(out) == n {
			break
		}
		if c.Item.Symbol == "" {
			continue
		}
		out = append(out, domain.TrendingCoin{
			Symbol: strings.ToUpper(c.Item.Symbol),
			Name:   c.Item.Name,
			Rank:   c.Item.MarketCapRank,
		})
	}
	return out, nil
}
