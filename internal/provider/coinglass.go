package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"crypto-herald/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coinglassBaseURL = "https://open-api.coinglass.com/public/v2"

// CoinglassProvider reads derivatives data. The public endpoints work
// without a key; a key raises the quota.
type CoinglassProvider struct {
	source
}

func NewCoinglassProvider(tracer trace.Tracer, apiKey string, timeout time.Duration) *CoinglassProvider {
	p := &CoinglassProvider{source: newSource("coinglass", coinglassBaseURL, tracer, timeout)}
	if apiKey != "" {
		p.headers["coinglassSecret"] = apiKey
	}
	return p
}

// FetchLiquidations returns the 24h liquidation totals across all symbols.
func (p *CoinglassProvider) FetchLiquidations(ctx context.Context) (*domain.Liquidations, error) {
	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			Total float64 `json:"total_liquidation_usd"`
			Long  float64 `json:"long_liquidation_usd"`
			Short float64 `json:"short_liquidation_usd"`
		} `json:"data"`
	}
	u := p.url("/liquidation_history?time_type=h24&symbol=all")
	if err := p.getJSON(ctx, "coinglass.fetch-liquidations", u, &payload); err != nil {
		return nil, fmt.Errorf("fetch liquidations: %w", err)
	}
	if payload.Data.Total <= 0 {
		return nil, fmt.Errorf("fetch liquidations: empty response")
	}
	return &domain.Liquidations{
		TotalUSD: payload.Data.Total,
		LongUSD:  payload.Data.Long,
		ShortUSD: payload.Data.Short,
	}, nil
}

// FetchFunding returns the funding rate of each requested symbol that the
// API reports.
func (p *CoinglassProvider) FetchFunding(ctx context.Context, symbols []string) ([]domain.FundingRate, error) {
	var payload struct {
		Data []struct {
			Symbol      string  `json:"symbol"`
			FundingRate float64 `json:"fundingRate"`
		} `json:"data"`
	}
	if err := p.getJSON(ctx, "coinglass.fetch-funding", p.url("/funding"), &payload); err != nil {
		return nil, fmt.Errorf("fetch funding: %w", err)
	}
	want := make(map[string]int, len(symbols))
	for i, s := range symbols {
		want[s] = i
	}
	var out []domain.FundingRate
	for _, row := range payload.Data {
		if _, ok := want[row.Symbol]; ok {
			out = append(out, domain.FundingRate{Symbol: row.Symbol, Rate: row.FundingRate})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fetch funding: no rates for %v", symbols)
	}
	sort.Slice(out, func(i, j int) bool { return want[out[i].Symbol] < want[out[j].Symbol] })
	return out, nil
}
