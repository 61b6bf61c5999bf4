package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"crypto-herald/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defiLlamaBaseURL = "https://yields.llama.fi"

// Yield pools outside these bounds are ignored as noise or too risky.
const (
	minYieldAPY = 5.0
	maxYieldAPY = 100.0
	minYieldTVL = 10_000_000.0
)

type DefiLlamaProvider struct {
	source
}

func NewDefiLlamaProvider(tracer trace.Tracer, timeout time.Duration) *DefiLlamaProvider {
	return &DefiLlamaProvider{source: newSource("defillama", defiLlamaBaseURL, tracer, timeout)}
}

// FetchYields returns the n largest pools by TVL with a plausible APY.
func (p *DefiLlamaProvider) FetchYields(ctx context.Context, n int) ([]domain.YieldPool, error) {
	if n <= 0 {
		n = 5
	}
	var payload struct {
		Data []struct {
			Project string   `json:"project"`
			Symbol  string   `json:"symbol"`
			Chain   string   `json:"chain"`
			APY     *float64 `json:"apy"`
			TVLUSD  float64  `json:"tvlUsd"`
		} `json:"data"`
	}
	if err := p.getJSON(ctx, "defillama.fetch-yields", p.url("/pools"), &payload); err != nil {
		return nil, fmt.Errorf("fetch yields: %w", err)
	}

	var pools []domain.YieldPool
	for _, row := range payload.Data {
		if row.APY == nil || *row.APY <= minYieldAPY || *row.APY >= maxYieldAPY || row.TVLUSD <= minYieldTVL {
			continue
		}
		pools = append(pools, domain.YieldPool{
			Project: row.Project,
			Symbol:  row.Symbol,
			Chain:   row.Chain,
			APY:     *row.APY,
			TVLUSD:  row.TVLUSD,
		})
	}
	sort.SliceStable(pools, func(i, j int) bool { return pools[i].TVLUSD > pools[j].TVLUSD })
	if len(pools) > n {
		pools = pools[:n]
	}
	return pools, nil
}
