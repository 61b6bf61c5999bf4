package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crypto-herald/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const lunarCrushBaseURL = "https://lunarcrush.com/api4/public"

var ErrMissingAPIKey = errors.New("api key not configured")

type LunarCrushProvider struct {
	source
	hasKey bool
}

func NewLunarCrushProvider(tracer trace.Tracer, apiKey string, timeout time.Duration) *LunarCrushProvider {
	p := &LunarCrushProvider{source: newSource("lunarcrush", lunarCrushBaseURL, tracer, timeout)}
	if apiKey != "" {
		p.headers["Authorization"] = "Bearer " + apiKey
		p.hasKey = true
	}
	return p
}

func (p *LunarCrushProvider) Enabled() bool { return p.hasKey }

// FetchSocial returns galaxy score and social volume for the top n coins.
func (p *LunarCrushProvider) FetchSocial(ctx context.Context, n int) ([]domain.SocialMetric, error) {
	if !p.hasKey {
		return nil, fmt.Errorf("fetch social: %w", ErrMissingAPIKey)
	}
	if n <= 0 {
		n = 10
	}
	var payload struct {
		Data []struct {
			Symbol           string  `json:"symbol"`
			GalaxyScore      float64 `json:"galaxy_score"`
			SocialVolume     float64 `json:"social_volume"`
			Sentiment        float64 `json:"sentiment"`
			PercentChange24h float64 `json:"percent_change_24h"`
		} `json:"data"`
	}
	if err := p.getJSON(ctx, "lunarcrush.fetch-social", p.url("/coins/list/v2"), &payload); err != nil {
		return nil, fmt.Errorf("fetch social: %w", err)
	}
	out := make([]domain.SocialMetric, 0, n)
	for _, row := range payload.Data {
		if len(out) == n {
			break
		}
		if row.Symbol == "" {
			continue
		}
		out = append(out, domain.SocialMetric{
			Symbol:      strings.ToUpper(row.Symbol),
			Influence:   row.GalaxyScore,
			Mentions:    int(row.SocialVolume),
			Sentiment:   row.Sentiment,
			PriceChange: row.PercentChange24h,
		})
	}
	return out, nil
}
