package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const metalPriceBaseURL = "https://api.metalpriceapi.com/v1"

// MetalsProvider reads the gold spot price.
type MetalsProvider struct {
	source
	apiKey string
}

func NewMetalsProvider(tracer trace.Tracer, apiKey string, timeout time.Duration) *MetalsProvider {
	return &MetalsProvider{source: newSource("metalpriceapi", metalPriceBaseURL, tracer, timeout), apiKey: apiKey}
}

// FetchGold returns USD per troy ounce.
func (p *MetalsProvider) FetchGold(ctx context.Context) (float64, error) {
	if p.apiKey == "" {
		return 0, fmt.Errorf("fetch gold: %w", ErrMissingAPIKey)
	}
	var payload struct {
		Success bool               `json:"success"`
		Rates   map[string]float64 `json:"rates"`
	}
	q := url.Values{"api_key": {p.apiKey}, "base": {"USD"}, "currencies": {"XAU"}}
	if err := p.getJSON(ctx, "metals.fetch-gold", p.url("/latest?"+q.Encode()), &payload); err != nil {
		return 0, fmt.Errorf("fetch gold: %w", err)
	}
	rate := payload.Rates["XAU"]
	if !payload.Success || rate <= 0 {
		return 0, fmt.Errorf("fetch gold: no XAU rate")
	}
	return 1 / rate, nil
}
