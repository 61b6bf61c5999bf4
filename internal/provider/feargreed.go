package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crypto-herald/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const fearGreedBaseURL = "https://api.alternative.me"

type FearGreedProvider struct {
	source
}

func NewFearGreedProvider(tracer trace.Tracer, timeout time.Duration) *FearGreedProvider {
	return &FearGreedProvider{source: newSource("alternative.me", fearGreedBaseURL, tracer, timeout)}
}

// FetchIndex returns the latest index value with up to days-1 previous
// readings, newest first.
func (p *FearGreedProvider) FetchIndex(ctx context.Context, days int) (*domain.Sentiment, error) {
	if days <= 0 {
		days = 7
	}
	var payload struct {
		Data []struct {
			Value          string `json:"value"`
			Classification string `json:"value_classification"`
			Timestamp      string `json:"timestamp"`
		} `json:"data"`
	}
	if err := p.getJSON(ctx, "feargreed.fetch-index", p.url(fmt.Sprintf("/fng/?limit=%d", days)), &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("fear & greed response has no rows")
	}

	points := make([]domain.SentimentPoint, 0, len(payload.Data))
	for _, row := range payload.Data {
		value, err := strconv.Atoi(strings.TrimSpace(row.Value))
		if err != nil {
			return nil, fmt.Errorf("parse fear & greed value: %w", err)
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(row.Timestamp), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse fear & greed timestamp: %w", err)
		}
		if ts > 1_000_000_000_000 {
			ts = ts / 1000
		}
		points = append(points, domain.SentimentPoint{
			Value:          value,
			Classification: row.Classification,
			Timestamp:      time.Unix(ts, 0).UTC(),
		})
	}

	return &domain.Sentiment{SentimentPoint: points[0], History: points}, nil
}
