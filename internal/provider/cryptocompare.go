package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"crypto-herald/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const cryptoCompareBaseURL = "https://min-api.cryptocompare.com"

// CryptoCompareProvider is the primary news source.
type CryptoCompareProvider struct {
	source
}

func NewCryptoCompareProvider(tracer trace.Tracer, timeout time.Duration) *CryptoCompareProvider {
	return &CryptoCompareProvider{source: newSource("cryptocompare", cryptoCompareBaseURL, tracer, timeout)}
}

// FetchNews returns up to limit of the latest English articles, newest first.
func (p *CryptoCompareProvider) FetchNews(ctx context.Context, limit int) ([]domain.NewsItem, error) {
	if limit <= 0 {
		limit = 15
	}
	var payload struct {
		Data []struct {
			ID          any    `json:"id"`
			Title       string `json:"title"`
			Body        string `json:"body"`
			URL         string `json:"url"`
			Source      string `json:"source"`
			PublishedOn int64  `json:"published_on"`
			Categories  string `json:"categories"`
		} `json:"Data"`
	}
	u := p.url("/data/v2/news/?lang=EN&sortOrder=latest")
	if err := p.getJSON(ctx, "cryptocompare.fetch-news", u, &payload); err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}

	items := make([]domain.NewsItem, 0, limit)
	for _, row := range payload.Data {
		if len(items) == limit {
			break
		}
		id := newsID(row.ID)
		title := sanitizeText(row.Title, 300)
		if id == "" || title == "" {
			continue
		}
		items = append(items, domain.NewsItem{
			ID:          id,
			Title:       title,
			Body:        sanitizeText(row.Body, 400),
			URL:         row.URL,
			Source:      row.Source,
			PublishedAt: time.Unix(row.PublishedOn, 0).UTC(),
		})
	}
	return items, nil
}

func newsID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}
