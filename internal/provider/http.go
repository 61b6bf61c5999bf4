package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crypto-herald/pkg/ratelimit"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds every outbound call. A timeout counts as a failed
// fetch and is not retried.
const DefaultTimeout = 15 * time.Second

// StatusError is returned for any non-200 response.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Source, e.Code, e.Body)
}

// source holds what every JSON provider needs to issue a GET.
type source struct {
	name    string
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *ratelimit.Limiter
	headers map[string]string
}

func newSource(name, baseURL string, tracer trace.Tracer, timeout time.Duration) source {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return source{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		tracer:  tracer,
		headers: map[string]string{},
	}
}

func (s *source) url(path string) string {
	return strings.TrimRight(s.baseURL, "/") + path
}

func (s *source) get(ctx context.Context, spanName, url string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("provider", s.name))

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := &StatusError{Source: s.name, Code: resp.StatusCode, Body: string(body)}
		span.RecordError(err)
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (s *source) getJSON(ctx context.Context, spanName, url string, out any) error {
	body, err := s.get(ctx, spanName, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", s.name, err)
	}
	return nil
}

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 {
		runes := []rune(in)
		if len(runes) > maxLen {
			in = string(runes[:maxLen])
		}
	}
	return in
}

func htmlStrip(in string) string {
	if strings.TrimSpace(in) == "" {
		return ""
	}
	var b strings.Builder
	inside := false
	for _, r := range in {
		switch r {
		case '<':
			inside = true
			continue
		case '>':
			inside = false
			continue
		}
		if !inside {
			b.WriteRune(r)
		}
	}
	return b.String()
}
