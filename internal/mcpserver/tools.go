package mcpserver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"crypto-herald/internal/domain"
	"crypto-herald/internal/snapshot"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type MarketSnapshotInput struct {
	Symbols []string `json:"symbols,omitempty" jsonschema:"tickers to include, all tracked assets when empty"`
}

type Quote struct {
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"price_usd"`
	Change1hPct  float64 `json:"change_1h_pct"`
	Change24hPct float64 `json:"change_24h_pct"`
}

type MarketSnapshotOutput struct {
	TakenAt            string            `json:"taken_at"`
	Prices             []Quote           `json:"prices"`
	FearGreed          int               `json:"fear_greed,omitempty"`
	FearGreedLabel     string            `json:"fear_greed_label,omitempty"`
	BTCDominance       float64           `json:"btc_dominance,omitempty"`
	MarketCapChange24h float64           `json:"market_cap_change_24h_pct,omitempty"`
	Missing            map[string]string `json:"missing,omitempty"`
	Cached             bool              `json:"cached,omitempty"`
}

func (s *Server) marketSnapshot(ctx context.Context, _ *mcp.CallToolRequest, in MarketSnapshotInput) (*mcp.CallToolResult, MarketSnapshotOutput, error) {
	ctx, span := s.span(ctx, "market_snapshot")
	defer span.End()

	if s.deps.Market == nil {
		return nil, MarketSnapshotOutput{}, errors.New("market data unavailable")
	}
	cached := false
	snap := s.deps.Market.Fetch(ctx, snapshot.PartPrices|snapshot.PartGlobal|snapshot.PartSentiment)
	if snap.Empty() {
		last, err := s.deps.Market.Last(ctx)
		if err != nil || last.Empty() {
			return nil, MarketSnapshotOutput{}, errors.New("no market source answered")
		}
		snap, cached = last, true
	}

	out := MarketSnapshotOutput{
		TakenAt: snap.TakenAt.UTC().Format(time.RFC3339),
		Prices:  []Quote{},
		Missing: snap.Missing,
		Cached:  cached,
	}
	want := make(map[string]bool, len(in.Symbols))
	for _, sym := range in.Symbols {
		want[strings.ToUpper(strings.TrimSpace(sym))] = true
	}
	for sym, q := range snap.Prices {
		if len(want) > 0 && !want[sym] {
			continue
		}
		out.Prices = append(out.Prices, Quote{
			Symbol:       sym,
			PriceUSD:     q.PriceUSD,
			Change1hPct:  q.Change1hPct,
			Change24hPct: q.Change24hPct,
		})
	}
	sort.Slice(out.Prices, func(i, j int) bool { return out.Prices[i].Symbol < out.Prices[j].Symbol })
	if snap.Sentiment != nil {
		out.FearGreed = snap.Sentiment.Value
		out.FearGreedLabel = snap.Sentiment.Classification
	}
	if snap.Global != nil {
		out.BTCDominance = snap.Global.BTCDominance
		out.MarketCapChange24h = snap.Global.MarketCapChange24h
	}
	return nil, out, nil
}

type ClassifyHeadlineInput struct {
	Title string `json:"title" jsonschema:"headline text"`
	Body  string `json:"body,omitempty" jsonschema:"optional article summary"`
}

type ClassifyHeadlineOutput struct {
	Urgency  string `json:"urgency"`
	Category string `json:"category"`
	Matched  string `json:"matched,omitempty"`
}

func (s *Server) classifyHeadline(ctx context.Context, _ *mcp.CallToolRequest, in ClassifyHeadlineInput) (*mcp.CallToolResult, ClassifyHeadlineOutput, error) {
	_, span := s.span(ctx, "classify_headline")
	defer span.End()

	if strings.TrimSpace(in.Title) == "" {
		return nil, ClassifyHeadlineOutput{}, errors.New("title is required")
	}
	if s.deps.Classifier == nil {
		return nil, ClassifyHeadlineOutput{}, errors.New("classifier unavailable")
	}
	cls := s.deps.Classifier.Classify(domain.NewsItem{Title: in.Title, Body: in.Body})
	return nil, ClassifyHeadlineOutput{
		Urgency:  string(cls.Urgency),
		Category: string(cls.Category),
		Matched:  cls.Matched,
	}, nil
}

type PipelineStatusInput struct{}

type PoolOut struct {
	Pool      string `json:"pool"`
	Size      int    `json:"size"`
	Evictions int    `json:"evictions"`
}

type CycleOut struct {
	Kind      string   `json:"kind"`
	Finished  string   `json:"finished"`
	Published int      `json:"published"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

type TaskOut struct {
	Name      string `json:"name"`
	Cadence   string `json:"cadence"`
	State     string `json:"state"`
	Next      string `json:"next,omitempty"`
	Runs      int    `json:"runs"`
	Failures  int    `json:"failures"`
	LastError string `json:"last_error,omitempty"`
}

type PipelineStatusOutput struct {
	Persona     string     `json:"persona"`
	StartupDone bool       `json:"startup_done"`
	Ledger      []PoolOut  `json:"ledger"`
	Cycles      []CycleOut `json:"cycles"`
	Tasks       []TaskOut  `json:"tasks"`
}

func (s *Server) pipelineStatus(ctx context.Context, _ *mcp.CallToolRequest, _ PipelineStatusInput) (*mcp.CallToolResult, PipelineStatusOutput, error) {
	_, span := s.span(ctx, "pipeline_status")
	defer span.End()

	out := PipelineStatusOutput{Ledger: []PoolOut{}, Cycles: []CycleOut{}, Tasks: []TaskOut{}}
	if s.deps.Status != nil {
		st := s.deps.Status.Status()
		out.Persona = st.Persona
		out.StartupDone = st.StartupDone
		for pool, ps := range st.Ledger {
			out.Ledger = append(out.Ledger, PoolOut{Pool: string(pool), Size: ps.Size, Evictions: ps.Evictions})
		}
		sort.Slice(out.Ledger, func(i, j int) bool { return out.Ledger[i].Pool < out.Ledger[j].Pool })
		for _, c := range st.Cycles {
			out.Cycles = append(out.Cycles, CycleOut{
				Kind:      c.Kind,
				Finished:  c.Finished.UTC().Format(time.RFC3339),
				Published: c.Published,
				Skipped:   c.Skipped,
				Errors:    c.Errors,
			})
		}
	}
	if s.deps.Tasks != nil {
		for _, t := range s.deps.Tasks.Tasks() {
			to := TaskOut{
				Name:      t.Name,
				Cadence:   t.Cadence,
				State:     string(t.State),
				Runs:      t.Runs,
				Failures:  t.Failures,
				LastError: t.LastErr,
			}
			if !t.Next.IsZero() {
				to.Next = t.Next.UTC().Format(time.RFC3339)
			}
			out.Tasks = append(out.Tasks, to)
		}
	}
	return nil, out, nil
}
