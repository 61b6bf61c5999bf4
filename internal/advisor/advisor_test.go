package advisor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"crypto-herald/internal/domain"
	"crypto-herald/internal/snapshot"

	"go.opentelemetry.io/otel/trace"
)

func TestAskHappyPath(t *testing.T) {
	voice := &stubVoice{reply: "  BTC reste en range.  "}
	market := &stubMarket{snap: testSnapshot()}
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), voice, market, NewQuota(5, time.UTC), nil)

	ans, err := svc.Ask(context.Background(), "42", false, "Que penses-tu du BTC ?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Text != "BTC reste en range." {
		t.Fatalf("unexpected answer %q", ans.Text)
	}
	if ans.Remaining != 4 {
		t.Fatalf("expected 4 remaining, got %d", ans.Remaining)
	}
	if !strings.Contains(ans.Market, "BTC `$64,250`") {
		t.Fatalf("expected market line, got %q", ans.Market)
	}
	if voice.maxTokens != AnswerTokens {
		t.Fatalf("expected %d tokens, got %d", AnswerTokens, voice.maxTokens)
	}
	if !strings.Contains(voice.prompt, "QUESTION DU MEMBRE VIP : Que penses-tu du BTC ?") {
		t.Fatalf("question missing from prompt: %s", voice.prompt)
	}
	if market.parts.Has(snapshot.PartGold) {
		t.Fatal("gold should not be fetched for a crypto question")
	}
}

func TestAskGoldQuestion(t *testing.T) {
	voice := &stubVoice{reply: "L'or monte."}
	snap := testSnapshot()
	gold := 2345.5
	snap.GoldUSD = &gold
	market := &stubMarket{snap: snap}
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), voice, market, nil, nil)

	ans, err := svc.Ask(context.Background(), "42", false, "quel est le prix de l'or ?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !market.parts.Has(snapshot.PartGold) {
		t.Fatal("expected gold to be requested")
	}
	if !strings.Contains(voice.prompt, "PRIX DE L'OR ACTUEL") {
		t.Fatalf("expected gold block in prompt: %s", voice.prompt)
	}
	if !strings.Contains(ans.Market, "Or `$2,346/oz`") {
		t.Fatalf("expected gold in market line, got %q", ans.Market)
	}
}

func TestAskGoldUnavailable(t *testing.T) {
	voice := &stubVoice{reply: "ok"}
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), voice, &stubMarket{snap: testSnapshot()}, nil, nil)

	if _, err := svc.Ask(context.Background(), "42", false, "gold ?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(voice.prompt, "n'a pas pu être récupéré") {
		t.Fatalf("expected missing gold note: %s", voice.prompt)
	}
}

func TestAskQuota(t *testing.T) {
	voice := &stubVoice{reply: "ok"}
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), voice, nil, NewQuota(2, time.UTC), nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.Ask(context.Background(), "42", false, "question"); err != nil {
			t.Fatalf("ask %d: unexpected error: %v", i, err)
		}
	}
	if _, err := svc.Ask(context.Background(), "42", false, "question"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if voice.calls != 2 {
		t.Fatalf("an over-quota question must not reach the model, got %d calls", voice.calls)
	}

	ans, err := svc.Ask(context.Background(), "42", true, "question")
	if err != nil {
		t.Fatalf("admins are exempt, got %v", err)
	}
	if ans.Remaining != -1 {
		t.Fatalf("expected -1 remaining for admin, got %d", ans.Remaining)
	}
}

func TestAskFailureKeepsQuota(t *testing.T) {
	voice := &stubVoice{err: errors.New("timeout")}
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), voice, nil, NewQuota(5, time.UTC), nil)

	if _, err := svc.Ask(context.Background(), "42", false, "question"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if got := svc.Remaining("42", false); got != 5 {
		t.Fatalf("failed answer must not consume quota, got %d", got)
	}

	voice.err = nil
	voice.reply = "   "
	if _, err := svc.Ask(context.Background(), "42", false, "question"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable for empty reply, got %v", err)
	}
}

func TestAskConcurrentQuota(t *testing.T) {
	voice := &stubVoice{reply: "ok", delay: 50 * time.Millisecond}
	quota := NewQuota(2, time.UTC)
	quota.Reserve("42")
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), voice, nil, quota, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		answered []int
		refused  int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ans, err := svc.Ask(context.Background(), "42", false, "question")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrQuotaExceeded):
				refused++
			case err == nil:
				answered = append(answered, ans.Remaining)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(answered) != 1 || answered[0] != 0 || refused != 2 {
		t.Fatalf("expected one answer with 0 left and two refusals, got %v and %d", answered, refused)
	}
	if got := quota.Remaining("42"); got != 0 {
		t.Fatalf("quota must not go below zero, got %d", got)
	}
	if voice.calls != 1 {
		t.Fatalf("refused questions must not reach the model, got %d calls", voice.calls)
	}
}

func TestAskWithoutVoice(t *testing.T) {
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), nil, nil, nil, nil)
	if svc.Available() {
		t.Fatal("service without a voice is unavailable")
	}
	if _, err := svc.Ask(context.Background(), "42", false, "question"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := svc.Ask(context.Background(), "42", false, "  "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected empty question error, got %v", err)
	}
}

func TestOracleReply(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")

	voice := &stubVoice{reply: "La patience paie."}
	if got := NewOracle(tracer, voice, nil).Reply(context.Background(), ""); got != "La patience paie." {
		t.Fatalf("unexpected reply %q", got)
	}
	if !strings.Contains(voice.prompt, "Bonjour !") {
		t.Fatalf("empty mention should greet, prompt %q", voice.prompt)
	}
	if voice.maxTokens != 0 {
		t.Fatal("oracle uses the persona token budget")
	}

	failing := &stubVoice{err: errors.New("quota")}
	if got := NewOracle(tracer, failing, nil).Reply(context.Background(), "c'est quoi un wallet ?"); got != OracleFallback {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := NewOracle(tracer, nil, nil).Reply(context.Background(), "hello"); got != OracleFallback {
		t.Fatalf("expected fallback without voice, got %q", got)
	}
}

// --- stubs ---

type stubVoice struct {
	mu        sync.Mutex
	delay     time.Duration
	reply     string
	err       error
	prompt    string
	maxTokens int
	calls     int
}

func (s *stubVoice) Ask(ctx context.Context, prompt string, maxTokens int) (string, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompt = prompt
	s.maxTokens = maxTokens
	return s.reply, s.err
}

type stubMarket struct {
	snap  *domain.MarketSnapshot
	parts snapshot.Part
}

func (s *stubMarket) Fetch(ctx context.Context, parts snapshot.Part) *domain.MarketSnapshot {
	s.parts = parts
	return s.snap
}

func testSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Prices: map[string]domain.PriceQuote{
			"BTC": {Symbol: "BTC", PriceUSD: 64250, Change24hPct: 1.2},
			"ETH": {Symbol: "ETH", PriceUSD: 3100, Change24hPct: -0.4},
			"SOL": {Symbol: "SOL", PriceUSD: 140, Change24hPct: 5},
		},
		Global:    &domain.GlobalStats{TotalMarketCapUSD: 2.3e12, BTCDominance: 54.2},
		Sentiment: &domain.Sentiment{SentimentPoint: domain.SentimentPoint{Value: 18, Classification: "Extreme Fear"}},
	}
}
