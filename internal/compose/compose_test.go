package compose

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"crypto-herald/internal/domain"
	"crypto-herald/internal/urgency"
)

var fixedNow = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestComposer() *Composer {
	c := New("crypto-herald")
	c.SetClock(func() time.Time { return fixedNow })
	return c
}

func TestSentimentBandBoundaries(t *testing.T) {
	tests := []struct {
		value int
		label string
	}{
		{0, "extreme fear"},
		{24, "extreme fear"},
		{25, "fear"},
		{44, "fear"},
		{45, "neutral"},
		{54, "neutral"},
		{55, "greed"},
		{74, "greed"},
		{75, "extreme greed"},
		{100, "extreme greed"},
		{-5, "extreme fear"},
		{140, "extreme greed"},
	}
	for _, tc := range tests {
		if got := SentimentBand(tc.value).Label; got != tc.label {
			t.Errorf("value %d: expected %s, got %s", tc.value, tc.label, got)
		}
	}
}

func TestOpportunityStatus(t *testing.T) {
	if s := OpportunityStatusFor(20); s.Label != "PRUDENCE" {
		t.Fatalf("unexpected status %+v", s)
	}
	if s := OpportunityStatusFor(80); s.Label != "BULLISH" {
		t.Fatalf("unexpected status %+v", s)
	}
	if s := OpportunityStatusFor(50); s.Label != "NEUTRE" {
		t.Fatalf("unexpected status %+v", s)
	}
}

func TestTruncateIsSilentAndRuneSafe(t *testing.T) {
	if got := Truncate("hello world", 5); got != "hello" {
		t.Fatalf("unexpected cut %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	got := Truncate("éléphant", 3)
	if got != "élé" || !utf8.ValidString(got) {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if Truncate("x", 0) != "" {
		t.Fatal("zero budget should yield empty string")
	}
}

func TestFearGreedUsesBandColor(t *testing.T) {
	c := newTestComposer()
	s := &domain.Sentiment{
		SentimentPoint: domain.SentimentPoint{Value: 18, Classification: "Extreme Fear"},
		History: []domain.SentimentPoint{
			{Value: 18, Timestamp: fixedNow},
			{Value: 30, Timestamp: fixedNow.AddDate(0, 0, -1)},
		},
	}
	m, ok := c.FearGreed(s, "")
	if !ok {
		t.Fatal("expected message")
	}
	if m.Color != ColorRed || !strings.Contains(m.Description, "Peur extrême") {
		t.Fatalf("unexpected message %+v", m)
	}
	if _, ok := m.Field(analysisField); ok {
		t.Fatal("empty narrative should not add an analysis field")
	}
	if f, ok := m.Field("Variation"); !ok || f.Value != "-12 depuis hier" {
		t.Fatalf("unexpected variation field %+v", f)
	}
	if !m.Timestamp.Equal(fixedNow) || m.Footer != "crypto-herald" {
		t.Fatalf("expected clock and footer to be applied, got %+v", m)
	}

	if _, ok := c.FearGreed(nil, "text"); ok {
		t.Fatal("missing sentiment should produce nothing")
	}
}

func TestNarrativeIsTruncatedToFieldLimit(t *testing.T) {
	c := newTestComposer()
	long := strings.Repeat("a", AnalysisLimit+200)
	snap := &domain.MarketSnapshot{Global: &domain.GlobalStats{TotalMarketCapUSD: 2.5e12, BTCDominance: 54}}
	m, ok := c.Market(snap, long)
	if !ok {
		t.Fatal("expected market message")
	}
	f, ok := m.Field(analysisField)
	if !ok || len(f.Value) != AnalysisLimit {
		t.Fatalf("expected analysis cut to %d, got %d", AnalysisLimit, len(f.Value))
	}
	if strings.HasSuffix(f.Value, "...") || strings.HasSuffix(f.Value, "…") {
		t.Fatal("truncation should be silent")
	}
}

func TestMarketSkipsWithoutData(t *testing.T) {
	c := newTestComposer()
	if _, ok := c.Market(&domain.MarketSnapshot{}, "x"); ok {
		t.Fatal("expected no message for empty snapshot")
	}
	if _, ok := c.Prices(nil); ok {
		t.Fatal("expected no prices message for nil snapshot")
	}
	if _, ok := c.Opportunities(nil, ""); ok {
		t.Fatal("expected no opportunities message for nil snapshot")
	}
}

func TestFlashForHackCategory(t *testing.T) {
	c := newTestComposer()
	item := domain.NewsItem{ID: "n1", Title: "Exchange hacked for $200 million", Source: "wire", URL: "https://example.com/n1"}
	cls := domain.Classification{Urgency: domain.UrgencyUrgent, Category: domain.CategoryHack}

	m := c.Flash(item, cls, "")
	if m.Kind != KindFlash || m.Color != ColorRed || m.Mention != "@here" {
		t.Fatalf("unexpected flash %+v", m)
	}
	if !strings.Contains(m.Title, "ALERTE ROUGE") || !strings.Contains(m.Description, item.Title) {
		t.Fatalf("unexpected flash text %+v", m)
	}
	if _, ok := m.Field(analysisField); ok {
		t.Fatal("no analysis expected")
	}

	m = c.Flash(item, domain.Classification{Category: domain.CategoryRegulatory}, "why it matters")
	if m.Color != ColorOrange || m.Mention != "" {
		t.Fatalf("unexpected regulatory flash %+v", m)
	}
	if f, _ := m.Field(analysisField); f.Value != "why it matters" {
		t.Fatalf("expected analysis field, got %+v", m.Fields)
	}
}

func TestNewsDigestFallsBackToBody(t *testing.T) {
	c := newTestComposer()
	item := domain.NewsItem{ID: "x", Title: "Quiet day", Body: strings.Repeat("b", 800), Source: "feed"}
	m := c.News(item, domain.Classification{Category: domain.CategoryGeneric}, "")
	if m.Color != ColorBlue || utf8.RuneCountInString(m.Description) != SummaryLimit {
		t.Fatalf("unexpected digest %+v", m)
	}
	m = c.News(item, domain.Classification{Category: "unknown"}, "résumé")
	if m.Description != "résumé" || m.Color != ColorBlue {
		t.Fatalf("unexpected digest %+v", m)
	}
}

func TestMoversSplitsGainersAndLosers(t *testing.T) {
	c := newTestComposer()
	snap := &domain.MarketSnapshot{Movers: []domain.PriceQuote{
		{Symbol: "AAA", Change24hPct: 12},
		{Symbol: "BBB", Change24hPct: -9},
		{Symbol: "CCC", Change24hPct: 3},
		{Symbol: "DDD", Change24hPct: -1},
	}}
	m, ok := c.Movers(snap)
	if !ok {
		t.Fatal("expected movers message")
	}
	up, _ := m.Field("🚀 Hausses")
	down, _ := m.Field("📉 Baisses")
	if !strings.HasPrefix(up.Value, "**AAA**") || !strings.HasPrefix(down.Value, "**BBB**") {
		t.Fatalf("unexpected movers fields %+v", m.Fields)
	}
	if snap.Movers[0].Symbol != "AAA" || snap.Movers[1].Symbol != "BBB" {
		t.Fatal("composer must not reorder the snapshot")
	}
}

func TestDeltaAlertMessage(t *testing.T) {
	c := newTestComposer()
	m := c.DeltaAlert(urgency.DeltaAlert{Metric: urgency.MetricFearGreed, Previous: 40, Current: 52, Delta: 12, Threshold: 10})
	if m.Color != ColorGreen || !strings.Contains(m.Title, "Fear & Greed") || !strings.Contains(m.Description, "+12.0") {
		t.Fatalf("unexpected alert %+v", m)
	}
	m = c.DeltaAlert(urgency.DeltaAlert{Metric: urgency.MetricBTCPrice, Previous: 100000, Current: 96000, Delta: -4, Threshold: 3, Mode: urgency.Percent})
	if m.Color != ColorRed || !strings.Contains(m.Description, "$100,000") {
		t.Fatalf("unexpected price alert %+v", m)
	}
	m = c.DeltaAlert(urgency.DeltaAlert{Metric: urgency.MetricETHChange1h, Current: 4.2, Delta: 4.2, Threshold: 4, Mode: urgency.Reported})
	if m.Color != ColorGreen || !strings.Contains(m.Title, "Ethereum 1h") || !strings.Contains(m.Description, "+4.20%") {
		t.Fatalf("unexpected hourly alert %+v", m)
	}
}

func TestWatchlistLinksCharts(t *testing.T) {
	c := newTestComposer()
	snap := &domain.MarketSnapshot{Prices: map[string]domain.PriceQuote{"SOL": {Symbol: "SOL", PriceUSD: 150.5, Change24hPct: 2}}}
	m, ok := c.Watchlist(snap, "")
	if !ok || !strings.Contains(m.Description, ChartURL("SOL")) {
		t.Fatalf("unexpected watchlist %+v", m)
	}
}

func TestAddFieldLimits(t *testing.T) {
	var m Message
	m.AddField("empty", "", false)
	if len(m.Fields) != 0 {
		t.Fatal("empty values should be skipped")
	}
	for i := 0; i < MaxFields+5; i++ {
		m.AddField("f", "v", true)
	}
	if len(m.Fields) != MaxFields {
		t.Fatalf("expected %d fields, got %d", MaxFields, len(m.Fields))
	}
}

func TestFormatting(t *testing.T) {
	tests := map[string]string{
		FormatPrice(64231.7):    "$64,232",
		FormatPrice(2.5):        "$2.50",
		FormatPrice(0.1234):     "$0.1234",
		FormatLargeUSD(2.41e12): "$2.41T",
		FormatLargeUSD(3.5e9):   "$3.50B",
		FormatLargeUSD(12.3e6):  "$12.3M",
		FormatChange(-1.234):    "🔴 -1.23%",
		FormatChange(0.5):       "🟢 +0.50%",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestSituationNeedsBTC(t *testing.T) {
	c := newTestComposer()
	if _, ok := c.Situation(&domain.MarketSnapshot{}, "x"); ok {
		t.Fatal("expected no card without BTC")
	}
	snap := &domain.MarketSnapshot{
		Prices:    map[string]domain.PriceQuote{"BTC": {Symbol: "BTC", PriceUSD: 64250}},
		Sentiment: &domain.Sentiment{SentimentPoint: domain.SentimentPoint{Value: 18}},
	}
	m, ok := c.Situation(snap, "Marché nerveux.")
	if !ok {
		t.Fatal("expected card")
	}
	if f, _ := m.Field("BTC"); f.Value != "$64,250" {
		t.Fatalf("unexpected BTC field %q", f.Value)
	}
	if f, _ := m.Field("F&G"); f.Value != "18" {
		t.Fatalf("unexpected F&G field %q", f.Value)
	}
}

func TestSocialPostWrapsCodeBlock(t *testing.T) {
	m := newTestComposer().SocialPost("LinkedIn", "Apprendre avant d'investir.")
	if m.Color != 0x0077b5 || m.Description != "```Apprendre avant d'investir.```" {
		t.Fatalf("unexpected post %+v", m)
	}
}

func TestStatusListsChecks(t *testing.T) {
	m := newTestComposer().Status("🤖 Status", []Field{{Name: "LLM", Value: "✅", Inline: true}, {Name: "Empty", Value: ""}})
	if len(m.Fields) != 1 || m.Footer != "crypto-herald" {
		t.Fatalf("unexpected status %+v", m)
	}
}
