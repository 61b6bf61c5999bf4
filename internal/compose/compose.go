package compose

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"crypto-herald/internal/domain"
	"crypto-herald/internal/urgency"
)

const (
	KindFearGreed     = "fear_greed"
	KindPrices        = "prices"
	KindMovers        = "movers"
	KindMarket        = "market"
	KindSetup         = "setup"
	KindWatchlist     = "watchlist"
	KindSentiment     = "sentiment"
	KindOpportunities = "opportunities"
	KindNews          = "news"
	KindFlash         = "flash"
	KindDeltaAlert    = "delta_alert"
	KindWelcome       = "welcome"
	KindAnswer        = "answer"
	KindNotice        = "notice"
	KindSituation     = "situation"
	KindSocial        = "social"
	KindStatus        = "status"
)

const analysisField = "🧠 Analyse"

// Composer renders messages. Output depends only on the inputs and the clock.
type Composer struct {
	footer string
	now    func() time.Time
}

func New(footer string) *Composer {
	return &Composer{footer: footer, now: time.Now}
}

func (c *Composer) SetClock(now func() time.Time) { c.now = now }

func (c *Composer) done(m Message) Message {
	if m.Footer == "" {
		m.Footer = c.footer
	}
	return finalize(m, c.now())
}

func withAnalysis(m *Message, narrative string) {
	m.AddField(analysisField, Truncate(strings.TrimSpace(narrative), AnalysisLimit), false)
}

// FearGreed renders the sentiment index with its 7-day history.
func (c *Composer) FearGreed(s *domain.Sentiment, narrative string) (Message, bool) {
	if s == nil {
		return Message{}, false
	}
	band := SentimentBand(s.Value)
	m := Message{
		Kind:        KindFearGreed,
		Title:       fmt.Sprintf("%s Fear & Greed Index : %d", band.Emoji, s.Value),
		Description: fmt.Sprintf("Sentiment du marché : **%s**", band.Display),
		Color:       band.Color,
	}
	if len(s.History) > 1 {
		var lines []string
		for _, p := range s.History {
			lines = append(lines, fmt.Sprintf("%s : %d (%s)", p.Timestamp.Format("02/01"), p.Value, SentimentBand(p.Value).Display))
		}
		m.AddField("📅 7 derniers jours", strings.Join(lines, "\n"), false)
		if prev := s.History[1].Value; prev != s.Value {
			m.AddField("Variation", fmt.Sprintf("%+d depuis hier", s.Value-prev), true)
		}
	}
	withAnalysis(&m, narrative)
	return c.done(m), true
}

func priceLine(q domain.PriceQuote) string {
	return fmt.Sprintf("**%s** %s  %s", q.Symbol, FormatPrice(q.PriceUSD), FormatChange(q.Change24hPct))
}

// Prices renders the headline prices.
func (c *Composer) Prices(s *domain.MarketSnapshot) (Message, bool) {
	var lines []string
	for _, sym := range domain.HeadlineSymbols {
		if q, ok := s.Price(sym); ok {
			lines = append(lines, priceLine(q))
		}
	}
	if len(lines) == 0 {
		return Message{}, false
	}
	m := Message{
		Kind:        KindPrices,
		Title:       "💰 Prix crypto",
		Description: strings.Join(lines, "\n"),
		Color:       ColorGold,
	}
	return c.done(m), true
}

// Movers renders the best and worst 24h performers.
func (c *Composer) Movers(s *domain.MarketSnapshot) (Message, bool) {
	if s == nil || len(s.Movers) == 0 {
		return Message{}, false
	}
	sorted := append([]domain.PriceQuote(nil), s.Movers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Change24hPct > sorted[j].Change24hPct })

	n := 5
	if len(sorted) < 2*n {
		n = len(sorted) / 2
		if n == 0 {
			n = 1
		}
	}
	var gainers, losers []string
	for _, q := range sorted[:n] {
		gainers = append(gainers, priceLine(q))
	}
	for i := len(sorted) - 1; i >= len(sorted)-n && i >= n; i-- {
		losers = append(losers, priceLine(sorted[i]))
	}
	m := Message{Kind: KindMovers, Title: "📊 Top movers 24h", Color: ColorPurple}
	m.AddField("🚀 Hausses", strings.Join(gainers, "\n"), false)
	m.AddField("📉 Baisses", strings.Join(losers, "\n"), false)
	return c.done(m), true
}

func globalLines(g *domain.GlobalStats) string {
	if g == nil {
		return ""
	}
	return fmt.Sprintf("Capitalisation : %s (%s)\nVolume 24h : %s\nDominance BTC : %.1f%% | ETH : %.1f%%",
		FormatLargeUSD(g.TotalMarketCapUSD), FormatChange(g.MarketCapChange24h),
		FormatLargeUSD(g.TotalVolumeUSD), g.BTCDominance, g.ETHDominance)
}

// Market renders the global overview with headline prices.
func (c *Composer) Market(s *domain.MarketSnapshot, narrative string) (Message, bool) {
	if s == nil || (s.Global == nil && len(s.Prices) == 0) {
		return Message{}, false
	}
	m := Message{Kind: KindMarket, Title: "🌍 Point marché", Color: ColorBlue}
	m.Description = globalLines(s.Global)
	var lines []string
	for _, sym := range domain.HeadlineSymbols {
		if q, ok := s.Price(sym); ok {
			lines = append(lines, priceLine(q))
		}
	}
	m.AddField("💰 Prix", strings.Join(lines, "\n"), false)
	if s.Sentiment != nil {
		band := SentimentBand(s.Sentiment.Value)
		m.AddField("Fear & Greed", fmt.Sprintf("%s %d (%s)", band.Emoji, s.Sentiment.Value, band.Display), true)
	}
	withAnalysis(&m, narrative)
	return c.done(m), true
}

// Setup renders derivatives positioning: liquidations and funding.
func (c *Composer) Setup(s *domain.MarketSnapshot, narrative string) (Message, bool) {
	if s == nil || (s.Liquidations == nil && len(s.Funding) == 0 && len(s.Prices) == 0) {
		return Message{}, false
	}
	m := Message{Kind: KindSetup, Title: "🎯 Setup du jour", Color: ColorPurple}
	if l := s.Liquidations; l != nil {
		m.AddField("💥 Liquidations 24h", fmt.Sprintf("Total : %s\nLongs : %s\nShorts : %s",
			FormatLargeUSD(l.TotalUSD), FormatLargeUSD(l.LongUSD), FormatLargeUSD(l.ShortUSD)), true)
	}
	if len(s.Funding) > 0 {
		var lines []string
		for _, f := range s.Funding {
			lines = append(lines, fmt.Sprintf("%s : %.4f%%", f.Symbol, f.Rate*100))
		}
		m.AddField("💸 Funding", strings.Join(lines, "\n"), true)
	}
	if q, ok := s.Price("BTC"); ok {
		m.AddField("BTC 1h / 24h", fmt.Sprintf("%s / %s", FormatChange(q.Change1hPct), FormatChange(q.Change24hPct)), false)
	}
	withAnalysis(&m, narrative)
	return c.done(m), true
}

// Watchlist renders the tracked symbols with chart links.
func (c *Composer) Watchlist(s *domain.MarketSnapshot, narrative string) (Message, bool) {
	var lines []string
	for _, sym := range domain.WatchlistSymbols {
		if q, ok := s.Price(sym); ok {
			lines = append(lines, fmt.Sprintf("[%s](%s) %s  %s", sym, ChartURL(sym), FormatPrice(q.PriceUSD), FormatChange(q.Change24hPct)))
		}
	}
	if len(lines) == 0 {
		return Message{}, false
	}
	m := Message{
		Kind:        KindWatchlist,
		Title:       "👀 Watchlist",
		Description: strings.Join(lines, "\n"),
		Color:       ColorGold,
	}
	withAnalysis(&m, narrative)
	return c.done(m), true
}

// SentimentReport combines the index, social metrics and trending coins.
func (c *Composer) SentimentReport(s *domain.MarketSnapshot, narrative string) (Message, bool) {
	if s == nil || (s.Sentiment == nil && len(s.Social) == 0 && len(s.Trending) == 0) {
		return Message{}, false
	}
	m := Message{Kind: KindSentiment, Title: "🧭 Sentiment & social", Color: ColorBlue}
	if s.Sentiment != nil {
		band := SentimentBand(s.Sentiment.Value)
		m.Color = band.Color
		m.Description = fmt.Sprintf("Fear & Greed : %s **%d** (%s)", band.Emoji, s.Sentiment.Value, band.Display)
	}
	if len(s.Social) > 0 {
		var lines []string
		for _, sm := range s.Social {
			lines = append(lines, fmt.Sprintf("%s : score %.0f, %d mentions", sm.Symbol, sm.Influence, sm.Mentions))
		}
		m.AddField("📣 Social", strings.Join(lines, "\n"), false)
	}
	if len(s.Trending) > 0 {
		var syms []string
		for _, t := range s.Trending {
			syms = append(syms, t.Symbol)
		}
		m.AddField("🔥 Trending", strings.Join(syms, ", "), false)
	}
	withAnalysis(&m, narrative)
	return c.done(m), true
}

// Opportunities renders the market status with yields and trending coins.
func (c *Composer) Opportunities(s *domain.MarketSnapshot, narrative string) (Message, bool) {
	if s == nil || (s.Sentiment == nil && len(s.Yields) == 0 && len(s.Trending) == 0) {
		return Message{}, false
	}
	status := OpportunityStatusFor(50)
	if s.Sentiment != nil {
		status = OpportunityStatusFor(s.Sentiment.Value)
	}
	m := Message{
		Kind:        KindOpportunities,
		Title:       "💎 Opportunités : " + status.Label,
		Color:       status.Color,
		Description: globalLines(s.Global),
	}
	if len(s.Yields) > 0 {
		var lines []string
		for _, y := range s.Yields {
			lines = append(lines, fmt.Sprintf("%s %s (%s) : %.1f%% APY, TVL %s", y.Project, y.Symbol, y.Chain, y.APY, FormatLargeUSD(y.TVLUSD)))
		}
		m.AddField("🌾 Rendements DeFi", strings.Join(lines, "\n"), false)
	}
	if len(s.Trending) > 0 {
		var lines []string
		for _, t := range s.Trending {
			lines = append(lines, fmt.Sprintf("[%s](%s)", t.Symbol, ChartURL(t.Symbol)))
		}
		m.AddField("🔥 Trending", strings.Join(lines, " · "), false)
	}
	withAnalysis(&m, narrative)
	return c.done(m), true
}

// News renders a routine digest entry.
func (c *Composer) News(item domain.NewsItem, cls domain.Classification, summary string) Message {
	style := StyleFor(cls.Category)
	m := Message{
		Kind:  KindNews,
		Title: style.Emoji + " " + item.Title,
		URL:   item.URL,
		Color: style.DigestColor,
	}
	if summary = strings.TrimSpace(summary); summary != "" {
		m.Description = Truncate(summary, SummaryLimit)
	} else {
		m.Description = Truncate(item.Body, SummaryLimit)
	}
	m.AddField("Source", item.Source, true)
	if item.URL != "" {
		m.AddField("Lien", item.URL, true)
	}
	return c.done(m)
}

// Flash renders an out-of-band alert for an urgent item.
func (c *Composer) Flash(item domain.NewsItem, cls domain.Classification, analysis string) Message {
	style := StyleFor(cls.Category)
	m := Message{
		Kind:        KindFlash,
		Mention:     style.Mention,
		Title:       fmt.Sprintf("%s %s", style.Emoji, style.FlashLabel),
		Description: "**" + item.Title + "**",
		URL:         item.URL,
		Color:       style.FlashColor,
	}
	if item.Body != "" {
		m.AddField("Détails", Truncate(item.Body, SummaryLimit), false)
	}
	withAnalysis(&m, analysis)
	m.AddField("Source", item.Source, true)
	return c.done(m)
}

var metricTitles = map[urgency.Metric]string{
	urgency.MetricFearGreed:    "Fear & Greed",
	urgency.MetricBTCDominance: "Dominance BTC",
	urgency.MetricBTCPrice:     "Bitcoin",
	urgency.MetricETHPrice:     "Ethereum",
	urgency.MetricBTCChange1h:  "Bitcoin 1h",
	urgency.MetricETHChange1h:  "Ethereum 1h",
}

// DeltaAlert renders a numeric move that crossed its threshold.
func (c *Composer) DeltaAlert(a urgency.DeltaAlert) Message {
	name := metricTitles[a.Metric]
	if name == "" {
		name = string(a.Metric)
	}
	color := ColorGreen
	arrow := "📈"
	if a.Delta < 0 {
		color = ColorRed
		arrow = "📉"
	}
	m := Message{
		Kind:  KindDeltaAlert,
		Title: fmt.Sprintf("%s Alerte %s", arrow, name),
		Color: color,
	}
	switch a.Mode {
	case urgency.Percent:
		m.Description = fmt.Sprintf("%s → %s (%+.2f%%)", FormatPrice(a.Previous), FormatPrice(a.Current), a.Delta)
	case urgency.Reported:
		m.Description = fmt.Sprintf("Variation sur 1h : %s", FormatChange(a.Current))
	default:
		m.Description = fmt.Sprintf("%.1f → %.1f (%+.1f)", a.Previous, a.Current, a.Delta)
	}
	m.AddField("Seuil", fmt.Sprintf("%.1f", a.Threshold), true)
	return c.done(m)
}

// Welcome greets a new member.
func (c *Composer) Welcome(mention, guild string) Message {
	m := Message{
		Kind:        KindWelcome,
		Mention:     mention,
		Title:       "👋 Bienvenue sur " + guild,
		Description: "Présente-toi, lis les règles et pose tes questions dans le salon d'entraide.",
		Color:       ColorBlue,
	}
	return c.done(m)
}

// Answer renders a Q&A reply. remaining < 0 hides the quota line.
func (c *Composer) Answer(question, answer string, remaining int) Message {
	m := Message{
		Kind:        KindAnswer,
		Title:       "💬 " + Truncate(question, MaxTitle-3),
		Description: Truncate(answer, AnswerLimit),
		Color:       ColorPurple,
	}
	if remaining >= 0 {
		m.Footer = fmt.Sprintf("Questions restantes aujourd'hui : %d", remaining)
	}
	return c.done(m)
}

// Notice is a short user-facing status or error line.
func (c *Composer) Notice(text string) Message {
	return c.done(Message{Kind: KindNotice, Title: "ℹ️ Info", Description: text, Color: ColorGold})
}

// Situation is the quick BTC and fear & greed card.
func (c *Composer) Situation(s *domain.MarketSnapshot, analysis string) (Message, bool) {
	btc, ok := s.Price("BTC")
	if !ok {
		return Message{}, false
	}
	m := Message{
		Kind:        KindSituation,
		Title:       "⚡ FLASH",
		Description: Truncate(strings.TrimSpace(analysis), MaxDescription),
		Color:       ColorGold,
	}
	m.AddField("BTC", FormatPrice(btc.PriceUSD), true)
	if s.Sentiment != nil {
		m.AddField("F&G", fmt.Sprintf("%d", s.Sentiment.Value), true)
	}
	m.AddField("📊 Chart", "[TradingView]("+ChartURL("BTC")+")", true)
	return c.done(m), true
}

var socialColors = map[string]int{
	"Twitter/X": 0x1da1f2,
	"Instagram": 0xe1306c,
	"LinkedIn":  0x0077b5,
}

// SocialPost renders one generated post as a copyable block.
func (c *Composer) SocialPost(platform, text string) Message {
	color, ok := socialColors[platform]
	if !ok {
		color = ColorBlue
	}
	return c.done(Message{
		Kind:        KindSocial,
		Title:       "📱 POST " + strings.ToUpper(platform),
		Description: "```" + Truncate(text, MaxDescription-6) + "```",
		Color:       color,
	})
}

// Status renders a list of named checks.
func (c *Composer) Status(title string, checks []Field) Message {
	m := Message{Kind: KindStatus, Title: title, Color: ColorBlue}
	for _, f := range checks {
		m.AddField(f.Name, f.Value, f.Inline)
	}
	return c.done(m)
}
