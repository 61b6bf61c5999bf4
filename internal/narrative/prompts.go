package narrative

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"
)

// topMovers orders quotes by absolute 24h change, largest first.
func topMovers(s *domain.MarketSnapshot, n int) []domain.PriceQuote {
	movers := append([]domain.PriceQuote(nil), s.Movers...)
	sort.SliceStable(movers, func(i, j int) bool {
		return math.Abs(movers[i].Change24hPct) > math.Abs(movers[j].Change24hPct)
	})
	if len(movers) > n {
		movers = movers[:n]
	}
	return movers
}

func moverLines(s *domain.MarketSnapshot, n int, withCap bool) string {
	var sb strings.Builder
	for _, m := range topMovers(s, n) {
		fmt.Fprintf(&sb, "• %s: %s (%+.1f%%", m.Symbol, compose.FormatPrice(m.PriceUSD), m.Change24hPct)
		if withCap && m.MarketCapUSD > 0 {
			fmt.Fprintf(&sb, ", MCap: %s", compose.FormatLargeUSD(m.MarketCapUSD))
		}
		sb.WriteString(")\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func priceLine(s *domain.MarketSnapshot, symbol string) string {
	q, ok := s.Price(symbol)
	if !ok {
		return symbol + ": N/A"
	}
	return fmt.Sprintf("%s: %s (%+.2f%%)", symbol, compose.FormatPrice(q.PriceUSD), q.Change24hPct)
}

func liquidationLine(s *domain.MarketSnapshot) string {
	if s.Liquidations == nil || s.Liquidations.TotalUSD <= 0 {
		return ""
	}
	l := s.Liquidations
	return fmt.Sprintf("\nLiquidations 24h: $%.0fM (Longs: $%.0fM, Shorts: $%.0fM)",
		l.TotalUSD/1e6, l.LongUSD/1e6, l.ShortUSD/1e6)
}

func fundingLine(s *domain.MarketSnapshot) string {
	if len(s.Funding) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.Funding))
	for _, f := range s.Funding {
		parts = append(parts, fmt.Sprintf("%s: %.4f%%", f.Symbol, f.Rate*100))
	}
	return "\nFunding " + strings.Join(parts, " | ")
}

func socialLines(s *domain.MarketSnapshot, n int) string {
	if len(s.Social) == 0 {
		return ""
	}
	social := append([]domain.SocialMetric(nil), s.Social...)
	sort.SliceStable(social, func(i, j int) bool { return social[i].Influence > social[j].Influence })
	if len(social) > n {
		social = social[:n]
	}
	var sb strings.Builder
	sb.WriteString("\n\nTOP SOCIAL:\n")
	for _, m := range social {
		fmt.Fprintf(&sb, "• %s: score %.0f, mentions %d\n", m.Symbol, m.Influence, m.Mentions)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func trendingList(s *domain.MarketSnapshot, n int) string {
	if len(s.Trending) == 0 {
		return "N/A"
	}
	syms := make([]string, 0, n)
	for i, t := range s.Trending {
		if i == n {
			break
		}
		syms = append(syms, strings.ToUpper(t.Symbol))
	}
	return strings.Join(syms, ", ")
}

func fearGreedPrompt(s *domain.MarketSnapshot) string {
	fg := s.Sentiment
	history := make([]string, 0, len(fg.History))
	for _, h := range fg.History {
		history = append(history, fmt.Sprintf("%d", h.Value))
	}
	return fmt.Sprintf("F&G: %d/100 (%s)\nHistorique 7j: [%s]%s\n\n"+
		"Analyse en 4 lignes: signification, tendance, comportement smart money, point d'attention.",
		fg.Value, fg.Classification, strings.Join(history, ", "), liquidationLine(s))
}

func setupPrompt(s *domain.MarketSnapshot) string {
	var sb strings.Builder
	sb.WriteString("DONNÉES RÉELLES:\n")
	sb.WriteString(priceLine(s, "BTC") + "\n")
	sb.WriteString(priceLine(s, "ETH") + "\n")
	if s.Global != nil {
		fmt.Fprintf(&sb, "BTC.D: %.1f%%\nMarket Cap 24h: %+.2f%%", s.Global.BTCDominance, s.Global.MarketCapChange24h)
	}
	sb.WriteString(fundingLine(s))
	sb.WriteString("\n\nTOP MOVERS:\n")
	sb.WriteString(moverLines(s, 5, false))
	sb.WriteString("\n\nSetup technique concis: contexte, BTC S/R, ETH S/R, biais.")
	return sb.String()
}

func marketPrompt(s *domain.MarketSnapshot) string {
	var sb strings.Builder
	sb.WriteString("MARCHÉ CRYPTO - DONNÉES RÉELLES:\n")
	if s.Global != nil {
		fmt.Fprintf(&sb, "Market Cap: %s (%+.2f%% 24h)\nBTC.D: %.1f%% | ETH.D: %.1f%%",
			compose.FormatLargeUSD(s.Global.TotalMarketCapUSD), s.Global.MarketCapChange24h,
			s.Global.BTCDominance, s.Global.ETHDominance)
	}
	sb.WriteString(liquidationLine(s))
	sb.WriteString("\n\nTOP MOVERS:\n")
	sb.WriteString(moverLines(s, 6, true))
	sb.WriteString("\n\nAnalyse: état du marché, flux capitaux, opportunités, risques.")
	return sb.String()
}

func watchlistPrompt(s *domain.MarketSnapshot) string {
	return "DONNÉES RÉELLES (NE PAS INVENTER DE PRIX):\nTOP MOVERS:\n" + moverLines(s, 8, true) +
		"\n\nTRENDING: " + trendingList(s, 5) + socialLines(s, 5) +
		"\n\nSélectionne 3 altcoins à SURVEILLER parmi cette liste avec:\n" +
		"- Prix RÉEL (copie depuis les données)\n- Pourquoi surveiller\n- Niveau de risque"
}

func sentimentPrompt(s *domain.MarketSnapshot) string {
	var sb strings.Builder
	sb.WriteString("SENTIMENT MARCHÉ:\n")
	if s.Sentiment != nil {
		fmt.Fprintf(&sb, "F&G: %d/100 (%s)\n", s.Sentiment.Value, s.Sentiment.Classification)
	}
	titles := make([]string, 0, 3)
	for i, n := range s.News {
		if i == 3 {
			break
		}
		titles = append(titles, compose.Truncate(n.Title, 40))
	}
	sb.WriteString("Headlines: " + strings.Join(titles, " | "))
	sb.WriteString(socialLines(s, 5))
	if l := s.Liquidations; l != nil && l.TotalUSD > 0 {
		longPct := l.LongUSD / l.TotalUSD * 100
		fmt.Fprintf(&sb, "\nLiquidations: Longs %.0f%% vs Shorts %.0f%%", longPct, 100-longPct)
	}
	sb.WriteString("\n\nAnalyse: score sentiment /100, ton des news, signaux contrarian, conclusion.")
	return sb.String()
}

func opportunitiesPrompt(s *domain.MarketSnapshot, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 DONNÉES MARCHÉ RÉELLES - %s:\n\n", now.Format("02/01/2006 15:04"))
	sb.WriteString(priceLine(s, "BTC") + "\n")
	sb.WriteString(priceLine(s, "ETH") + "\n")
	if s.Sentiment != nil {
		fmt.Fprintf(&sb, "F&G: %d/100", s.Sentiment.Value)
	}
	if s.Global != nil {
		fmt.Fprintf(&sb, " | BTC.D: %.1f%%", s.Global.BTCDominance)
	}
	sb.WriteString("\n\nTOP MOVERS (PRIX RÉELS):\n")
	sb.WriteString(moverLines(s, 8, true))
	sb.WriteString(socialLines(s, 5))
	sb.WriteString(liquidationLine(s))
	if len(s.Yields) > 0 {
		sb.WriteString("\n\nDEFI YIELDS:\n")
		for i, y := range s.Yields {
			if i == 3 {
				break
			}
			fmt.Fprintf(&sb, "• %s: %.1f%% APY (TVL: $%.0fM)\n", y.Project, y.APY, y.TVLUSD/1e6)
		}
	}
	sb.WriteString("\n\n⚠️ UTILISE UNIQUEMENT LES PRIX CI-DESSUS, N'INVENTE RIEN.\n\n" +
		"Analyse concise:\n- Contexte marché (2 lignes)\n- 1-2 cryptos à surveiller avec PRIX RÉEL\n- Score /10")
	return sb.String()
}

func newsSummaryPrompt(item domain.NewsItem) string {
	return fmt.Sprintf("News: %s. Résumé français 2 lignes: fait, impact (🟢/🔴/🟡).", compose.Truncate(item.Title, 200))
}

func flashPrompt(item domain.NewsItem) string {
	return fmt.Sprintf("🚨 URGENT: %s. Impact marché en 2 lignes.", item.Title)
}

func situationPrompt(s *domain.MarketSnapshot) string {
	btc, _ := s.Price("BTC")
	fg := "N/A"
	if s.Sentiment != nil {
		fg = fmt.Sprintf("%d", s.Sentiment.Value)
	}
	return fmt.Sprintf("BTC %s, F&G %s. Situation 2 lignes.", compose.FormatPrice(btc.PriceUSD), fg)
}

// SocialLink is the call-to-action inserted in generated social posts.
var SocialLink = "https://ebook-horizoncrypto.com"

func socialPrompt(theme string, s *domain.MarketSnapshot) string {
	if strings.TrimSpace(theme) == "" || theme == "auto" {
		theme = "choisis le meilleur selon le contexte marché"
	}
	var market string
	if s != nil && len(s.Prices) > 0 && s.Sentiment != nil {
		market = "\nCONTEXTE MARCHÉ ACTUEL:\n- " + priceLine(s, "BTC") + "\n- " + priceLine(s, "ETH") +
			fmt.Sprintf("\n- Fear & Greed: %d/100 (%s)\n", s.Sentiment.Value, s.Sentiment.Classification)
	}
	return fmt.Sprintf(`Crée 3 posts pour les réseaux sociaux de "Horizon Elite", une communauté crypto premium.

OBJECTIF: Rassurer, éduquer, motiver les gens à rejoindre la communauté.
LIEN À INCLURE: %s
THÈME DEMANDÉ: %s
%s
RÈGLES: storytelling, rassurant, pro mais accessible, authentique, CTA clair vers le lien.

Génère exactement 3 posts avec ce format:

%s
[280 caractères max, emojis, hashtags #Crypto #Bitcoin, le lien]

%s
[storytelling, call-to-action, 10-15 hashtags, le lien en fin de caption]

%s
[professionnel, éducatif, format aéré, le lien]

Ne promets JAMAIS de devenir riche rapidement.`, SocialLink, theme, market, MarkerTwitter, MarkerInstagram, MarkerLinkedIn)
}

const (
	MarkerTwitter   = "===TWITTER==="
	MarkerInstagram = "===INSTAGRAM==="
	MarkerLinkedIn  = "===LINKEDIN==="
)

// SocialPost is one platform section of a generated draft.
type SocialPost struct {
	Platform string
	Text     string
}

// SplitSocialPosts cuts a draft on the platform markers. Sections that are
// missing or empty are omitted.
func SplitSocialPosts(draft string) []SocialPost {
	markers := []struct{ marker, platform string }{
		{MarkerTwitter, "Twitter/X"},
		{MarkerInstagram, "Instagram"},
		{MarkerLinkedIn, "LinkedIn"},
	}
	var out []SocialPost
	for i, m := range markers {
		start := strings.Index(draft, m.marker)
		if start < 0 {
			continue
		}
		body := draft[start+len(m.marker):]
		for j, other := range markers {
			if j == i {
				continue
			}
			if end := strings.Index(body, other.marker); end >= 0 {
				body = body[:end]
			}
		}
		if body = strings.TrimSpace(body); body != "" {
			out = append(out, SocialPost{Platform: m.platform, Text: body})
		}
	}
	return out
}
