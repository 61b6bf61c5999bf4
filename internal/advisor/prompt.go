package advisor

import (
	"fmt"
	"strings"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"
)

const answerRules = `Réponds en tant qu'expert Horizon Elite :
- Sois précis et utile
- Utilise les données marché fournies si pertinent
- Si la question concerne l'or et que tu n'as pas le prix exact, mentionne-le clairement
- Donne ton analyse honnête
- Reste accessible mais professionnel
- Utilise des emojis avec parcimonie
- Si c'est une question de trading, rappelle NFA-DYOR
- Réponds en français
- Réponse concise (max 300 mots)`

const goldMissing = `NOTE : le prix actuel de l'or n'a pas pu être récupéré. Conseille de vérifier sur Kitco, Bloomberg ou TradingView.`

// FormatMarketContext renders the live data block placed before the
// question. Symbols named in the question are listed after BTC and ETH.
func FormatMarketContext(s *domain.MarketSnapshot, symbols []string) string {
	var sb strings.Builder

	listed := map[string]bool{}
	var lines []string
	for _, sym := range append([]string{"BTC", "ETH"}, symbols...) {
		if listed[sym] {
			continue
		}
		listed[sym] = true
		if q, ok := s.Price(sym); ok {
			lines = append(lines, fmt.Sprintf("- %s : %s (%s 24h)", sym, compose.FormatPrice(q.PriceUSD), compose.FormatChange(q.Change24hPct)))
		}
	}
	if s != nil && s.Sentiment != nil {
		lines = append(lines, fmt.Sprintf("- Fear & Greed : %d/100 (%s)", s.Sentiment.Value, s.Sentiment.Classification))
	}
	if s != nil && s.Global != nil {
		lines = append(lines,
			fmt.Sprintf("- Dominance BTC : %.1f%%", s.Global.BTCDominance),
			fmt.Sprintf("- Market cap totale : %s", compose.FormatLargeUSD(s.Global.TotalMarketCapUSD)),
		)
	}
	if len(lines) > 0 {
		sb.WriteString("CONTEXTE MARCHÉ CRYPTO ACTUEL (données temps réel) :\n")
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// BuildPrompt assembles the user prompt for a VIP question.
func BuildPrompt(question, marketContext string, goldAsked bool, gold *float64) string {
	var sb strings.Builder
	sb.WriteString(marketContext)
	if gold != nil {
		fmt.Fprintf(&sb, "\nPRIX DE L'OR ACTUEL :\n- Or (XAU) : %s par once troy\n", compose.FormatPrice(*gold))
	} else if goldAsked {
		sb.WriteString("\n" + goldMissing + "\n")
	}
	sb.WriteString("\nQUESTION DU MEMBRE VIP : ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\n")
	sb.WriteString(answerRules)
	return sb.String()
}

// MarketLine is the one-line market recap shown under an answer.
func MarketLine(s *domain.MarketSnapshot) string {
	var parts []string
	for _, sym := range []string{"BTC", "ETH"} {
		if q, ok := s.Price(sym); ok {
			parts = append(parts, fmt.Sprintf("%s `%s`", sym, compose.FormatPrice(q.PriceUSD)))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if s.Sentiment != nil {
		parts = append(parts, fmt.Sprintf("F&G `%d`", s.Sentiment.Value))
	} else {
		parts = append(parts, "F&G `N/A`")
	}
	if s.GoldUSD != nil {
		parts = append(parts, fmt.Sprintf("Or `%s/oz`", compose.FormatPrice(*s.GoldUSD)))
	}
	return strings.Join(parts, " | ")
}
