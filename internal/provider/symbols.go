package provider

import (
	"regexp"
	"sort"
	"strings"

	"crypto-herald/internal/domain"
)

var symbolTokenRx = regexp.MustCompile(`\$?[A-Za-z]{2,12}`)

var symbolAlias = map[string]string{
	"btc":       "BTC",
	"bitcoin":   "BTC",
	"xbt":       "BTC",
	"eth":       "ETH",
	"ethereum":  "ETH",
	"ether":     "ETH",
	"sol":       "SOL",
	"solana":    "SOL",
	"xrp":       "XRP",
	"ripple":    "XRP",
	"bnb":       "BNB",
	"binance":   "BNB",
	"ada":       "ADA",
	"cardano":   "ADA",
	"doge":      "DOGE",
	"dogecoin":  "DOGE",
	"avax":      "AVAX",
	"avalanche": "AVAX",
	"chainlink": "LINK",
	"polkadot":  "DOT",
}

var subredditSymbolHint = map[string]string{
	"bitcoin":  "BTC",
	"ethereum": "ETH",
	"solana":   "SOL",
	"cardano":  "ADA",
	"ripple":   "XRP",
	"xrp":      "XRP",
	"dogecoin": "DOGE",
}

// ExtractSymbols returns the tracked symbols mentioned in text, sorted.
// Bare tickers like LINK or DOT only count when written as $LINK or in caps.
func ExtractSymbols(text string) []string {
	matched := make(map[string]struct{}, 4)
	for _, raw := range symbolTokenRx.FindAllString(text, -1) {
		cashtag := strings.HasPrefix(raw, "$")
		token := strings.TrimPrefix(raw, "$")
		upper := strings.ToUpper(token)
		if _, ok := domain.CoinGeckoID[upper]; ok && (cashtag || token == upper) {
			matched[upper] = struct{}{}
			continue
		}
		if sym, ok := symbolAlias[strings.ToLower(token)]; ok {
			matched[sym] = struct{}{}
		}
	}
	if len(matched) == 0 {
		return nil
	}
	out := make([]string, 0, len(matched))
	for sym := range matched {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
