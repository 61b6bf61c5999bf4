package domain

import "time"

// PriceQuote is the latest price for one asset.
type PriceQuote struct {
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"price_usd"`
	Change1hPct  float64 `json:"change_1h_pct"`
	Change24hPct float64 `json:"change_24h_pct"`
	MarketCapUSD float64 `json:"market_cap_usd,omitempty"`
	Volume24hUSD float64 `json:"volume_24h_usd,omitempty"`
}

type GlobalStats struct {
	TotalMarketCapUSD  float64 `json:"total_market_cap_usd"`
	TotalVolumeUSD     float64 `json:"total_volume_usd"`
	MarketCapChange24h float64 `json:"market_cap_change_24h_pct"`
	BTCDominance       float64 `json:"btc_dominance"`
	ETHDominance       float64 `json:"eth_dominance"`
}

type SentimentPoint struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
}

// Sentiment is the fear & greed index with its recent history, newest first.
type Sentiment struct {
	SentimentPoint
	History []SentimentPoint `json:"history,omitempty"`
}

type TrendingCoin struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Rank   int    `json:"rank"`
}

type Liquidations struct {
	TotalUSD float64 `json:"total_usd"`
	LongUSD  float64 `json:"long_usd"`
	ShortUSD float64 `json:"short_usd"`
}

type FundingRate struct {
	Symbol string  `json:"symbol"`
	Rate   float64 `json:"rate"`
}

type SocialMetric struct {
	Symbol      string  `json:"symbol"`
	Influence   float64 `json:"influence"`
	Mentions    int     `json:"mentions"`
	Sentiment   float64 `json:"sentiment,omitempty"`
	PriceChange float64 `json:"price_change,omitempty"`
}

type YieldPool struct {
	Project string  `json:"project"`
	Symbol  string  `json:"symbol"`
	Chain   string  `json:"chain"`
	APY     float64 `json:"apy"`
	TVLUSD  float64 `json:"tvl_usd"`
}

// MarketSnapshot is one point-in-time bundle of fetched data. Any part whose
// source failed is nil or empty. Snapshots are built once per cycle and are
// not modified after the fetcher returns them.
type MarketSnapshot struct {
	TakenAt      time.Time             `json:"taken_at"`
	Prices       map[string]PriceQuote `json:"prices,omitempty"`
	Global       *GlobalStats          `json:"global,omitempty"`
	Sentiment    *Sentiment            `json:"sentiment,omitempty"`
	Trending     []TrendingCoin        `json:"trending,omitempty"`
	Movers       []PriceQuote          `json:"movers,omitempty"`
	Liquidations *Liquidations         `json:"liquidations,omitempty"`
	Funding      []FundingRate         `json:"funding,omitempty"`
	Social       []SocialMetric        `json:"social,omitempty"`
	Yields       []YieldPool           `json:"yields,omitempty"`
	News         []NewsItem            `json:"news,omitempty"`
	GoldUSD      *float64              `json:"gold_usd,omitempty"`
	Missing      map[string]string     `json:"missing,omitempty"`
}

// Price returns the quote for symbol and whether it was present.
func (s *MarketSnapshot) Price(symbol string) (PriceQuote, bool) {
	if s == nil || s.Prices == nil {
		return PriceQuote{}, false
	}
	q, ok := s.Prices[symbol]
	return q, ok
}

// Empty reports whether no source produced data.
func (s *MarketSnapshot) Empty() bool {
	if s == nil {
		return true
	}
	return len(s.Prices) == 0 && s.Global == nil && s.Sentiment == nil &&
		len(s.Trending) == 0 && len(s.Movers) == 0 && s.Liquidations == nil &&
		len(s.Funding) == 0 && len(s.Social) == 0 && len(s.Yields) == 0 &&
		len(s.News) == 0 && s.GoldUSD == nil
}

// CoinGeckoID maps tracked symbols to CoinGecko API identifiers.
var CoinGeckoID = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"XRP":  "ripple",
	"BNB":  "binancecoin",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"AVAX": "avalanche-2",
	"LINK": "chainlink",
	"DOT":  "polkadot",
}

// CoinGeckoIDToSymbol is the reverse mapping.
var CoinGeckoIDToSymbol map[string]string

func init() {
	CoinGeckoIDToSymbol = make(map[string]string, len(CoinGeckoID))
	for sym, id := range CoinGeckoID {
		CoinGeckoIDToSymbol[id] = sym
	}
}

// HeadlineSymbols are the prices shown in every market post.
var HeadlineSymbols = []string{"BTC", "ETH", "SOL", "XRP", "BNB"}

// WatchlistSymbols are tracked by the watchlist post.
var WatchlistSymbols = []string{"BTC", "ETH", "SOL", "XRP", "BNB", "ADA", "DOGE", "AVAX", "LINK", "DOT"}
