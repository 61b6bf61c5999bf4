package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"crypto-herald/pkg/ratelimit"
)

func newTestCoinGecko(t *testing.T, check func(req *http.Request), body string) *CoinGeckoProvider {
	t.Helper()
	p := NewCoinGeckoProvider(testTracer(), time.Second)
	p.baseURL = "http://example"
	p.limiter = ratelimit.New(10, time.Millisecond)
	p.client = stubClient(func(req *http.Request) (*http.Response, error) {
		if check != nil {
			check(req)
		}
		return respond(http.StatusOK, body), nil
	})
	return p
}

func TestCoinGeckoFetchPrices(t *testing.T) {
	body := `[{"id":"bitcoin","symbol":"btc","current_price":100,"market_cap":2000,"total_volume":10,
		"price_change_percentage_24h":1.5,"price_change_percentage_1h_in_currency":-0.4}]`
	p := newTestCoinGecko(t, func(req *http.Request) {
		if req.URL.Path != "/coins/markets" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if ids := req.URL.Query().Get("ids"); ids != "bitcoin,ethereum" {
			t.Fatalf("unexpected ids %q", ids)
		}
	}, body)

	result, err := p.FetchPrices(context.Background(), []string{"ETH", "BTC", "NOPE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q, ok := result["BTC"]
	if !ok || q.PriceUSD != 100 || q.Change24hPct != 1.5 || q.Change1hPct != -0.4 || q.MarketCapUSD != 2000 {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestCoinGeckoFetchPricesRejectsUnknownSymbols(t *testing.T) {
	p := newTestCoinGecko(t, func(req *http.Request) { t.Fatal("no request expected") }, "[]")
	if _, err := p.FetchPrices(context.Background(), []string{"NOPE"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCoinGeckoFetchMarkets(t *testing.T) {
	body := `[{"id":"pepe","symbol":"pepe","current_price":0.00001,"price_change_percentage_24h":25},
		{"id":"solana","symbol":"sol","current_price":150,"price_change_percentage_24h":null}]`
	p := newTestCoinGecko(t, func(req *http.Request) {
		if req.URL.Query().Get("per_page") != "50" {
			t.Fatalf("unexpected per_page %s", req.URL.RawQuery)
		}
	}, body)

	quotes, err := p.FetchMarkets(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 2 || quotes[0].Symbol != "PEPE" || quotes[1].Symbol != "SOL" || quotes[1].Change24hPct != 0 {
		t.Fatalf("unexpected quotes %+v", quotes)
	}
}

func TestCoinGeckoFetchGlobal(t *testing.T) {
	body := `{"data":{"total_market_cap":{"usd":2.5e12},"total_volume":{"usd":9e10},
		"market_cap_percentage":{"btc":54.1,"eth":17.2},"market_cap_change_percentage_24h_usd":-2.3}}`
	p := newTestCoinGecko(t, func(req *http.Request) {
		if req.URL.Path != "/global" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
	}, body)

	g, err := p.FetchGlobal(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.TotalMarketCapUSD != 2.5e12 || g.BTCDominance != 54.1 || g.ETHDominance != 17.2 || g.MarketCapChange24h != -2.3 {
		t.Fatalf("unexpected global %+v", g)
	}

	p = newTestCoinGecko(t, nil, `{"data":{}}`)
	if _, err := p.FetchGlobal(context.Background()); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestCoinGeckoFetchTrending(t *testing.T) {
	body := `{"coins":[{"item":{"symbol":"wif","name":"dogwifhat","market_cap_rank":40}},
		{"item":{"symbol":"","name":"blank"}},{"item":{"symbol":"jup","name":"Jupiter"}}]}`
	p := newTestCoinGecko(t, func(req *http.Request) {
		if !strings.HasSuffix(req.URL.Path, "/search/trending") {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
	}, body)

	coins, err := p.FetchTrending(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(coins) != 1 || coins[0].Symbol != "WIF" || coins[0].Rank != 40 {
		t.Fatalf("unexpected trending %+v", coins)
	}
}
