package provider

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestCryptoCompareFetchNews(t *testing.T) {
	p := NewCryptoCompareProvider(testTracer(), time.Second)
	p.baseURL = "http://example"
	p.client = stubClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/data/v2/news/" || req.URL.Query().Get("lang") != "EN" {
			t.Fatalf("unexpected url %s", req.URL)
		}
		body := `{"Data":[
			{"id":"n1","title":"Exchange hacked for $200 million","body":"details","url":"https://x/n1","source":"wire","published_on":1700000000},
			{"id":12345,"title":"Numeric id","body":"b","url":"https://x/2","source":"wire","published_on":1700000100},
			{"id":"","title":"no id"},
			{"id":"n3","title":"third"}]}`
		return respond(http.StatusOK, body), nil
	})

	items, err := p.FetchNews(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "n1" || items[0].Title != "Exchange hacked for $200 million" || items[0].Source != "wire" {
		t.Fatalf("unexpected item %+v", items[0])
	}
	if items[1].ID != "12345" {
		t.Fatalf("expected numeric id to be stringified, got %q", items[1].ID)
	}
}

func TestRSSFetchFeed(t *testing.T) {
	p := NewRSSProvider(testTracer(), time.Second)
	p.client = stubClient(func(req *http.Request) (*http.Response, error) {
		xml := `<?xml version="1.0"?><rss version="2.0"><channel><title>Example Feed</title>
<item><title>ETH adoption rises</title><link>https://news.example/eth</link><description><![CDATA[<p>Ethereum growth continues</p>]]></description><guid>guid-1</guid><pubDate>Fri, 13 Feb 2026 10:00:00 +0000</pubDate></item>
<item><title>No guid</title><link>https://news.example/2</link></item>
<item><title>Nothing else</title><pubDate>Fri, 13 Feb 2026 11:00:00 +0000</pubDate></item>
</channel></rss>`
		return respond(http.StatusOK, xml), nil
	})

	items, err := p.FetchFeed(context.Background(), "https://news.example/rss", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != "guid-1" || items[0].Source != "Example Feed" || items[0].Body != "Ethereum growth continues" {
		t.Fatalf("unexpected item: %+v", items[0])
	}
	if items[1].ID != "https://news.example/2" {
		t.Fatalf("expected link fallback id, got %q", items[1].ID)
	}

	again, err := p.FetchFeed(context.Background(), "https://news.example/rss", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again[2].ID != items[2].ID || len(items[2].ID) != 40 {
		t.Fatalf("hashed ids must be stable across fetches: %q vs %q", items[2].ID, again[2].ID)
	}

	if _, err := p.FetchFeed(context.Background(), " ", 10); err == nil {
		t.Fatal("expected error for empty url")
	}
}
