package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"crypto-herald/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	redditBaseURL     = "https://www.reddit.com"
	defaultRedditUA   = "crypto-herald/1.0"
	defaultRedditSize = 50
)

// RedditProvider counts coin mentions in hot posts. It stands in for the
// social metrics source when no LunarCrush key is configured.
type RedditProvider struct {
	source
}

func NewRedditProvider(tracer trace.Tracer, timeout time.Duration) *RedditProvider {
	p := &RedditProvider{source: newSource("reddit", redditBaseURL, tracer, timeout)}
	p.headers["User-Agent"] = defaultRedditUA
	return p
}

type redditPost struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Score       float64 `json:"score"`
	NumComments float64 `json:"num_comments"`
}

func (p *RedditProvider) fetchHot(ctx context.Context, subreddit string, limit int) ([]redditPost, error) {
	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		return nil, fmt.Errorf("subreddit is required")
	}
	if limit <= 0 {
		limit = defaultRedditSize
	}
	if limit > 100 {
		limit = 100
	}

	var payload struct {
		Data struct {
			Children []struct {
				Data redditPost `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	u := p.url(fmt.Sprintf("/r/%s/hot.json?limit=%d", url.PathEscape(subreddit), limit))
	if err := p.getJSON(ctx, "reddit.fetch-hot", u, &payload); err != nil {
		return nil, err
	}
	posts := make([]redditPost, 0, len(payload.Data.Children))
	for _, c := range payload.Data.Children {
		if strings.TrimSpace(c.Data.ID) == "" || strings.TrimSpace(c.Data.Title) == "" {
			continue
		}
		posts = append(posts, c.Data)
	}
	return posts, nil
}

// FetchMentions tallies tracked symbols across the hot posts of the given
// subreddits. Influence is the summed post score plus comments. Results are
// sorted by mentions, highest first.
func (p *RedditProvider) FetchMentions(ctx context.Context, subreddits []string, limit int) ([]domain.SocialMetric, error) {
	tally := make(map[string]*domain.SocialMetric)
	var lastErr error
	fetched := 0
	for _, sub := range subreddits {
		posts, err := p.fetchHot(ctx, sub, limit)
		if err != nil {
			lastErr = err
			continue
		}
		fetched++
		hint := subredditSymbolHint[strings.ToLower(sub)]
		for _, post := range posts {
			syms := ExtractSymbols(post.Title + " " + post.SelfText)
			if len(syms) == 0 && hint != "" {
				syms = []string{hint}
			}
			for _, sym := range syms {
				m, ok := tally[sym]
				if !ok {
					m = &domain.SocialMetric{Symbol: sym}
					tally[sym] = m
				}
				m.Mentions++
				m.Influence += post.Score + post.NumComments
			}
		}
	}
	if fetched == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no subreddits given")
		}
		return nil, fmt.Errorf("fetch mentions: %w", lastErr)
	}

	out := make([]domain.SocialMetric, 0, len(tally))
	for _, m := range tally {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}
