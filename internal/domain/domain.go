package domain

import (
	"strings"
	"time"
)

// Destination is the logical name of a place messages are published to.
// The chat platform resolves it to a concrete channel id through config.
type Destination string

const (
	DestMarket        Destination = "marche"
	DestOpportunities Destination = "opportunities"
	DestSentiment     Destination = "sentiment"
	DestSetup         Destination = "setup"
	DestSoloAlerts    Destination = "solo_alertes"
	DestSoloFearGreed Destination = "solo_fg"
	DestSoloPrices    Destination = "solo_prix"
	DestWatchlist     Destination = "watchlist"
	DestFearGreed     Destination = "fg"
	DestFlashNews     Destination = "flash_news"
	DestNews          Destination = "actus_crypto"
	DestVIPLounge     Destination = "vip_lounge"
	DestAdminSocial   Destination = "admin_social"
	DestWelcome       Destination = "welcome"
	DestHelp          Destination = "entraide"
)

// AllDestinations lists every destination the config layer knows how to map.
var AllDestinations = []Destination{
	DestMarket, DestOpportunities, DestSentiment, DestSetup, DestSoloAlerts,
	DestSoloFearGreed, DestSoloPrices, DestWatchlist, DestFearGreed, DestFlashNews,
	DestNews, DestVIPLounge, DestAdminSocial, DestWelcome, DestHelp,
}

// EnvKey returns the environment variable holding the channel id.
func (d Destination) EnvKey() string {
	return "CHANNEL_" + strings.ToUpper(string(d))
}

type Urgency string

const (
	UrgencyRoutine Urgency = "ROUTINE"
	UrgencyUrgent  Urgency = "URGENT"
)

// Category drives color and icon selection for news and alerts.
type Category string

const (
	CategoryHack       Category = "hack"
	CategoryBullish    Category = "bullish"
	CategoryRegulatory Category = "regulatory"
	CategoryGeneric    Category = "generic"
)

// NewsItem identity is ID alone; payload drift between fetches does not make
// a new event.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Importance  float64   `json:"importance,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
}

// Classification is the result of running a NewsItem through the keyword table.
type Classification struct {
	Urgency  Urgency  `json:"urgency"`
	Category Category `json:"category"`
	Matched  string   `json:"matched,omitempty"`
}

// Pool names a dedup bucket in the ledger.
type Pool string

const (
	PoolDigest Pool = "digest"
	PoolAlert  Pool = "alert"
)
