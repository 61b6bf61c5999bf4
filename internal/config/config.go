package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"crypto-herald/internal/domain"

	"github.com/rs/zerolog/log"
)

var ErrMissingDiscordToken = errors.New("DISCORD_TOKEN is required")

type Config struct {
	DiscordToken     string
	TelegramBotToken string
	TelegramChatID   int64
	RedisURL         string
	APIKey           string

	Persona      string
	XAIAPIKey    string
	XAIModel     string
	XAIBaseURL   string
	GeminiAPIKey string
	GeminiModel  string
	GeminiURL    string
	LLMTimeout   time.Duration

	LunarCrushAPIKey string
	CoinglassAPIKey  string
	MetalPriceAPIKey string
	HTTPTimeout      time.Duration
	NewsFeeds        []string
	RedditSubs       []string

	Channels map[domain.Destination]string

	Timezone              string
	Location              *time.Location
	DailyTimes            []string
	NewsInterval          time.Duration
	PriceInterval         time.Duration
	OpportunitiesInterval time.Duration
	NewsMinDelay          time.Duration
	PublishInterval       time.Duration
	StartupDelay          time.Duration

	AlertBTC1h     float64
	AlertETH1h     float64
	AlertFearGreed float64
	AlertDominance float64

	UrgencyTablePath string

	CommandPrefix string
	OraclePrefix  string
	OracleEnabled bool
	VIPRoles      []string
	AskDailyLimit int

	HTTPPort int

	SSHEnabled     bool
	SSHPort        int
	SSHHostKeyPath string
	SSHAllowedKeys []string

	MCPEnabled         bool
	MCPBind            string
	MCPPort            int
	MCPAuthToken       string
	MCPRateLimitPerMin int

	TracingEnabled bool
	OTLPEndpoint   string
	LogLevel       string
	LogPretty      bool
}

var defaultNewsFeeds = []string{
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://cointelegraph.com/rss",
	"https://decrypt.co/feed",
}

var defaultRedditSubs = []string{"CryptoCurrency", "Bitcoin", "ethereum", "solana"}

var defaultVIPRoles = []string{"vip", "👑 vip", "chasseur de clés", "chasseurs de clés", "elite", "premium"}

func Load() *Config {
	cfg := &Config{
		DiscordToken:     strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		TelegramBotToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		APIKey:           os.Getenv("API_KEY"),
		XAIAPIKey:        os.Getenv("XAI_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		LunarCrushAPIKey: os.Getenv("LUNARCRUSH_API_KEY"),
		CoinglassAPIKey:  os.Getenv("COINGLASS_API_KEY"),
		MetalPriceAPIKey: os.Getenv("METALPRICE_API_KEY"),
		UrgencyTablePath: strings.TrimSpace(os.Getenv("URGENCY_TABLE")),
		SSHHostKeyPath:   strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH")),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
		OTLPEndpoint:     strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		LogLevel:         envString("LOG_LEVEL", "info"),
		LogPretty:        envBool("LOG_PRETTY", false),
		Channels:         make(map[domain.Destination]string),
	}

	if cfg.DiscordToken == "" {
		log.Warn().Msg("DISCORD_TOKEN not set, the bot cannot connect")
	}
	if cfg.TelegramBotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, telegram mirror disabled")
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		} else {
			log.Warn().Str("value", v).Msg("invalid TELEGRAM_CHAT_ID, telegram mirror disabled")
		}
	}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, snapshot cache disabled")
	}

	cfg.Persona = strings.ToLower(envString("PERSONA", "grok"))
	if cfg.Persona != "grok" && cfg.Persona != "gemini" {
		log.Warn().Str("persona", cfg.Persona).Msg("unsupported PERSONA, defaulting to grok")
		cfg.Persona = "grok"
	}
	cfg.XAIModel = envString("XAI_MODEL", "grok-3")
	cfg.XAIBaseURL = envString("XAI_BASE_URL", "https://api.x.ai/v1")
	cfg.GeminiModel = envString("GEMINI_MODEL", "gemini-2.0-flash")
	cfg.GeminiURL = envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	if cfg.XAIAPIKey == "" {
		log.Warn().Msg("XAI_API_KEY not set, grok narratives disabled")
	}
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, gemini narratives and oracle disabled")
	}
	cfg.LLMTimeout = envDuration("LLM_TIMEOUT", 30*time.Second)
	cfg.HTTPTimeout = envDuration("HTTP_TIMEOUT", 15*time.Second)

	for _, d := range domain.AllDestinations {
		if id := strings.TrimSpace(os.Getenv(d.EnvKey())); id != "" && id != "0" {
			cfg.Channels[d] = id
		}
	}

	cfg.Timezone = envString("TIMEZONE", "Europe/Paris")
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Str("timezone", cfg.Timezone).Err(err).Msg("unknown TIMEZONE, using UTC")
		loc = time.UTC
		cfg.Timezone = "UTC"
	}
	cfg.Location = loc

	cfg.DailyTimes = parseClockList(envString("DAILY_TIMES", "08:00,12:00,18:00"))
	if len(cfg.DailyTimes) == 0 {
		log.Warn().Msg("DAILY_TIMES has no valid entries, using 08:00,12:00,18:00")
		cfg.DailyTimes = []string{"08:00", "12:00", "18:00"}
	}
	cfg.NewsInterval = envDuration("NEWS_INTERVAL", 45*time.Minute)
	cfg.PriceInterval = envDuration("PRICE_INTERVAL", 15*time.Minute)
	cfg.OpportunitiesInterval = envDuration("OPPORTUNITIES_INTERVAL", 2*time.Hour)
	cfg.NewsMinDelay = envDuration("NEWS_MIN_DELAY", 60*time.Minute)
	cfg.PublishInterval = envDuration("PUBLISH_INTERVAL", 2*time.Second)
	cfg.StartupDelay = envDuration("STARTUP_DELAY", 5*time.Second)

	cfg.NewsFeeds = defaultNewsFeeds
	if v := strings.TrimSpace(os.Getenv("NEWS_FEEDS")); v != "" {
		cfg.NewsFeeds = splitList(v)
	}
	cfg.RedditSubs = defaultRedditSubs
	if v := strings.TrimSpace(os.Getenv("REDDIT_SUBS")); v != "" {
		cfg.RedditSubs = splitList(v)
	}

	cfg.AlertBTC1h = envFloat("ALERT_BTC_1H", 3.0)
	cfg.AlertETH1h = envFloat("ALERT_ETH_1H", 4.0)
	cfg.AlertFearGreed = envFloat("ALERT_FEAR_GREED", 10)
	cfg.AlertDominance = envFloat("ALERT_DOMINANCE", 1.5)

	cfg.CommandPrefix = envString("COMMAND_PREFIX", "!")
	cfg.OraclePrefix = envString("ORACLE_PREFIX", "?")
	cfg.OracleEnabled = envBool("ORACLE_ENABLED", true)
	cfg.VIPRoles = defaultVIPRoles
	if v := strings.TrimSpace(os.Getenv("VIP_ROLES")); v != "" {
		cfg.VIPRoles = splitList(v)
	}
	cfg.AskDailyLimit = envInt("ASK_DAILY_LIMIT", 5)

	cfg.HTTPPort = envInt("HTTP_PORT", 8080)

	cfg.SSHEnabled = envBool("SSH_ENABLED", false)
	cfg.SSHPort = envInt("SSH_PORT", 23234)
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/herald_ed25519"
	}
	cfg.SSHAllowedKeys = splitList(os.Getenv("SSH_ALLOWED_FINGERPRINTS"))
	if cfg.SSHEnabled && len(cfg.SSHAllowedKeys) == 0 {
		log.Warn().Msg("SSH_ENABLED without SSH_ALLOWED_FINGERPRINTS, console disabled")
		cfg.SSHEnabled = false
	}

	cfg.MCPEnabled = envBool("MCP_ENABLED", false)
	cfg.MCPBind = envString("MCP_BIND", "127.0.0.1")
	cfg.MCPPort = envInt("MCP_PORT", 8081)
	cfg.MCPRateLimitPerMin = envInt("MCP_RATE_LIMIT_PER_MIN", 60)
	if cfg.MCPEnabled && cfg.MCPAuthToken == "" && cfg.MCPBind != "127.0.0.1" && cfg.MCPBind != "localhost" {
		log.Warn().Str("bind", cfg.MCPBind).Msg("MCP server exposed without MCP_AUTH_TOKEN")
	}

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)

	return cfg
}

// Validate reports the only configuration problem that prevents startup.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return ErrMissingDiscordToken
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, using default")
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid positive integer, using default")
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid positive number, using default")
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseClockList(v string) []string {
	var out []string
	for _, part := range splitList(v) {
		if _, err := time.Parse("15:04", part); err != nil {
			log.Warn().Str("value", part).Msg("ignoring invalid DAILY_TIMES entry")
			continue
		}
		out = append(out, part)
	}
	return out
}
