package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"crypto-herald/internal/advisor"
	"crypto-herald/internal/bot"
	"crypto-herald/internal/cache"
	"crypto-herald/internal/compose"
	"crypto-herald/internal/config"
	"crypto-herald/internal/console"
	"crypto-herald/internal/domain"
	"crypto-herald/internal/handler"
	"crypto-herald/internal/job"
	"crypto-herald/internal/ledger"
	"crypto-herald/internal/llm"
	"crypto-herald/internal/mcpserver"
	"crypto-herald/internal/metrics"
	"crypto-herald/internal/narrative"
	"crypto-herald/internal/pipeline"
	"crypto-herald/internal/provider"
	"crypto-herald/internal/publish"
	"crypto-herald/internal/snapshot"
	"crypto-herald/internal/urgency"
	"crypto-herald/pkg/logging"
	"crypto-herald/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	_ "crypto-herald/docs"
)

const cycleTimeout = 10 * time.Minute

var version = "dev"

// destinations copied to the Telegram chat when a mirror is configured
var mirrored = []domain.Destination{
	domain.DestFlashNews,
	domain.DestNews,
	domain.DestSoloPrices,
	domain.DestSoloFearGreed,
	domain.DestSoloAlerts,
}

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	setupLoggingFunc       = logging.Setup
	initTracerFunc         = tracing.InitTracer
	connectRedisFunc       = cache.Connect
	newChatClientFunc      = llm.NewChatClient
	newDiscordFunc         = bot.NewDiscord
	newTelegramBotFunc     = bot.NewTelegramBot
	newRouterFunc          = gin.New
	startDiscordFunc       = func(ctx context.Context, d *bot.Discord) error { return d.Start(ctx) }
	runTelegramFunc        = bot.RunTelegram
	startConsoleFunc       = func(ctx context.Context, c *console.Server) error { return c.ListenAndServe(ctx) }
	startMCPFunc           = func(ctx context.Context, s *mcpserver.Server, addr, token string, perMin int) error { return s.ListenAndServe(ctx, addr, token, perMin) }
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	exitFunc               = os.Exit
)

// @title           Crypto Herald API
// @version         1.0
// @description     Keep-alive, status and manual cycle triggers for the crypto notification bot.

// @host      localhost:8080
// @BasePath  /
func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("crypto-herald stopped")
		exitFunc(1)
	}
}

func run() error {
	if err := loadEnvFunc(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := loadConfigFunc()
	setupLoggingFunc(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.Options{
		ServiceName: "crypto-herald",
		Version:     version,
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var redisClient cache.RedisClient
	client, err := connectRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without snapshot cache")
	} else if client != nil {
		redisClient = client
		defer client.Close()
	}
	store := cache.NewStore(redisClient, "herald:")

	opts := snapshot.DefaultOptions()
	opts.NewsFeeds = cfg.NewsFeeds
	opts.Subreddits = cfg.RedditSubs
	fetcher := snapshot.New(sources(cfg, tracer), opts, tracer, store, m)

	voices := buildVoices(cfg, tracer)
	narrator := narrative.New(tracer, voices.narrative, cfg.LLMTimeout, m)

	table, err := urgency.LoadTable(cfg.UrgencyTablePath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.UrgencyTablePath).Msg("keyword table unreadable, using built-in table")
		table = urgency.DefaultTable()
	}
	deltas := urgency.NewDeltaClassifier(
		urgency.Threshold{Metric: urgency.MetricFearGreed, Limit: cfg.AlertFearGreed, Mode: urgency.Points},
		urgency.Threshold{Metric: urgency.MetricBTCDominance, Limit: cfg.AlertDominance, Mode: urgency.Points},
		urgency.Threshold{Metric: urgency.MetricBTCChange1h, Limit: cfg.AlertBTC1h, Mode: urgency.Reported},
		urgency.Threshold{Metric: urgency.MetricETHChange1h, Limit: cfg.AlertETH1h, Mode: urgency.Reported},
	)
	composer := compose.New("L'Horizon Crypto • " + voices.name)

	discord, err := newDiscordFunc(cfg.DiscordToken, nil, nil)
	if err != nil {
		return err
	}
	publisher := publish.New(tracer, publish.NewDiscordTransport(discord.Session()), cfg.Channels, cfg.PublishInterval, m)

	tgBot, err := newTelegramBotFunc(cfg.TelegramBotToken)
	if err != nil {
		log.Warn().Err(err).Msg("telegram bot disabled")
		tgBot = nil
	}
	if tgBot != nil && cfg.TelegramChatID != 0 {
		publisher.Mirror(publish.NewTelegramTransport(tgBot), strconv.FormatInt(cfg.TelegramChatID, 10), mirrored...)
	}

	classifier := urgency.NewClassifier(table)
	pipe := pipeline.New(tracer, pipeline.Deps{
		Fetcher:    fetcher,
		Narrator:   narrator,
		Ledger:     ledger.NewDefault(cfg.NewsMinDelay),
		Classifier: classifier,
		Deltas:     deltas,
		Composer:   composer,
		Publisher:  publisher,
		Metrics:    m,
	}, pipeline.Config{Persona: voices.name, Location: cfg.Location})

	scheduler := job.NewScheduler(tracer, m)
	tasks, err := job.CycleTasks(pipe, job.Cadences{
		Location:      cfg.Location,
		DailyTimes:    cfg.DailyTimes,
		News:          cfg.NewsInterval,
		Prices:        cfg.PriceInterval,
		Opportunities: cfg.OpportunitiesInterval,
		Timeout:       cycleTimeout,
	})
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	for _, t := range tasks {
		scheduler.Add(t)
	}

	adv := advisor.NewService(tracer, voices.advisor, fetcher, advisor.NewQuota(cfg.AskDailyLimit, cfg.Location), m)
	commands := bot.NewCommands(tracer, pipe, adv, scheduler, composer, bot.CommandsConfig{
		Prefix:    cfg.CommandPrefix,
		VIPLounge: cfg.Channels[domain.DestVIPLounge],
		VIPRoles:  cfg.VIPRoles,
		AskLimit:  cfg.AskDailyLimit,
		Location:  cfg.Location,
	})
	var oracle *bot.Oracle
	if cfg.OracleEnabled {
		oracle = bot.NewOracle(advisor.NewOracle(tracer, voices.oracle, m), publisher, composer, cfg.Channels[domain.DestHelp], cfg.OraclePrefix)
	}
	discord.Attach(commands, oracle)
	discord.OnReady(cfg.StartupDelay, func(ctx context.Context) {
		if res, ran := pipe.Bootstrap(ctx); ran {
			log.Info().Str("cycle", res.ID).Int("published", res.Published).Int("errors", len(res.Errors)).Msg("startup sequence finished")
		}
	})

	r := newRouterFunc()
	r.Use(gin.Recovery(), otelgin.Middleware("crypto-herald"))
	handler.New(tracer, pipe, scheduler).RegisterRoutes(r, cfg.APIKey, metrics.Handler(reg))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return shutdownHTTPServerFunc(srv, shutdownCtx)
	})
	g.Go(func() error { return startDiscordFunc(gctx, discord) })
	g.Go(func() error {
		scheduler.Start(gctx, discord.Ready())
		return nil
	})
	if tgBot != nil {
		bot.RegisterTelegramCommands(tgBot, pipe)
		g.Go(func() error {
			runTelegramFunc(gctx, tgBot)
			return nil
		})
	}
	if cfg.SSHEnabled {
		c := console.New(console.Config{
			Addr:                fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort),
			HostKeyPath:         cfg.SSHHostKeyPath,
			AllowedFingerprints: cfg.SSHAllowedKeys,
			Location:            cfg.Location,
		}, pipe, scheduler)
		g.Go(func() error { return startConsoleFunc(gctx, c) })
	}
	if cfg.MCPEnabled {
		s := mcpserver.New(tracer, version, mcpserver.Deps{
			Market:     fetcher,
			Classifier: classifier,
			Status:     pipe,
			Tasks:      scheduler,
		})
		addr := fmt.Sprintf("%s:%d", cfg.MCPBind, cfg.MCPPort)
		g.Go(func() error { return startMCPFunc(gctx, s, addr, cfg.MCPAuthToken, cfg.MCPRateLimitPerMin) })
	}

	go func() {
		quit := make(chan os.Signal, 1)
		setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
		waitForSignalFunc(quit)
		log.Info().Msg("shutting down")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("crypto-herald exited")
	return nil
}

func sources(cfg *config.Config, tracer trace.Tracer) snapshot.Sources {
	src := snapshot.Sources{
		Prices:      provider.NewCoinGeckoProvider(tracer, cfg.HTTPTimeout),
		Sentiment:   provider.NewFearGreedProvider(tracer, cfg.HTTPTimeout),
		News:        provider.NewCryptoCompareProvider(tracer, cfg.HTTPTimeout),
		Feeds:       provider.NewRSSProvider(tracer, cfg.HTTPTimeout),
		Derivatives: provider.NewCoinglassProvider(tracer, cfg.CoinglassAPIKey, cfg.HTTPTimeout),
		Social:      provider.NewLunarCrushProvider(tracer, cfg.LunarCrushAPIKey, cfg.HTTPTimeout),
		Mentions:    provider.NewRedditProvider(tracer, cfg.HTTPTimeout),
		Yields:      provider.NewDefiLlamaProvider(tracer, cfg.HTTPTimeout),
	}
	if cfg.MetalPriceAPIKey != "" {
		src.Gold = provider.NewMetalsProvider(tracer, cfg.MetalPriceAPIKey, cfg.HTTPTimeout)
	}
	return src
}

type personaVoices struct {
	name      string
	narrative narrative.Voices
	advisor   advisor.Asker
	oracle    advisor.Asker
}

func voice(p llm.Persona, c *llm.Completer) narrative.Asker {
	if c == nil {
		return nil
	}
	return llm.Voice{Persona: p, Backend: c}
}

// buildVoices binds the configured persona to its backend. The Oracle always
// speaks through Gemini when a key is present and falls back to xAI.
func buildVoices(cfg *config.Config, tracer trace.Tracer) personaVoices {
	var xai, gemini *llm.Completer
	if cfg.XAIAPIKey != "" {
		xai = llm.NewCompleter(tracer, newChatClientFunc(cfg.XAIAPIKey, cfg.XAIBaseURL), cfg.XAIModel)
	}
	if cfg.GeminiAPIKey != "" {
		gemini = llm.NewCompleter(tracer, newChatClientFunc(cfg.GeminiAPIKey, cfg.GeminiURL), cfg.GeminiModel)
	}

	full, mini, backend := llm.Grok(), llm.GrokMini(), xai
	if cfg.Persona == "gemini" {
		full, mini, backend = llm.Gemini(), llm.GeminiMini(), gemini
	}

	pv := personaVoices{
		name: full.Name,
		narrative: narrative.Voices{
			Full: voice(full, backend),
			Mini: voice(mini, backend),
			Copy: voice(full, backend),
		},
	}
	if a := voice(full, backend); a != nil {
		pv.advisor = a
	}
	oracleBackend := gemini
	if oracleBackend == nil {
		oracleBackend = xai
	}
	if a := voice(llm.Oracle(), oracleBackend); a != nil {
		pv.oracle = a
	}
	return pv
}
