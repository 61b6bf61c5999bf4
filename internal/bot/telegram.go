package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/pipeline"
	"crypto-herald/internal/publish"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// TelegramSources is what the Telegram commands read.
type TelegramSources interface {
	Prices(ctx context.Context) (compose.Message, bool)
	Status() pipeline.Status
}

// TelegramRouter is the part of *tele.Bot used to register commands.
type TelegramRouter interface {
	Handle(endpoint interface{}, h tele.HandlerFunc, m ...tele.MiddlewareFunc)
}

// NewTelegramBot returns nil when token is empty.
func NewTelegramBot(token string) (*tele.Bot, error) {
	if token == "" {
		log.Warn().Str("component", "telegram").Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return b, nil
}

// RegisterTelegramCommands wires /ping, /prix and /status.
func RegisterTelegramCommands(r TelegramRouter, src TelegramSources) {
	r.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	r.Handle("/prix", func(c tele.Context) error {
		return c.Send(pricesText(context.Background(), src), tele.ModeHTML)
	})
	r.Handle("/status", func(c tele.Context) error {
		return c.Send(statusText(src.Status()), tele.ModeHTML)
	})
}

func pricesText(ctx context.Context, src TelegramSources) string {
	msg, ok := src.Prices(ctx)
	if !ok {
		return "Prix indisponibles pour le moment."
	}
	return publish.TelegramText(msg)
}

func statusText(st pipeline.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", st.Persona)
	if st.StartupDone {
		sb.WriteString("Démarrage : effectué\n")
	} else {
		sb.WriteString("Démarrage : en attente\n")
	}
	for _, r := range st.Cycles {
		fmt.Fprintf(&sb, "%s : %d publiés, %d erreurs\n", r.Kind, r.Published, len(r.Errors))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RunTelegram polls until ctx is cancelled.
func RunTelegram(ctx context.Context, b *tele.Bot) {
	if b == nil {
		return
	}
	go b.Start()
	log.Info().Str("component", "telegram").Msg("telegram bot started")
	<-ctx.Done()
	b.Stop()
}
