package publish

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace"
	tele "gopkg.in/telebot.v3"
)

type sent struct {
	channel string
	msg     compose.Message
}

type stubTransport struct {
	name  string
	err   error
	panic bool
	sent  []sent
}

func (s *stubTransport) Name() string { return s.name }

func (s *stubTransport) Send(ctx context.Context, channelID string, msg compose.Message) error {
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sent{channel: channelID, msg: msg})
	return nil
}

func newTestPublisher(t Transport, interval time.Duration) *Publisher {
	return New(trace.NewNoopTracerProvider().Tracer("test"), t, map[domain.Destination]string{
		domain.DestFlashNews: "111",
		domain.DestNews:      "222",
		domain.DestMarket:    "",
	}, interval, nil)
}

func TestPublishRoutesToChannel(t *testing.T) {
	tr := &stubTransport{name: "stub"}
	p := newTestPublisher(tr, 0)

	if !p.Publish(context.Background(), domain.DestFlashNews, compose.Message{Kind: compose.KindFlash, Title: "hack"}) {
		t.Fatal("expected publish to succeed")
	}
	if len(tr.sent) != 1 || tr.sent[0].channel != "111" {
		t.Fatalf("unexpected deliveries %+v", tr.sent)
	}
}

func TestPublishUnmappedDestinationFails(t *testing.T) {
	tr := &stubTransport{name: "stub"}
	p := newTestPublisher(tr, 0)

	for _, dest := range []domain.Destination{domain.DestMarket, domain.DestWatchlist} {
		if p.Publish(context.Background(), dest, compose.Message{Title: "x"}) {
			t.Fatalf("expected %s to fail", dest)
		}
	}
	if len(tr.sent) != 0 {
		t.Fatal("nothing should be sent")
	}
	if p.Has(domain.DestMarket) {
		t.Fatal("empty channel id should leave destination unmapped")
	}
}

func TestPublishTransportErrorIsSwallowed(t *testing.T) {
	p := newTestPublisher(&stubTransport{name: "stub", err: errors.New("403 Forbidden")}, 0)
	if p.Publish(context.Background(), domain.DestNews, compose.Message{Title: "x"}) {
		t.Fatal("expected failure")
	}
}

func TestPublishRecoversPanic(t *testing.T) {
	p := newTestPublisher(&stubTransport{name: "stub", panic: true}, 0)
	if p.Publish(context.Background(), domain.DestNews, compose.Message{Title: "x"}) {
		t.Fatal("expected failure after panic")
	}
}

func TestPublishPacesConsecutivePosts(t *testing.T) {
	tr := &stubTransport{name: "stub"}
	p := newTestPublisher(tr, 30*time.Millisecond)

	start := time.Now()
	p.Publish(context.Background(), domain.DestFlashNews, compose.Message{Title: "1"})
	p.Publish(context.Background(), domain.DestNews, compose.Message{Title: "2"})
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("second post should wait for the interval, took %v", elapsed)
	}
	if len(tr.sent) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(tr.sent))
	}
}

func TestPublishCancelledContext(t *testing.T) {
	tr := &stubTransport{name: "stub"}
	p := newTestPublisher(tr, time.Hour)
	p.Publish(context.Background(), domain.DestNews, compose.Message{Title: "1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if p.Publish(ctx, domain.DestNews, compose.Message{Title: "2"}) {
		t.Fatal("cancelled publish should fail")
	}
}

func TestPublishMirrorsSelectedDestinations(t *testing.T) {
	tr := &stubTransport{name: "discord"}
	mirrorTr := &stubTransport{name: "telegram"}
	p := newTestPublisher(tr, 0)
	p.Mirror(mirrorTr, "-100", domain.DestFlashNews)

	p.Publish(context.Background(), domain.DestFlashNews, compose.Message{Title: "flash"})
	p.Publish(context.Background(), domain.DestNews, compose.Message{Title: "digest"})

	if len(mirrorTr.sent) != 1 || mirrorTr.sent[0].channel != "-100" || mirrorTr.sent[0].msg.Title != "flash" {
		t.Fatalf("unexpected mirror deliveries %+v", mirrorTr.sent)
	}
}

func TestPublishMirrorFailureDoesNotFail(t *testing.T) {
	p := newTestPublisher(&stubTransport{name: "discord"}, 0)
	p.Mirror(&stubTransport{name: "telegram", err: errors.New("chat not found")}, "-100", domain.DestNews)
	if !p.Publish(context.Background(), domain.DestNews, compose.Message{Title: "x"}) {
		t.Fatal("primary delivery succeeded, publish should report true")
	}
}

func TestDestinationsInCanonicalOrder(t *testing.T) {
	p := newTestPublisher(&stubTransport{}, 0)
	got := p.Destinations()
	if len(got) != 2 {
		t.Fatalf("expected 2 destinations, got %v", got)
	}
}

type stubSession struct {
	channel string
	data    *discordgo.MessageSend
}

func (s *stubSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.channel = channelID
	s.data = data
	return &discordgo.Message{}, nil
}

func TestDiscordTransportRendersEmbed(t *testing.T) {
	session := &stubSession{}
	ts := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	msg := compose.Message{
		Mention:   "@here",
		Title:     "🚨 ALERTE ROUGE",
		Color:     compose.ColorRed,
		Footer:    "Flash",
		Timestamp: ts,
		Fields:    []compose.Field{{Name: "🧠 Analyse", Value: "Impact fort"}},
	}

	if err := NewDiscordTransport(session).Send(context.Background(), "42", msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.channel != "42" || session.data.Content != "@here" {
		t.Fatalf("unexpected send %+v", session)
	}
	embed := session.data.Embeds[0]
	if embed.Color != compose.ColorRed || embed.Footer.Text != "Flash" || len(embed.Fields) != 1 {
		t.Fatalf("unexpected embed %+v", embed)
	}
	if embed.Timestamp != "2026-03-09T08:00:00Z" {
		t.Fatalf("unexpected timestamp %q", embed.Timestamp)
	}
}

type stubTeleBot struct {
	to   tele.Recipient
	what interface{}
}

func (s *stubTeleBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	s.to = to
	s.what = what
	return &tele.Message{}, nil
}

func TestTelegramTransport(t *testing.T) {
	bot := &stubTeleBot{}
	msg := compose.Message{
		Title:  "BTC < 60k & falling",
		URL:    "https://example.com/a",
		Fields: []compose.Field{{Name: "🔗 Article", Value: "[Lire →](https://example.com/a)"}, {Name: "Indice", Value: "**18/100**"}},
		Footer: "📡 CoinDesk",
	}
	if err := NewTelegramTransport(bot).Send(context.Background(), "-1001", msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bot.to.Recipient() != "-1001" {
		t.Fatalf("unexpected recipient %q", bot.to.Recipient())
	}
	text := bot.what.(string)
	for _, want := range []string{
		`<a href="https://example.com/a">BTC &lt; 60k &amp; falling</a>`,
		`<a href="https://example.com/a">Lire →</a>`,
		`<b>18/100</b>`,
		`<i>📡 CoinDesk</i>`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in:\n%s", want, text)
		}
	}
}

func TestTelegramTransportRejectsBadChatID(t *testing.T) {
	if err := NewTelegramTransport(&stubTeleBot{}).Send(context.Background(), "general", compose.Message{}); err == nil {
		t.Fatal("expected error")
	}
}
