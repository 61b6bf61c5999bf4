package publish

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"crypto-herald/internal/compose"

	tele "gopkg.in/telebot.v3"
)

// TelegramSender is the part of *tele.Bot used for posting.
type TelegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type TelegramTransport struct {
	bot TelegramSender
}

func NewTelegramTransport(bot TelegramSender) *TelegramTransport {
	return &TelegramTransport{bot: bot}
}

func (t *TelegramTransport) Name() string { return "telegram" }

func (t *TelegramTransport) Send(ctx context.Context, chatID string, msg compose.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	_, err = t.bot.Send(tele.ChatID(id), TelegramText(msg), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	return err
}

var markdownLink = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
var markdownBold = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// TelegramText renders msg as Telegram HTML. Markdown links and bold used in
// embed fields are converted, everything else is escaped.
func TelegramText(msg compose.Message) string {
	var sb strings.Builder
	title := inline(msg.Title)
	if msg.URL != "" {
		title = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(msg.URL), title)
	}
	sb.WriteString("<b>" + title + "</b>\n")
	if msg.Description != "" {
		sb.WriteString(inline(msg.Description) + "\n")
	}
	for _, f := range msg.Fields {
		sb.WriteString("\n<b>" + inline(f.Name) + "</b>\n" + inline(f.Value) + "\n")
	}
	if msg.Footer != "" {
		sb.WriteString("\n<i>" + html.EscapeString(msg.Footer) + "</i>")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func inline(s string) string {
	s = html.EscapeString(s)
	s = markdownLink.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = markdownBold.ReplaceAllString(s, `<b>$1</b>`)
	return s
}
