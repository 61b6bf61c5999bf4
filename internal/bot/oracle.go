package bot

import (
	"context"
	"strings"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/domain"
)

type Replier interface {
	Reply(ctx context.Context, question string) string
}

type WelcomePublisher interface {
	Publish(ctx context.Context, dest domain.Destination, msg compose.Message) bool
}

// Incoming is a chat message as the Oracle sees it.
type Incoming struct {
	AuthorIsBot bool
	Mentioned   bool
	Direct      bool
	ChannelID   string
	Content     string
}

// Oracle answers mentions, direct messages and questions asked in the help
// channel, and greets new members.
type Oracle struct {
	replier     Replier
	publisher   WelcomePublisher
	composer    *compose.Composer
	helpChannel string
	prefix      string
	botID       string
}

func NewOracle(replier Replier, publisher WelcomePublisher, composer *compose.Composer, helpChannel, prefix string) *Oracle {
	return &Oracle{
		replier:     replier,
		publisher:   publisher,
		composer:    composer,
		helpChannel: helpChannel,
		prefix:      prefix,
	}
}

// SetBotID is called once the session knows its own user.
func (o *Oracle) SetBotID(id string) { o.botID = id }

// Question extracts what to answer from m, if anything.
func (o *Oracle) Question(m Incoming) (string, bool) {
	if m.AuthorIsBot {
		return "", false
	}
	content := strings.TrimSpace(m.Content)
	switch {
	case m.Mentioned:
		if o.botID != "" {
			content = strings.NewReplacer("<@"+o.botID+">", "", "<@!"+o.botID+">", "").Replace(content)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			content = "Bonjour !"
		}
		return content, true
	case m.Direct:
		return content, content != ""
	case o.helpChannel != "" && m.ChannelID == o.helpChannel:
		if o.prefix != "" && strings.HasPrefix(content, o.prefix) {
			content = strings.TrimSpace(strings.TrimPrefix(content, o.prefix))
			return content, content != ""
		}
		return content, strings.Contains(content, "?")
	}
	return "", false
}

// Answer returns the reply text, cut to the plain message limit.
func (o *Oracle) Answer(ctx context.Context, question string) string {
	return compose.Truncate(o.replier.Reply(ctx, question), compose.MaxContent)
}

// Welcome posts the onboarding message for a new member.
func (o *Oracle) Welcome(ctx context.Context, mention, guild string) bool {
	return o.publisher.Publish(ctx, domain.DestWelcome, o.composer.Welcome(mention, guild))
}
