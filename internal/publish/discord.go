package publish

import (
	"context"
	"time"

	"crypto-herald/internal/compose"

	"github.com/bwmarrin/discordgo"
)

// ChannelSender is the part of *discordgo.Session used for posting.
type ChannelSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordTransport struct {
	session ChannelSender
}

func NewDiscordTransport(session ChannelSender) *DiscordTransport {
	return &DiscordTransport{session: session}
}

func (t *DiscordTransport) Name() string { return "discord" }

func (t *DiscordTransport) Send(ctx context.Context, channelID string, msg compose.Message) error {
	_, err := t.session.ChannelMessageSendComplex(channelID, DiscordMessage(msg), discordgo.WithContext(ctx))
	return err
}

// DiscordMessage renders msg as an embed, with the mention as plain content.
func DiscordMessage(msg compose.Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: msg.Mention,
		Embeds:  []*discordgo.MessageEmbed{DiscordEmbed(msg)},
	}
}

func DiscordEmbed(msg compose.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		URL:         msg.URL,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if msg.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	if !msg.Timestamp.IsZero() {
		embed.Timestamp = msg.Timestamp.Format(time.RFC3339)
	}
	return embed
}
