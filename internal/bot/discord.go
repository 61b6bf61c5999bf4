package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crypto-herald/internal/compose"
	"crypto-herald/internal/publish"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// discordAPI is the part of *discordgo.Session the handlers call.
type discordAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

type Discord struct {
	session  *discordgo.Session
	api      discordAPI
	commands *Commands
	oracle   *Oracle

	bootstrap    func(ctx context.Context)
	startupDelay time.Duration

	roleName  func(guildID, roleID string) string
	guildName func(guildID string) string

	ctx       context.Context
	ready     chan struct{}
	readyOnce sync.Once
}

// NewDiscord creates the session without connecting. commands or oracle may
// be nil to run a bot with only one of the two roles.
func NewDiscord(token string, commands *Commands, oracle *Oracle) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = intents

	d := newDiscord(session, commands, oracle)
	d.session = session
	d.roleName = func(guildID, roleID string) string {
		role, err := session.State.Role(guildID, roleID)
		if err != nil {
			return ""
		}
		return role.Name
	}
	d.guildName = func(guildID string) string {
		g, err := session.State.Guild(guildID)
		if err != nil {
			return ""
		}
		return g.Name
	}
	return d, nil
}

func newDiscord(api discordAPI, commands *Commands, oracle *Oracle) *Discord {
	return &Discord{
		api:       api,
		commands:  commands,
		oracle:    oracle,
		roleName:  func(string, string) string { return "" },
		guildName: func(string) string { return "" },
		ctx:       context.Background(),
		ready:     make(chan struct{}),
	}
}

// Attach sets the command router and the Oracle once the pipeline that
// depends on this session's transport exists. Either may be nil.
func (d *Discord) Attach(commands *Commands, oracle *Oracle) {
	d.commands = commands
	d.oracle = oracle
}

// Session exposes the underlying session for the publisher transport.
func (d *Discord) Session() *discordgo.Session { return d.session }

// OnReady sets the one-shot startup sequence run after the first ready
// event, delayed by delay.
func (d *Discord) OnReady(delay time.Duration, fn func(ctx context.Context)) {
	d.startupDelay = delay
	d.bootstrap = fn
}

// Ready is closed by the first ready event.
func (d *Discord) Ready() <-chan struct{} { return d.ready }

// Start connects and blocks until ctx is cancelled.
func (d *Discord) Start(ctx context.Context) error {
	d.ctx = ctx
	d.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { d.handleReady(r.User) })
	d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { d.handleMessage(m.Message) })
	d.session.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberAdd) { d.handleMemberJoin(e.Member) })

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	log.Info().Str("component", "discord").Msg("connected")

	<-ctx.Done()
	if err := d.session.Close(); err != nil {
		log.Warn().Str("component", "discord").Err(err).Msg("close failed")
	}
	return nil
}

func (d *Discord) handleReady(user *discordgo.User) {
	if user != nil && d.oracle != nil {
		d.oracle.SetBotID(user.ID)
	}
	first := false
	d.readyOnce.Do(func() {
		first = true
		close(d.ready)
	})
	if user != nil {
		log.Info().Str("component", "discord").Str("user", user.Username).Bool("first", first).Msg("ready")
	}
	if !first || d.bootstrap == nil {
		return
	}
	go func() {
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(d.startupDelay):
		}
		d.bootstrap(d.ctx)
	}()
}

func (d *Discord) isAdmin(userID, channelID string) bool {
	perms, err := d.api.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func (d *Discord) handleMessage(m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}

	if d.commands != nil {
		if name, args, ok := ParseCommand(d.commands.Prefix(), m.Content); ok && d.commands.Known(name) {
			req := Request{
				UserID:    m.Author.ID,
				UserName:  displayName(m),
				ChannelID: m.ChannelID,
				Command:   name,
				Args:      args,
			}
			if m.GuildID != "" {
				req.IsAdmin = d.isAdmin(m.Author.ID, m.ChannelID)
				if m.Member != nil {
					for _, id := range m.Member.Roles {
						if n := d.roleName(m.GuildID, id); n != "" {
							req.Roles = append(req.Roles, n)
						}
					}
				}
			}
			d.commands.Handle(d.ctx, req, d.replyTo(m.ChannelID))
			return
		}
	}

	if d.oracle == nil {
		return
	}
	mentioned := false
	for _, u := range m.Mentions {
		if u != nil && u.ID == d.oracle.botID {
			mentioned = true
		}
	}
	question, ok := d.oracle.Question(Incoming{
		AuthorIsBot: m.Author.Bot,
		Mentioned:   mentioned,
		Direct:      m.GuildID == "",
		ChannelID:   m.ChannelID,
		Content:     m.Content,
	})
	if !ok {
		return
	}
	_ = d.api.ChannelTyping(m.ChannelID)
	answer := d.oracle.Answer(d.ctx, question)
	if _, err := d.api.ChannelMessageSendReply(m.ChannelID, answer, m.Reference(), discordgo.WithContext(d.ctx)); err != nil {
		log.Warn().Str("component", "oracle").Str("channel", m.ChannelID).Err(err).Msg("reply failed")
	}
}

func (d *Discord) replyTo(channelID string) Reply {
	return func(msg compose.Message) {
		if _, err := d.api.ChannelMessageSendComplex(channelID, publish.DiscordMessage(msg), discordgo.WithContext(d.ctx)); err != nil {
			log.Warn().Str("component", "discord").Str("channel", channelID).Err(err).Msg("command reply failed")
		}
	}
}

func (d *Discord) handleMemberJoin(member *discordgo.Member) {
	if d.oracle == nil || member == nil || member.User == nil || member.User.Bot {
		return
	}
	guild := d.guildName(member.GuildID)
	if guild == "" {
		guild = "L'Horizon Crypto"
	}
	if !d.oracle.Welcome(d.ctx, member.User.Mention(), guild) {
		log.Warn().Str("component", "oracle").Str("user", member.User.Username).Msg("welcome not delivered")
	}
}
