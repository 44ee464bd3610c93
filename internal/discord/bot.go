// Package discord connects the notice poller and the command dispatcher to a
// Discord gateway session.
package discord

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cafenotice/noticebot/internal/command"
	"cafenotice/noticebot/logger"

	"github.com/bwmarrin/discordgo"
)

// Intents requested on the gateway. MessageContent is privileged and has to be
// enabled for the application.
const Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

// api is the subset of *discordgo.Session the bot calls
type api interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbedReply(channelID string, embed *discordgo.MessageEmbed, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Config holds the bot settings
type Config struct {
	Token       string
	ChannelID   string
	ChannelName string
}

// Bot is the Discord side of the notice bot
type Bot struct {
	cfg     Config
	session *discordgo.Session
	api     api
	log     *logger.Logger

	// Commands answers chat messages; nil disables commands
	Commands *command.Dispatcher

	// OnReady runs once, after the notice channel has been resolved
	OnReady   func(ctx context.Context)
	readyOnce sync.Once

	ctx context.Context

	mu        sync.RWMutex
	channelID string
}

// New creates a bot. The gateway is not opened until Open.
func New(cfg Config) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = Intents

	b := newBot(cfg, session)
	b.session = session
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessage)
	return b, nil
}

func newBot(cfg Config, a api) *Bot {
	return &Bot{
		cfg: cfg,
		api: a,
		log: logger.ForDiscord(),
		ctx: context.Background(),
	}
}

// Open connects to the gateway. ctx is handed to command handlers and OnReady.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx = ctx
	if err := b.session.Open(); err != nil {
		return err
	}
	b.log.Info().Msg("Discord session opened")
	return nil
}

// ChannelID returns the resolved notice channel, or "" when none was found
func (b *Bot) ChannelID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.channelID
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	guildIDs := make([]string, 0, len(r.Guilds))
	for _, g := range r.Guilds {
		guildIDs = append(guildIDs, g.ID)
	}

	user := ""
	if r.User != nil {
		user = r.User.Username
	}
	b.log.Info().Str("user", user).Int("guilds", len(guildIDs)).Msg("Discord ready")

	b.ready(guildIDs)
}

// ready resolves the notice channel and fires OnReady the first time
func (b *Bot) ready(guildIDs []string) {
	id := b.resolveChannel(guildIDs)

	b.mu.Lock()
	b.channelID = id
	b.mu.Unlock()

	if id == "" {
		b.log.Warn().Str("name", b.cfg.ChannelName).Msg("Notice channel not found; notices will not be posted")
	} else {
		b.log.Info().Str("channel", id).Msg("Notice channel resolved")
	}

	b.readyOnce.Do(func() {
		if b.OnReady != nil {
			go b.OnReady(b.ctx)
		}
	})
}

// resolveChannel looks up the fixed channel id first and falls back to a text
// channel with the configured name
func (b *Bot) resolveChannel(guildIDs []string) string {
	if b.cfg.ChannelID != "" {
		ch, err := b.api.Channel(b.cfg.ChannelID)
		if err == nil && ch != nil {
			return ch.ID
		}
		b.log.Warn().Err(err).Str("channel", b.cfg.ChannelID).Msg("Configured channel is not reachable")
	}

	if b.cfg.ChannelName == "" {
		return ""
	}

	for _, guildID := range guildIDs {
		channels, err := b.api.GuildChannels(guildID)
		if err != nil {
			b.log.Warn().Err(err).Str("guild", guildID).Msg("Failed to list guild channels")
			continue
		}
		if id := findTextChannel(channels, b.cfg.ChannelName); id != "" {
			return id
		}
	}
	return ""
}

func findTextChannel(channels []*discordgo.Channel, name string) string {
	for _, ch := range channels {
		if ch != nil && ch.Type == discordgo.ChannelTypeGuildText && ch.Name == name {
			return ch.ID
		}
	}
	return ""
}

func (b *Bot) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	b.handleMessage(m.Message)
}

func (b *Bot) handleMessage(m *discordgo.Message) {
	if b.Commands == nil {
		return
	}

	reply := b.Commands.Handle(b.ctx, m.ChannelID, m.Content)
	if reply == nil {
		return
	}

	var err error
	ref := m.Reference()
	if reply.Content != "" {
		_, err = b.api.ChannelMessageSendReply(m.ChannelID, reply.Content, ref)
	} else {
		_, err = b.api.ChannelMessageSendEmbedReply(m.ChannelID, ReplyEmbed(reply), ref)
	}
	if err != nil {
		b.log.Error().Err(err).Str("channel", m.ChannelID).Msg("Failed to send command reply")
	}
}

// ReplyEmbed converts a command reply into an embed
func ReplyEmbed(r *command.Reply) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		Color:       r.Color,
	}
}
