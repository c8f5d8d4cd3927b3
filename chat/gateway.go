package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/SoulShadow8326/intrasudo25/discordbot/relay"
)

// Intents requested when connecting.
const Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

// MessageCacheSize is how many messages per channel the state keeps, so that delete
// events carry the deleted message's author.
const MessageCacheSize = 1000

const (
	sentCapacity = 10000
	sentTTL      = 24 * time.Hour
)

// Session is the subset of *discordgo.Session used by Gateway.
type Session interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// Gateway adapts a discordgo session to relay.Platform.
type Gateway struct {
	sess   Session
	state  *discordgo.State // optional cache consulted before REST lookups
	selfID atomic.Value     // string, the bot's user id once Ready arrives
	sent   *expirable.LRU[string, struct{}]
	logger *slog.Logger
}

func NewGateway(sess Session, state *discordgo.State) *Gateway {
	return &Gateway{
		sess:   sess,
		state:  state,
		sent:   expirable.NewLRU[string, struct{}](sentCapacity, nil, sentTTL),
		logger: slog.Default().With(slog.String("component", "discord")),
	}
}

// PrepareSession sets the gateway intents and turns on the state message cache.
func PrepareSession(s *discordgo.Session) {
	s.Identify.Intents = Intents
	if s.State != nil && s.State.MaxMessageCount == 0 {
		s.State.MaxMessageCount = MessageCacheSize
	}
}

// SetSelfID records the bot's own user id so its messages are recognized.
func (g *Gateway) SetSelfID(id string) { g.selfID.Store(id) }

func (g *Gateway) isSelf(userID string) bool {
	self, _ := g.selfID.Load().(string)
	return self != "" && userID == self
}

func (g *Gateway) TextChannels(ctx context.Context, guildID string) ([]relay.Channel, error) {
	chs, err := g.sess.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("guild channels %s: %w", guildID, err)
	}
	out := make([]relay.Channel, 0, len(chs))
	for _, c := range chs {
		if c == nil || c.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		out = append(out, relay.Channel{ID: c.ID, Name: c.Name, GuildID: c.GuildID})
	}
	return out, nil
}

func (g *Gateway) CreateTextChannel(ctx context.Context, guildID, name string) (relay.Channel, error) {
	c, err := g.sess.GuildChannelCreate(guildID, name, discordgo.ChannelTypeGuildText, discordgo.WithContext(ctx))
	if err != nil {
		return relay.Channel{}, fmt.Errorf("create channel %s: %w", name, err)
	}
	return relay.Channel{ID: c.ID, Name: c.Name, GuildID: c.GuildID}, nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := g.sess.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

func (g *Gateway) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	m, err := g.sess.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	g.sent.Add(m.ID, struct{}{})
	return m.ID, nil
}

func (g *Gateway) FetchMessage(ctx context.Context, channelID, messageID string) (relay.Message, error) {
	m, err := g.sess.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return relay.Message{}, err
	}
	return g.toMessage(ctx, m), nil
}

func (g *Gateway) Reply(ctx context.Context, channelID, messageID, content string) error {
	ref := &discordgo.MessageReference{MessageID: messageID, ChannelID: channelID}
	m, err := g.sess.ChannelMessageSendReply(channelID, content, ref, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	g.sent.Add(m.ID, struct{}{})
	return nil
}

// IsAdministrator reports whether the user holds Administrator in the guild. Guild
// owners and administrators resolve to every permission bit.
func (g *Gateway) IsAdministrator(ctx context.Context, guildID, channelID, userID string) (bool, error) {
	perms, err := g.sess.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("permissions for %s in guild %s: %w", userID, guildID, err)
	}
	return perms&discordgo.PermissionAdministrator != 0, nil
}

// channelName resolves a channel id, preferring the state cache.
func (g *Gateway) channelName(ctx context.Context, channelID string) string {
	if g.state != nil {
		if c, err := g.state.Channel(channelID); err == nil {
			return c.Name
		}
	}
	c, err := g.sess.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		g.logger.Debug("channel lookup failed", slog.String("channel", channelID), slog.Any("err", err))
		return ""
	}
	return c.Name
}

// displayName picks the guild nickname, then the global display name, then the username.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author == nil {
		return ""
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func (g *Gateway) toMessage(ctx context.Context, m *discordgo.Message) relay.Message {
	out := relay.Message{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
		ChannelName: g.channelName(ctx, m.ChannelID),
		Content:     m.Content,
		AuthorName:  displayName(m),
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.FromSelf = g.isSelf(m.Author.ID)
	}
	if m.MessageReference != nil {
		out.ReplyToID = m.MessageReference.MessageID
	}
	return out
}

// Run connects s to Discord and routes its events to svc until ctx ends. Each guild
// reported on Ready, and each guild joined later, is reconciled once with the given
// timeout.
func Run(ctx context.Context, s *discordgo.Session, g *Gateway, svc *relay.Service, refreshTimeout time.Duration) error {
	PrepareSession(s)

	refresh := func(guildID string) {
		rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		if _, err := svc.RefreshGuild(rctx, guildID); err != nil && !errors.Is(err, relay.ErrLoopStopped) {
			g.logger.Error("initial channel refresh failed", slog.String("guild", guildID), slog.Any("err", err))
		}
	}

	removers := []func(){
		s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			g.SetSelfID(r.User.ID)
			g.logger.Info("discord ready", slog.String("user", r.User.Username), slog.Int("guilds", len(r.Guilds)))
			for _, guild := range r.Guilds {
				svc.AddGuild(guild.ID)
				refresh(guild.ID)
			}
		}),
		s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildCreate) {
			if svc.AddGuild(e.ID) {
				g.logger.Info("joined guild", slog.String("guild", e.ID), slog.String("name", e.Name))
				refresh(e.ID)
			}
		}),
		s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildDelete) {
			svc.RemoveGuild(e.ID)
			g.logger.Info("left guild", slog.String("guild", e.ID))
		}),
		s.AddHandler(func(s *discordgo.Session, e *discordgo.MessageCreate) {
			if ctx.Err() != nil || e.Message == nil {
				return
			}
			svc.HandleMessageCreate(ctx, g.toMessage(ctx, e.Message))
		}),
		s.AddHandler(func(s *discordgo.Session, e *discordgo.MessageDelete) {
			if ctx.Err() != nil || e.Message == nil {
				return
			}
			svc.HandleMessageDelete(ctx, g.deletedMessage(ctx, e))
		}),
	}
	defer func() {
		for _, rm := range removers {
			rm()
		}
	}()

	if err := s.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	<-ctx.Done()
	if err := s.Close(); err != nil {
		g.logger.Warn("close discord session", slog.Any("err", err))
	}
	return nil
}

// deletedMessage builds the view of a deleted message. Author details come from the
// state cache when the message was still cached; messages this gateway sent are
// recognized as the bot's own either way.
func (g *Gateway) deletedMessage(ctx context.Context, e *discordgo.MessageDelete) relay.Message {
	m := relay.Message{ID: e.ID, ChannelID: e.ChannelID, GuildID: e.GuildID, ChannelName: g.channelName(ctx, e.ChannelID)}
	if before := e.BeforeDelete; before != nil && before.Author != nil {
		m.AuthorID = before.Author.ID
		m.FromSelf = g.isSelf(before.Author.ID)
		m.Content = before.Content
	}
	if g.sent.Contains(e.ID) {
		m.FromSelf = true
	}
	return m
}
