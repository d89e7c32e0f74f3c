package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/codeGROOVE-dev/retry"

	"github.com/EgorLis/kingdombot/internal/bot"
)

const intents = discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

type Options struct {
	// GuildID — регистрировать слэш-команды только в этой гильдии (быстрее
	// появляются). Пусто = глобально.
	GuildID string
	Logger  *slog.Logger

	OpenAttempts uint
	OpenDelay    time.Duration
}

// Host подключает бота к Discord через gateway.
type Host struct {
	session *discordgo.Session
	bot     *bot.KingdomBot
	opts    Options
	log     *slog.Logger

	ctx context.Context
}

func New(token string, b *bot.KingdomBot, opts Options) (*Host, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = intents

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OpenAttempts == 0 {
		opts.OpenAttempts = 5
	}
	if opts.OpenDelay <= 0 {
		opts.OpenDelay = time.Second
	}

	h := &Host{
		session: s,
		bot:     b,
		opts:    opts,
		log:     opts.Logger.With("component", "discord"),
		ctx:     context.Background(),
	}
	s.AddHandler(h.onReady)
	s.AddHandler(h.onMessageCreate)
	s.AddHandler(h.onInteractionCreate)
	return h, nil
}

// Run открывает gateway (с повторами) и держит его до отмены ctx.
func (h *Host) Run(ctx context.Context) error {
	h.ctx = ctx
	if err := h.open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := h.session.Close(); err != nil {
			h.log.Warn("close gateway", "err", err)
		}
	}()

	h.log.Info("gateway connected")
	<-ctx.Done()
	return nil
}

func (h *Host) open(ctx context.Context) error {
	err := retry.Do(
		h.session.Open,
		retry.Context(ctx),
		retry.Attempts(h.opts.OpenAttempts),
		retry.Delay(h.opts.OpenDelay),
		retry.MaxDelay(time.Minute),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			h.log.Warn("gateway open failed, retrying", "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (h *Host) onReady(s *discordgo.Session, r *discordgo.Ready) {
	h.log.Info("ready", "user", r.User.Username, "guilds", len(r.Guilds))

	cmds, err := s.ApplicationCommandBulkOverwrite(r.User.ID, h.opts.GuildID, SlashCommands())
	if err != nil {
		h.log.Error("sync slash commands", "err", err)
		return
	}
	h.log.Info("slash commands synced", "count", len(cmds), "guild", h.opts.GuildID)
}

func (h *Host) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	h.bot.HandleMessage(h.ctx, messageFrom(m.Message), newChannelReplier(s, m.ChannelID))
}

func (h *Host) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	cmd, ok := commandFrom(i.Interaction)
	if !ok {
		return
	}
	if err := h.bot.HandleCommand(h.ctx, cmd, newInteractionReplier(s, i.Interaction)); err != nil {
		h.log.Warn("interaction rejected", "command", cmd.Name, "err", err)
	}
}

// SlashCommands — определения для регистрации, по списку команд бота.
func SlashCommands() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(bot.Commands))
	for _, c := range bot.Commands {
		out = append(out, &discordgo.ApplicationCommand{
			Name:        c.Name,
			Description: c.Description,
		})
	}
	return out
}

func messageFrom(m *discordgo.Message) bot.Message {
	msg := bot.Message{ChannelID: m.ChannelID, Text: m.Content}
	if m.Author != nil {
		msg.UserID = m.Author.ID
		msg.IsBot = m.Author.Bot
	}
	return msg
}

// commandFrom достаёт слэш-команду; в гильдии автор в Member, в личке в User.
func commandFrom(i *discordgo.Interaction) (bot.Command, bool) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return bot.Command{}, false
	}
	var user *discordgo.User
	switch {
	case i.Member != nil && i.Member.User != nil:
		user = i.Member.User
	case i.User != nil:
		user = i.User
	default:
		return bot.Command{}, false
	}
	return bot.Command{
		Name:      i.ApplicationCommandData().Name,
		UserID:    user.ID,
		ChannelID: i.ChannelID,
	}, true
}
