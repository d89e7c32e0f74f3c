package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EgorLis/kingdombot/internal/conversation"
	"github.com/EgorLis/kingdombot/internal/kingdom"
	"github.com/EgorLis/kingdombot/internal/metrics"
)

const (
	MsgPermissions = "❌ I don't have the required permissions to run this command."
	MsgFailure     = "❌ An error occurred while processing the command."

	DefaultPrefix        = "!"
	DefaultSweepInterval = time.Second
)

// ErrMissingPermissions — хост оборачивает им отказ платформы по правам.
var ErrMissingPermissions = errors.New("missing permissions")

// Replier доставляет ответ туда, откуда пришло событие.
type Replier interface {
	Reply(ctx context.Context, r conversation.Reply) error
}

// Message — входящее текстовое сообщение.
type Message struct {
	UserID    string
	ChannelID string
	Text      string
	// IsBot — автор бот (в том числе мы сами); такие сообщения игнорируются.
	IsBot bool
}

func (m Message) key() conversation.Key {
	return conversation.Key{UserID: m.UserID, ChannelID: m.ChannelID}
}

type Options struct {
	Prefix        string
	ReplyTimeout  time.Duration
	SweepInterval time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Now — часы, подменяются в тестах.
	Now func() time.Time
	// NewID — генератор id разговоров, по умолчанию uuid.
	NewID func() string
}

// active — живой разговор и канал, куда слать ответы (в том числе таймаут от свипера).
//
// send держится от Handle до конца отправки ответа, чтобы ответы одного разговора
// уходили в том же порядке, в каком пришли сообщения. Берётся всегда до bot.mu.
type active struct {
	session *conversation.Session
	replier Replier

	send sync.Mutex
}

type KingdomBot struct {
	resolver conversation.Resolver
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[conversation.Key]*active
}

func New(resolver conversation.Resolver, opts Options) *KingdomBot {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = conversation.DefaultTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &KingdomBot{
		resolver: resolver,
		opts:     opts,
		log:      opts.Logger.With("component", "bot"),
		metrics:  opts.Metrics,
		sessions: make(map[conversation.Key]*active),
	}
}

func (bot *KingdomBot) Prefix() string { return bot.opts.Prefix }

// Active — сколько разговоров сейчас ждут ответа.
func (bot *KingdomBot) Active() int {
	bot.mu.Lock()
	defer bot.mu.Unlock()
	return len(bot.sessions)
}

// HandleMessage разбирает входящее сообщение: текстовая команда с префиксом
// или очередной ответ в разговоре этого пользователя в этом канале.
// Возвращает false, если сообщение бота не касается.
func (bot *KingdomBot) HandleMessage(ctx context.Context, msg Message, rp Replier) bool {
	if msg.IsBot {
		return false
	}
	if cmd, ok := bot.parseCommand(msg); ok {
		if err := bot.HandleCommand(ctx, cmd, rp); err != nil {
			bot.log.Debug("text command rejected", "user", msg.UserID, "text", msg.Text, "err", err)
			return false
		}
		return true
	}

	key := msg.key()
	for {
		bot.mu.Lock()
		a, ok := bot.sessions[key]
		bot.mu.Unlock()
		if !ok {
			return false
		}

		a.send.Lock()
		bot.mu.Lock()
		if bot.sessions[key] != a {
			// пока ждали отправку, разговор закончился или его заменили
			bot.mu.Unlock()
			a.send.Unlock()
			continue
		}
		reply := a.session.Handle(msg.Text, bot.opts.Now())
		bot.finishIfTerminal(key, a)
		bot.mu.Unlock()

		bot.deliver(ctx, a.replier, reply, a.session.ID)
		a.send.Unlock()
		return true
	}
}

// startConversation заводит новый разговор; старый на том же ключе выбрасывается.
func (bot *KingdomBot) startConversation(ctx context.Context, key conversation.Key, rp Replier) {
	s := conversation.New(bot.opts.NewID(), key, bot.resolver, bot.opts.ReplyTimeout)
	a := &active{session: s, replier: rp}
	a.send.Lock()
	defer a.send.Unlock()

	bot.mu.Lock()
	if old, ok := bot.sessions[key]; ok {
		bot.log.Info("conversation replaced", "id", old.session.ID, "user", key.UserID, "channel", key.ChannelID)
		bot.metrics.Ended(metrics.OutcomeReplace)
	}
	bot.sessions[key] = a
	reply := s.Start(bot.opts.Now())
	bot.mu.Unlock()

	bot.metrics.Started()
	bot.log.Info("conversation started", "id", s.ID, "user", key.UserID, "channel", key.ChannelID)
	bot.deliver(ctx, rp, reply, s.ID)
}

// finishIfTerminal убирает законченный разговор из реестра. Вызывать под bot.mu.
func (bot *KingdomBot) finishIfTerminal(key conversation.Key, a *active) {
	s := a.session
	if !s.State().Terminal() {
		return
	}
	if cur, ok := bot.sessions[key]; ok && cur == a {
		delete(bot.sessions, key)
	}

	switch s.State() {
	case conversation.Done:
		bot.metrics.Ended(metrics.OutcomeDone)
		if res := s.Result(); res != nil {
			bot.metrics.Predicted(res.Countdown)
			bot.log.Info("prediction ready", "id", s.ID,
				"latest", res.Request.LatestKingdom, "target", res.Request.TargetKingdom,
				"likely", res.Likely.Format(time.RFC3339))
		}
	case conversation.Aborted:
		code := kingdom.CodeOf(s.Err())
		bot.metrics.Ended(string(code))
		bot.log.Info("conversation aborted", "id", s.ID, "code", code, "err", s.Err())
	}
}

// deliver отправляет ответ. Неудачная отправка не повторяется: пробуем
// один раз сообщить об ошибке и логируем.
func (bot *KingdomBot) deliver(ctx context.Context, rp Replier, r conversation.Reply, convID string) {
	if r.Text == "" && r.Summary == nil {
		return
	}
	err := rp.Reply(ctx, r)
	if err == nil {
		return
	}

	msg, reason := apology(err)
	bot.metrics.SendFailed(reason)
	bot.log.Error("send reply failed", "id", convID, "reason", reason, "err", err)

	if err := rp.Reply(ctx, conversation.Reply{Text: msg, Ephemeral: true}); err != nil {
		bot.log.Warn("send apology failed", "id", convID, "err", err)
	}
}

// apology подбирает текст извинения и метку для метрик.
func apology(err error) (string, string) {
	if errors.Is(err, ErrMissingPermissions) {
		return MsgPermissions, "permissions"
	}
	return MsgFailure, "other"
}
