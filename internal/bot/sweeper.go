package bot

import (
	"context"
	"time"

	"github.com/EgorLis/kingdombot/internal/conversation"
)

// Run — свипер таймаутов, живёт пока не отменят ctx.
func (bot *KingdomBot) Run(ctx context.Context) error {
	t := time.NewTicker(bot.opts.SweepInterval)
	defer t.Stop()

	bot.log.Info("sweeper started", "every", bot.opts.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			bot.log.Info("sweeper stopped")
			return ctx.Err()
		case <-t.C:
			bot.Sweep(ctx)
		}
	}
}

type due struct {
	key conversation.Key
	a   *active
}

// Sweep прерывает все разговоры с истёкшим дедлайном и шлёт им сообщение о таймауте.
// Возвращает число прерванных.
func (bot *KingdomBot) Sweep(ctx context.Context) int {
	now := bot.opts.Now()

	var overdue []due
	bot.mu.Lock()
	for key, a := range bot.sessions {
		if a.session.Expired(now) {
			overdue = append(overdue, due{key: key, a: a})
		}
	}
	bot.mu.Unlock()

	n := 0
	for _, d := range overdue {
		if bot.expire(ctx, d.key, d.a, now) {
			n++
		}
	}
	return n
}

// expire — таймаут одного разговора; false, если он успел закончиться или смениться.
func (bot *KingdomBot) expire(ctx context.Context, key conversation.Key, a *active, now time.Time) bool {
	a.send.Lock()
	defer a.send.Unlock()

	bot.mu.Lock()
	if bot.sessions[key] != a {
		bot.mu.Unlock()
		return false
	}
	reply, ok := a.session.Expire(now)
	if !ok {
		bot.mu.Unlock()
		return false
	}
	bot.finishIfTerminal(key, a)
	bot.mu.Unlock()

	bot.deliver(ctx, a.replier, reply, a.session.ID)
	return true
}
