package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/kingdombot/internal/conversation"
	"github.com/EgorLis/kingdombot/internal/metrics"
	"github.com/EgorLis/kingdombot/internal/tzresolve"
)

type fakeReplier struct {
	mu      sync.Mutex
	replies []conversation.Reply
	// failures — ошибки для первых отправок по порядку
	failures []error
}

func (f *fakeReplier) Reply(_ context.Context, r conversation.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return err
		}
	}
	f.replies = append(f.replies, r)
	return nil
}

func (f *fakeReplier) last() conversation.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return conversation.Reply{}
	}
	return f.replies[len(f.replies)-1]
}

func (f *fakeReplier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

// gatedReplier держит первую отправку, пока не закроют release.
type gatedReplier struct {
	fakeReplier
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedReplier() *gatedReplier {
	return &gatedReplier{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedReplier) Reply(ctx context.Context, r conversation.Reply) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.fakeReplier.Reply(ctx, r)
}

func (f *fakeReplier) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.replies))
	for _, r := range f.replies {
		out = append(out, r.Text)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBot(t *testing.T) (*KingdomBot, *clock, *metrics.Metrics) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := metrics.New(nil)
	n := 0
	b := New(tzresolve.New(tzresolve.DefaultTable(), nil), Options{
		Metrics: m,
		Now:     clk.Now,
		NewID: func() string {
			n++
			return fmt.Sprintf("conv-%d", n)
		},
	})
	return b, clk, m
}

func msg(user, channel, text string) Message {
	return Message{UserID: user, ChannelID: channel, Text: text}
}

func TestHandleCommand_Ping(t *testing.T) {
	b, _, m := newTestBot(t)
	rp := &fakeReplier{}

	require.NoError(t, b.HandleCommand(context.Background(), Command{Name: "PING"}, rp))
	assert.Equal(t, MsgPong, rp.last().Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues(CmdPing)))
}

func TestHandleCommand_Help(t *testing.T) {
	b, _, _ := newTestBot(t)
	rp := &fakeReplier{}

	require.NoError(t, b.HandleCommand(context.Background(), Command{Name: CmdHelp}, rp))
	card := rp.last().Summary
	require.NotNil(t, card)
	assert.Equal(t, "🤖 Bot Commands", card.Title)
	assert.Equal(t, "Kingdom prediction bot is ready to help!", card.Footer)
	assert.Equal(t, conversation.ColorBlue, card.Color)
	assert.Nil(t, card.Result)
	require.Len(t, card.Fields, 3)
	assert.Equal(t, "🏓 /ping", card.Fields[0].Name)
	assert.Equal(t, "🏰 /kingdom", card.Fields[1].Name)
	assert.Equal(t, "❓ /help", card.Fields[2].Name)
}

func TestHandleCommand_Unknown(t *testing.T) {
	b, _, _ := newTestBot(t)
	rp := &fakeReplier{}

	err := b.HandleCommand(context.Background(), Command{Name: "alarm"}, rp)
	require.Error(t, err)
	assert.Zero(t, rp.count())
}

func TestHandleMessage_Conversation(t *testing.T) {
	b, clk, m := newTestBot(t)
	ctx := context.Background()
	rp := &fakeReplier{}

	require.True(t, b.HandleMessage(ctx, msg("u1", "c1", "!kingdom"), rp))
	assert.Equal(t, conversation.PromptCountry, rp.last().Text)
	assert.Equal(t, 1, b.Active())

	steps := []struct{ in, want string }{
		{"USA", conversation.PromptLatest},
		{"100", conversation.PromptTarget},
		{"103", conversation.PromptElapsed},
	}
	for _, s := range steps {
		clk.Advance(5 * time.Second)
		require.True(t, b.HandleMessage(ctx, msg("u1", "c1", s.in), rp))
		assert.Equal(t, s.want, rp.last().Text)
	}

	require.True(t, b.HandleMessage(ctx, msg("u1", "c1", "4h"), rp))
	sum := rp.last().Summary
	require.NotNil(t, sum)
	assert.Equal(t, "🏰 Kingdom 103 Opening Prediction", sum.Title)
	assert.Equal(t, conversation.ColorGold, sum.Color)
	assert.Equal(t, 0, b.Active())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversationsEnded.WithLabelValues(metrics.OutcomeDone)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveConversations))

	// разговор закончен, дальше бот молчит
	assert.False(t, b.HandleMessage(ctx, msg("u1", "c1", "hello"), rp))
}

func TestHandleMessage_IsolatedByUserAndChannel(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()
	rp := &fakeReplier{}

	require.True(t, b.HandleMessage(ctx, msg("u1", "c1", "!kingdom"), rp))
	before := rp.count()

	assert.False(t, b.HandleMessage(ctx, msg("u2", "c1", "USA"), rp), "other user")
	assert.False(t, b.HandleMessage(ctx, msg("u1", "c2", "USA"), rp), "other channel")
	assert.False(t, b.HandleMessage(ctx, Message{UserID: "u1", ChannelID: "c1", Text: "USA", IsBot: true}, rp), "bot author")
	assert.Equal(t, before, rp.count())
	assert.Equal(t, 1, b.Active())
}

func TestHandleMessage_PlainTextWithoutConversation(t *testing.T) {
	b, _, _ := newTestBot(t)
	rp := &fakeReplier{}

	assert.False(t, b.HandleMessage(context.Background(), msg("u1", "c1", "hi there"), rp))
	assert.False(t, b.HandleMessage(context.Background(), msg("u1", "c1", "!unknown"), rp))
	assert.Zero(t, rp.count())
}

func TestHandleMessage_RestartReplaces(t *testing.T) {
	b, _, m := newTestBot(t)
	ctx := context.Background()
	rp := &fakeReplier{}

	b.HandleMessage(ctx, msg("u1", "c1", "!kingdom"), rp)
	b.HandleMessage(ctx, msg("u1", "c1", "germany"), rp)
	require.True(t, b.HandleMessage(ctx, msg("u1", "c1", "!kingdom"), rp))

	assert.Equal(t, conversation.PromptCountry, rp.last().Text)
	assert.Equal(t, 1, b.Active())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversationsEnded.WithLabelValues(metrics.OutcomeReplace)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConversations))

	// новый разговор снова ждёт страну
	b.HandleMessage(ctx, msg("u1", "c1", "Atlantis"), rp)
	assert.Equal(t, conversation.MsgInvalidCountry, rp.last().Text)
	assert.Equal(t, 0, b.Active())
}

func TestHandleMessage_InvalidAnswerAborts(t *testing.T) {
	b, _, m := newTestBot(t)
	ctx := context.Background()
	rp := &fakeReplier{}

	b.HandleMessage(ctx, msg("u1", "c1", "!kingdom"), rp)
	b.HandleMessage(ctx, msg("u1", "c1", "uk"), rp)
	b.HandleMessage(ctx, msg("u1", "c1", "100"), rp)
	b.HandleMessage(ctx, msg("u1", "c1", "50"), rp)

	assert.Equal(t, conversation.MsgInvalidRange(50, 100), rp.last().Text)
	assert.Equal(t, 0, b.Active())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversationsEnded.WithLabelValues("invalid_range")))
}

func TestHandleMessage_RepliesKeepOrder(t *testing.T) {
	b, _, _ := newTestBot(t)
	rp := newGatedReplier()
	ctx := context.Background()

	started := make(chan struct{})
	go func() {
		defer close(started)
		b.HandleMessage(ctx, msg("u1", "c1", "!kingdom"), rp)
	}()
	<-rp.entered // первый вопрос застрял в отправке

	answered := make(chan bool)
	go func() { answered <- b.HandleMessage(ctx, msg("u1", "c1", "USA"), rp) }()

	assert.Never(t, func() bool { return len(rp.texts()) > 0 }, 100*time.Millisecond, 10*time.Millisecond,
		"answer must wait for the previous prompt")

	close(rp.release)
	<-started
	assert.True(t, <-answered)
	assert.Equal(t, []string{conversation.PromptCountry, conversation.PromptLatest}, rp.texts())
}

func TestSweep_ExpiresOnlyOverdue(t *testing.T) {
	b, clk, m := newTestBot(t)
	ctx := context.Background()
	slow, fast := &fakeReplier{}, &fakeReplier{}

	b.HandleMessage(ctx, msg("slow", "c1", "!kingdom"), slow)
	clk.Advance(30 * time.Second)
	b.HandleMessage(ctx, msg("fast", "c1", "!kingdom"), fast)

	assert.Zero(t, b.Sweep(ctx))

	clk.Advance(30 * time.Second)
	assert.Equal(t, 1, b.Sweep(ctx))
	assert.Equal(t, conversation.MsgTimeout, slow.last().Text)
	assert.Equal(t, conversation.PromptCountry, fast.last().Text)
	assert.Equal(t, 1, b.Active())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversationsEnded.WithLabelValues("timeout")))

	// после таймаута ответ уже не принимается
	assert.False(t, b.HandleMessage(ctx, msg("slow", "c1", "USA"), slow))
}

func TestRun_StopsOnCancel(t *testing.T) {
	b := New(tzresolve.New(tzresolve.DefaultTable(), nil), Options{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestDeliver_Apologies(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   string
		reason string
	}{
		{"missing permissions", fmt.Errorf("send: %w", ErrMissingPermissions), MsgPermissions, "permissions"},
		{"anything else", errors.New("boom"), MsgFailure, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, m := newTestBot(t)
			rp := &fakeReplier{failures: []error{tt.err}}

			require.NoError(t, b.HandleCommand(context.Background(), Command{Name: CmdPing}, rp))
			require.Equal(t, 1, rp.count())
			assert.Equal(t, tt.want, rp.last().Text)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.SendFailures.WithLabelValues(tt.reason)))
		})
	}
}

func TestDeliver_NoRetryWhenApologyFails(t *testing.T) {
	b, _, _ := newTestBot(t)
	rp := &fakeReplier{failures: []error{errors.New("down"), errors.New("still down")}}

	require.NoError(t, b.HandleCommand(context.Background(), Command{Name: CmdPing}, rp))
	assert.Zero(t, rp.count())
}

func TestParseCommand_IgnoresTrailingWords(t *testing.T) {
	b := New(tzresolve.New(tzresolve.DefaultTable(), nil), Options{})

	cmd, ok := b.parseCommand(msg("u", "c", "!kingdom   please now"))
	require.True(t, ok)
	assert.Equal(t, CmdKingdom, cmd.Name)

	_, ok = b.parseCommand(msg("u", "c", "! ping x"))
	assert.True(t, ok)

	for _, text := range []string{"!", "!   ", "!kingdoms", "kingdom"} {
		_, ok := b.parseCommand(msg("u", "c", text))
		assert.False(t, ok, text)
	}
}

func TestParseCommand_CustomPrefix(t *testing.T) {
	b := New(tzresolve.New(tzresolve.DefaultTable(), nil), Options{Prefix: "?"})

	cmd, ok := b.parseCommand(msg("u", "c", "  ?Kingdom  "))
	require.True(t, ok)
	assert.Equal(t, Command{Name: CmdKingdom, UserID: "u", ChannelID: "c"}, cmd)

	_, ok = b.parseCommand(msg("u", "c", "!kingdom"))
	assert.False(t, ok)
}
