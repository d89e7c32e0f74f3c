package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/kingdombot/internal/bot"
	"github.com/EgorLis/kingdombot/internal/conversation"
	"github.com/EgorLis/kingdombot/internal/kingdom"
	"github.com/EgorLis/kingdombot/internal/tzresolve"
)

func TestEncodeDecode_Summary(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	res, err := kingdom.Predict(kingdom.Request{Location: loc, LatestKingdom: 100, TargetKingdom: 101},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	sum := conversation.NewSummary(res)
	data, err := Encode(replyFrame("u1", "c1", conversation.Reply{Summary: sum}))
	require.NoError(t, err)

	f, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeSummary, f.Type)
	assert.Equal(t, "u1", f.UserID)
	assert.Equal(t, "c1", f.ChannelID)
	require.NotNil(t, f.Summary)
	assert.Equal(t, sum.Title, f.Summary.Title)
	assert.Equal(t, sum.Footer, f.Summary.Footer)
	assert.Equal(t, conversation.ColorGold, f.Summary.Color)
	assert.Equal(t, sum.Fields, f.Summary.Fields)
}

func TestSummaryMap_Prediction(t *testing.T) {
	res, err := kingdom.Predict(kingdom.Request{LatestKingdom: 1, TargetKingdom: 2},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	p, ok := summaryMap(conversation.NewSummary(res))["prediction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "UTC", p["timezone"])
	assert.Equal(t, "2024-01-02T12:00:00Z", p["likely"])
	assert.Equal(t, int64(36*3600), p["countdown_seconds"])
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x01})
	assert.ErrorIs(t, err, ErrBadFrame)

	data, err := Encode(Frame{Type: "bogus"})
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrBadFrame)
}

// relayServer — тестовый релей: пишет входящие сообщения в клиента и отдаёт ответы в канал.
func relayServer(t *testing.T, token string, inbound []Frame) (*httptest.Server, <-chan Frame) {
	t.Helper()
	out := make(chan Frame, 16)
	up := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for _, f := range inbound {
				data, _ := Encode(f)
				if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
					return
				}
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if f, err := Decode(data); err == nil {
				out <- f
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func next(t *testing.T, ch <-chan Frame) Frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from bot")
		return Frame{}
	}
}

func TestClient_Conversation(t *testing.T) {
	msg := func(text string) Frame {
		return Frame{Type: TypeMessage, UserID: "u1", ChannelID: "c1", Text: text}
	}
	// все сообщения сразу: readLoop обрабатывает их по порядку
	srv, out := relayServer(t, "secret", []Frame{
		msg("!ping"), msg("!kingdom"), msg("USA"), msg("100"), msg("103"), msg("4h"),
	})

	b := bot.New(tzresolve.New(tzresolve.DefaultTable(), nil), bot.Options{})
	c := New(b, Options{URL: wsURL(srv), Token: "secret", DialAttempts: 1, DialDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Equal(t, bot.MsgPong, next(t, out).Text)
	assert.Equal(t, conversation.PromptCountry, next(t, out).Text)
	assert.Equal(t, conversation.PromptLatest, next(t, out).Text)
	assert.Equal(t, conversation.PromptTarget, next(t, out).Text)
	assert.Equal(t, conversation.PromptElapsed, next(t, out).Text)

	last := next(t, out)
	assert.Equal(t, TypeSummary, last.Type)
	assert.Equal(t, "c1", last.ChannelID)
	require.NotNil(t, last.Summary)
	assert.Equal(t, "🏰 Kingdom 103 Opening Prediction", last.Summary.Title)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay client did not stop")
	}
}

func TestClient_BadToken(t *testing.T) {
	srv, _ := relayServer(t, "secret", nil)
	b := bot.New(tzresolve.New(tzresolve.DefaultTable(), nil), bot.Options{})
	c := New(b, Options{URL: wsURL(srv), Token: "wrong", DialAttempts: 3, DialDelay: time.Millisecond})

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected token")
}

func TestReplier_NotConnected(t *testing.T) {
	c := New(nil, Options{})
	r := &replier{c: c, userID: "u", channelID: "c"}
	assert.ErrorIs(t, r.Reply(context.Background(), conversation.Reply{Text: "x"}), ErrNotConnected)
}
