package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/gorilla/websocket"

	"github.com/EgorLis/kingdombot/internal/bot"
	"github.com/EgorLis/kingdombot/internal/conversation"
)

var ErrNotConnected = errors.New("relay: not connected")

type Options struct {
	URL   string
	Token string // уходит как Authorization: Bearer

	Logger *slog.Logger

	// DialAttempts — попыток на одно подключение; 0 = бесконечно.
	DialAttempts uint
	DialDelay    time.Duration
	PingEvery    time.Duration
}

// Client — хост, который держит websocket к чат-релею и гоняет через него бота.
type Client struct {
	opts Options
	bot  *bot.KingdomBot
	log  *slog.Logger

	wmu      sync.Mutex // сериализует запись в websocket
	conn     *websocket.Conn
	pingStop chan struct{}
}

func New(b *bot.KingdomBot, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DialDelay <= 0 {
		opts.DialDelay = time.Second
	}
	if opts.PingEvery <= 0 {
		opts.PingEvery = 10 * time.Second
	}
	return &Client{
		opts: opts,
		bot:  b,
		log:  opts.Logger.With("component", "relay"),
	}
}

// Run подключается и переподключается, пока ctx жив. Ошибку возвращает
// только если подключиться так и не удалось.
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.log.Info("relay connected", "url", c.opts.URL)

		err = c.readLoop(ctx, conn)
		c.closeConn()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("relay connection lost", "err", err)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	var conn *websocket.Conn
	err := retry.Do(
		func() error {
			cn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, header)
			if err != nil {
				if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
					return retry.Unrecoverable(fmt.Errorf("relay rejected token: %s", resp.Status))
				}
				return err
			}
			conn = cn
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.opts.DialAttempts),
		retry.Delay(c.opts.DialDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("relay dial failed, retrying", "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", c.opts.URL, err)
	}

	conn.SetReadLimit(1 << 20)
	c.setup(conn)
	return conn, nil
}

// setup — pong продлевает дедлайн чтения, пинги каждые PingEvery.
func (c *Client) setup(conn *websocket.Conn) {
	deadline := 3 * c.opts.PingEvery
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	c.wmu.Lock()
	c.conn = conn
	c.wmu.Unlock()
	c.startPing(conn)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// закрыть по отмене контекста
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		f, err := Decode(data)
		if err != nil {
			c.log.Warn("skip frame", "err", err)
			continue
		}
		if f.Type != TypeMessage {
			continue
		}

		msg := bot.Message{UserID: f.UserID, ChannelID: f.ChannelID, Text: f.Text}
		c.bot.HandleMessage(ctx, msg, &replier{c: c, userID: f.UserID, channelID: f.ChannelID})
	}
}

func (c *Client) send(f Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *Client) closeConn() {
	c.stopPing()

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(500*time.Millisecond))
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) startPing(conn *websocket.Conn) {
	c.stopPing()
	stop := make(chan struct{})
	c.pingStop = stop

	go func() {
		t := time.NewTicker(c.opts.PingEvery)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.wmu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
				c.wmu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (c *Client) stopPing() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

// replier отвечает в тот же канал релея, откуда пришло сообщение.
type replier struct {
	c         *Client
	userID    string
	channelID string
}

func (r *replier) Reply(_ context.Context, rep conversation.Reply) error {
	return r.c.send(replyFrame(r.userID, r.channelID, rep))
}
