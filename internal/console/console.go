package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/EgorLis/kingdombot/internal/bot"
	"github.com/EgorLis/kingdombot/internal/conversation"
)

const (
	UserID    = "local"
	ChannelID = "console"
)

var (
	titleColor = color.New(color.FgHiWhite, color.Bold)
	errColor   = color.New(color.FgRed)
	hintColor  = color.New(color.FgHiBlack)

	// цвета полос прогноза
	bandColors = map[string]*color.Color{
		conversation.FieldEarliest:  color.New(color.FgGreen),
		conversation.FieldLikely:    color.New(color.FgYellow),
		conversation.FieldLatest:    color.New(color.FgRed),
		conversation.FieldCountdown: color.New(color.FgCyan),
	}
	defaultField = color.New(color.FgBlue)
)

// Console — хост для локального запуска: stdin -> бот -> stdout.
type Console struct {
	bot *bot.KingdomBot
	in  io.Reader
	log *slog.Logger

	mu  sync.Mutex // ответы приходят и из свипера
	out io.Writer
}

func New(b *bot.KingdomBot, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{bot: b, in: in, out: out, log: logger.With("component", "console")}
}

// Run читает строки, пока не кончится ввод или не отменят ctx.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	c.hint(fmt.Sprintf("type %skingdom to start, %shelp for commands", c.bot.Prefix(), c.bot.Prefix()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			msg := bot.Message{UserID: UserID, ChannelID: ChannelID, Text: line}
			if !c.bot.HandleMessage(ctx, msg, c) {
				c.hint(fmt.Sprintf("no active conversation, type %skingdom", c.bot.Prefix()))
			}
		}
	}
}

func (c *Console) Reply(_ context.Context, r conversation.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Summary != nil {
		return Render(c.out, r.Summary)
	}
	if strings.HasPrefix(r.Text, "❌") || strings.HasPrefix(r.Text, "⌛") {
		_, err := errColor.Fprintln(c.out, r.Text)
		return err
	}
	_, err := fmt.Fprintln(c.out, r.Text)
	return err
}

func (c *Console) hint(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = hintColor.Fprintln(c.out, s)
}

// Render печатает карточку в терминал.
func Render(w io.Writer, s *conversation.Summary) error {
	var b strings.Builder
	titleColor.Fprintln(&b, s.Title)
	if s.Description != "" {
		fmt.Fprintln(&b, s.Description)
	}
	fmt.Fprintln(&b)
	for _, f := range s.Fields {
		fc, ok := bandColors[f.Name]
		if !ok {
			fc = defaultField
		}
		fc.Fprintln(&b, f.Name)
		fmt.Fprintf(&b, "  %s\n", f.Value)
	}
	if s.Footer != "" {
		fmt.Fprintln(&b)
		hintColor.Fprintln(&b, s.Footer)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
