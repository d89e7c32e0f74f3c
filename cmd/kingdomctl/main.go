package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EgorLis/kingdombot/internal/bot"
	"github.com/EgorLis/kingdombot/internal/console"
	"github.com/EgorLis/kingdombot/internal/conversation"
	"github.com/EgorLis/kingdombot/internal/logger"
	"github.com/EgorLis/kingdombot/internal/tzresolve"
)

type onceArgs struct {
	country string
	latest  int
	target  int
	elapsed string
}

func main() {
	var (
		once     = flag.Bool("once", false, "compute one prediction from flags and exit")
		args     onceArgs
		timeout  = flag.Duration("timeout", conversation.DefaultTimeout, "how long to wait for each answer")
		logLevel = flag.String("log-level", "warn", "debug|info|warn|error")
	)
	flag.StringVar(&args.country, "country", "", "country name, e.g. USA")
	flag.IntVar(&args.latest, "latest", 0, "latest opened kingdom number")
	flag.IntVar(&args.target, "target", 0, "kingdom number to predict")
	flag.StringVar(&args.elapsed, "elapsed", "", "how long the latest kingdom has been open, e.g. 19h6m")
	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel, Output: os.Stderr})
	resolver := tzresolve.New(tzresolve.DefaultTable(), log)

	if *once {
		if err := predictOnce(os.Stdout, resolver, args, time.Now()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bot.New(resolver, bot.Options{ReplyTimeout: *timeout, Logger: log})
	go func() { _ = b.Run(ctx) }()

	if err := console.New(b, os.Stdin, os.Stdout, log).Run(ctx); err != nil {
		logger.Fatal(log, "console", "err", err)
	}
}

// predictOnce — тот же разговор, только ответы берутся из флагов.
func predictOnce(w io.Writer, r conversation.Resolver, a onceArgs, now time.Time) error {
	s := conversation.New("once", conversation.Key{UserID: console.UserID, ChannelID: console.ChannelID}, r, 0)
	s.Start(now)

	var reply conversation.Reply
	for _, answer := range []string{a.country, fmt.Sprint(a.latest), fmt.Sprint(a.target), a.elapsed} {
		reply = s.Handle(answer, now)
		if s.State().Terminal() {
			break
		}
	}
	if s.State() != conversation.Done {
		return errors.New(reply.Text)
	}
	return console.Render(w, reply.Summary)
}
