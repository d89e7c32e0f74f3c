package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/kingdombot/internal/bot"
	"github.com/EgorLis/kingdombot/internal/config"
	"github.com/EgorLis/kingdombot/internal/discord"
	"github.com/EgorLis/kingdombot/internal/logger"
	"github.com/EgorLis/kingdombot/internal/metrics"
	"github.com/EgorLis/kingdombot/internal/relay"
	"github.com/EgorLis/kingdombot/internal/tzresolve"
)

// host — discord.Host или relay.Client.
type host interface {
	Run(ctx context.Context) error
}

func main() {
	confPath := flag.String("config", config.DefaultPath, "path to bot config (JSON)")
	flag.Parse()

	boot := logger.New(logger.Config{Service: "kingdombot"})
	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal(boot, "env", "err", err)
	}
	cfg, err := config.Load(*confPath)
	if err != nil {
		logger.Fatal(boot, "config", "err", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "kingdombot"})

	m := metrics.New(nil)
	b := bot.New(tzresolve.New(tzresolve.DefaultTable(), log), bot.Options{
		Prefix:        cfg.Prefix,
		ReplyTimeout:  cfg.ReplyTimeout,
		SweepInterval: cfg.SweepInterval,
		Logger:        log,
		Metrics:       m,
	})

	var h host
	switch cfg.Host {
	case config.HostRelay:
		h = relay.New(b, relay.Options{URL: cfg.RelayURL, Token: cfg.RelayToken, Logger: log})
	default:
		dh, err := discord.New(cfg.Token, b, discord.Options{GuildID: cfg.GuildID, Logger: log})
		if err != nil {
			logger.Fatal(log, "discord", "err", err)
		}
		h = dh
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("running… press Ctrl+C to stop", "host", cfg.Host)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(ctx) })
	g.Go(func() error {
		// свипер завершается только по отмене
		_ = b.Run(ctx)
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return m.Serve(ctx, cfg.MetricsAddr, log) })
	}

	if err := g.Wait(); err != nil {
		logger.Fatal(log, "stopped with error", "err", err)
	}
	log.Info("bye")
}
