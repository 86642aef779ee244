package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/selfbot/internal/bot"
	"github.com/EgorLis/selfbot/internal/commands"
	"github.com/EgorLis/selfbot/internal/config"
	"github.com/EgorLis/selfbot/internal/discord"
	"github.com/EgorLis/selfbot/internal/eventlog"
	"github.com/EgorLis/selfbot/internal/gateway"
	"github.com/EgorLis/selfbot/internal/metric"
)

type options struct {
	configPath string
	logDir     string
}

func newRootCmd() *cobra.Command {
	var opts options
	rootCmd := &cobra.Command{
		Use:           "selfbot",
		Short:         "Personal automation client for a chat account",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := run(ctx, opts)
			if errors.Is(err, bot.ErrRestart) {
				stop()
				return restart()
			}
			return err
		},
	}
	rootCmd.Flags().StringVar(&opts.configPath, "config", "config.json", "config document (.json or .toml)")
	rootCmd.Flags().StringVar(&opts.logDir, "log-dir", "", "log directory, overrides log_dir")
	return rootCmd
}

func run(ctx context.Context, opts options) error {
	store, err := config.Open(opts.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(store, viper.New())
	if err != nil {
		return err
	}
	if opts.logDir != "" {
		cfg.LogDir = opts.logDir
	}

	logs, err := eventlog.Open(eventlog.Options{Dir: cfg.LogDir})
	if err != nil {
		return err
	}
	defer logs.Close()

	api := discord.NewClient(cfg.APIURL, cfg.Token)
	api.OnError = func(err error) { logs.Client.Warn("delayed delete failed", "err", err) }
	gw := gateway.New(cfg.GatewayURL, cfg.Token, logs.Client)
	reg := metric.NewRegistry()

	b := bot.New(bot.Options{
		Conn:     gw,
		API:      api,
		State:    discord.NewState(api),
		Store:    store,
		Registry: commands.NewRegistry(),
		Prefixes: cfg.Prefix,
		Log:      logs.App,
		Metrics:  reg.Metrics,
	})
	b.LoadExtensions(cfg.Extensions)

	if err := gw.Open(ctx); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return b.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			logs.App.Info("serving metrics", "addr", cfg.MetricsAddr)
			return metric.NewServer(cfg.MetricsAddr, reg).Run(gctx)
		})
	}
	return g.Wait()
}
