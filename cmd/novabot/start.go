package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/novatra/novabot/internal/adapters/discord"
	"github.com/novatra/novabot/internal/adapters/linear"
	"github.com/novatra/novabot/internal/banner"
	"github.com/novatra/novabot/internal/bot"
	"github.com/novatra/novabot/internal/config"
	"github.com/novatra/novabot/internal/extract"
	"github.com/novatra/novabot/internal/llm"
	"github.com/novatra/novabot/internal/logging"
	"github.com/novatra/novabot/internal/ratelimit"
	"github.com/novatra/novabot/internal/review"
	"github.com/novatra/novabot/internal/store"
)

func newStartCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Connect to Discord and serve /todo",
		Long: `Start the bot: connect to the Discord gateway, register the /todo
command and serve review interactions until interrupted.

Secrets may come from the config file or the environment
(DISCORD_TOKEN, OPENROUTER_API_KEY, LINEAR_API_KEY, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForStart(); err != nil {
				return err
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			if !quiet {
				banner.StartupWithHealth(cmd.OutOrStdout(), version, cfg)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBot(ctx, cfg)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "skip the startup banner")
	return cmd
}

// runBot wires the application context and blocks in the Discord handler
// until ctx ends.
func runBot(ctx context.Context, cfg *config.Config) error {
	log := logging.WithComponent("main")

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	limiter, closeLimiter, err := newLimiter(cfg.Cooldown)
	if err != nil {
		return err
	}
	defer closeLimiter()

	api := discord.NewClient(cfg.Discord.BotToken)

	llmClient := llm.NewClient(cfg.LLM)
	var model extract.Completer
	if llmClient.Enabled() {
		model = llmClient
	} else {
		log.Warn("No model API key configured; extraction will find no tasks")
	}
	engine := extract.NewEngine(discord.NewHistory(api), model, st)

	exporter := linear.NewExporter(cfg.Linear)
	if !exporter.Available() {
		log.Warn("Linear export is not configured; uploads will fail")
	}

	registry := review.NewRegistry(cfg.Review.Timeout, nil)
	if err := registry.Start(); err != nil {
		return fmt.Errorf("start review registry: %w", err)
	}
	defer registry.Stop()

	app := bot.New(st, engine, exporter, registry, limiter, bot.Options{PageSize: cfg.Review.PageSize})

	gw := discord.NewGatewayClient(api, cfg.Discord.BotToken, discord.DefaultIntents)
	handler := discord.NewHandler(cfg.Discord, app, api, gw)
	defer handler.Stop()

	log.Info("Starting novabot", slog.String("store", st.Path()), slog.String("model", llmClient.Model()))
	err = handler.StartListening(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("Shutting down")
		return nil
	}
	return err
}

// newLimiter returns the /todo cooldown: Redis when configured, in memory
// otherwise, or none for a zero window.
func newLimiter(cfg *config.CooldownConfig) (ratelimit.Limiter, func(), error) {
	noop := func() {}
	if cfg == nil || cfg.Window <= 0 {
		return nil, noop, nil
	}
	if cfg.RedisURL == "" {
		return ratelimit.NewMemory(cfg.Window), noop, nil
	}
	r, err := ratelimit.NewRedisFromURL(cfg.RedisURL, cfg.Window)
	if err != nil {
		return nil, noop, fmt.Errorf("cooldown redis: %w", err)
	}
	return r, func() { _ = r.Close() }, nil
}
