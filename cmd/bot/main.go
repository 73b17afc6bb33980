package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cryptofolio/internal/app"
	"cryptofolio/internal/config"
)

// The bot alone, without the HTTP API or the refresher.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Telegram.Enabled() {
		fmt.Fprintln(os.Stderr, "TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID and TELEGRAM_USER_EMAIL are required")
		os.Exit(1)
	}

	root, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := root.Cleanup(); err != nil {
			root.Logger.Error("Failed to cleanup resources", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := root.NewBot(ctx)
	if err != nil {
		root.Logger.Error("Failed to create bot", zap.Error(err))
		return
	}
	if err := b.Start(ctx); err != nil {
		root.Logger.Error("Bot stopped", zap.Error(err))
	}
}
