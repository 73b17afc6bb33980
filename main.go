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

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
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

	server := root.NewHTTPServer()
	go func() {
		if err := server.Start(); err != nil {
			root.Logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	ref, err := root.NewRefresher(ctx)
	if err != nil {
		root.Logger.Error("Failed to create price refresher", zap.Error(err))
	} else {
		go func() {
			if err := ref.Run(ctx); err != nil {
				root.Logger.Error("Price refresher stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Telegram.Enabled() {
		b, err := root.NewBot(ctx)
		if err != nil {
			root.Logger.Error("Failed to start Telegram bot", zap.Error(err))
		} else {
			go func() {
				if err := b.Start(ctx); err != nil {
					root.Logger.Error("Telegram bot stopped", zap.Error(err))
				}
			}()
		}
	} else {
		root.Logger.Info("Telegram bot disabled")
	}

	<-ctx.Done()
	root.Logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		root.Logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	root.Logger.Info("Server exited")
}
