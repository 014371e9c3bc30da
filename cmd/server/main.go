package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mmckelve45/auth0-pizza42/internal/app"
	"github.com/Mmckelve45/auth0-pizza42/internal/config"
	"github.com/Mmckelve45/auth0-pizza42/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	go func() {
		if err := application.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	logger.Info("account-linking service started", map[string]any{
		"port":     cfg.AppPort,
		"env":      cfg.AppEnv,
		"callback": cfg.CallbackURL(),
	})

	<-ctx.Done()

	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("graceful shutdown failed", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("account-linking service stopped cleanly", nil)
}
