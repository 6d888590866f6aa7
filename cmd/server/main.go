package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"accessgate/internal/config"
	"accessgate/internal/database"
	"accessgate/internal/handlers"
	"accessgate/internal/platform"
	"accessgate/internal/repository"
)

func logLevel(level string) log.Level {
	switch level {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log.SetLevel(logLevel(cfg.LogLevel))

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	p := platform.New(cfg, repository.NewGormRepository(db))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := p.Users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatal(err)
		}
	}

	go p.Tracker.Run(ctx)

	app := handlers.NewApp(p)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorw("shutdown failed", "error", err)
		}
	}()

	log.Infow("starting server", "port", cfg.ServerPort, "mail", cfg.MailEnabled(), "export", cfg.StorageEnabled())

	if err := app.Listen(fmt.Sprintf(":%d", cfg.ServerPort)); err != nil {
		log.Fatal(err)
	}
}
