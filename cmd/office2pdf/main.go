package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"

	"office2pdf/internal/app"
	"office2pdf/internal/converter"
	u "office2pdf/internal/utils"
)

func main() {
	cfg := u.LoadConfig()
	if err := ensureLogDir(cfg.Logger.File); err != nil {
		u.Error("Cannot create log directory", "file", cfg.Logger.File, "error", err)
	}
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		u.Debug(fmt.Sprintf(format, args...))
	}))

	conv, err := converter.New(converter.OptionsFromConfig(cfg.Converter))
	if err != nil {
		u.Error("Invalid converter configuration", "error", err)
		os.Exit(1)
	}
	if !conv.Available() {
		u.Warn("LibreOffice not found, conversions will fail until it is installed",
			"strategy", conv.StrategyName(), "soffice_path", cfg.Converter.SofficePath)
	}
	u.Info("Converter ready", "strategy", conv.StrategyName(), "timeout", cfg.Converter.Timeout.String())

	var rdb *redis.Client
	if cfg.Cache.StatsEnabled && cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.StatsDB,
		})
		defer rdb.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loadTokens(ctx, cfg)

	idleConnsClosed := make(chan struct{})
	startServer(app.SetupApp(cfg, app.Deps{Converter: conv, Redis: rdb}), cfg, idleConnsClosed)
	<-idleConnsClosed
}

// loadTokens fills the API token cache. Without a token database the cache
// is empty, so only anonymous requests are accepted.
func loadTokens(ctx context.Context, cfg u.Config) {
	if !cfg.Auth.Postgres.Enabled() {
		u.LoadTokensFromMap(nil)
		return
	}
	if err := u.LoadTokensFromPostgres(ctx, cfg.Auth.Postgres); err != nil {
		u.Error("Failed to load API tokens", "error", err)
	}
	go u.RefreshTokensPeriodically(ctx, cfg.Auth.Postgres, time.Minute)
}

func ensureLogDir(file string) error {
	if file == "" {
		return nil
	}
	dir := filepath.Dir(file)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint
	signal.Stop(sigint)

	u.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
