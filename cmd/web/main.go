package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/r2k2/tournaments/internal/affiliate"
	"github.com/r2k2/tournaments/internal/config"
	"github.com/r2k2/tournaments/internal/db"
	"github.com/r2k2/tournaments/internal/metrics"
	"github.com/r2k2/tournaments/internal/service"
	"github.com/r2k2/tournaments/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	database, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		slog.Error("failed to connect to database", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var affiliates service.AffiliateChecker
	if cfg.AffiliateRosterURL != "" {
		var cache affiliate.Cache = affiliate.NewMemoryCache(affiliate.SystemClock)
		if cfg.RedisURL != "" {
			client, err := affiliate.DialRedis(context.Background(), cfg.RedisURL)
			if err != nil {
				slog.Error("failed to connect to redis", "error", err)
				os.Exit(1)
			}
			defer client.Close()
			cache = affiliate.NewRedisCache(client)
		}
		affiliates = affiliate.NewValidator(cfg.AffiliateRosterURL, cache, cfg.AffiliateCacheTTL)
		slog.Info("affiliate validation enabled", "redis", cfg.RedisURL != "")
	}

	m := metrics.New()
	tournamentStore := store.NewTournamentStore(database)

	app := &application{
		db:              database,
		tournaments:     service.NewTournamentService(database, tournamentStore, m),
		players:         service.NewPlayerService(database, tournamentStore, affiliates, m),
		matches:         service.NewMatchService(database, tournamentStore, m),
		metrics:         m,
		autoAdvanceByes: cfg.AutoAdvanceByes,
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      app.routes(cfg.CORSAllowedOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("server starting", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
	}
	slog.Info("server stopped")
}
