package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/DafChat/internal/adapters/http"
	"github.com/dkeye/DafChat/internal/adapters/rtc"
	wssignal "github.com/dkeye/DafChat/internal/adapters/signal"
	"github.com/dkeye/DafChat/internal/app"
	"github.com/dkeye/DafChat/internal/app/orch"
	"github.com/dkeye/DafChat/internal/config"
	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
	"github.com/dkeye/DafChat/internal/store"
)

func openStore(ctx context.Context, cfg config.Store) (core.RoomStore, error) {
	switch cfg.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		s, err := store.OpenSQLite(ctx, store.SQLiteConfig{Path: cfg.Path, PoolSize: cfg.PoolSize})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return store.NewMemory(), nil
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	rooms, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open room store")
	}
	defer func() {
		if err := rooms.Close(); err != nil {
			log.Error().Err(err).Msg("close room store")
		}
	}()

	presence := app.NewPresence()
	o := &orch.Orchestrator{
		Registry:         app.NewRegistry(),
		Presence:         presence,
		Rooms:            rooms,
		Channels:         core.NewChannelManager(),
		Matcher:          app.NewMatchmaker(rooms),
		Broker:           app.NewBroker(presence),
		Policy:           app.SimplePolicy{},
		ICE:              rtc.NewICEServers(cfg.ICE),
		DefaultNamespace: domain.Namespace(cfg.Rooms.DefaultNamespace),
	}
	go o.RunReaper(ctx, cfg.Rooms.IdleTTL, cfg.Rooms.ReapInterval)

	limiter := wssignal.NewMatchRateLimiter(cfg.Match.RateLimit, cfg.Match.RateWindow)
	r := router.SetupRouter(ctx, cfg, o, limiter)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("DafChat signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
