package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/adapters/ai"
	router "github.com/dkeye/Huddle/internal/adapters/http"
	"github.com/dkeye/Huddle/internal/adapters/rtc"
	wssignal "github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/adapters/store/memstore"
	"github.com/dkeye/Huddle/internal/adapters/store/mongostore"
	"github.com/dkeye/Huddle/internal/adapters/store/sqlitestore"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}

	var generator core.TextGenerator
	if client, err := ai.New(ai.Config{
		APIKey:    cfg.AI.APIKey,
		BaseURL:   cfg.AI.BaseURL,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
		Timeout:   cfg.AI.Timeout,
	}); err != nil {
		log.Warn().Err(err).Msg("AI delegates will stay silent")
	} else {
		generator = client
	}

	reg := app.NewRegistry()
	hub := orch.New(orch.Deps{
		Registry:    reg,
		Rooms:       app.NewRoomManager(reg),
		Policy:      app.PolicyByName(cfg.Signal.Backpressure),
		Meetings:    store,
		Transcripts: store,
		Personas:    store,
		Generator:   generator,
	}, orch.Options{
		GenerateTimeout: cfg.AI.Timeout,
		MaxGenerations:  cfg.AI.MaxConcurrent,
		KeepOnEmpty:     !cfg.Meeting.EndOnEmpty,
	})

	ctrl := wssignal.NewSignalWSController(hub, wssignal.Options{
		ReadLimit:   cfg.ReadLimit,
		PingPeriod:  cfg.PingPeriod,
		SendBuffer:  cfg.SendBuffer,
		RateEvents:  cfg.RateLimit.Events,
		RateWindow:  cfg.RateLimit.Interval,
		ValidateSDP: cfg.Signal.ValidateSDP,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:   hub,
		Signal: ctrl,
		Store:  store,
		RTC:    rtc.Configuration(cfg.RTC.ICEServers),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending tasks abandoned")
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("store close")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func openStore(ctx context.Context, sc config.StoreConfig) (core.Store, error) {
	switch sc.Driver {
	case "mongo":
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return mongostore.Open(openCtx, sc.MongoURI, sc.MongoDatabase)
	case "sqlite":
		return sqlitestore.Open(ctx, sc.SQLitePath)
	default:
		return memstore.New(), nil
	}
}
