package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/promptdeck/promptdeck/internal/adapters/http"
	wsignal "github.com/promptdeck/promptdeck/internal/adapters/signal"
	"github.com/promptdeck/promptdeck/internal/app"
	"github.com/promptdeck/promptdeck/internal/auth"
	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/store"
	"github.com/promptdeck/promptdeck/internal/transcribe"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	var sessionStore core.SessionStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		sessionStore = store.NewSessionStoreRedis(client, cfg.SessionTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("sessions backed by redis")
	} else {
		sessionStore = store.NewSessionStore()
	}

	registry := app.NewRegistry(sessionStore)
	rooms := store.NewRoomStore()
	orch := &app.Orchestrator{
		Registry: registry,
		Rooms:    rooms,
		Policy:   app.SimplePolicy{},
		CodeLen:  cfg.JoinCodeLen,
	}

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier, err = auth.NewVerifier(cfg.JWTSecret)
		if err != nil {
			log.Fatal().Err(err).Msg("bad jwt secret")
		}
	} else {
		log.Warn().Msg("no jwt secret configured, all users will be anonymous")
	}

	ctl := wsignal.NewController(orch, verifier)
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PostRate = wsignal.NewPostRateLimiter(10, time.Minute)
	if cfg.SimulateTranscription {
		ctl.Simulator = transcribe.NewSimulator(cfg.SimulateInterval)
		log.Info().Msg("transcription simulator enabled")
	}

	sweeper := &app.Sweeper{
		Registry: registry,
		Sessions: sessionStore,
		TTL:      cfg.SessionTTL,
		Interval: cfg.SweepInterval,
	}
	go sweeper.Run(ctx)

	r := router.SetupRouter(ctx, cfg, rooms, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("PromptDeck server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
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
