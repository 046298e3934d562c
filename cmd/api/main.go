package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ellielabs/ellie/backend/internal/config"
	"github.com/ellielabs/ellie/backend/internal/handler"
	"github.com/ellielabs/ellie/backend/internal/service/ai"
	"github.com/ellielabs/ellie/backend/internal/service/conversation"
	"github.com/ellielabs/ellie/backend/internal/service/journal"
	"github.com/ellielabs/ellie/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := zerolog.New(os.Stderr)

	if err := godotenv.Load(); err != nil {
		// Not fatal: system environment variables may carry everything.
		bootLogger.Warn().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to build logger")
	}

	st, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open store")
	}
	defer st.Close()

	gateway, err := newGateway(ctx, cfg.AI, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.AI.Backend).Msg("failed to initialize gateway")
	}
	logger.Info().Str("backend", cfg.AI.Backend).Msg("gateway initialized")

	synth := journal.NewSynthesizer(gateway, st, journal.Config{
		Generation:         cfg.AI.Generation(),
		ReflectionUseTopic: cfg.AI.ReflectionUseTopic,
	}, logger)

	engine := conversation.NewEngine(st, gateway, synth, conversation.Config{
		AdminUserID:     cfg.Admin.UserID,
		HistoryLimit:    cfg.AI.HistoryLimit,
		PersonaFeedback: cfg.AI.PersonaFeedback,
		Generation:      cfg.AI.Generation(),
	}, logger)

	go evictLoop(ctx, engine, cfg.Session.IdleTimeout)

	router := handler.NewRouter(engine, st, cfg.Admin.APIToken, logger)
	startServer(ctx, cfg.Server, router, logger)
}

func newGateway(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) (ai.Gateway, error) {
	switch cfg.Backend {
	case "gemini":
		return ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	default:
		chatModel, err := cfg.NewArkChatModel(ctx)
		if err != nil {
			return nil, err
		}
		return ai.NewArk(chatModel, logger), nil
	}
}

func evictLoop(ctx context.Context, engine *conversation.Engine, maxIdle time.Duration) {
	ticker := time.NewTicker(maxIdle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.EvictIdle(maxIdle)
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Msg("journal backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
