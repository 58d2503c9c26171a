package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/cheese-reversi/internal/appbuilder"
	"github.com/park285/cheese-reversi/internal/config"
	"github.com/park285/cheese-reversi/internal/msgcat"
	"github.com/park285/cheese-reversi/internal/obslog"
	"github.com/park285/cheese-reversi/internal/wsapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	deps, err := appbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("init_error", zap.Error(err))
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("shutdown_close_failed", zap.Error(err))
		}
	}()

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_error", zap.Error(err))
	}

	api, err := wsapi.New(wsapi.Config{
		Sessions: deps.NewSession,
		Archive:  deps.Archive,
		Defaults: deps.Defaults,
		Messages: messages,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("api_init_error", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("engine", string(cfg.EngineKind)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server_error", zap.Error(err))
	}
	logger.Info("stopped")
}
