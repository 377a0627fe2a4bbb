package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erpdesk/printflow/internal/api"
	"github.com/erpdesk/printflow/internal/config"
	"github.com/erpdesk/printflow/internal/fleet"
	"github.com/erpdesk/printflow/internal/history"
	"github.com/erpdesk/printflow/internal/orchestrate"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := history.New(cfg.History.Path)
	if err != nil {
		logger.Fatal("opening history store failed", zap.Error(err))
	}
	defer store.Close()

	client := fleet.NewClient(fleet.ClientConfig{
		BaseURL: cfg.PrintService.BaseURL,
		Token:   cfg.PrintService.Token,
		Timeout: cfg.PrintService.Timeout,
	}, logger)

	fallback := orchestrate.NewFallbackCoordinator(
		cfg.PrintService.FallbackBaseURL,
		[]byte(cfg.Auth.JWTSecret),
	)

	orchestrator := orchestrate.New(client, fallback, store, orchestrate.Config{
		MaxRetries:           cfg.Orchestrator.MaxRetries,
		PollInterval:         cfg.Orchestrator.PollInterval,
		SessionTimeout:       cfg.Orchestrator.SessionTimeout,
		MatchNameAcrossTypes: cfg.Orchestrator.MatchNameAcrossTypes,
	}, logger)

	router := api.NewRouter(orchestrator, client, store, cfg.Auth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("printflow listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	orchestrator.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
