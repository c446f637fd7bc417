// Copyright 2025 Jesus Letters Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/jesus-letters-api/internal/config"
	"github.com/your-org/jesus-letters-api/internal/health"
	"github.com/your-org/jesus-letters-api/internal/history"
	"github.com/your-org/jesus-letters-api/internal/pipeline"
	"github.com/your-org/jesus-letters-api/internal/provider"
	"github.com/your-org/jesus-letters-api/internal/resilience"
)

const (
	serviceName    = "jesus-letters-api"
	serviceVersion = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", serviceName),
		zap.String("environment", os.Getenv("ENVIRONMENT")),
		zap.Int("port", masked.Server.Port),
		zap.String("preferred_service", masked.AI.PreferredService),
		zap.String("openai_api_key", masked.OpenAI.APIKey),
		zap.String("gemini_api_key", masked.Gemini.APIKey),
		zap.String("history_db_path", masked.History.DBPath),
	)

	ctx := context.Background()

	primary, secondary := buildProviders(ctx, cfg, logger)
	orchestrator := pipeline.New(primary, secondary, logger)

	var store *history.Store
	if cfg.History.DBPath != "" {
		store, err = history.NewStore(cfg.History.DBPath)
		if err != nil {
			logger.Fatal("Failed to open letter history store", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
	} else {
		logger.Info("Letter history disabled, no db_path configured")
	}

	healthMgr := health.NewManager(serviceName, serviceVersion, logger)
	healthMgr.AddChecker("openai", health.ProviderChecker("openai", cfg.OpenAI.APIKey != ""))
	healthMgr.AddChecker("gemini", health.ProviderChecker("gemini", cfg.Gemini.APIKey != ""))
	if store != nil {
		healthMgr.AddChecker("history", health.StoreChecker("history", store.Ping))
	}

	srv := &server{
		cfg:          cfg,
		logger:       logger,
		orchestrator: orchestrator,
		store:        store,
		healthMgr:    healthMgr,
		errorHandler: resilience.NewErrorHandler(logger),
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := srv.setupRouter()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", httpServer.Addr),
			zap.String("version", serviceVersion),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// buildProviders constructs the configured provider clients and orders
// them by the preferred service. A provider without an API key stays
// nil; the orchestrator degrades past it.
func buildProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (provider.Provider, provider.Provider) {
	var openaiProv, geminiProv provider.Provider

	if cfg.OpenAI.APIKey != "" {
		client, err := provider.NewOpenAIClient(provider.OpenAIConfig{
			APIKey: cfg.OpenAI.APIKey,
			Model:  cfg.OpenAI.Model,
		}, logger)
		if err != nil {
			logger.Warn("Failed to initialize OpenAI provider", zap.Error(err))
		} else {
			openaiProv = client
		}
	} else {
		logger.Warn("OpenAI provider not configured, OPENAI_API_KEY is empty")
	}

	if cfg.Gemini.APIKey != "" {
		client, err := provider.NewGeminiClient(ctx, provider.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		}, logger)
		if err != nil {
			logger.Warn("Failed to initialize Gemini provider", zap.Error(err))
		} else {
			geminiProv = client
		}
	} else {
		logger.Warn("Gemini provider not configured, GEMINI_API_KEY is empty")
	}

	if cfg.AI.PreferredService == "gemini" {
		return geminiProv, openaiProv
	}
	return openaiProv, geminiProv
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{"server.log"}
		zapConfig.ErrorOutputPaths = []string{"server.log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}
