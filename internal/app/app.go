package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"nova-ai/backend/internal/api"
	"nova-ai/backend/internal/config"
	"nova-ai/backend/internal/llm"
	"nova-ai/backend/internal/repository"
	"nova-ai/backend/internal/service"
)

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)
	logConfigSource()

	if cfg.GeminiAPIKey == "" {
		// Not fatal: sessions can be created and browsed without a key; the
		// first send reports the missing credential to the user.
		slog.Warn("GEMINI_API_KEY is not set, sends will fail until it is configured")
	}

	provider := llm.NewGeminiProvider(cfg.GeminiAPIKey, llm.ProviderConfig{
		ImageModel:      cfg.ImageModel,
		TTSModel:        cfg.TTSModel,
		TranscribeModel: cfg.FastModel,
	})

	repo := repository.NewMemoryRepository()
	contexts := service.NewContextManager(provider, cfg)
	chatService := service.NewChatService(repo, provider, contexts, cfg)

	// Start with one empty session so the UI always has a current session.
	chatService.CreateSession(context.Background())

	chatHandler := api.NewChatHandler(chatService)
	router := api.NewRouter(chatHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("Starting server", "port", cfg.AppPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		return 1
	}

	return 0
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
