package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reimagine-studio/internal/config"
	"reimagine-studio/internal/database"
	"reimagine-studio/internal/generation"
	"reimagine-studio/internal/handlers"
	"reimagine-studio/internal/project"
	"reimagine-studio/internal/s3store"
	"reimagine-studio/internal/services"
	"reimagine-studio/internal/supabase"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).Run(ctx); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("migrations completed successfully")

	dbClient := supabase.NewDatabaseClient(db, logger)

	// Supabase is optional when objects live in S3; realtime events need it.
	var supabaseClient *supabase.Client
	if cfg.SupabaseURL != "" && cfg.SupabasePublishableKey != "" {
		supabaseClient, err = supabase.NewClient(cfg)
		if err != nil {
			logger.Fatal("failed to initialize supabase client", zap.Error(err))
		}
	}

	var store services.ObjectStore
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		store, err = s3store.New(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("failed to initialize s3 store", zap.Error(err))
		}
	default:
		store = supabaseClient.Storage()
	}

	var events services.EventPublisher
	if supabaseClient != nil {
		events = supabaseClient.Realtime()
	} else {
		logger.Warn("supabase not configured, project events are disabled")
	}

	registry := generation.NewRegistry()
	registry.Register(config.ProviderGemini, func() (generation.Service, error) {
		return generation.NewGeminiClient(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.ImageModel, cfg.Gemini.ChatModel), nil
	})
	registry.Register(config.ProviderOpenAI, func() (generation.Service, error) {
		return generation.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ImageModel, cfg.OpenAI.ChatModel), nil
	})
	provider, err := registry.Get(cfg.GenerationProvider)
	if err != nil {
		logger.Fatal("failed to initialize generation provider", zap.Error(err))
	}
	gen := generation.WithFallbacks(provider, logger)

	sessions := project.NewSessions()
	syncService := services.NewSyncService(store, dbClient, events, logger)
	studio := services.NewStudio(gen, logger)

	router := handlers.NewRouter(cfg, handlers.Handlers{
		DB:        db,
		Workspace: handlers.NewWorkspaceHandler(sessions, studio, syncService, logger),
		Projects:  handlers.NewProjectsHandler(syncService, sessions, logger),
		Session:   handlers.NewSessionHandler(sessions),
	})

	logger.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("storage", cfg.StorageBackend),
		zap.String("provider", cfg.GenerationProvider))
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
