package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amansour/techsouk/internal/auth"
	"github.com/amansour/techsouk/internal/catalog"
	"github.com/amansour/techsouk/internal/config"
	"github.com/amansour/techsouk/internal/embedder"
	"github.com/amansour/techsouk/internal/repository"
	"github.com/amansour/techsouk/internal/repository/postgres"
	"github.com/amansour/techsouk/internal/server"
	"github.com/amansour/techsouk/internal/service"
	"github.com/amansour/techsouk/internal/session"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting techsouk service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL")

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure database schema: %w", err)
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepo(db)
	savedSearchRepo := postgres.NewSavedSearchRepo(db)

	// Initialize Qdrant catalog source
	source, err := catalog.NewQdrantSource(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer source.Close()
	slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)

	// Initialize embedder
	embed, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	slog.Info("initialized embedder",
		"provider", cfg.EmbedderProvider,
		"model", embed.ModelName(),
		"dimension", embed.Dimension())

	// Initialize session state and auth
	sessions := session.NewStore(cfg.MaxCompare, cfg.SessionTTL)
	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.Expiry = cfg.SessionExpiry
	jwtManager := auth.NewJWTManager(jwtCfg)

	// Initialize services
	accountSvc := service.NewAccountService(userRepo, jwtManager, sessions, slog.Default())
	savedSearchSvc := service.NewSavedSearchService(savedSearchRepo, slog.Default())
	searchSvc := service.NewSearchService(embed, source, sessions, service.SearchConfig{
		PageSize:   cfg.PageSize,
		HeadSize:   cfg.HeadSize,
		MaxRanked:  cfg.MaxRanked,
		FetchLimit: cfg.FetchLimit,
	}, slog.Default())

	// Create HTTP server
	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		Search:         searchSvc,
		Accounts:       accountSvc,
		SavedSearches:  savedSearchSvc,
		Sessions:       sessions,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	// Periodically sweep expired session rows
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				accountSvc.CleanupExpiredSessions(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Start server
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// newEmbedder builds the configured embedding provider.
func newEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.EmbedderProvider {
	case "clip", "":
		return embedder.NewClipEmbedder(embedder.ClipConfig{
			BaseURL:   cfg.ClipURL,
			Model:     cfg.ClipModel,
			Dimension: cfg.EmbeddingDimension,
		}), nil
	case "openai":
		return embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			Dimensions: cfg.EmbeddingDimension,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.EmbedderProvider)
	}
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.UserRepository        = (*postgres.UserRepo)(nil)
	_ repository.SavedSearchRepository = (*postgres.SavedSearchRepo)(nil)
	_ catalog.Source                   = (*catalog.QdrantSource)(nil)
	_ catalog.Indexer                  = (*catalog.QdrantSource)(nil)
	_ embedder.Embedder                = (*embedder.ClipEmbedder)(nil)
	_ auth.Verifier                    = (*service.AccountService)(nil)
)
