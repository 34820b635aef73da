// Command techsouk-scraper collects products from the supported retail
// sites and indexes them into the catalog store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amansour/techsouk/internal/catalog"
	"github.com/amansour/techsouk/internal/config"
	"github.com/amansour/techsouk/internal/embedder"
	"github.com/amansour/techsouk/internal/scraper"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("scrape failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		maxPages   = flag.Int("max-pages", 100, "maximum pages per listing URL")
		delay      = flag.Duration("delay", 2*time.Second, "delay between page fetches")
		backupFile = flag.String("backup", "products_backup.json", "JSON backup file path")
		fromBackup = flag.Bool("from-backup", false, "upload from the backup file instead of scraping")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := catalog.NewQdrantSource(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()
	slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)

	embed := embedder.NewClipEmbedder(embedder.ClipConfig{
		BaseURL:   cfg.ClipURL,
		Model:     cfg.ClipModel,
		Dimension: cfg.EmbeddingDimension,
	})
	slog.Info("initialized embedder", "model", embed.ModelName())

	s := scraper.New(scraper.Config{
		Embedder:   embed,
		Indexer:    store,
		Logger:     slog.Default(),
		Delay:      *delay,
		MaxPages:   *maxPages,
		BackupFile: *backupFile,
	})

	if *fromBackup {
		products, err := s.LoadBackup()
		if err != nil {
			return err
		}
		uploaded, err := s.Upload(ctx, products)
		if err != nil {
			return err
		}
		slog.Info("upload from backup complete", "uploaded", uploaded)
		return nil
	}

	scraped, uploaded, err := s.Run(ctx, scraper.DefaultSites())
	if err != nil {
		return err
	}

	slog.Info("scrape complete", "scraped", scraped, "uploaded", uploaded)
	return nil
}
