package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"docchat/internal/api"
	"docchat/internal/config"
	"docchat/internal/flow"
	"docchat/internal/history"
	"docchat/internal/ingest"
	"docchat/internal/observability"
	"docchat/internal/repository"
	"docchat/internal/service"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize session database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize stores
	sessionRepo := repository.NewSessionRepository(db)
	fileStore := repository.NewFileStore(cfg.Storage.Documents)

	// Metrics
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	// Streaming file processor; the extraction service is remote when
	// configured, otherwise text files are handled locally.
	var extractor ingest.Extractor = ingest.PlainTextExtractor{}
	if cfg.Extract.BaseURL != "" {
		extractor = ingest.NewHTTPExtractor(cfg.Extract.BaseURL)
	}
	chunker := ingest.NewSplitterChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	processor := ingest.NewProcessor(extractor, chunker,
		cfg.Ingest.SliceSize, cfg.Ingest.MaxUploadBytes, logger)

	// External collaborators
	indexer := service.NewLogIndexer(logger)
	flowClient := flow.NewClient(cfg.Flow.BaseURL,
		time.Duration(cfg.Flow.TimeoutSeconds)*time.Second, logger)

	// History bounds
	historyMgr := history.NewManager(cfg.History.MaxMessages,
		cfg.History.ContextRatio, cfg.History.DefaultTokenLimit)

	// Initialize services
	chatService := service.NewChatService(cfg, sessionRepo, historyMgr, flowClient, metrics, logger)
	ingestService := service.NewIngestService(cfg, sessionRepo, fileStore, processor, indexer, metrics, logger)
	sessionService := service.NewSessionService(sessionRepo)

	// Setup router
	router := api.SetupRouter(cfg, chatService, ingestService, sessionService,
		fileStore, metrics, logger, api.RouterConfig{
			APIKey:       cfg.Admin.APIKey,
			AllowOrigins: []string{"*"},
		})

	// Create HTTP server. The write timeout must cover a whole response
	// stream, not a single write, so it stays well above the chat path's
	// expected duration.
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting docchat server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
