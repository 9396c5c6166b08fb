package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paragon-backend/internal/api/handlers"
	"paragon-backend/internal/api/middleware"
	"paragon-backend/internal/config"
	"paragon-backend/internal/imagestore"
	"paragon-backend/internal/ingest"
	"paragon-backend/internal/jobs/inmemory"
	"paragon-backend/internal/logger"
	"paragon-backend/internal/pipeline"
	"paragon-backend/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	images, err := imagestore.NewLocal(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare upload directory")
	}

	var archiver imagestore.Archiver
	if cfg.ArchiveBucket != "" {
		archiver = imagestore.NewGCSArchiver(cfg.ArchiveBucket)
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("Receipt archiving enabled")
	}

	// Job infrastructure: parse jobs run in-process, decoupled from the
	// request that accepted the upload.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueSize, cfg.WorkerCount, jobStore)

	parser := pipeline.NewGeminiParser(cfg.ParserModel)
	processor := pipeline.NewProcessor(db, images, parser, cfg.ParserTimeout, log)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.WorkerCount).Msg("Starting parse workers")
		if err := jobQueue.Start(workerCtx, processor.HandleJob); err != nil {
			log.Error().Err(err).Msg("Parse workers stopped with error")
		}
	}()

	svc := ingest.NewService(db, images, jobQueue, archiver, log)

	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret, log)
	txHandler := handlers.NewTransactionsHandler(svc, log)
	catHandler := handlers.NewCategoriesHandler(db, log)
	budgetHandler := handlers.NewBudgetsHandler(db, log)

	requireAuth := middleware.Auth(cfg.JWTSecret)

	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authHandler.Register(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authHandler.Login(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Transactions
	mux.Handle("/api/transactions", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			txHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))
	mux.Handle("/api/transactions/upload", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			txHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))
	mux.Handle("/api/transactions/manual", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			txHandler.CreateManual(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))
	mux.Handle("/api/transactions/", requireAuth(http.HandlerFunc(txHandler.Item)))

	// Categories and tags
	mux.Handle("/api/categories", requireAuth(http.HandlerFunc(catHandler.Categories)))
	mux.Handle("/api/categories/", requireAuth(http.HandlerFunc(catHandler.CategoryItem)))
	mux.Handle("/api/tags", requireAuth(http.HandlerFunc(catHandler.Tags)))
	mux.Handle("/api/tags/", requireAuth(http.HandlerFunc(catHandler.TagItem)))

	// Budgets
	mux.Handle("/api/budgets/monthly", requireAuth(http.HandlerFunc(budgetHandler.Monthly)))

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(cfg.CORSOrigins)(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight parse jobs reach a terminal state before exiting.
	cancelWorker()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
