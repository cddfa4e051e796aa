package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"arbor/internal/auth"
	"arbor/internal/config"
	"arbor/internal/domain/models"
	"arbor/internal/folderstorage"
	"arbor/internal/folderstorage/dbstorage"
	"arbor/internal/folderstorage/yamlaccounts"
	"arbor/internal/handler"
	"arbor/internal/middleware"
	"arbor/internal/repository/postgres"
	postgresInfostore "arbor/internal/repository/postgres/infostore"
	"arbor/internal/service"
	serviceInfostore "arbor/internal/service/infostore"
	"arbor/internal/session"
	"arbor/internal/virtualtree"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Create JWT verifier
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	deltaRepo := postgres.NewDeltaRepository(repoConfig)
	docRepo := postgresInfostore.NewDocumentRepository(repoConfig)
	reservationRepo := postgresInfostore.NewReservationRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Load the per-user account configuration (mail, messaging, file storage)
	accounts, err := yamlaccounts.Load(cfg.AccountsFile)
	if err != nil {
		log.Fatalf("Failed to load accounts file: %v", err)
	}

	// Register folder storages. The database storage claims every folder id
	// without a path or service separator, so it goes in last.
	registry := folderstorage.NewRegistry()
	dbStorage := dbstorage.New(repoConfig)
	if err := registry.Register(models.RealTreeID, dbStorage); err != nil {
		log.Fatalf("Failed to register database folder storage: %v", err)
	}

	// Assemble the virtual tree overlay
	cache := virtualtree.NewCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	engine := virtualtree.NewEngine(registry, accounts, deltaRepo, cache, virtualtree.ReparentConfig{
		TrashName: cfg.TrashName,
	}, logger)
	repairer := virtualtree.NewRepairer(registry, deltaRepo, cache, logger)
	cleaner := virtualtree.NewCleaner(registry, deltaRepo, cache, logger)

	sessions := session.NewRegistry(logger)
	engine.SetInvalidator(sessions)

	// Create services
	treeService := service.NewTreeService(engine, repairer, cleaner, sessions, logger)
	docService := serviceInfostore.NewDocumentService(docRepo, reservationRepo, txManager, logger)

	// Create handlers
	treeHandler := handler.NewTreeHandler(treeService, logger)
	infostoreHandler := handler.NewInfostoreHandler(docService, logger)

	logger.Info("services initialized")

	// Prune lapsed filename reservations in the background
	go func() {
		ticker := time.NewTicker(serviceInfostore.ReservationTTL)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := docService.PruneExpiredReservations(ctx); err != nil {
				logger.Warn("reservation prune failed", "error", err)
			}
		}
	}()

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", treeHandler.HealthCheck)

	// Tree routes
	mux.HandleFunc("GET /api/trees/{tree}/folders", treeHandler.VisibleFolders)
	mux.HandleFunc("POST /api/trees/{tree}/folders", treeHandler.CreateFolder)
	mux.HandleFunc("GET /api/trees/{tree}/folders/{id}", treeHandler.GetFolder)
	mux.HandleFunc("PATCH /api/trees/{tree}/folders/{id}", treeHandler.UpdateFolder)
	mux.HandleFunc("DELETE /api/trees/{tree}/folders/{id}", treeHandler.DeleteFolder)
	mux.HandleFunc("GET /api/trees/{tree}/folders/{id}/subfolders", treeHandler.ListSubfolders)
	mux.HandleFunc("GET /api/trees/{tree}/folders/{id}/type", treeHandler.GetTypeByParent)
	mux.HandleFunc("GET /api/trees/{tree}/shared-folders", treeHandler.ListSharedFolders)
	mux.HandleFunc("GET /api/trees/{tree}/default-content-type", treeHandler.GetDefaultContentType)

	// Tree maintenance routes
	mux.HandleFunc("POST /api/trees/{tree}/consistency", treeHandler.CheckConsistency)
	mux.HandleFunc("POST /api/trees/{tree}/duplicates/clean", treeHandler.CleanDuplicates)
	mux.HandleFunc("POST /api/cache/clear", treeHandler.ClearCache)

	// Infostore document routes
	mux.HandleFunc("GET /api/infostore/documents", infostoreHandler.ListDocuments)
	mux.HandleFunc("POST /api/infostore/documents", infostoreHandler.CreateDocument)
	mux.HandleFunc("GET /api/infostore/documents/{id}", infostoreHandler.GetDocument)
	mux.HandleFunc("PATCH /api/infostore/documents/{id}", infostoreHandler.UpdateDocument)
	mux.HandleFunc("DELETE /api/infostore/documents/{id}", infostoreHandler.DeleteDocument)

	// Infostore version routes
	mux.HandleFunc("GET /api/infostore/documents/{id}/versions", infostoreHandler.ListVersions)
	mux.HandleFunc("POST /api/infostore/documents/{id}/versions", infostoreHandler.AddVersion)
	mux.HandleFunc("PUT /api/infostore/documents/{id}/versions/{number}/current", infostoreHandler.SetCurrentVersion)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	h = middleware.Auth(jwtVerifier)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server starting", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
