package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitebuilder/internal/api"
	"sitebuilder/internal/config"
	"sitebuilder/internal/db"
	"sitebuilder/internal/editor"
	"sitebuilder/internal/repository"
	"sitebuilder/internal/services"
	"sitebuilder/internal/telemetry"
)

// pageBackend is everything the page store must provide regardless of
// whether it is backed by Postgres or the filesystem.
type pageBackend interface {
	api.PageStore
	services.VersionStore
	services.RetentionStore
}

func main() {
	log.Println("🚀 Starting Site Builder...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing first so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("sitebuilder", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Select the storage backend
	var (
		pages      pageBackend
		library    api.LibraryStore
		users      api.UserStore
		closeStore func() error
	)

	switch cfg.StorageBackend {
	case "postgres":
		database, err := db.NewGorm(cfg)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		closeStore = database.Close

		pages = repository.NewPageRepository(database.DB)

		libRepo := repository.NewLibraryRepository(database.DB)
		if err := libRepo.Seed(context.Background()); err != nil {
			log.Fatalf("❌ Failed to seed component library: %v", err)
		}
		library = libRepo
		users = repository.NewUserRepository(database.DB)

	case "file":
		fileRepo, err := repository.NewFilePageRepository(cfg.DataDir)
		if err != nil {
			log.Fatalf("❌ Failed to open data dir: %v", err)
		}
		closeStore = fileRepo.Close
		pages = fileRepo

		admin, err := repository.NewFileAdminRepository(cfg.DataDir)
		if err != nil {
			log.Fatalf("❌ Failed to open admin store: %v", err)
		}
		library = admin
		users = admin

		log.Printf("✓ File storage at %s", cfg.DataDir)
	}

	// Version writer pool drains snapshot jobs off the save path
	publisher := services.NewPublisher(pages, cfg.VersionWorkers, cfg.VersionQueueSize)
	publisher.Start()

	// Nightly retention trims old version snapshots
	retention := services.NewRetention(pages, cfg.RetentionSchedule, cfg.RetentionKeep)
	if err := retention.Start(); err != nil {
		log.Fatalf("❌ Failed to start retention job: %v", err)
	}

	uploader, err := services.NewUploader(cfg.UploadDir, "/uploads")
	if err != nil {
		log.Fatalf("❌ Failed to prepare upload dir: %v", err)
	}

	// Editor hub owns one live session per page being edited
	hub := editor.NewHub(editor.HubConfig{
		Store:        pages,
		Versions:     publisher,
		Origin:       cfg.AllowedOrigin,
		Debounce:     cfg.AutosaveInterval,
		SaveTimeout:  cfg.SaveTimeout,
		HistoryLimit: cfg.HistoryLimit,
		Theme:        cfg.Theme,
		Locale:       cfg.Locale,
	})
	hub.Start()

	// Initialize handlers with dependency injection
	handler := api.NewHandler(pages, library, users, uploader, publisher)
	wsHandler := api.NewWebSocketHandler(hub)

	router := api.SetupRoutes(handler, wsHandler, uploader.Dir())

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 API Endpoints:")
		log.Printf("   GET    /api/pages                  - List pages")
		log.Printf("   POST   /api/pages                  - Create page")
		log.Printf("   GET    /api/pages/:slug            - Get page (mode=draft|published)")
		log.Printf("   POST   /api/pages/:slug/save       - Save draft")
		log.Printf("   POST   /api/pages/:slug/publish    - Publish page")
		log.Printf("   GET    /api/pages/:slug/versions   - List version snapshots")
		log.Printf("   GET    /api/components             - Component palette")
		log.Printf("   WS     /ws/editor/:slug            - Live editor session")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Hub first so in-flight drafts are flushed before the pool drains
	hub.Shutdown()
	publisher.Shutdown()
	retention.Stop()

	if closeStore != nil {
		if err := closeStore(); err != nil {
			log.Printf("⚠️  Failed to close store: %v", err)
		}
	}

	log.Println("✓ Server shutdown complete")
}
