package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/feedvault/feedvault/app/api"
	"github.com/feedvault/feedvault/app/cfg"
	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/events"
	"github.com/feedvault/feedvault/app/feed"
	"github.com/feedvault/feedvault/app/remote"
	"github.com/feedvault/feedvault/app/store"
	feedsync "github.com/feedvault/feedvault/app/sync"
	"github.com/feedvault/feedvault/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown.
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting FeedVault", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	folderRepo := database.NewFolderRepository(db)
	feedRepo := database.NewFeedRepository(db)
	articleRepo := database.NewArticleRepository(db)
	statusRepo := database.NewSyncStatusRepository(db)
	opRepo := database.NewPendingOperationRepository(db)

	bus := events.NewBus()
	st := store.NewStore(folderRepo, feedRepo, articleRepo, bus)
	if err := st.Load(); err != nil {
		slog.Error("Failed to load store", "error", err)
		os.Exit(1)
	}
	feeds, folders := st.Stats()
	slog.Info("Store loaded", "feeds", feeds, "folders", folders)

	meta, err := store.LoadMetadata(filepath.Join(appCfg.DataDir, "sync.yml"))
	if err != nil {
		slog.Error("Failed to load sync metadata", "error", err)
		os.Exit(1)
	}

	var client remote.Client
	if appCfg.RemoteEndpoint != "" {
		client = remote.NewHTTPClient(appCfg.RemoteEndpoint, appCfg.RemoteToken, appCfg.UserAgent, nil)
		if err := meta.SetEndpoint(appCfg.RemoteEndpoint, appCfg.RemoteUsername); err != nil {
			slog.Error("Failed to record remote endpoint", "error", err)
			os.Exit(1)
		}
		slog.Info("Remote sync enabled", "endpoint", appCfg.RemoteEndpoint)
	} else {
		slog.Warn("Remote sync disabled (REMOTE_ENDPOINT not set), running local-only")
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	provider := feedsync.NewProvider(st, client, opRepo, statusRepo, meta, appCfg.RemoteUsername, appCfg.StatusWatermark)
	provider.Start(runCtx)
	if client != nil {
		provider.Subscribe(runCtx)
	}

	refresher := feed.NewRefresher(feed.NewFetcher(appCfg.UserAgent), feed.NewParser(), st, statusRepo)

	scheduler := tasks.NewScheduler(st, refresher, provider)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Scheduler started", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)

	handler := api.NewHandler(st, provider, refresher, scheduler, articleRepo, opRepo, statusRepo)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down")
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
