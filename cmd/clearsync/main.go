package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/clearsync/internal/adapter/driven/friendsapi"
	"github.com/ericfisherdev/clearsync/internal/adapter/driven/gw2api"
	sqliteadapter "github.com/ericfisherdev/clearsync/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/clearsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/clearsync/internal/application"
	"github.com/ericfisherdev/clearsync/internal/config"
	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_mode", cfg.APIMode,
		"clears_interval", cfg.ClearsInterval,
		"friends_enabled", cfg.FriendsEnabled,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire persistence adapters.
	credStore, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	friendStore := sqliteadapter.NewFriendRepo(db)

	// 6. Seed in-memory settings from the stores.
	settings := application.NewSettings(cfg.FriendsEnabled)
	data := application.NewData()

	creds, err := credStore.List(ctx)
	if err != nil {
		return err
	}
	friends, err := friendStore.List(ctx)
	if err != nil {
		return err
	}
	settings.Seed(creds, friends)
	slog.Info("settings loaded", "credentials", len(creds), "friends", len(friends))

	// 7. Create remote clients.
	var api driven.ProgressionClient
	switch cfg.APIMode {
	case config.APIModeMock:
		api = gw2api.NewMock()
		slog.Info("using mock progression api")
	default:
		api = gw2api.NewClient(cfg.APIURL)
	}

	// Without a friend service URL sharing is disabled and every job handler
	// that talks to the friends client drops before dialing, so the
	// placeholder address is never contacted.
	var friendsClient driven.FriendsClient
	if cfg.FriendsAPIURL != "" {
		friendsClient = friendsapi.NewClient(cfg.FriendsAPIURL)
	} else {
		friendsClient = friendsapi.NewClient("http://unconfigured.invalid/")
	}

	// 8. Start the engine: dispatcher plus both refresher loops.
	workers := application.StartWorkers(ctx, settings, data, api, friendsClient, cfg.ClearsInterval)

	// 9. Create HTTP handler and server.
	handler := httphandler.NewHandler(settings, data, workers, credStore, friendStore, slog.Default())
	mux := httphandler.NewServeMux(handler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("clearsync started",
		"listen_addr", cfg.ListenAddr,
		"clears_interval", cfg.ClearsInterval,
	)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 11. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
