package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/evanfisk/citriage/internal/adapter/driven/github"
	sqliteadapter "github.com/evanfisk/citriage/internal/adapter/driven/sqlite"
	"github.com/evanfisk/citriage/internal/application"
	"github.com/evanfisk/citriage/internal/config"
	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"tick_interval", cfg.TickInterval,
		"recent_window", cfg.RecentWindow,
		"repos", cfg.Repos,
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

	// 5. Wire storage adapters.
	prStore := sqliteadapter.NewPRRepo(db)
	checkStore := sqliteadapter.NewCheckRepo(db)
	repoStore := sqliteadapter.NewRepoRepo(db)
	syncStore := sqliteadapter.NewSyncRepo(db)

	// 6. Seed the watch list from configuration. Already-watched repos are fine.
	for _, fullName := range cfg.Repos {
		repo, err := model.NewRepository(fullName)
		if err != nil {
			return err
		}
		if err := repoStore.Add(ctx, repo); err != nil {
			if errors.Is(err, driven.ErrRepoAlreadyExists) {
				continue
			}
			return err
		}
		slog.Info("repository added to watch list", "repo", fullName)
	}

	// 7. Wire the pipeline: quota gate, GitHub client, cache, services.
	gate := application.NewQuotaGate(cfg.QuotaRequestsPerHour, cfg.QuotaMaxInFlight, cfg.QuotaWaitTimeout)
	ghClient := githubadapter.NewClient(cfg.GitHubToken, gate)
	cache := application.NewSnapshotCache(cfg.CacheTTL)

	discovery := application.NewDiscoveryService(ghClient, cache, cfg.RecentWindow, cfg.MaxConcurrentCheckFetches)
	detection := application.NewDetectionService(prStore, checkStore, cfg.RecentWindow)
	synchronization := application.NewSyncService(syncStore)

	monitor := application.NewMonitor(discovery, detection, synchronization, repoStore, application.MonitorConfig{
		MaxConcurrentRepos: cfg.MaxConcurrentRepos,
		CycleTimeout:       cfg.CycleTimeout,
		TickInterval:       cfg.TickInterval,
	})

	slog.Info("citriage started")

	// 8. Run the monitor until a shutdown signal arrives.
	monitor.Start(ctx)

	slog.Info("shutdown complete")
	return nil
}
