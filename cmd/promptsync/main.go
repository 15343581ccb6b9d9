package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/promptnexus/promptsync/internal/config"
	"github.com/promptnexus/promptsync/internal/promptsync"
	"github.com/promptnexus/promptsync/internal/remote"
	"github.com/promptnexus/promptsync/internal/syncer"
)

const defaultStateFile = "promptsync_state.json"

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file; environment variables are used when empty")
		stateDSN   = flag.String("state-dsn", "", "local state backend DSN (file path, file://, memory://, sqlite://, postgres://)")
		interval   = flag.Duration("interval", 0, "sync interval override")
		timeout    = flag.Duration("timeout", 0, "per-cycle sync timeout override")
		once       = flag.Bool("once", false, "run a single sync cycle and exit")
		exportPath = flag.String("export", "", "write a document backup to this path and exit")
		importPath = flag.String("import", "", "replace the document from a backup at this path before syncing")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "promptsync: ", log.LstdFlags)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("configuration failed: %v", err)
	}
	if *stateDSN != "" {
		cfg.StateDSN = *stateDSN
	}
	if *interval > 0 {
		cfg.SyncInterval = *interval
	}
	if *timeout > 0 {
		cfg.SyncTimeout = *timeout
	}
	if cfg.StateDSN == "" {
		cfg.StateDSN = defaultStateFile
	}

	backend, err := promptsync.BuildStateBackendFromDSN(cfg.StateDSN)
	if err != nil {
		logger.Fatalf("state backend %q failed: %v", cfg.StateDSN, err)
	}
	store := promptsync.NewLocalStore(backend, logger)
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Printf("closing state backend failed: %v", closeErr)
		}
	}()

	adapter, err := remote.NewAdapter(linkedProvider(cfg.Provider, store), nil)
	if err != nil {
		logger.Fatalf("remote adapter failed: %v", err)
	}

	engine := syncer.NewEngine(syncer.EngineOptions{
		Store:   store,
		Adapter: adapter,
		Logger:  logger,
		Timeout: cfg.SyncTimeout,
	})
	service := promptsync.NewService(promptsync.ServiceOptions{
		Store:  store,
		Logger: logger,
		Sync:   engine,
	})
	if err := service.EnsureAdminSecret(cfg.AdminSecret); err != nil {
		logger.Fatalf("setting admin secret failed: %v", err)
	}
	if cfg.RequirePasswordForAdd != service.RequirePasswordForAdd() {
		if err := service.SetRequirePasswordForAdd(cfg.RequirePasswordForAdd); err != nil {
			logger.Printf("updating settings failed: %v", err)
		}
	}

	if *importPath != "" {
		if err := runImport(service, *importPath); err != nil {
			logger.Fatalf("import failed: %v", err)
		}
		logger.Printf("imported document from %s", *importPath)
	}
	if *exportPath != "" {
		if err := runExport(service, *exportPath); err != nil {
			logger.Fatalf("export failed: %v", err)
		}
		logger.Printf("exported document to %s", *exportPath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		cycleCtx, cancel := context.WithTimeout(ctx, cfg.SyncTimeout)
		defer cancel()
		report := engine.SyncOnce(cycleCtx)
		if report.Err != nil {
			logger.Fatalf("sync failed: %v", report.Err)
		}
		logger.Printf("sync finished: %s", report.Status)
		return
	}

	watchPath, _ := promptsync.StateFilePathFromDSN(cfg.StateDSN)
	scheduler := syncer.NewScheduler(syncer.SchedulerOptions{
		Engine:    engine,
		Logger:    logger,
		Interval:  cfg.SyncInterval,
		Timeout:   cfg.SyncTimeout,
		WatchPath: watchPath,
	})

	logger.Printf("syncing with %s provider every %s", cfg.Provider.Name(), cfg.SyncInterval)
	scheduler.Start(ctx)
	<-ctx.Done()
	scheduler.Stop()
	logger.Printf("shutting down")
}

// linkedProvider fills in remote coordinates persisted by earlier runs.
// A gist created by a first push is remembered in the local remote link,
// so later starts without GITHUB_GIST_ID keep using the same gist instead
// of creating a fresh one.
func linkedProvider(provider config.Provider, store *promptsync.LocalStore) config.Provider {
	gist, ok := provider.(config.Gist)
	if !ok || gist.GistID != "" {
		return provider
	}
	if link := store.LoadRemoteLink(); link.GistID != "" {
		gist.GistID = link.GistID
	}
	return gist
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.FromEnv()
}

func runImport(service *promptsync.Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return service.Import(data)
}

func runExport(service *promptsync.Service, path string) error {
	data, err := service.Export()
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
