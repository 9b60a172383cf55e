package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/creatorhub/internal/adapter/driven/platform"
	sqliteadapter "github.com/ericfisherdev/creatorhub/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/vault"
)

// openDatabase opens the SQLite database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqliteadapter.DB, error) {
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", cfg.DBPath)

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("migrations complete")
	return db, nil
}

func closeDatabase(db *sqliteadapter.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// core bundles the services shared by the serve command.
type core struct {
	platforms   *sqliteadapter.PlatformRepo
	tasks       *sqliteadapter.TaskRepo
	automations *sqliteadapter.AutomationRepo
	credentials *application.CredentialVault
	exec        *application.ExecutionService
	taskSvc     *application.TaskService
	engine      *application.OrchestrationEngine
}

// newCore builds the adapter registry and the services on top of db. It fails
// when any platform type is left without an adapter.
func newCore(cfg *config.Config, db *sqliteadapter.DB) (*core, error) {
	cipher, err := vault.NewCipher(cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	catalog, err := config.LoadCatalog(cfg.PlatformsFile)
	if err != nil {
		return nil, err
	}
	adapters, err := platform.NewAdapters(catalog)
	if err != nil {
		return nil, err
	}
	registry := application.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	if missing := registry.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: no adapter registered for %v", model.ErrConfig, missing)
	}

	c := &core{
		platforms:   sqliteadapter.NewPlatformRepo(db),
		tasks:       sqliteadapter.NewTaskRepo(db),
		automations: sqliteadapter.NewAutomationRepo(db),
		credentials: application.NewCredentialVault(cipher, sqliteadapter.NewCredentialRepo(db)),
	}
	c.exec = application.NewExecutionService(c.platforms, registry, c.credentials, cfg.AdapterTimeout)
	c.taskSvc = application.NewTaskService(c.tasks, c.platforms, c.exec)
	c.engine = application.NewOrchestrationEngine(c.automations, c.taskSvc)
	return c, nil
}
