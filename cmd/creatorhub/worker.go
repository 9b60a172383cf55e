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

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/creatorhub/internal/adapter/driven/kafka"
	"github.com/ericfisherdev/creatorhub/internal/adapter/driven/objectstore"
	sqliteadapter "github.com/ericfisherdev/creatorhub/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

const mediaDownloadTimeout = 2 * time.Minute

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job workers",
	Long: `Consume background jobs from Kafka and run them with a bounded worker pool.

Requires CREATORHUB_KAFKA_BROKERS and CREATORHUB_S3_ENDPOINT.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runWorker()
	},
}

func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled() {
		return errors.New("worker requires CREATORHUB_KAFKA_BROKERS")
	}
	if !cfg.ObjectStore.Enabled() {
		return errors.New("worker requires CREATORHUB_S3_ENDPOINT")
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.GroupID,
		"concurrency", cfg.Worker.Concurrency,
		"max_attempts", cfg.Worker.MaxAttempts,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	objects, err := objectstore.NewMinioStore(cfg.ObjectStore)
	if err != nil {
		return err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return err
	}
	slog.Info("object store ready", "endpoint", cfg.ObjectStore.Endpoint, "bucket", cfg.ObjectStore.Bucket)

	broker, err := kafka.NewBroker(cfg.Kafka)
	if err != nil {
		return err
	}
	defer func() {
		if err := broker.Close(); err != nil {
			slog.Error("error closing kafka broker", "error", err)
		}
	}()

	pool := application.NewWorkerPool(broker, sqliteadapter.NewJobRepo(db), application.WorkerPoolConfig{
		Concurrency: cfg.Worker.Concurrency,
		MaxAttempts: cfg.Worker.MaxAttempts,
		BaseDelay:   cfg.Worker.BaseDelay,
		Retention:   cfg.Worker.Retention,
	})
	pool.Handle(model.JobMediaIngest, application.NewMediaIngestHandler(&http.Client{Timeout: mediaDownloadTimeout}, objects))

	if err := pool.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
