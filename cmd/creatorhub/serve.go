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
	httphandler "github.com/ericfisherdev/creatorhub/internal/adapter/driving/http"
	"github.com/ericfisherdev/creatorhub/internal/application"
	"github.com/ericfisherdev/creatorhub/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the task dispatcher",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func runServe() error {
	// 1. Load configuration (fail fast on a missing or malformed secret key).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"adapter_timeout", cfg.AdapterTimeout,
		"dispatch_interval", cfg.DispatchInterval,
		"kafka_enabled", cfg.Kafka.Enabled(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database and run migrations.
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	// 4. Wire the registry and services.
	c, err := newCore(cfg, db)
	if err != nil {
		return err
	}

	// 5. Publish media ingest jobs when a broker is configured.
	if cfg.Kafka.Enabled() {
		publisher, err := kafka.NewBroker(config.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				slog.Error("error closing kafka publisher", "error", err)
			}
		}()
		c.taskSvc.EnableMediaIngest(publisher, cfg.Worker.MaxAttempts)
		slog.Info("media ingest enabled", "topic", cfg.Kafka.Topic)
	}

	// 6. Fail tasks a previous process left running, then start the dispatcher.
	recovered, err := c.taskSvc.RecoverInterrupted(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		slog.Warn("recovered interrupted tasks", "count", recovered)
	}

	dispatcher := application.NewDispatcher(c.tasks, c.taskSvc, cfg.DispatchInterval, cfg.DispatchConcurrency)
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Start(ctx)
	}()

	// 7. Create HTTP handler.
	apiHandler := httphandler.NewHandler(c.taskSvc, c.engine, c.credentials, c.exec, c.platforms, c.automations, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Synchronous task execution waits on the adapter call.
		WriteTimeout: cfg.AdapterTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("creatorhub started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// In-flight tasks record their outcome before the database closes.
	<-dispatcherDone

	slog.Info("shutdown complete")
	return nil
}
