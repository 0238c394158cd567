package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	"procurement-workflow/internal/api"
	"procurement-workflow/internal/app"
	"procurement-workflow/internal/config"
	"procurement-workflow/internal/realtime"
	"procurement-workflow/internal/temporal"
	"procurement-workflow/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		fatal("open store", err)
	}
	defer closeStore()

	syncer := realtime.New(store, cfg.CollectionPath(), logger)
	if err := syncer.Start(ctx); err != nil {
		fatal("start synchronizer", err)
	}
	defer syncer.Stop()

	endpoints := app.NewEndpointRouter(cfg, store)
	orchestrator := app.NewOrchestrator(cfg, store, endpoints, app.OpenArchive(ctx, cfg, logger), logger)

	// Temporal workers run in another process and cannot reach the
	// in-memory store, so demo mode records results in-process.
	var results api.ResultDeliverer
	if cfg.UsesMemoryStore() {
		results = api.RecorderDeliverer{Recorder: upload.NewResultRecorder(store, cfg.CollectionPath(), logger)}
	} else {
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		if err != nil {
			fatal("connect temporal", err)
		}
		defer temporalClient.Close()
		results = temporal.NewSignalDeliverer(temporalClient, cfg.TemporalTaskQueue, cfg.WorkflowIDPrefix)
	}

	h := api.NewHandler(cfg, syncer, orchestrator, results, endpoints, logger)
	router := api.NewRouter(h)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.HTTPPort, "collection", cfg.CollectionPath())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("http server failed", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
}
