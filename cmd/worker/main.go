package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"procurement-workflow/internal/app"
	"procurement-workflow/internal/config"
	appTemporal "procurement-workflow/internal/temporal"
	"procurement-workflow/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger().With("system", "worker")
	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	if cfg.UsesMemoryStore() {
		fatal("worker needs a shared store", errors.New("POSTGRES_DSN=memory is only usable by the api binary"))
	}

	store, closeStore, err := app.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		fatal("open store", err)
	}
	defer closeStore()

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		fatal("connect temporal", err)
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{
		Results: upload.NewResultRecorder(store, cfg.CollectionPath(), logger),
		Logger:  logger,
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.StageVerificationWorkflow, workflow.RegisterOptions{Name: appTemporal.StageVerificationWorkflowName})
	w.RegisterActivity(activities.ApplyVerificationResultActivity)

	logger.Info("worker running", "task_queue", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		fatal("worker stopped with error", err)
	}
}
