package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement-workflow/internal/app"
	"procurement-workflow/internal/config"
	"procurement-workflow/internal/events"
	"procurement-workflow/internal/storage"
	"procurement-workflow/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger().With("system", "event-handler")
	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	if cfg.UsesMemoryStore() {
		fatal("event-handler needs a shared store", errors.New("POSTGRES_DSN=memory is only usable by the api binary"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		fatal("open store", err)
	}
	defer closeStore()

	minioClient, err := storage.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		fatal("connect minio", err)
	}
	inbox, err := storage.NewMinioStore(ctx, minioClient, cfg.MinioInboxBucket)
	if err != nil {
		fatal("open inbox bucket", err)
	}

	endpoints := app.NewEndpointRouter(cfg, store)
	orchestrator := app.NewOrchestrator(cfg, store, endpoints, app.OpenArchive(ctx, cfg, logger), logger)

	source := events.NewMinioUploadEventSource(minioClient, inbox.Bucket(), "", "")
	source.OnSkip(func(objectKey string, err error) {
		logger.Warn("skipping inbox object", "object", objectKey, "error", err)
	})

	logger.Info("listening for inbox uploads", "bucket", inbox.Bucket())
	err = source.Run(ctx, func(parent context.Context, event events.UploadEvent) error {
		submitCtx, cancel := context.WithTimeout(parent, time.Duration(cfg.DispatchMaxAttempts)*cfg.DispatchTimeout()+15*time.Second)
		defer cancel()

		content, err := inbox.GetObject(submitCtx, event.ObjectKey, cfg.MaxUploadBytes)
		if errors.Is(err, storage.ErrObjectTooLarge) {
			logger.Warn("rejecting oversize inbox object", "object", event.ObjectKey, "limit", cfg.MaxUploadBytes)
			return nil
		}
		if err != nil {
			logger.Error("read inbox object", "object", event.ObjectKey, "error", err)
			return nil
		}

		out, err := orchestrator.Submit(submitCtx, event.ProcessID, event.Stage, upload.File{
			Name:    event.FileName,
			Content: content,
		})
		if err != nil {
			// One bad upload must not stop the listener.
			logger.Warn("inbox submission failed", "object", event.ObjectKey, "process_id", event.ProcessID, "stage", event.Stage, "error", err)
			return nil
		}
		logger.Info("inbox submission accepted",
			"object", event.ObjectKey,
			"submission_id", out.SubmissionID,
			"status", out.Status,
			"deferred", out.Deferred,
		)
		return nil
	})
	if err != nil {
		fatal("event-handler stopped with error", err)
	}
}
