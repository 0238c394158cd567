package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"procurement-workflow/internal/config"
	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/realtime"
	"procurement-workflow/internal/storage"
	"procurement-workflow/internal/upload"
	"procurement-workflow/internal/verification"
)

// Store is the backing store surface the binaries share.
type Store interface {
	upload.Store
	realtime.Watcher
	verification.SettingsStore
	Ping(ctx context.Context) error
	PutDocument(ctx context.Context, path, id string, data map[string]any) error
}

// OpenStore connects the configured backing store. Postgres gets its schema
// applied; the in-memory store is seeded with demo processes.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, func(), error) {
	if cfg.UsesMemoryStore() {
		store := storage.NewMemoryStore()
		if err := SeedDemo(ctx, store, cfg.CollectionPath()); err != nil {
			return nil, nil, err
		}
		logger.Info("using in-memory store", "collection", cfg.CollectionPath())
		return store, func() {}, nil
	}

	store, err := storage.NewPostgresStore(cfg.StoreDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// OpenArchive returns the submission archive, or nil when archiving is off.
// Archiving is best effort, so connection problems only disable it.
func OpenArchive(ctx context.Context, cfg config.Config, logger *slog.Logger) upload.Archive {
	if cfg.MinioArchiveBucket == "" {
		return nil
	}
	client, err := storage.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		logger.Warn("submission archive disabled", "error", err)
		return nil
	}
	archive, err := storage.NewMinioStore(ctx, client, cfg.MinioArchiveBucket)
	if err != nil {
		logger.Warn("submission archive disabled", "bucket", cfg.MinioArchiveBucket, "error", err)
		return nil
	}
	return archive
}

func EndpointDefaults(cfg config.Config) map[domain.Stage]string {
	return map[domain.Stage]string{
		domain.StageConfirmation: cfg.ConfirmationEndpointURL,
		domain.StageDelivery:     cfg.DeliveryEndpointURL,
	}
}

func NewEndpointRouter(cfg config.Config, settings verification.SettingsStore) *verification.Router {
	httpClient := &http.Client{}
	fallback := verification.NewRandomClassifier(cfg.FallbackVerifiedRatio, nil)
	return verification.NewRouter(settings, EndpointDefaults(cfg), fallback, func(endpoint string) verification.Classifier {
		return verification.NewExternalServiceClassifier(endpoint, httpClient, cfg.DispatchTimeout(), cfg.DispatchMaxAttempts)
	})
}

func NewOrchestrator(cfg config.Config, store upload.Store, classifiers upload.ClassifierSource, archive upload.Archive, logger *slog.Logger) *upload.Orchestrator {
	return upload.New(upload.Deps{
		Store:          store,
		CollectionPath: cfg.CollectionPath(),
		Classifiers:    classifiers,
		Archive:        archive,
		InFlight:       upload.NewInFlight(cfg.SerializeUploads),
		Logger:         logger,
	})
}

// SeedDemo writes a few processes in different stages, standing in for the
// external ingestion that creates processes in production.
func SeedDemo(ctx context.Context, store interface {
	PutDocument(ctx context.Context, path, id string, data map[string]any) error
}, path string) error {
	created := time.Now().UTC().Add(-72 * time.Hour)
	demo := []struct {
		id, supplier           string
		confirmation, delivery domain.StepStatus
		status                 domain.ProcessStatus
	}{
		{id: "PO-2025-001", supplier: "Northwind Components", confirmation: domain.StepPending, delivery: domain.StepPending, status: domain.ProcessOpen},
		{id: "PO-2025-002", supplier: "Contoso Metals", confirmation: domain.StepVerified, delivery: domain.StepPending, status: domain.ProcessOpen},
		{id: "PO-2025-003", supplier: "Fabrikam Logistics", confirmation: domain.StepConflict, delivery: domain.StepPending, status: domain.ProcessConflict},
	}
	for i, d := range demo {
		doc := map[string]any{
			"id":           d.id,
			"supplierName": d.supplier,
			"status":       string(d.status),
			"createdAt":    created.Add(time.Duration(i) * time.Hour).Format(time.RFC3339Nano),
			"order":        map[string]any{"status": string(domain.StepVerified), "fileName": d.id + ".pdf"},
			"confirmation": map[string]any{"status": string(d.confirmation)},
			"delivery":     map[string]any{"status": string(d.delivery)},
		}
		if d.confirmation == domain.StepConflict {
			doc["confirmation"].(map[string]any)["conflictReason"] = "Confirmed quantity differs from ordered quantity"
		}
		if err := store.PutDocument(ctx, path, d.id, doc); err != nil {
			return fmt.Errorf("seed %s: %w", d.id, err)
		}
	}
	return nil
}
