package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/sanitize"
	"procurement-workflow/internal/storage"
	"procurement-workflow/internal/verification"
)

type Store interface {
	GetDocument(ctx context.Context, path, id string) (storage.Document, error)
	UpdateFields(ctx context.Context, path, id string, fields domain.Fields) error
}

type ClassifierSource interface {
	ClassifierFor(ctx context.Context, stage domain.Stage) (verification.Classifier, error)
}

// Archive keeps a copy of every submitted file.
type Archive interface {
	PutSubmission(ctx context.Context, processID, stage, submissionID, fileName, contentType string, content []byte) (string, error)
}

type File struct {
	Name        string
	ContentType string
	Content     []byte
}

type Outcome struct {
	SubmissionID   string               `json:"submissionId"`
	ProcessID      string               `json:"processId"`
	Stage          domain.Stage         `json:"stage"`
	Status         domain.StepStatus    `json:"status"`
	ProcessStatus  domain.ProcessStatus `json:"processStatus"`
	ConflictReason string               `json:"conflictReason,omitempty"`
	Deferred       bool                 `json:"deferred"`
	ArchiveKey     string               `json:"archiveKey,omitempty"`
}

type Deps struct {
	Store          Store
	CollectionPath string
	Classifiers    ClassifierSource
	// Archive is optional.
	Archive Archive
	// InFlight defaults to a per-(process, stage) marker.
	InFlight *InFlight
	Logger   *slog.Logger
	Now      func() time.Time
}

type Orchestrator struct {
	store       Store
	path        string
	classifiers ClassifierSource
	archive     Archive
	inFlight    *InFlight
	logger      *slog.Logger
	now         func() time.Time
}

func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		store:       deps.Store,
		path:        deps.CollectionPath,
		classifiers: deps.Classifiers,
		archive:     deps.Archive,
		inFlight:    deps.InFlight,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if o.inFlight == nil {
		o.inFlight = NewInFlight(false)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("system", "upload")
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func (o *Orchestrator) InFlight() *InFlight {
	return o.inFlight
}

// Submit moves stage of process into analyzing for file and hands the file to
// the stage's classifier. A rejected transition or a held in-flight marker
// issues no store write. A failed dispatch leaves the stage analyzing.
func (o *Orchestrator) Submit(ctx context.Context, processID string, stage domain.Stage, file File) (Outcome, error) {
	processID = sanitize.String(processID)
	stage = domain.Stage(sanitize.String(string(stage)))
	if processID == "" {
		return Outcome{}, fmt.Errorf("%w: empty process id", ErrProcessNotFound)
	}
	if !stage.IsValid() {
		return Outcome{}, fmt.Errorf("%w: %q", domain.ErrInvalidStage, stage)
	}
	fileName := sanitize.String(file.Name)
	if fileName == "" || len(file.Content) == 0 {
		return Outcome{}, fmt.Errorf("%w: a named, non-empty file is required", ErrInvalidFile)
	}

	release, ok := o.inFlight.Acquire(processID, stage)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s/%s", ErrSubmissionInFlight, processID, stage)
	}
	defer release()

	process, err := loadProcess(ctx, o.store, o.path, processID)
	if err != nil {
		return Outcome{}, err
	}
	if err := domain.CanStart(process, stage); err != nil {
		o.logger.Info("submission rejected", "process_id", processID, "stage", stage, "reason", err)
		return Outcome{}, err
	}
	classifier, err := o.classifiers.ClassifierFor(ctx, stage)
	if err != nil {
		return Outcome{}, err
	}

	submissionID := uuid.NewString()
	logger := o.logger.With("process_id", processID, "stage", stage, "submission_id", submissionID)

	analyzing, fields := domain.BeginAnalysis(process, stage, submissionID, fileName, o.now())
	if err := writeFields(ctx, o.store, o.path, processID, fields); err != nil {
		return Outcome{}, err
	}
	logger.Info("stage analyzing", "file_name", fileName)

	out := Outcome{
		SubmissionID:  submissionID,
		ProcessID:     processID,
		Stage:         stage,
		Status:        domain.StepAnalyzing,
		ProcessStatus: analyzing.Status,
	}

	if o.archive != nil {
		key, err := o.archive.PutSubmission(ctx, processID, string(stage), submissionID, fileName, file.ContentType, file.Content)
		if err != nil {
			logger.Warn("archive submission failed", "error", err)
		} else {
			out.ArchiveKey = key
		}
	}

	decision, err := classifier.Classify(ctx, verification.Submission{
		SubmissionID: submissionID,
		ProcessID:    processID,
		Stage:        stage,
		FileName:     fileName,
		ContentType:  file.ContentType,
		Content:      file.Content,
	})
	if err != nil {
		logger.Error("verification dispatch failed", "error", err)
		return out, fmt.Errorf("%w: %w", ErrDispatchFailure, err)
	}
	if decision.Deferred {
		out.Deferred = true
		logger.Info("submission dispatched")
		return out, nil
	}

	if !decision.Result.Status.IsResult() {
		return out, fmt.Errorf("%w: classifier returned %q", ErrInvalidResult, decision.Result.Status)
	}
	decided, fields := domain.ApplyResult(analyzing, stage, decision.Result)
	if err := writeFields(ctx, o.store, o.path, processID, fields); err != nil {
		return out, err
	}

	out.Status = decision.Result.Status
	out.ProcessStatus = decided.Status
	if reason := decided.Step(stage).ConflictReason; reason != nil {
		out.ConflictReason = *reason
	}
	logger.Info("stage decided", "status", out.Status, "process_status", out.ProcessStatus)
	return out, nil
}

func loadProcess(ctx context.Context, store Store, path, processID string) (domain.Process, error) {
	doc, err := store.GetDocument(ctx, path, processID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Process{}, fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
		}
		return domain.Process{}, fmt.Errorf("load process %s: %w", processID, err)
	}
	return domain.Map(doc.Data, doc.ID), nil
}

func writeFields(ctx context.Context, store Store, path, processID string, fields domain.Fields) error {
	if err := store.UpdateFields(ctx, path, processID, fields); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
		}
		return fmt.Errorf("update process %s: %w", processID, err)
	}
	return nil
}
