package upload

import (
	"context"
	"fmt"
	"log/slog"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/sanitize"
)

// Applied reports what ResultRecorder.Record did.
type Applied struct {
	ProcessID     string               `json:"processId"`
	Stage         domain.Stage         `json:"stage"`
	Status        domain.StepStatus    `json:"status"`
	ProcessStatus domain.ProcessStatus `json:"processStatus"`
	Ignored       bool                 `json:"ignored"`
	Reason        string               `json:"reason,omitempty"`
}

// ResultRecorder writes verification results delivered after a dispatch.
type ResultRecorder struct {
	store  Store
	path   string
	logger *slog.Logger
}

func NewResultRecorder(store Store, collectionPath string, logger *slog.Logger) *ResultRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultRecorder{store: store, path: collectionPath, logger: logger.With("system", "results")}
}

// Record applies result to stage in one combined write together with the
// re-derived aggregate status. Only a stage awaiting a decision accepts one:
// results for a stage that is not analyzing, for a delivery still gated by
// its confirmation, or for a superseded submission are ignored without a
// write.
func (r *ResultRecorder) Record(ctx context.Context, processID string, stage domain.Stage, result domain.Result) (Applied, error) {
	processID = sanitize.String(processID)
	if !stage.IsSubmittable() {
		return Applied{}, fmt.Errorf("%w: %q", domain.ErrInvalidStage, stage)
	}
	if !result.Status.IsResult() {
		return Applied{}, fmt.Errorf("%w: status %q", ErrInvalidResult, result.Status)
	}
	result.ConflictReason = sanitize.String(result.ConflictReason)
	result.SubmissionID = sanitize.String(result.SubmissionID)

	process, err := loadProcess(ctx, r.store, r.path, processID)
	if err != nil {
		return Applied{}, err
	}

	current := process.Step(stage)
	if reason := rejectResult(process, stage, current, result); reason != "" {
		r.logger.Info("result ignored",
			"process_id", processID,
			"stage", stage,
			"status", result.Status,
			"submission_id", result.SubmissionID,
			"reason", reason,
		)
		return Applied{
			ProcessID:     processID,
			Stage:         stage,
			Status:        current.Status,
			ProcessStatus: process.Status,
			Ignored:       true,
			Reason:        reason,
		}, nil
	}

	next, fields := domain.ApplyResult(process, stage, result)
	if err := writeFields(ctx, r.store, r.path, processID, fields); err != nil {
		return Applied{}, err
	}
	r.logger.Info("result recorded", "process_id", processID, "stage", stage, "status", result.Status, "process_status", next.Status)
	return Applied{
		ProcessID:     processID,
		Stage:         stage,
		Status:        result.Status,
		ProcessStatus: next.Status,
	}, nil
}

// rejectResult explains why result cannot move stage, or returns "".
func rejectResult(p domain.Process, stage domain.Stage, current domain.Step, result domain.Result) string {
	if current.Status != domain.StepAnalyzing {
		return fmt.Sprintf("%s stage is %s, not awaiting a result", stage, current.Status)
	}
	if domain.IsBlocked(p, stage) {
		return fmt.Sprintf("%s requires a verified confirmation, got %s", stage, p.Confirmation.Status)
	}
	if result.SubmissionID != "" && current.SubmissionID != "" && result.SubmissionID != current.SubmissionID {
		return fmt.Sprintf("result is for submission %s, stage awaits %s", result.SubmissionID, current.SubmissionID)
	}
	return ""
}
