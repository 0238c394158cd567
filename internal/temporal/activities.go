package temporal

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/upload"
)

const (
	errTypeInvalidResult   = "InvalidVerificationResult"
	errTypeProcessNotFound = "ProcessNotFound"
)

type ResultRecorder interface {
	Record(ctx context.Context, processID string, stage domain.Stage, result domain.Result) (upload.Applied, error)
}

type Activities struct {
	Results ResultRecorder
	Logger  *slog.Logger
}

type ApplyVerificationResultInput struct {
	ProcessID    string
	Stage        domain.Stage
	SubmissionID string
	Result       domain.Result
}

type ApplyVerificationResultOutput struct {
	Status        domain.StepStatus
	ProcessStatus domain.ProcessStatus
	Ignored       bool
}

func (a *Activities) ApplyVerificationResultActivity(ctx context.Context, input ApplyVerificationResultInput) (ApplyVerificationResultOutput, error) {
	applied, err := a.Results.Record(ctx, input.ProcessID, input.Stage, input.Result)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrInvalidResult), errors.Is(err, domain.ErrInvalidStage):
			return ApplyVerificationResultOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeInvalidResult, err)
		case errors.Is(err, upload.ErrProcessNotFound):
			return ApplyVerificationResultOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeProcessNotFound, err)
		}
		return ApplyVerificationResultOutput{}, err
	}

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("verification result applied",
		"process_id", applied.ProcessID,
		"stage", applied.Stage,
		"submission_id", input.SubmissionID,
		"status", applied.Status,
		"ignored", applied.Ignored,
	)
	return ApplyVerificationResultOutput{
		Status:        applied.Status,
		ProcessStatus: applied.ProcessStatus,
		Ignored:       applied.Ignored,
	}, nil
}
