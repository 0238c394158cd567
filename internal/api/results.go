package api

import (
	"context"
	"fmt"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/temporal"
	"procurement-workflow/internal/upload"
)

// RecorderDeliverer applies verification results in-process. It serves
// deployments without a Temporal worker, such as the in-memory demo store.
// A result the stage cannot accept is reported as a rejected transition.
type RecorderDeliverer struct {
	Recorder *upload.ResultRecorder
}

func (d RecorderDeliverer) Deliver(ctx context.Context, processID string, stage domain.Stage, signal temporal.VerificationResultSignal) (string, error) {
	applied, err := d.Recorder.Record(ctx, processID, stage, signal.Result())
	if err != nil {
		return "", err
	}
	if applied.Ignored {
		return "", fmt.Errorf("%w: %s", domain.ErrTransitionRejected, applied.Reason)
	}
	return "", nil
}
