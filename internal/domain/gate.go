package domain

import "fmt"

// CanStart decides whether a submission may move stage into analyzing.
// Only confirmation and delivery accept uploads, only from pending or
// conflict, and delivery additionally waits for a verified confirmation.
func CanStart(p Process, stage Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	if !stage.IsSubmittable() {
		return fmt.Errorf("%w: %s stage is populated by ingestion", ErrTransitionRejected, stage)
	}

	current := p.Step(stage).Status
	if current != StepPending && current != StepConflict {
		return fmt.Errorf("%w: %s stage is %s", ErrTransitionRejected, stage, current)
	}
	if stage == StageDelivery && p.Confirmation.Status != StepVerified {
		return fmt.Errorf("%w: delivery requires a verified confirmation, got %s", ErrTransitionRejected, p.Confirmation.Status)
	}
	return nil
}

// IsBlocked reports whether stage must be presented as blocked by an earlier
// stage, independent of its own status.
func IsBlocked(p Process, stage Stage) bool {
	return stage == StageDelivery && p.Confirmation.Status != StepVerified
}
