package temporal

import (
	"encoding/json"

	"procurement-workflow/internal/domain"
)

const VerificationResultSignalName = "verificationResult"

// VerificationResultSignal carries an external verifier's decision for one
// stage submission.
type VerificationResultSignal struct {
	Status         domain.StepStatus `json:"status"`
	ConflictReason string            `json:"conflictReason,omitempty"`
	Data           json.RawMessage   `json:"data,omitempty"`
	SubmissionID   string            `json:"submissionId,omitempty"`
}

func (s VerificationResultSignal) Result() domain.Result {
	return domain.Result{
		Status:         s.Status,
		SubmissionID:   s.SubmissionID,
		ConflictReason: s.ConflictReason,
		Data:           s.Data,
	}
}
