package domain

import (
	"encoding/json"
	"time"
)

// Step is one workflow stage's state as stored on a process document.
type Step struct {
	Status         StepStatus      `json:"status"`
	SubmissionID   string          `json:"submissionId,omitempty"`
	FileName       string          `json:"fileName,omitempty"`
	UploadedAt     *time.Time      `json:"uploadedAt,omitempty"`
	ConflictReason *string         `json:"conflictReason"`
	Data           json.RawMessage `json:"data"`
}

// Process is one procurement transaction.
//
// Status is always derived from the stages. StoredStatus is whatever the
// backing store last recorded, defaulted to open, and may briefly disagree
// with Status while writes propagate.
type Process struct {
	ID           string        `json:"id"`
	SupplierName string        `json:"supplierName"`
	Status       ProcessStatus `json:"status"`
	StoredStatus ProcessStatus `json:"storedStatus"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`
	Order        Step          `json:"order"`
	Confirmation Step          `json:"confirmation"`
	Delivery     Step          `json:"delivery"`
}

// Step returns the stage's state. Unknown stages yield a pending step.
func (p Process) Step(stage Stage) Step {
	switch stage {
	case StageOrder:
		return p.Order
	case StageConfirmation:
		return p.Confirmation
	case StageDelivery:
		return p.Delivery
	}
	return pendingStep()
}

// WithStep returns a copy of p with stage replaced and Status re-derived.
func (p Process) WithStep(stage Stage, step Step) Process {
	switch stage {
	case StageOrder:
		p.Order = step
	case StageConfirmation:
		p.Confirmation = step
	case StageDelivery:
		p.Delivery = step
	}
	p.Status = DeriveStatus(p)
	return p
}

func pendingStep() Step {
	return Step{Status: StepPending}
}
