package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Fields is a partial-document write keyed by dotted field path, for
// example "confirmation.status". Fields not named are left untouched.
type Fields map[string]any

const (
	FieldStatus         = "status"
	FieldSubmissionID   = "submissionId"
	FieldFileName       = "fileName"
	FieldUploadedAt     = "uploadedAt"
	FieldConflictReason = "conflictReason"
	FieldData           = "data"
)

// DefaultConflictReason is recorded when a verifier reports a conflict
// without explaining it.
const DefaultConflictReason = "Discrepancy detected during verification"

// FieldPath joins a stage and one of its field names.
func FieldPath(stage Stage, field string) string {
	return string(stage) + "." + field
}

// SplitPath splits a dotted field path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}

// Result is a verification outcome for one stage. SubmissionID, when set,
// names the submission the verifier decided on.
type Result struct {
	Status         StepStatus      `json:"status"`
	SubmissionID   string          `json:"submissionId,omitempty"`
	ConflictReason string          `json:"conflictReason,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// BeginAnalysis moves stage to analyzing for a freshly submitted file. It
// returns the expected process view and the write that produces it; the
// write carries the re-derived aggregate so the stored status stays
// explainable by the stages.
func BeginAnalysis(p Process, stage Stage, submissionID, fileName string, at time.Time) (Process, Fields) {
	at = at.UTC()
	step := p.Step(stage)
	step.Status = StepAnalyzing
	step.SubmissionID = submissionID
	step.FileName = fileName
	step.UploadedAt = &at
	step.ConflictReason = nil

	next := p.WithStep(stage, step)
	next.StoredStatus = next.Status
	return next, Fields{
		FieldPath(stage, FieldStatus):         string(StepAnalyzing),
		FieldPath(stage, FieldSubmissionID):   submissionID,
		FieldPath(stage, FieldFileName):       fileName,
		FieldPath(stage, FieldUploadedAt):     at.Format(time.RFC3339Nano),
		FieldPath(stage, FieldConflictReason): nil,
		FieldStatus:                           string(next.Status),
	}
}

// ApplyResult records a verification outcome on stage together with the
// re-derived aggregate status, as one combined write.
func ApplyResult(p Process, stage Stage, result Result) (Process, Fields) {
	step := p.Step(stage)
	step.Status = result.Status
	step.ConflictReason = nil
	step.Data = nil
	if len(result.Data) > 0 && string(result.Data) != "null" {
		step.Data = result.Data
	}

	var reason any
	if result.Status == StepConflict {
		r := strings.TrimSpace(result.ConflictReason)
		if r == "" {
			r = DefaultConflictReason
		}
		step.ConflictReason = &r
		reason = r
	}

	var data any
	if step.Data != nil {
		data = step.Data
	}

	next := p.WithStep(stage, step)
	next.StoredStatus = next.Status
	return next, Fields{
		FieldPath(stage, FieldStatus):         string(result.Status),
		FieldPath(stage, FieldConflictReason): reason,
		FieldPath(stage, FieldData):           data,
		FieldStatus:                           string(next.Status),
	}
}
