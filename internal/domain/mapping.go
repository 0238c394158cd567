package domain

import (
	"encoding/json"
	"strings"
	"time"

	"procurement-workflow/internal/sanitize"
)

// Map converts a raw stored document into a Process. It never fails:
// missing or malformed fields fall back to defaults so one bad document
// cannot abort a synchronization pass.
func Map(raw map[string]any, fallbackID string) Process {
	id := sanitize.Any(raw["id"])
	if id == "" {
		id = sanitize.String(fallbackID)
	}

	stored := ProcessStatus(sanitize.Any(raw["status"]))
	if !stored.IsValid() {
		stored = ProcessOpen
	}

	p := Process{
		ID:           id,
		SupplierName: sanitize.Any(raw["supplierName"]),
		StoredStatus: stored,
		CreatedAt:    parseTime(raw["createdAt"]),
		Order:        mapStep(raw["order"]),
		Confirmation: mapStep(raw["confirmation"]),
		Delivery:     mapStep(raw["delivery"]),
	}
	p.Status = DeriveStatus(p)
	return p
}

func mapStep(v any) Step {
	step := pendingStep()
	raw, ok := v.(map[string]any)
	if !ok {
		return step
	}

	if status := StepStatus(sanitize.Any(raw["status"])); status.IsValid() {
		step.Status = status
	}
	step.SubmissionID = sanitize.Any(raw["submissionId"])
	step.FileName = sanitize.Any(raw["fileName"])
	step.UploadedAt = parseTime(raw["uploadedAt"])
	if reason, ok := raw["conflictReason"].(string); ok && step.Status == StepConflict {
		reason = strings.TrimSpace(reason)
		step.ConflictReason = &reason
	}
	if data, ok := raw["data"]; ok && data != nil {
		if b, err := json.Marshal(data); err == nil {
			step.Data = b
		}
	}
	return step
}

// parseTime accepts the timestamp shapes writers are known to produce:
// time.Time, RFC 3339 strings, and unix milliseconds.
func parseTime(v any) *time.Time {
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case *time.Time:
		if val == nil {
			return nil
		}
		t = *val
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		t = parsed
	case float64:
		t = time.UnixMilli(int64(val))
	case int64:
		t = time.UnixMilli(val)
	case json.Number:
		ms, err := val.Int64()
		if err != nil {
			return nil
		}
		t = time.UnixMilli(ms)
	default:
		return nil
	}
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
