package domain

// StepStatus is the verification state of a single workflow stage.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepAnalyzing StepStatus = "analyzing"
	StepVerified  StepStatus = "verified"
	StepConflict  StepStatus = "conflict"
)

var validStepStatuses = map[StepStatus]bool{
	StepPending:   true,
	StepAnalyzing: true,
	StepVerified:  true,
	StepConflict:  true,
}

func (s StepStatus) IsValid() bool {
	return validStepStatuses[s]
}

// IsResult reports whether s is an outcome a verifier may deliver.
func (s StepStatus) IsResult() bool {
	return s == StepVerified || s == StepConflict
}

// ProcessStatus is the aggregate status of a procurement transaction.
type ProcessStatus string

const (
	ProcessOpen      ProcessStatus = "open"
	ProcessConflict  ProcessStatus = "conflict"
	ProcessCompleted ProcessStatus = "completed"
)

var validProcessStatuses = map[ProcessStatus]bool{
	ProcessOpen:      true,
	ProcessConflict:  true,
	ProcessCompleted: true,
}

func (s ProcessStatus) IsValid() bool {
	return validProcessStatuses[s]
}

func (s ProcessStatus) IsTerminal() bool {
	return s == ProcessCompleted
}

// Stage names one of the three workflow phases. Its value doubles as the
// stored field name of the stage.
type Stage string

const (
	StageOrder        Stage = "order"
	StageConfirmation Stage = "confirmation"
	StageDelivery     Stage = "delivery"
)

// Stages lists the workflow phases in order.
var Stages = []Stage{StageOrder, StageConfirmation, StageDelivery}

func (s Stage) IsValid() bool {
	switch s {
	case StageOrder, StageConfirmation, StageDelivery:
		return true
	}
	return false
}

// IsSubmittable reports whether uploads may target the stage. Order documents
// arrive through external ingestion.
func (s Stage) IsSubmittable() bool {
	return s == StageConfirmation || s == StageDelivery
}

// StatusFilter selects processes by aggregate status.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterOpen      StatusFilter = "open"
	FilterConflict  StatusFilter = "conflict"
	FilterCompleted StatusFilter = "completed"
)

// ParseStatusFilter maps unknown or empty input to FilterAll.
func ParseStatusFilter(v string) StatusFilter {
	switch f := StatusFilter(v); f {
	case FilterOpen, FilterConflict, FilterCompleted:
		return f
	}
	return FilterAll
}
