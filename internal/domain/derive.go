package domain

// DeriveStatus computes the aggregate status from the stages. A conflicting
// confirmation or delivery wins over completion, and completion requires a
// verified delivery.
func DeriveStatus(p Process) ProcessStatus {
	if p.Confirmation.Status == StepConflict || p.Delivery.Status == StepConflict {
		return ProcessConflict
	}
	if p.Delivery.Status == StepVerified {
		return ProcessCompleted
	}
	return ProcessOpen
}

// IsConsistent reports whether the stored aggregate agrees with the stages.
func (p Process) IsConsistent() bool {
	return p.StoredStatus == DeriveStatus(p)
}
