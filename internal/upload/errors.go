package upload

import "errors"

var (
	ErrDispatchFailure    = errors.New("verification dispatch failed")
	ErrSubmissionInFlight = errors.New("a submission for this stage is already in flight")
	ErrProcessNotFound    = errors.New("process not found")
	ErrInvalidFile        = errors.New("invalid file")
	ErrInvalidResult      = errors.New("invalid verification result")
)
