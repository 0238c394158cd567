package domain

import "errors"

var (
	ErrTransitionRejected = errors.New("stage transition rejected")
	ErrInvalidStage       = errors.New("invalid stage")
)
