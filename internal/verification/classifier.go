package verification

import (
	"context"
	"errors"

	"procurement-workflow/internal/domain"
)

// ErrDispatch marks a submission the external verifier did not accept.
var ErrDispatch = errors.New("verification dispatch failed")

// Submission is one uploaded stage document on its way to a verifier.
type Submission struct {
	SubmissionID string
	ProcessID    string
	Stage        domain.Stage
	FileName     string
	ContentType  string
	Content      []byte
}

// Outcome is a classifier's answer. A deferred outcome carries no result:
// the verifier reports back later through the result callback.
type Outcome struct {
	Deferred bool
	Result   domain.Result
}

// Classifier decides, or arranges for someone else to decide, whether a
// submitted stage document verifies.
type Classifier interface {
	Classify(ctx context.Context, sub Submission) (Outcome, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, sub Submission) (Outcome, error)

func (f ClassifierFunc) Classify(ctx context.Context, sub Submission) (Outcome, error) {
	return f(ctx, sub)
}
