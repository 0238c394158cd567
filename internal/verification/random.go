package verification

import (
	"context"
	"math/rand"

	"procurement-workflow/internal/domain"
)

const (
	DefaultVerifiedRatio = 0.3

	// SimulatedConflictReason is attached to every conflict the random
	// classifier produces.
	SimulatedConflictReason = "Simulated verification found a mismatch with the purchase order"
)

// RandomClassifier stands in for an external verifier when none is
// configured. It verifies roughly VerifiedRatio of submissions and marks the
// rest as conflicts.
type RandomClassifier struct {
	verifiedRatio float64
	draw          func() float64
}

// NewRandomClassifier builds a classifier drawing from draw, or from
// math/rand when draw is nil.
func NewRandomClassifier(verifiedRatio float64, draw func() float64) *RandomClassifier {
	if verifiedRatio < 0 || verifiedRatio > 1 {
		verifiedRatio = DefaultVerifiedRatio
	}
	if draw == nil {
		draw = rand.Float64
	}
	return &RandomClassifier{verifiedRatio: verifiedRatio, draw: draw}
}

func (c *RandomClassifier) Classify(_ context.Context, _ Submission) (Outcome, error) {
	if c.draw() < c.verifiedRatio {
		return Outcome{Result: domain.Result{Status: domain.StepVerified}}, nil
	}
	return Outcome{Result: domain.Result{
		Status:         domain.StepConflict,
		ConflictReason: SimulatedConflictReason,
	}}, nil
}

// FixedClassifier always returns the same result.
type FixedClassifier domain.Result

func (c FixedClassifier) Classify(context.Context, Submission) (Outcome, error) {
	return Outcome{Result: domain.Result(c)}, nil
}
