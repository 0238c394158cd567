package temporal

import (
	"go.temporal.io/sdk/workflow"

	"procurement-workflow/internal/domain"
)

const StageVerificationWorkflowName = "StageVerificationWorkflow"

type StageVerificationInput struct {
	ProcessID string
	Stage     domain.Stage
}

type StageVerificationResult struct {
	ProcessID     string
	Stage         domain.Stage
	Status        domain.StepStatus
	ProcessStatus domain.ProcessStatus
	Ignored       bool
}

// StageVerificationWorkflow waits for the verifier's decision on one stage and
// records it. Signals that do not carry a decision are logged and skipped. A
// result for a superseded submission leaves the stage analyzing, so the
// workflow keeps waiting. Signals still buffered once the stage is decided
// are recorded too before the run completes, so none is lost with it.
func StageVerificationWorkflow(ctx workflow.Context, input StageVerificationInput) (StageVerificationResult, error) {
	logger := workflow.GetLogger(ctx)
	ctxApply := mustActivityContext(ctx, ActivityPolicyApplyVerificationResult)
	signalChan := workflow.GetSignalChannel(ctx, VerificationResultSignalName)

	apply := func(signal VerificationResultSignal) (ApplyVerificationResultOutput, bool, error) {
		if !signal.Status.IsResult() {
			logger.Warn("ignoring verification signal without a decision",
				"process_id", input.ProcessID, "stage", input.Stage, "status", signal.Status)
			return ApplyVerificationResultOutput{}, false, nil
		}
		var out ApplyVerificationResultOutput
		err := workflow.ExecuteActivity(ctxApply, (*Activities).ApplyVerificationResultActivity, ApplyVerificationResultInput{
			ProcessID:    input.ProcessID,
			Stage:        input.Stage,
			SubmissionID: signal.SubmissionID,
			Result:       signal.Result(),
		}).Get(ctx, &out)
		return out, err == nil, err
	}

	var decided ApplyVerificationResultOutput
	for {
		var signal VerificationResultSignal
		signalChan.Receive(ctx, &signal)
		out, ok, err := apply(signal)
		if err != nil {
			return StageVerificationResult{}, err
		}
		if !ok {
			continue
		}
		decided = out
		if !(out.Ignored && out.Status == domain.StepAnalyzing) {
			break
		}
		logger.Info("stage still awaiting its submission's result",
			"process_id", input.ProcessID, "stage", input.Stage, "submission_id", signal.SubmissionID)
	}

	for {
		var signal VerificationResultSignal
		if !signalChan.ReceiveAsync(&signal) {
			break
		}
		if _, _, err := apply(signal); err != nil {
			logger.Warn("buffered verification signal not recorded",
				"process_id", input.ProcessID, "stage", input.Stage, "submission_id", signal.SubmissionID, "error", err)
		}
	}

	return StageVerificationResult{
		ProcessID:     input.ProcessID,
		Stage:         input.Stage,
		Status:        decided.Status,
		ProcessStatus: decided.ProcessStatus,
		Ignored:       decided.Ignored,
	}, nil
}
