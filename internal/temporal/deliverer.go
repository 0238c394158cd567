package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"procurement-workflow/internal/domain"
)

type signalWithStarter interface {
	SignalWithStartWorkflow(ctx context.Context, workflowID string, signalName string, signalArg interface{}, options client.StartWorkflowOptions, workflow interface{}, workflowArgs ...interface{}) (client.WorkflowRun, error)
}

// SignalDeliverer hands verification results to the stage workflow, starting
// it when none is running for the stage.
type SignalDeliverer struct {
	client    signalWithStarter
	taskQueue string
	prefix    string
}

func NewSignalDeliverer(c signalWithStarter, taskQueue, workflowIDPrefix string) *SignalDeliverer {
	return &SignalDeliverer{client: c, taskQueue: taskQueue, prefix: workflowIDPrefix}
}

func WorkflowID(prefix, processID string, stage domain.Stage) string {
	return fmt.Sprintf("%s-%s-%s", prefix, processID, stage)
}

func (d *SignalDeliverer) Deliver(ctx context.Context, processID string, stage domain.Stage, signal VerificationResultSignal) (string, error) {
	workflowID := WorkflowID(d.prefix, processID, stage)
	_, err := d.client.SignalWithStartWorkflow(ctx, workflowID, VerificationResultSignalName, signal, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: d.taskQueue,
	}, StageVerificationWorkflowName, StageVerificationInput{ProcessID: processID, Stage: stage})
	if err != nil {
		return "", fmt.Errorf("signal workflow %s: %w", workflowID, err)
	}
	return workflowID, nil
}
