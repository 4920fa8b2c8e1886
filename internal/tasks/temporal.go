package tasks

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/logging"
)

// DefaultTaskQueue is used when no queue is configured.
const DefaultTaskQueue = "geoimport"

// TemporalConfig holds connection settings for the Temporal frontend.
type TemporalConfig struct {
	Address   string
	Namespace string
	TaskQueue string
}

// Temporal starts one workflow per submitted task. The workflow type is the
// task id, so workers register e.g. "geonode.upload.import_resource".
type Temporal struct {
	client    client.Client
	taskQueue string
}

// DialTemporal connects to Temporal and returns a runner.
func DialTemporal(ctx context.Context, cfg TemporalConfig) (*Temporal, error) {
	c, err := client.DialContext(ctx, client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	return NewTemporal(c, cfg.TaskQueue), nil
}

// NewTemporal wraps an existing client.
func NewTemporal(c client.Client, taskQueue string) *Temporal {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Temporal{client: c, taskQueue: taskQueue}
}

// Close closes the underlying client.
func (t *Temporal) Close() {
	t.client.Close()
}

// WorkflowID is stable per import and task, so a resubmitted task does not
// start a second workflow.
func WorkflowID(exec *core.ExecutionContext, taskID string) string {
	return exec.ID.String() + ":" + taskID
}

func (t *Temporal) workflowOptions(id string) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                t.taskQueue,
		WorkflowExecutionTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
}

// Submit starts the workflow without waiting for it.
func (t *Temporal) Submit(ctx context.Context, taskID string, exec *core.ExecutionContext) error {
	id := WorkflowID(exec, taskID)
	run, err := t.client.ExecuteWorkflow(ctx, t.workflowOptions(id), taskID, NewInput(exec))
	if err != nil {
		return fmt.Errorf("start workflow %s: %w", taskID, err)
	}
	logging.FromContext(ctx).Info("task submitted",
		"task", taskID,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return nil
}
