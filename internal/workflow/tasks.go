// Package workflow turns persisted submissions into enriched documents and
// forwards them to the downstream workflow webhooks. Derivation runs from the
// raw product codes through the same codec and pricing engine the intake path
// uses, so the authoritative record can never drift from what the applicant
// was shown.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const (
	TaskRegistration = "workflow:registration"
	TaskPaymentProof = "workflow:payment_proof"

	// Queue is the asynq queue the workflow tasks run on.
	Queue = "workflow"
)

type taskPayload struct {
	ApplicationID string `json:"applicationID"`
}

// Enqueuer schedules workflow tasks. It satisfies the intake handler's queue
// dependency.
type Enqueuer struct {
	Client *asynq.Client
	Logger zerolog.Logger
}

func (e Enqueuer) EnqueueRegistration(ctx context.Context, applicationID string) error {
	return e.enqueue(ctx, TaskRegistration, applicationID)
}

func (e Enqueuer) EnqueuePaymentProof(ctx context.Context, applicationID string) error {
	return e.enqueue(ctx, TaskPaymentProof, applicationID)
}

func (e Enqueuer) enqueue(ctx context.Context, kind, applicationID string) error {
	payload, err := json.Marshal(taskPayload{ApplicationID: applicationID})
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}
	task := asynq.NewTask(kind, payload)
	info, err := e.Client.EnqueueContext(ctx, task,
		asynq.Queue(Queue),
		asynq.MaxRetry(10),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	e.Logger.Debug().Str("task_id", info.ID).Str("kind", kind).Str("application_id", applicationID).Msg("workflow task enqueued")
	return nil
}
