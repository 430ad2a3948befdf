package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/catalog"
	"github.com/osd-exam/backend-registration/internal/submission"
)

// Handler consumes workflow tasks: it loads the stored submission, reprocesses
// it against the current catalog and forwards the result. Any returned error
// makes asynq retry the task with backoff.
type Handler struct {
	Store     submission.Store
	Loader    *catalog.Loader
	Forwarder *Forwarder
	Logger    zerolog.Logger
}

// Mux registers the workflow task handlers.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRegistration, h.HandleRegistration)
	mux.HandleFunc(TaskPaymentProof, h.HandlePaymentProof)
	return mux
}

func (h *Handler) HandleRegistration(ctx context.Context, task *asynq.Task) error {
	applicationID, err := decodeTask(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	rec, err := h.Store.GetByApplicationID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			h.Logger.Error().Str("application_id", applicationID).Msg("registration task for unknown submission")
			return fmt.Errorf("%w: submission %s not found", asynq.SkipRetry, applicationID)
		}
		return err
	}

	snapshot, err := h.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	processor := Processor{Catalog: snapshot, Logger: h.Logger}
	doc, err := processor.ProcessRegistration(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	outcome, err := h.Forwarder.ForwardRegistration(ctx, doc)
	if err != nil {
		return err
	}
	h.Logger.Info().Str("application_id", applicationID).Str("message", outcome.Message).Msg("registration forwarded")
	return nil
}

func (h *Handler) HandlePaymentProof(ctx context.Context, task *asynq.Task) error {
	applicationID, err := decodeTask(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	rec, err := h.Store.GetByApplicationID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			return fmt.Errorf("%w: submission %s not found", asynq.SkipRetry, applicationID)
		}
		return err
	}
	proof, err := h.Store.LatestProof(ctx, applicationID)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			return fmt.Errorf("%w: no proof stored for %s", asynq.SkipRetry, applicationID)
		}
		return err
	}

	snapshot, err := h.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	processor := Processor{Catalog: snapshot, Logger: h.Logger}
	doc, err := processor.ProcessPaymentProof(rec, proof)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	outcome, err := h.Forwarder.ForwardPaymentProof(ctx, doc)
	if err != nil {
		return err
	}
	h.Logger.Info().Str("application_id", applicationID).Str("message", outcome.Message).Msg("payment proof forwarded")
	return nil
}

func decodeTask(task *asynq.Task) (string, error) {
	var payload taskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return "", fmt.Errorf("decode task payload: %w", err)
	}
	if payload.ApplicationID == "" {
		return "", errors.New("task payload missing application id")
	}
	return payload.ApplicationID, nil
}
