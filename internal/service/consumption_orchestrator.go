package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
)

// consumptionOrchestrator implements ConsumptionOrchestrator
type consumptionOrchestrator struct {
	deps *ServiceDependencies
}

// NewConsumptionOrchestrator creates the orchestrator
func NewConsumptionOrchestrator(deps *ServiceDependencies) ConsumptionOrchestrator {
	return &consumptionOrchestrator{deps: deps}
}

// CompleteStep deducts every requested consumption from its batch and marks
// the step done, all inside one storage transaction. Batches are locked in
// the order given by the caller; no reordering is applied, so lock ordering
// across concurrent overlapping requests is the caller's responsibility.
func (o *consumptionOrchestrator) CompleteStep(ctx context.Context, cmd *CompleteStepCommand) (*models.CompleteStepResponse, error) {
	start := time.Now()
	now := start.UTC()

	ctx, span := otel.Tracer("pantry-service/consumption").Start(ctx, "CompleteStep")
	span.SetAttributes(
		attribute.String("session_id", cmd.SessionID.String()),
		attribute.String("step_id", cmd.StepID),
		attribute.Int("consumptions", len(cmd.Consumptions)),
	)
	defer span.End()

	outcome := "failure"
	defer func() {
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordConsumption(len(cmd.Consumptions), time.Since(start), outcome)
		}
	}()

	tx, err := o.deps.Repositories.Batch.BeginTransaction(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin step transaction")
	}

	committed := false
	defer func() {
		if !committed {
			_ = o.deps.Repositories.Batch.RollbackTransaction(tx)
		}
	}()

	// The session row is locked first so two concurrent completions of the
	// same session serialize on it.
	session, err := o.deps.Repositories.Session.GetSessionForUpdate(ctx, tx, cmd.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session")
	}
	if session == nil {
		return nil, apperrors.NewNotFoundError("session", cmd.SessionID.String())
	}
	if session.OwnerID() != cmd.CallerID {
		return nil, apperrors.NewForbiddenError("session", cmd.SessionID.String())
	}
	if !session.IsRunning() {
		return nil, apperrors.NewInvalidStateError("session", cmd.SessionID.String(),
			"cannot complete a step of a finished session")
	}

	consumed := make([]models.StepConsumption, 0, len(cmd.Consumptions))
	results := make([]models.BatchQuantityResult, 0, len(cmd.Consumptions))

	for _, req := range cmd.Consumptions {
		batch, err := o.deps.Repositories.Batch.LockBatch(ctx, tx, req.BatchID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to lock batch %s", req.BatchID)
		}
		if batch == nil {
			return nil, apperrors.NewNotFoundError("batch", req.BatchID.String())
		}
		if batch.OwnerID() != cmd.CallerID {
			return nil, apperrors.NewForbiddenError("batch", req.BatchID.String())
		}
		if !batch.CanBeConsumed(now) {
			return nil, apperrors.NewInvalidStateError("batch", req.BatchID.String(),
				"cannot consume batch in state "+string(batch.State()))
		}

		// ConsumeQuantity re-checks quantity before mutating, so an
		// insufficient batch is left untouched and the whole step rolls back.
		if err := batch.ConsumeQuantity(req.Quantity, now); err != nil {
			return nil, err
		}

		if err := o.deps.Repositories.Batch.SaveBatchInTx(ctx, tx, batch); err != nil {
			return nil, errors.Wrapf(err, "failed to persist batch %s", req.BatchID)
		}

		consumed = append(consumed, models.StepConsumption{
			IngredientID: req.IngredientID,
			BatchID:      req.BatchID,
			Quantity:     req.Quantity,
			Unit:         req.Unit,
		})
		results = append(results, models.BatchQuantityResult{
			BatchID:     batch.ID(),
			NewQuantity: batch.Quantity(),
		})
	}

	if len(consumed) > 0 {
		if err := o.deps.Repositories.Session.AppendConsumptionLog(ctx, tx, cmd.SessionID, cmd.StepID, consumed); err != nil {
			return nil, errors.Wrap(err, "failed to append consumption log")
		}
	}

	var timer *time.Duration
	if cmd.TimerSeconds != nil {
		d := time.Duration(*cmd.TimerSeconds) * time.Second
		timer = &d
	}

	step, err := session.CompleteStep(cmd.StepID, timer, consumed)
	if err != nil {
		return nil, err
	}

	if err := o.deps.Repositories.Session.SaveSessionInTx(ctx, tx, session); err != nil {
		return nil, errors.Wrap(err, "failed to persist session")
	}

	if err := o.deps.Repositories.Batch.CommitTransaction(tx); err != nil {
		return nil, errors.Wrap(err, "failed to commit step transaction")
	}
	committed = true
	outcome = "success"

	// Cache invalidation only after a successful commit; a failure here is
	// logged, the committed data stands.
	cacheManager := NewCacheManager(o.deps)
	if err := cacheManager.InvalidateOwnerCache(ctx, cmd.CallerID); err != nil {
		o.deps.Logger.Error("failed to invalidate pantry cache after step completion",
			"owner_id", cmd.CallerID, "error", err)
	}

	o.deps.Logger.Info("cooking step completed",
		"session_id", cmd.SessionID,
		"step_id", cmd.StepID,
		"batches", len(cmd.Consumptions))

	return &models.CompleteStepResponse{
		SessionID: cmd.SessionID,
		StepID:    step.ID,
		Status:    string(step.Status),
		Results:   results,
	}, nil
}
