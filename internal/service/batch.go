package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

type BatchPhase string

const (
	BatchPhaseStart    BatchPhase = "start"
	BatchPhaseProgress BatchPhase = "progress"
	BatchPhaseError    BatchPhase = "error"
	BatchPhaseComplete BatchPhase = "complete"
)

// BatchEvent is one entry of the progress stream of a batch run.
type BatchEvent struct {
	Phase   BatchPhase `json:"phase"`
	Total   int        `json:"total"`
	Current int        `json:"current"`
	ItemID  *uuid.UUID `json:"item_id,omitempty"`
	Message string     `json:"message,omitempty"`
}

// ProgressFunc observes a batch run. It is called synchronously from the
// goroutine running the batch.
type ProgressFunc func(BatchEvent)

type BatchItem struct {
	ServiceID uuid.UUID
	Patch     ServicePatch
}

// BatchError identifies the item that stopped a batch. Index is 1-based.
type BatchError struct {
	Index   int
	ItemID  uuid.UUID
	Applied int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch item %d (%s) failed after %d applied: %v", e.Index, e.ItemID, e.Applied, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type BatchResult struct {
	Total   int         `json:"total"`
	Applied int         `json:"applied"`
	Atomic  bool        `json:"atomic"`
	Failed  *BatchError `json:"-"`
}

// BatchEngine applies ordered service updates one at a time. By default
// each item commits on its own and a failure stops the run without undoing
// earlier items; in atomic mode the whole run shares one transaction.
type BatchEngine struct {
	workflow *Workflow
	atomic   bool
}

func NewBatchEngine(workflow *Workflow) *BatchEngine {
	return &BatchEngine{workflow: workflow, atomic: workflow.settings.BatchAtomic}
}

// Apply runs items in order. A run stopped by an item returns the result
// together with a *BatchError.
func (e *BatchEngine) Apply(ctx context.Context, principal model.Principal, items []BatchItem, progress ProgressFunc) (*BatchResult, error) {
	if !principal.CanDispatch() {
		return nil, ErrPermissionDenied
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", ErrInvalidInput)
	}
	for i, item := range items {
		if item.ServiceID == uuid.Nil {
			return nil, fmt.Errorf("%w: item %d: service_id is required", ErrInvalidInput, i+1)
		}
		if item.Patch == nil {
			return nil, fmt.Errorf("%w: item %d (%s): patch is required", ErrInvalidInput, i+1, item.ServiceID)
		}
		if err := item.Patch.Validate(); err != nil {
			return nil, fmt.Errorf("%w: item %d (%s): %v", ErrInvalidInput, i+1, item.ServiceID, err)
		}
	}
	if progress == nil {
		progress = func(BatchEvent) {}
	}

	result := &BatchResult{Total: len(items), Atomic: e.atomic}
	progress(BatchEvent{Phase: BatchPhaseStart, Total: result.Total})

	var err error
	if e.atomic {
		err = e.runAtomic(ctx, items, result, progress)
	} else {
		err = e.runSequential(ctx, items, result, progress)
	}
	if err != nil {
		var batchErr *BatchError
		if errors.As(err, &batchErr) {
			result.Failed = batchErr
			progress(BatchEvent{
				Phase:   BatchPhaseError,
				Total:   result.Total,
				Current: batchErr.Index,
				ItemID:  uuidPtr(batchErr.ItemID),
				Message: batchErr.Error(),
			})
		}
		return result, err
	}

	progress(BatchEvent{Phase: BatchPhaseComplete, Total: result.Total, Current: result.Applied})
	return result, nil
}

func (e *BatchEngine) runSequential(ctx context.Context, items []BatchItem, result *BatchResult, progress ProgressFunc) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return &BatchError{Index: i + 1, ItemID: item.ServiceID, Applied: result.Applied, Err: err}
		}
		var events []event.DomainEvent
		err := e.workflow.store.Transaction(ctx, func(repo repository.Repository) error {
			var err error
			events, err = e.applyItem(ctx, repo, item)
			return err
		})
		if err != nil {
			return &BatchError{Index: i + 1, ItemID: item.ServiceID, Applied: result.Applied, Err: err}
		}
		e.workflow.publish(ctx, events...)
		result.Applied++
		progress(BatchEvent{Phase: BatchPhaseProgress, Total: result.Total, Current: i + 1, ItemID: uuidPtr(item.ServiceID)})
	}
	return nil
}

// runAtomic reports progress as items are staged; nothing is visible to
// other readers until the final commit.
func (e *BatchEngine) runAtomic(ctx context.Context, items []BatchItem, result *BatchResult, progress ProgressFunc) error {
	var events []event.DomainEvent
	staged := 0
	err := e.workflow.store.Transaction(ctx, func(repo repository.Repository) error {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return &BatchError{Index: i + 1, ItemID: item.ServiceID, Err: err}
			}
			itemEvents, err := e.applyItem(ctx, repo, item)
			if err != nil {
				return &BatchError{Index: i + 1, ItemID: item.ServiceID, Err: err}
			}
			events = append(events, itemEvents...)
			staged++
			progress(BatchEvent{Phase: BatchPhaseProgress, Total: result.Total, Current: i + 1, ItemID: uuidPtr(item.ServiceID)})
		}
		return nil
	})
	if err != nil {
		return err
	}
	result.Applied = staged
	e.workflow.publish(ctx, events...)
	return nil
}

func (e *BatchEngine) applyItem(ctx context.Context, repo repository.Repository, item BatchItem) ([]event.DomainEvent, error) {
	service, err := repo.LockService(ctx, item.ServiceID)
	if err != nil {
		return nil, notFound(err, "service "+item.ServiceID.String())
	}

	switch patch := item.Patch.(type) {
	case StatusPatch:
		return e.workflow.applyStatus(ctx, repo, service, patch.Status)
	case ReferencePatch:
		if err := editable(service); err != nil {
			return nil, err
		}
		patch.apply(service)
	case AssignmentPatch:
		if err := editable(service); err != nil {
			return nil, err
		}
		previous := crewOf(service)
		if err := patch.apply(service); err != nil {
			return nil, err
		}
		if !service.Status.Billable() || crewOf(service) == previous {
			break
		}
		if err := ensureUnliquidated(ctx, repo, service); err != nil {
			return nil, err
		}
		if err := repo.UpdateService(ctx, *service); err != nil {
			return nil, err
		}
		return []event.DomainEvent{event.NewServiceCrewChanged(event.ServiceCrewPayload{
			ServiceID:           service.ID,
			Folio:               service.Folio,
			OperatorID:          service.OperatorID,
			AssistantOperatorID: service.AssistantOperatorID,
		})}, nil
	case PriorityPatch:
		if err := editable(service); err != nil {
			return nil, err
		}
		service.Priority = patch.Priority
	default:
		return nil, fmt.Errorf("%w: unsupported patch %s", ErrInvalidInput, item.Patch.Kind())
	}
	return nil, repo.UpdateService(ctx, *service)
}

// crewOf keys the commissioned crew of a service.
func crewOf(service *model.Service) [2]uuid.UUID {
	var crew [2]uuid.UUID
	if service.OperatorID != nil {
		crew[0] = *service.OperatorID
	}
	if service.AssistantOperatorID != nil {
		crew[1] = *service.AssistantOperatorID
	}
	return crew
}

// editable rejects field edits on services whose economics are frozen.
func editable(service *model.Service) error {
	if service.Closed() || service.Status == model.ServiceStatusInvoiced || service.Status == model.ServiceStatusCancelled {
		return fmt.Errorf("%w: service %s is %s and cannot be edited", ErrInvalidState, service.Folio, service.Status)
	}
	return nil
}
