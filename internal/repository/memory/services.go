package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

func (r *txRepo) CreateService(_ context.Context, service model.Service) (*model.Service, error) {
	for _, existing := range r.state.services {
		if existing.Folio == service.Folio {
			return nil, repository.ErrConflict
		}
	}
	now := r.now()
	service.ID = uuid.New()
	service.CreatedAt = now
	service.UpdatedAt = now
	r.state.services[service.ID] = service
	return &service, nil
}

func (r *txRepo) GetService(_ context.Context, id uuid.UUID) (*model.Service, error) {
	service, ok := r.state.services[id]
	if !ok {
		return nil, notFound("service", id)
	}
	return &service, nil
}

func (r *txRepo) LockService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return r.GetService(ctx, id)
}

func (r *txRepo) UpdateService(_ context.Context, service model.Service) error {
	existing, ok := r.state.services[service.ID]
	if !ok {
		return notFound("service", service.ID)
	}
	service.Folio = existing.Folio
	service.ClientID = existing.ClientID
	service.CreatedAt = existing.CreatedAt
	service.UpdatedAt = r.now()
	r.state.services[service.ID] = service
	return nil
}

func (r *txRepo) ListServices(_ context.Context, filter model.ServiceFilter) ([]model.Service, error) {
	var result []model.Service
	for _, service := range r.state.services {
		if filter.ClientID != nil && service.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && service.Status != *filter.Status {
			continue
		}
		if filter.From != nil && service.ScheduledDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !service.ScheduledDate.Before(*filter.To) {
			continue
		}
		result = append(result, service)
	}
	sortServices(result)
	return result, nil
}

func (r *txRepo) LockClosableServices(_ context.Context, clientID uuid.UUID, from, to time.Time) ([]model.Service, error) {
	var result []model.Service
	for _, service := range r.state.services {
		if service.ClientID != clientID || service.Status != model.ServiceStatusCompleted || service.Closed() {
			continue
		}
		if !inRange(service.ScheduledDate, from, to) {
			continue
		}
		result = append(result, service)
	}
	sortServices(result)
	return result, nil
}

func (r *txRepo) ListClosureServices(_ context.Context, closureID uuid.UUID) ([]model.Service, error) {
	var result []model.Service
	for _, service := range r.state.services {
		if service.BillingClosureID != nil && *service.BillingClosureID == closureID {
			result = append(result, service)
		}
	}
	sortServices(result)
	return result, nil
}

func (r *txRepo) AttachServices(_ context.Context, closureID uuid.UUID, serviceIDs []uuid.UUID) error {
	for _, id := range serviceIDs {
		service, ok := r.state.services[id]
		if !ok || service.Closed() {
			return repository.ErrConflict
		}
		closure := closureID
		service.BillingClosureID = &closure
		service.UpdatedAt = r.now()
		r.state.services[id] = service
	}
	return nil
}

func (r *txRepo) ReleaseServices(_ context.Context, closureID uuid.UUID) error {
	for id, service := range r.state.services {
		if service.BillingClosureID != nil && *service.BillingClosureID == closureID {
			service.BillingClosureID = nil
			service.UpdatedAt = r.now()
			r.state.services[id] = service
		}
	}
	return nil
}

func (r *txRepo) MarkClosureServicesInvoiced(_ context.Context, closureID uuid.UUID, at time.Time) error {
	for id, service := range r.state.services {
		if service.BillingClosureID == nil || *service.BillingClosureID != closureID {
			continue
		}
		if service.Status != model.ServiceStatusCompleted {
			continue
		}
		service.Status = model.ServiceStatusInvoiced
		service.StatusChangedAt = at
		service.UpdatedAt = r.now()
		r.state.services[id] = service
	}
	return nil
}
