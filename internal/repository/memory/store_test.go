package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

func TestStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(repo repository.Repository) error {
		if _, err := repo.CreateService(ctx, model.Service{Folio: "SRV-1", ClientID: uuid.New()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	services, err := store.ListServices(ctx, model.ServiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestStore_TransactionSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.Transaction(ctx, func(repo repository.Repository) error {
		created, err := repo.CreateService(ctx, model.Service{Folio: "SRV-1", ClientID: uuid.New()})
		if err != nil {
			return err
		}
		got, err := repo.GetService(ctx, created.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "SRV-1", got.Folio)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.CreateService(ctx, model.Service{Folio: "SRV-1"})
	require.NoError(t, err)
	_, err = store.CreateService(ctx, model.Service{Folio: "SRV-1"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	closureID := uuid.New()
	_, err = store.CreateInvoice(ctx, model.Invoice{Folio: "FAC-1", BillingClosureID: closureID})
	require.NoError(t, err)
	_, err = store.CreateInvoice(ctx, model.Invoice{Folio: "FAC-2", BillingClosureID: closureID})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestStore_UpdateInvoiceChecksVersion(t *testing.T) {
	ctx := context.Background()
	store := New()

	invoice, err := store.CreateInvoice(ctx, model.Invoice{Folio: "FAC-1", BillingClosureID: uuid.New(), Total: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, 1, invoice.Version)

	stale := *invoice
	invoice.BalanceDue = decimal.NewFromInt(40)
	require.NoError(t, store.UpdateInvoice(ctx, *invoice))

	stale.BalanceDue = decimal.NewFromInt(10)
	assert.ErrorIs(t, store.UpdateInvoice(ctx, stale), repository.ErrConflict)

	got, err := store.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.True(t, decimal.NewFromInt(40).Equal(got.BalanceDue))
}

func TestStore_NextFolio(t *testing.T) {
	ctx := context.Background()
	store := New()

	for want := int64(1); want <= 3; want++ {
		got, err := store.NextFolio(ctx, "SRV", 2026)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := store.NextFolio(ctx, "SRV", 2027)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestStore_LockClosableServices(t *testing.T) {
	ctx := context.Background()
	store := New()
	client := uuid.New()
	day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	add := func(folio string, status model.ServiceStatus, at time.Time) {
		_, err := store.CreateService(ctx, model.Service{Folio: folio, ClientID: client, Status: status, ScheduledDate: at})
		require.NoError(t, err)
	}
	add("A", model.ServiceStatusCompleted, day)
	add("B", model.ServiceStatusCompleted, day.Add(24*time.Hour))
	add("C", model.ServiceStatusInProgress, day)
	add("D", model.ServiceStatusCompleted, day.Add(-time.Hour))

	err := store.Transaction(ctx, func(repo repository.Repository) error {
		services, err := repo.LockClosableServices(ctx, client, day, day.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, services, 1)
		assert.Equal(t, "A", services[0].Folio)
		return nil
	})
	require.NoError(t, err)
}
