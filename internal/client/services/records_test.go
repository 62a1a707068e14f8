package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/models"
	"github.com/chronie/homemoney-sync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddExpense_PersistsRecordAndLedgerEntry(t *testing.T) {
	store := setupStore(t)
	rs := NewRecordService(store, nil)
	rs.now = func() time.Time { return time.UnixMilli(1234) }
	ctx := context.Background()

	rec, err := rs.AddExpense(ctx, models.Expense{Type: "food", Amount: 9.5, Date: "2024-05-01"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int64(1234), rec.UpdatedAt)
	assert.False(t, rec.IsSynced)

	got, err := store.Records.GetByID(ctx, models.EntityExpense, rec.ID)
	require.NoError(t, err)
	e, err := got.Expense()
	require.NoError(t, err)
	assert.Equal(t, 9.5, e.Amount)

	pending, err := store.Ledger.Pending(ctx, models.EntityExpense, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpCreate, pending.Operation)

	// the ledger payload is a full record snapshot
	var snap models.Record
	require.NoError(t, json.Unmarshal(pending.Payload, &snap))
	assert.Equal(t, rec.ID, snap.ID)
	assert.Equal(t, int64(1234), snap.UpdatedAt)
}

func TestAddExpense_ValidationFailure_TouchesNothing(t *testing.T) {
	store := setupStore(t)
	rs := NewRecordService(store, nil)
	ctx := context.Background()

	_, err := rs.AddExpense(ctx, models.Expense{Type: "", Amount: 1, Date: "2024-05-01"})
	require.Error(t, err)

	n, err := store.Ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpdateExpense_CollapsesOntoPendingCreate(t *testing.T) {
	store := setupStore(t)
	rs := NewRecordService(store, nil)
	ctx := context.Background()

	rec, err := rs.AddExpense(ctx, models.Expense{Type: "food", Amount: 1, Date: "2024-05-01"})
	require.NoError(t, err)
	_, err = rs.UpdateExpense(ctx, rec.ID, models.Expense{Type: "food", Amount: 2, Date: "2024-05-01"})
	require.NoError(t, err)

	n, err := store.Ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "two mutations, one queued entry")

	pending, err := store.Ledger.Pending(ctx, models.EntityExpense, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpCreate, pending.Operation, "unconfirmed creates stay creates")

	var snap models.Record
	require.NoError(t, json.Unmarshal(pending.Payload, &snap))
	e := models.Expense{}
	require.NoError(t, json.Unmarshal(snap.Payload, &e))
	assert.Equal(t, float64(2), e.Amount, "the snapshot carries the latest state")
}

func TestUpdateExpense_Missing(t *testing.T) {
	rs := NewRecordService(setupStore(t), nil)

	_, err := rs.UpdateExpense(context.Background(), "missing", models.Expense{Type: "food", Amount: 1, Date: "2024-05-01"})
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestDelete_PurgesRowAndSnapshotsServerID(t *testing.T) {
	store := setupStore(t)
	rs := NewRecordService(store, nil)
	ctx := context.Background()

	rec := seedSynced(t, store, "e1", 7, 50)
	require.NoError(t, rs.Delete(ctx, models.EntityExpense, rec.ID))

	_, err := store.Records.GetByID(ctx, models.EntityExpense, rec.ID)
	assert.True(t, errors.Is(err, common.ErrorNotFound), "deletes are local immediately")

	pending, err := store.Ledger.Pending(ctx, models.EntityExpense, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpDelete, pending.Operation)

	var snap models.Record
	require.NoError(t, json.Unmarshal(pending.Payload, &snap))
	require.NotNil(t, snap.ServerID, "the snapshot keeps the server id for the upload")
	assert.Equal(t, int64(7), *snap.ServerID)
}

func TestDelete_NeverSyncedEntity_CancelsOut(t *testing.T) {
	store := setupStore(t)
	rs := NewRecordService(store, nil)
	ctx := context.Background()

	rec, err := rs.AddExpense(ctx, models.Expense{Type: "food", Amount: 1, Date: "2024-05-01"})
	require.NoError(t, err)
	require.NoError(t, rs.Delete(ctx, models.EntityExpense, rec.ID))

	n, err := store.Ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "the server never saw the entity, nothing to upload")
}

func TestAddDebt_And_List(t *testing.T) {
	store := setupStore(t)
	rs := NewRecordService(store, nil)
	ctx := context.Background()

	_, err := rs.AddDebt(ctx, models.Debt{Type: models.DebtLend, Person: "bob", Amount: 25, Date: "2024-05-01"})
	require.NoError(t, err)

	debts, err := rs.List(ctx, models.EntityDebt)
	require.NoError(t, err)
	require.Len(t, debts, 1)

	expenses, err := rs.List(ctx, models.EntityExpense)
	require.NoError(t, err)
	assert.Empty(t, expenses)
}
