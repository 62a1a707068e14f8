package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/models"
	"github.com/chronie/homemoney-sync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE sync_queue (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  entity_type TEXT NOT NULL,
  entity_id   TEXT NOT NULL,
  operation   TEXT NOT NULL,
  payload     TEXT NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 0,
  created_at  INTEGER NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

// newRepo returns a repository with a deterministic, strictly increasing
// clock so queue ordering is stable in tests.
func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	r := NewSQLiteRepository(setupDB(t))
	ts := time.UnixMilli(1000)
	r.now = func() time.Time {
		ts = ts.Add(time.Millisecond)
		return ts
	}
	return r
}

func TestRecord_CreateThenUpdate_CollapsesToCreate(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpCreate, []byte(`{"v":1}`)))
	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpUpdate, []byte(`{"v":2}`)))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := r.Pending(ctx, models.EntityExpense, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.OpCreate, pending.Operation, "server never confirmed the create, so the entry stays a CREATE")
	assert.JSONEq(t, `{"v":2}`, string(pending.Payload), "payload reflects the latest state")
}

func TestRecord_UpdateThenUpdate_KeepsQueuePosition(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpUpdate, []byte(`{"v":1}`)))
	require.NoError(t, r.Record(ctx, models.EntityExpense, "e2", models.OpUpdate, []byte(`{"v":1}`)))
	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpUpdate, []byte(`{"v":2}`)))

	batch, err := r.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "e1", batch[0].EntityID, "in-place replace keeps the original queue position")
	assert.JSONEq(t, `{"v":2}`, string(batch[0].Payload))
	assert.Equal(t, "e2", batch[1].EntityID)
}

func TestRecord_CreateThenDelete_CancelsOut(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, models.EntityDebt, "d1", models.OpCreate, []byte(`{}`)))
	require.NoError(t, r.Record(ctx, models.EntityDebt, "d1", models.OpDelete, []byte(`{}`)))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "the server never saw the entity, nothing to upload")

	_, err = r.Pending(ctx, models.EntityDebt, "d1")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestRecord_DeleteWithServerID_SurvivesPendingCreate(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	// the entry is still queued as a CREATE, but the delete snapshot carries
	// the server id the create already earned: the server knows the entity,
	// so cancelling would strand the row upstream
	require.NoError(t, r.Record(ctx, models.EntityDebt, "d1", models.OpCreate, []byte(`{}`)))
	require.NoError(t, r.Record(ctx, models.EntityDebt, "d1", models.OpDelete, []byte(`{"serverId":42}`)))

	batch, err := r.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.OpDelete, batch[0].Operation)
	assert.JSONEq(t, `{"serverId":42}`, string(batch[0].Payload))
}

func TestRecord_UpdateThenDelete_CollapsesToDelete(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpUpdate, []byte(`{"v":1}`)))
	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpDelete, []byte(`{"snap":true}`)))

	batch, err := r.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.OpDelete, batch[0].Operation)
	assert.JSONEq(t, `{"snap":true}`, string(batch[0].Payload))
}

func TestRecord_DeleteThenCreate_Resurrection(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpDelete, []byte(`{}`)))
	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpCreate, []byte(`{"v":9}`)))

	batch, err := r.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.OpCreate, batch[0].Operation, "resurrection starts over as a fresh CREATE")
	assert.JSONEq(t, `{"v":9}`, string(batch[0].Payload))
}

func TestRecord_DeleteThenUpdate_BecomesUpdate(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpDelete, []byte(`{}`)))
	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpUpdate, []byte(`{"v":3}`)))

	batch, err := r.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.OpUpdate, batch[0].Operation)
}

func TestNextBatch_FIFOAndLimit(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("e%d", i)
		require.NoError(t, r.Record(ctx, models.EntityExpense, id, models.OpCreate, []byte(`{}`)))
	}

	batch, err := r.NextBatch(ctx, 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, "e0", batch[0].EntityID)
	assert.Equal(t, "e1", batch[1].EntityID)
	assert.Equal(t, "e2", batch[2].EntityID)
}

func TestRemove_And_IncrementRetry(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpCreate, []byte(`{}`)))

	pending, err := r.Pending(ctx, models.EntityExpense, "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, pending.RetryCount)

	require.NoError(t, r.IncrementRetry(ctx, pending.ID))
	pending, err = r.Pending(ctx, models.EntityExpense, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, pending.RetryCount)

	require.NoError(t, r.Remove(ctx, pending.ID))
	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQueueLength_BoundedByDirtyEntities(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	// many mutations over two entities never grow the queue past two
	for i := 0; i < 20; i++ {
		payload := []byte(fmt.Sprintf(`{"v":%d}`, i))
		require.NoError(t, r.Record(ctx, models.EntityExpense, "e1", models.OpUpdate, payload))
		require.NoError(t, r.Record(ctx, models.EntityDebt, "d1", models.OpUpdate, payload))
	}

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
