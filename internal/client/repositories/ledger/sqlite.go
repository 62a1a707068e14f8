package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/models"
	"github.com/chronie/homemoney-sync/internal/common"
	"github.com/chronie/homemoney-sync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX

	// now is swappable in tests for deterministic created_at values.
	now func() time.Time
}

// NewSQLiteRepository binds the repository to a database handle. Record
// executes several statements; run it inside dbx.WithTx when the handle is a
// plain *sql.DB and concurrent writers exist.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const entryColumns = `id, entity_type, entity_id, operation, payload, retry_count, created_at`

func (r *SQLiteRepository) Record(ctx context.Context, entityType models.EntityType, entityID string, op models.Operation, payload []byte) error {
	pending, err := r.Pending(ctx, entityType, entityID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	switch op {
	case models.OpCreate:
		// Resurrection after a pending DELETE (or stale leftovers): start
		// over with a single fresh CREATE.
		if pending != nil {
			if err := r.RemoveByEntity(ctx, entityType, entityID); err != nil {
				return err
			}
		}
		return r.insert(ctx, entityType, entityID, models.OpCreate, payload)

	case models.OpUpdate:
		if pending == nil {
			return r.insert(ctx, entityType, entityID, models.OpUpdate, payload)
		}
		switch pending.Operation {
		case models.OpCreate, models.OpUpdate:
			// Replace the payload in place, keeping the entry's queue
			// position and original operation (a pending CREATE stays a
			// CREATE until the server has confirmed it).
			return r.replacePayload(ctx, pending.ID, payload)
		default: // pending DELETE: the entity was recreated locally
			if err := r.RemoveByEntity(ctx, entityType, entityID); err != nil {
				return err
			}
			return r.insert(ctx, entityType, entityID, models.OpUpdate, payload)
		}

	case models.OpDelete:
		// A pending CREATE normally means the server never saw the entity, so
		// the two cancel out. A delete snapshot carrying a server id proves
		// otherwise (the create confirmed while further edits were queued):
		// the delete must still go out.
		cancels := pending != nil && pending.Operation == models.OpCreate &&
			snapshotServerID(payload) == nil
		if pending != nil {
			if err := r.RemoveByEntity(ctx, entityType, entityID); err != nil {
				return err
			}
		}
		if cancels {
			return nil
		}
		return r.insert(ctx, entityType, entityID, models.OpDelete, payload)

	default:
		return fmt.Errorf("unsupported ledger operation %q", op)
	}
}

// snapshotServerID peeks at the server id inside a record snapshot. Payloads
// that do not decode count as id-less.
func snapshotServerID(payload []byte) *int64 {
	var snap struct {
		ServerID *int64 `json:"serverId"`
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil
	}
	return snap.ServerID
}

func (r *SQLiteRepository) insert(ctx context.Context, entityType models.EntityType, entityID string, op models.Operation, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (entity_type, entity_id, operation, payload, retry_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, entityType, entityID, op, string(payload), r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry for %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

func (r *SQLiteRepository) replacePayload(ctx context.Context, entryID int64, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET payload = ? WHERE id = ?`, string(payload), entryID)
	if err != nil {
		return fmt.Errorf("failed to replace ledger payload for entry %d: %w", entryID, err)
	}
	return nil
}

func (r *SQLiteRepository) NextBatch(ctx context.Context, limit int) ([]models.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM sync_queue ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select ledger batch: %w", err)
	}
	defer rows.Close()

	var result []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Operation, &payload, &e.RetryCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		e.Payload = []byte(payload)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context, entityType models.EntityType, entityID string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM sync_queue
		 WHERE entity_type = ? AND entity_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		entityType, entityID,
	).Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Operation, &payload, &e.RetryCount, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending entry for %s/%s: %w", entityType, entityID, err)
	}
	e.Payload = []byte(payload)
	return &e, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, entryID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to remove ledger entry %d: %w", entryID, err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveByEntity(ctx context.Context, entityType models.EntityType, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
	if err != nil {
		return fmt.Errorf("failed to remove ledger entries for %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementRetry(ctx context.Context, entryID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET retry_count = retry_count + 1 WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to increment retry for ledger entry %d: %w", entryID, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return n, nil
}
