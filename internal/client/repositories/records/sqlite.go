package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chronie/homemoney-sync/internal/client/models"
	"github.com/chronie/homemoney-sync/internal/common"
	"github.com/chronie/homemoney-sync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository binds the repository to a database handle. Passing a
// transactional handle scopes every call to that transaction.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `entity_type, id, server_id, updated_at, synced, payload`

func scanRecord(row interface{ Scan(...any) error }) (*models.Record, error) {
	var rec models.Record
	var serverID sql.NullInt64
	var synced int
	var payload string
	if err := row.Scan(&rec.EntityType, &rec.ID, &serverID, &rec.UpdatedAt, &synced, &payload); err != nil {
		return nil, err
	}
	if serverID.Valid {
		rec.ServerID = &serverID.Int64
	}
	rec.IsSynced = synced != 0
	rec.Payload = []byte(payload)
	return &rec, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, entityType models.EntityType, id string) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE entity_type = ? AND id = ?`, entityType, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", entityType, id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) GetByServerID(ctx context.Context, entityType models.EntityType, serverID int64) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE entity_type = ? AND server_id = ?`, entityType, serverID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s by server id %d: %w", entityType, serverID, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) GetUnsynced(ctx context.Context, entityType models.EntityType) ([]models.Record, error) {
	return r.query(ctx,
		`SELECT `+recordColumns+` FROM records WHERE entity_type = ? AND synced = 0 ORDER BY updated_at ASC`,
		entityType)
}

func (r *SQLiteRepository) List(ctx context.Context, entityType models.EntityType) ([]models.Record, error) {
	return r.query(ctx,
		`SELECT `+recordColumns+` FROM records WHERE entity_type = ? ORDER BY updated_at DESC`,
		entityType)
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.Record) error {
	var serverID sql.NullInt64
	if rec.ServerID != nil {
		serverID = sql.NullInt64{Int64: *rec.ServerID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (entity_type, id, server_id, updated_at, synced, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, id) DO UPDATE SET
			server_id = excluded.server_id,
			updated_at = excluded.updated_at,
			synced = excluded.synced,
			payload = excluded.payload
	`, rec.EntityType, rec.ID, serverID, rec.UpdatedAt, boolToInt(rec.IsSynced), string(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to upsert record %s/%s: %w", rec.EntityType, rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, entityType models.EntityType, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE entity_type = ? AND id = ?`, entityType, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", entityType, id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
