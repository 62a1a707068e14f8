// Package records implements the local store adapter for syncable domain
// records. Each record carries its sync bookkeeping (synced flag, server id)
// next to the entity payload.
package records

import (
	"context"

	"github.com/chronie/homemoney-sync/internal/client/models"
)

type Repository interface {
	// GetByID returns the record with the given local id, or
	// common.ErrorNotFound.
	GetByID(ctx context.Context, entityType models.EntityType, id string) (*models.Record, error)

	// GetByServerID returns the record carrying the given server-assigned id,
	// or common.ErrorNotFound.
	GetByServerID(ctx context.Context, entityType models.EntityType, serverID int64) (*models.Record, error)

	// GetUnsynced returns all records of the given type whose synced flag is
	// unset, oldest update first.
	GetUnsynced(ctx context.Context, entityType models.EntityType) ([]models.Record, error)

	// List returns all records of the given type, newest update first.
	List(ctx context.Context, entityType models.EntityType) ([]models.Record, error)

	// Upsert inserts the record or replaces the stored row with the same
	// (entity type, id).
	Upsert(ctx context.Context, rec *models.Record) error

	// DeleteByID removes the record. Deleting a missing record is a no-op.
	DeleteByID(ctx context.Context, entityType models.EntityType, id string) error
}
