// Package ledger implements the change ledger: an append-only queue of local
// mutations not yet confirmed by the server.
//
// Collapsing is enforced at write time, so the queue length is bounded by the
// number of distinct dirty entities rather than by the mutation count:
//
//   - CREATE after a pending DELETE drops the DELETE and starts over as a
//     fresh CREATE (entity resurrection).
//   - UPDATE after a pending CREATE or UPDATE replaces the payload in place.
//   - DELETE after a pending CREATE drops every entry for the entity; the
//     server never saw it, so there is nothing to tell it.
//   - DELETE after a pending UPDATE replaces it with a single DELETE.
package ledger

import (
	"context"

	"github.com/chronie/homemoney-sync/internal/client/models"
)

type Repository interface {
	// Record appends a mutation for the given entity, applying the
	// collapsing rules above. It never touches the network.
	Record(ctx context.Context, entityType models.EntityType, entityID string, op models.Operation, payload []byte) error

	// NextBatch returns up to limit entries ordered by creation time
	// ascending (oldest first).
	NextBatch(ctx context.Context, limit int) ([]models.LedgerEntry, error)

	// Pending returns the outstanding entry for the entity, or
	// common.ErrorNotFound when the entity has no pending work.
	Pending(ctx context.Context, entityType models.EntityType, entityID string) (*models.LedgerEntry, error)

	// Remove deletes a confirmed (or abandoned) entry by ledger id.
	Remove(ctx context.Context, entryID int64) error

	// RemoveByEntity deletes every entry for the given entity.
	RemoveByEntity(ctx context.Context, entityType models.EntityType, entityID string) error

	// IncrementRetry bumps the retry counter after a transient upload failure.
	IncrementRetry(ctx context.Context, entryID int64) error

	// Count returns the number of pending entries (the pending-sync counter).
	Count(ctx context.Context) (int, error)
}
