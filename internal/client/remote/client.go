// Package remote implements the client for the authoritative HomeMoney
// backend: one CRUD set per entity type plus a modified-since feed, over
// HTTP/JSON. Failures are classified (network / timeout / 4xx / 5xx) so the
// sync orchestrator can tell transient from permanent.
package remote

import (
	"context"
	"encoding/json"

	"github.com/chronie/homemoney-sync/internal/client/models"
)

// EntityClient performs the four CRUD operations for one entity type.
//
// Every operation is idempotent from the orchestrator's point of view:
// Create carries the client-supplied record id so the server can dedupe a
// retried request that already succeeded.
type EntityClient interface {
	Create(ctx context.Context, clientID string, payload json.RawMessage) (*models.RemoteRecord, error)
	Update(ctx context.Context, serverID int64, payload json.RawMessage) (*models.RemoteRecord, error)
	Delete(ctx context.Context, serverID int64) error

	// ListModifiedSince returns every remote record (including tombstones)
	// modified strictly after the given epoch-millis watermark.
	ListModifiedSince(ctx context.Context, since int64) ([]models.RemoteRecord, error)
}

// Client is the full remote API surface consumed by the sync engine.
type Client interface {
	// Entity returns the per-type CRUD client, or common.ErrUnknownEntityType.
	Entity(t models.EntityType) (EntityClient, error)

	// Ping probes server reachability; used by the connectivity watcher and
	// as the pre-sync network check.
	Ping(ctx context.Context) error

	Close() error
}
