// Package services contains the sync engine's business logic: the record
// CRUD service that feeds the change ledger, the pure conflict resolver and
// the sync orchestrator driving full cycles against the remote backend.
package services

import (
	"encoding/json"

	"github.com/chronie/homemoney-sync/internal/client/models"
)

// ConflictAction tells the orchestrator how to apply a resolution locally.
type ConflictAction int

const (
	// ActionApplyRemote overwrites the local copy with the remote one and
	// drops the entity's pending ledger entry.
	ActionApplyRemote ConflictAction = iota
	// ActionKeepLocal keeps the local copy and leaves the ledger entry
	// queued for the next upload.
	ActionKeepLocal
	// ActionDropLocal purges the local copy and drops the pending entry
	// (the entity is already gone upstream).
	ActionDropLocal
)

// Resolved is the outcome of resolving one local/remote disagreement.
// Conflict is nil when the two sides turn out to agree (e.g. both deleted).
type Resolved struct {
	Action   ConflictAction
	Conflict *models.SyncConflict
}

// Resolve decides deterministically between a locally modified entity and
// the remote copy of the same logical entity. It is a pure function: callers
// pass the local record (nil when a pending DELETE already purged the row),
// the entity's pending ledger entry, and the remote record from the
// modified-since feed (which only carries entries newer than the watermark).
//
// Policy (last-writer-wins by timestamp, server wins ties):
//   - pending DELETE vs. live remote update: the deletion never destroys the
//     concurrent edit; the server copy is restored (DELETE_CONFLICT).
//   - pending CREATE/UPDATE vs. remote tombstone: the data is already gone
//     upstream; honor the delete and drop the local work (DELETE_CONFLICT).
//   - pending CREATE/UPDATE vs. live remote update: larger UpdatedAt wins;
//     equal timestamps favor the server so all clients converge
//     (UPDATE_CONFLICT).
func Resolve(local *models.Record, pending *models.LedgerEntry, remote *models.RemoteRecord) Resolved {
	localTS := snapshotTimestamp(local, pending)

	if pending.Operation == models.OpDelete {
		if remote.Deleted {
			// both sides deleted; nothing left to reconcile
			return Resolved{Action: ActionDropLocal}
		}
		return Resolved{
			Action: ActionApplyRemote,
			Conflict: &models.SyncConflict{
				EntityType:      remote.EntityType,
				EntityID:        pending.EntityID,
				ConflictType:    models.DeleteConflict,
				LocalTimestamp:  localTS,
				ServerTimestamp: remote.UpdatedAt,
				Resolution:      models.UseServer,
			},
		}
	}

	if remote.Deleted {
		return Resolved{
			Action: ActionDropLocal,
			Conflict: &models.SyncConflict{
				EntityType:      remote.EntityType,
				EntityID:        pending.EntityID,
				ConflictType:    models.DeleteConflict,
				LocalTimestamp:  localTS,
				ServerTimestamp: remote.UpdatedAt,
				Resolution:      models.UseServer,
			},
		}
	}

	conflict := models.SyncConflict{
		EntityType:      remote.EntityType,
		EntityID:        pending.EntityID,
		ConflictType:    models.UpdateConflict,
		LocalTimestamp:  localTS,
		ServerTimestamp: remote.UpdatedAt,
	}
	if localTS > remote.UpdatedAt {
		conflict.Resolution = models.UseLocal
		return Resolved{Action: ActionKeepLocal, Conflict: &conflict}
	}
	conflict.Resolution = models.UseServer
	return Resolved{Action: ActionApplyRemote, Conflict: &conflict}
}

// snapshotTimestamp prefers the live local record's timestamp and falls back
// to the ledger snapshot when the row is already purged.
func snapshotTimestamp(local *models.Record, pending *models.LedgerEntry) int64 {
	if local != nil {
		return local.UpdatedAt
	}
	var snap models.Record
	if err := json.Unmarshal(pending.Payload, &snap); err == nil {
		return snap.UpdatedAt
	}
	return 0
}
