package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/db"
	"github.com/chronie/homemoney-sync/internal/client/models"
	"github.com/chronie/homemoney-sync/internal/client/remote"
	"github.com/chronie/homemoney-sync/internal/client/repositories/metadata"
	"github.com/chronie/homemoney-sync/internal/common"
	"github.com/chronie/homemoney-sync/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// SyncConfig tunes one sync cycle.
type SyncConfig struct {
	BatchSize     int           // ledger entries drained per batch
	MaxRetries    int           // per-entry retry ceiling before the entry is abandoned
	UploadWorkers int           // concurrent remote calls within a batch
	CycleTimeout  time.Duration // overall deadline for one cycle
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.UploadWorkers <= 0 {
		c.UploadWorkers = 4
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = 2 * time.Minute
	}
	return c
}

// cycleState is the orchestrator's internal state machine position.
type cycleState string

const (
	stateIdle        cycleState = "idle"
	stateUploading   cycleState = "uploading"
	stateDownloading cycleState = "downloading"
	stateReconciling cycleState = "reconciling"
	stateFailed      cycleState = "failed"
)

// SyncService drives full sync cycles: drain the change ledger (upload),
// pull remote changes newer than the watermark (download), resolve conflicts
// and advance the watermark on a consistent outcome.
//
// Only one cycle runs at a time; concurrent PerformFullSync calls coalesce
// onto the in-flight cycle and share its result.
type SyncService struct {
	store  *db.Store
	client remote.Client
	log    logging.Logger
	cfg    SyncConfig

	sf     singleflight.Group
	status *statusBroadcaster

	now   func() time.Time
	newID func() string
}

func NewSyncService(store *db.Store, client remote.Client, cfg SyncConfig, log logging.Logger) *SyncService {
	if log == nil {
		log = logging.Nop()
	}
	return &SyncService{
		store:  store,
		client: client,
		log:    log,
		cfg:    cfg.withDefaults(),
		status: newStatusBroadcaster(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// PerformFullSync runs one sync cycle, or joins the cycle already in flight.
func (s *SyncService) PerformFullSync(ctx context.Context) (*models.SyncResult, error) {
	v, err, _ := s.sf.Do("cycle", func() (any, error) {
		return s.runCycle(ctx)
	})
	res, _ := v.(*models.SyncResult)
	return res, err
}

// PendingCount returns the number of local mutations awaiting upload.
func (s *SyncService) PendingCount(ctx context.Context) (int, error) {
	return s.store.Ledger.Count(ctx)
}

// Status returns the engine's current externally observable status.
func (s *SyncService) Status() models.SyncStatus {
	return s.status.Current()
}

// SubscribeStatus returns a channel of status transitions and a cancel
// function releasing the subscription.
func (s *SyncService) SubscribeStatus() (<-chan models.SyncStatus, func()) {
	return s.status.Subscribe()
}

func (s *SyncService) setState(ctx context.Context, state cycleState) {
	s.log.Debug(ctx, "sync state", "state", state)
}

func (s *SyncService) runCycle(parent context.Context) (*models.SyncResult, error) {
	res := &models.SyncResult{}

	// NetworkUnavailable is a deferred sync, not a failure: nothing was
	// attempted and nothing changed.
	if err := s.client.Ping(parent); err != nil {
		s.log.Info(parent, "sync deferred, server unreachable", "error", err)
		res.Deferred = true
		res.Error = common.ErrNetworkUnavailable.Error()
		return res, nil
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.CycleTimeout)
	defer cancel()

	s.status.set(models.StatusSyncing)
	started := s.now()
	s.log.Info(ctx, "sync cycle started")

	err := s.runPhases(ctx, res)
	if err != nil {
		s.setState(ctx, stateFailed)
		s.status.set(models.StatusFailed)
		res.Success = false
		res.Error = err.Error()
		s.log.Error(ctx, "sync cycle failed", "error", err, "duration", s.now().Sub(started))
		return res, err
	}

	res.Success = true
	if len(res.Download.Conflicts) > 0 {
		s.status.set(models.StatusConflict)
	} else {
		s.status.set(models.StatusSuccess)
	}
	s.setState(ctx, stateIdle)
	s.log.Info(ctx, "sync cycle finished",
		"uploaded", res.Upload.Succeeded,
		"upload_failed", res.Upload.Failed,
		"downloaded_new", res.Download.New,
		"downloaded_updated", res.Download.Updated,
		"conflicts", len(res.Download.Conflicts),
		"duration", s.now().Sub(started),
	)
	return res, nil
}

func (s *SyncService) runPhases(ctx context.Context, res *models.SyncResult) error {
	s.setState(ctx, stateUploading)
	if err := s.uploadPhase(ctx, &res.Upload); err != nil {
		return fmt.Errorf("upload phase: %w", err)
	}

	s.setState(ctx, stateDownloading)
	maxSeen, err := s.downloadPhase(ctx, &res.Download)
	if err != nil {
		return fmt.Errorf("download phase: %w", err)
	}

	s.setState(ctx, stateReconciling)
	return s.commitWatermark(ctx, maxSeen)
}

// --- upload phase ---------------------------------------------------------

// uploadOutcome pairs a drained ledger entry with its remote call result.
type uploadOutcome struct {
	entry  models.LedgerEntry
	remote *models.RemoteRecord // non-nil on create/update success
	err    error
}

func (s *SyncService) uploadPhase(ctx context.Context, res *models.UploadResult) error {
	// Transiently failed entries stay queued oldest-first, so a naive re-drain
	// would hit them again immediately and burn their whole retry budget
	// within this cycle. Each entry gets at most one attempt per cycle; later
	// drains page past the ones already tried.
	attempted := make(map[int64]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrCycleDeadline, err)
		}

		batch, err := s.store.Ledger.NextBatch(ctx, s.cfg.BatchSize+len(attempted))
		if err != nil {
			return err
		}
		fresh := make([]models.LedgerEntry, 0, s.cfg.BatchSize)
		for _, e := range batch {
			if _, ok := attempted[e.ID]; ok {
				continue
			}
			fresh = append(fresh, e)
			if len(fresh) == s.cfg.BatchSize {
				break
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		for _, e := range fresh {
			attempted[e.ID] = struct{}{}
		}

		outcomes := s.uploadBatch(ctx, fresh)

		for _, o := range outcomes {
			// Abort cleanly on deadline: entries not yet applied stay
			// queued exactly as they were.
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", common.ErrCycleDeadline, err)
			}
			if err := s.applyUploadOutcome(ctx, o, res); err != nil {
				return err
			}
		}
	}
}

// uploadBatch issues the remote calls concurrently. Results are applied to
// the local store by the caller, serially, to preserve ledger invariants.
func (s *SyncService) uploadBatch(ctx context.Context, batch []models.LedgerEntry) []uploadOutcome {
	outcomes := make([]uploadOutcome, len(batch))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.UploadWorkers)
	for i, entry := range batch {
		g.Go(func() error {
			rec, err := s.uploadOne(ctx, entry)
			outcomes[i] = uploadOutcome{entry: entry, remote: rec, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// uploadOne performs the remote call for a single ledger entry. The entry
// payload is the record snapshot taken at mutation time.
func (s *SyncService) uploadOne(ctx context.Context, entry models.LedgerEntry) (*models.RemoteRecord, error) {
	ec, err := s.client.Entity(entry.EntityType)
	if err != nil {
		return nil, err
	}

	var snap models.Record
	if err := json.Unmarshal(entry.Payload, &snap); err != nil {
		return nil, fmt.Errorf("corrupt ledger snapshot for %s/%s: %w", entry.EntityType, entry.EntityID, err)
	}

	switch entry.Operation {
	case models.OpCreate, models.OpUpdate:
		serverID := snap.ServerID
		if cur, err := s.store.Records.GetByID(ctx, entry.EntityType, entry.EntityID); err == nil && cur.ServerID != nil {
			// the id may have been assigned after the snapshot was taken
			serverID = cur.ServerID
		}
		if serverID == nil {
			return ec.Create(ctx, entry.EntityID, snap.Payload)
		}
		return ec.Update(ctx, *serverID, snap.Payload)

	case models.OpDelete:
		if snap.ServerID == nil {
			// collapsed creates never reach the ledger as deletes; a
			// snapshot without a server id means there is nothing upstream
			return nil, common.ErrMissingServerID
		}
		return nil, ec.Delete(ctx, *snap.ServerID)

	default:
		return nil, fmt.Errorf("unsupported ledger operation %q", entry.Operation)
	}
}

// applyUploadOutcome applies one remote call result to the local store.
func (s *SyncService) applyUploadOutcome(ctx context.Context, o uploadOutcome, res *models.UploadResult) error {
	res.Total++

	if o.err == nil {
		if err := s.confirmUpload(ctx, o); err != nil {
			return err
		}
		res.Succeeded++
		return nil
	}

	if remote.IsTransient(o.err) && o.entry.RetryCount < s.cfg.MaxRetries {
		s.log.Warn(ctx, "upload failed, will retry",
			"entity", o.entry.EntityType, "id", o.entry.EntityID,
			"retry", o.entry.RetryCount+1, "error", o.err)
		if err := s.store.Ledger.IncrementRetry(ctx, o.entry.ID); err != nil {
			return err
		}
		res.Failed++
		return nil
	}

	// Permanent failure (4xx, bad snapshot, or retry ceiling hit): abandon
	// the entry and surface it; it is never retried automatically.
	s.log.Error(ctx, "upload failed permanently, dropping entry",
		"entity", o.entry.EntityType, "id", o.entry.EntityID,
		"operation", o.entry.Operation, "error", o.err)
	if err := s.store.Ledger.Remove(ctx, o.entry.ID); err != nil {
		return err
	}
	res.Failed++
	res.FailedItems = append(res.FailedItems, models.FailedItem{
		EntityType: o.entry.EntityType,
		EntityID:   o.entry.EntityID,
		Operation:  o.entry.Operation,
		Error:      o.err.Error(),
	})
	return nil
}

// confirmUpload applies a successful upload atomically: record bookkeeping
// and ledger removal commit together. A ledger entry superseded by a user
// write while the call was in flight is left queued, so nothing is lost.
func (s *SyncService) confirmUpload(ctx context.Context, o uploadOutcome) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx *db.Store) error {
		superseded := false
		collapsed := false
		pending, err := tx.Ledger.Pending(ctx, o.entry.EntityType, o.entry.EntityID)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			collapsed = true
		case err != nil:
			return err
		case pending.ID != o.entry.ID || !bytes.Equal(pending.Payload, o.entry.Payload):
			superseded = true
		default:
			if err := tx.Ledger.Remove(ctx, o.entry.ID); err != nil {
				return err
			}
		}

		if o.entry.Operation == models.OpDelete {
			// row already purged at mutation time; nothing else to update
			return nil
		}

		rec, err := tx.Records.GetByID(ctx, o.entry.EntityType, o.entry.EntityID)
		if errors.Is(err, common.ErrorNotFound) {
			// Deleted locally while the call was in flight. A collapsed entry
			// means the delete cancelled against this very CREATE as "never
			// uploaded" and queued nothing, yet the server just accepted it:
			// queue the delete here so the entity does not come back on the
			// next download.
			if collapsed && o.remote != nil {
				return s.queueDelete(ctx, tx, o.entry, o.remote.ServerID)
			}
			return nil
		}
		if err != nil {
			return err
		}

		if o.remote != nil {
			rec.ServerID = &o.remote.ServerID
			// a superseding edit keeps its own timestamp
			if !superseded && o.remote.UpdatedAt > 0 {
				rec.UpdatedAt = o.remote.UpdatedAt
			}
		}
		rec.IsSynced = !superseded
		return tx.Records.Upsert(ctx, rec)
	})
}

// queueDelete enqueues a DELETE entry addressing a server row whose local
// counterpart is already gone.
func (s *SyncService) queueDelete(ctx context.Context, tx *db.Store, entry models.LedgerEntry, serverID int64) error {
	snap, err := json.Marshal(models.Record{
		EntityType: entry.EntityType,
		ID:         entry.EntityID,
		ServerID:   &serverID,
		UpdatedAt:  s.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to snapshot record: %w", err)
	}
	return tx.Ledger.Record(ctx, entry.EntityType, entry.EntityID, models.OpDelete, snap)
}

// --- download phase -------------------------------------------------------

func (s *SyncService) downloadPhase(ctx context.Context, res *models.DownloadResult) (int64, error) {
	watermark, _, err := metadata.GetLastSync(ctx, s.store.Metadata)
	if err != nil {
		return 0, err
	}
	maxSeen := watermark

	for _, entityType := range models.AllEntityTypes() {
		ec, err := s.client.Entity(entityType)
		if err != nil {
			return 0, err
		}

		remotes, err := ec.ListModifiedSince(ctx, watermark)
		if err != nil {
			return 0, err
		}

		// deletions purge the local row, so pending DELETE work is only
		// addressable through the ledger snapshots
		deletes, err := s.pendingDeletes(ctx, entityType)
		if err != nil {
			return 0, err
		}

		for _, rr := range remotes {
			if err := ctx.Err(); err != nil {
				return 0, fmt.Errorf("%w: %w", common.ErrCycleDeadline, err)
			}
			res.Total++
			if rr.UpdatedAt > maxSeen {
				maxSeen = rr.UpdatedAt
			}
			if err := s.applyRemote(ctx, rr, deletes, res); err != nil {
				return 0, err
			}
		}
	}

	return maxSeen, nil
}

// pendingDeletes indexes the entity type's pending DELETE entries by the
// server id recorded in their snapshots.
func (s *SyncService) pendingDeletes(ctx context.Context, entityType models.EntityType) (map[int64]models.LedgerEntry, error) {
	// the ledger is bounded by distinct dirty entities, so draining it
	// into memory here is fine
	batch, err := s.store.Ledger.NextBatch(ctx, 1<<30)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]models.LedgerEntry)
	for _, e := range batch {
		if e.EntityType != entityType || e.Operation != models.OpDelete {
			continue
		}
		var snap models.Record
		if err := json.Unmarshal(e.Payload, &snap); err != nil || snap.ServerID == nil {
			continue
		}
		index[*snap.ServerID] = e
	}
	return index, nil
}

// applyRemote reconciles one remote record against local state. All local
// writes happen inside a single transaction, and the entity's ledger state
// is re-checked inside that transaction so a user write racing the download
// is never overwritten.
func (s *SyncService) applyRemote(ctx context.Context, rr models.RemoteRecord, deletes map[int64]models.LedgerEntry, res *models.DownloadResult) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx *db.Store) error {
		local, err := s.findLocal(ctx, tx, rr)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		var pending *models.LedgerEntry
		if local != nil {
			p, err := tx.Ledger.Pending(ctx, rr.EntityType, local.ID)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			pending = p
		} else if e, ok := deletes[rr.ServerID]; ok {
			// re-check: the DELETE may have been confirmed or superseded
			// since the index was built
			p, err := tx.Ledger.Pending(ctx, rr.EntityType, e.EntityID)
			if err == nil && p.ID == e.ID {
				pending = p
			} else if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
		}

		switch {
		case local == nil && pending == nil:
			if rr.Deleted {
				return nil // tombstone for an entity we never had
			}
			id := rr.ClientID
			if id == "" {
				id = s.newID()
			}
			res.New++
			return tx.Records.Upsert(ctx, &models.Record{
				EntityType: rr.EntityType,
				ID:         id,
				ServerID:   &rr.ServerID,
				UpdatedAt:  rr.UpdatedAt,
				IsSynced:   true,
				Payload:    rr.Payload,
			})

		case pending == nil:
			// not modified locally since last sync: remote is authoritative
			if rr.Deleted {
				res.Updated++
				return tx.Records.DeleteByID(ctx, rr.EntityType, local.ID)
			}
			local.ServerID = &rr.ServerID
			local.UpdatedAt = rr.UpdatedAt
			local.IsSynced = true
			local.Payload = rr.Payload
			res.Updated++
			return tx.Records.Upsert(ctx, local)

		default:
			return s.applyResolution(ctx, tx, local, pending, rr, res)
		}
	})
}

// findLocal locates the local counterpart of a remote record, first by
// server id, then by the client-supplied id (a create confirmed on the
// server before the client processed the response).
func (s *SyncService) findLocal(ctx context.Context, tx *db.Store, rr models.RemoteRecord) (*models.Record, error) {
	local, err := tx.Records.GetByServerID(ctx, rr.EntityType, rr.ServerID)
	if err == nil {
		return local, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if rr.ClientID == "" {
		return nil, common.ErrorNotFound
	}
	return tx.Records.GetByID(ctx, rr.EntityType, rr.ClientID)
}

func (s *SyncService) applyResolution(ctx context.Context, tx *db.Store, local *models.Record, pending *models.LedgerEntry, rr models.RemoteRecord, res *models.DownloadResult) error {
	resolved := Resolve(local, pending, &rr)
	if resolved.Conflict != nil {
		res.Conflicts = append(res.Conflicts, *resolved.Conflict)
		s.log.Info(ctx, "conflict resolved",
			"entity", rr.EntityType, "id", pending.EntityID,
			"type", resolved.Conflict.ConflictType,
			"resolution", resolved.Conflict.Resolution)
	}

	switch resolved.Action {
	case ActionApplyRemote:
		if err := tx.Ledger.RemoveByEntity(ctx, rr.EntityType, pending.EntityID); err != nil {
			return err
		}
		res.Updated++
		return tx.Records.Upsert(ctx, &models.Record{
			EntityType: rr.EntityType,
			ID:         pending.EntityID,
			ServerID:   &rr.ServerID,
			UpdatedAt:  rr.UpdatedAt,
			IsSynced:   true,
			Payload:    rr.Payload,
		})

	case ActionKeepLocal:
		// local wins; the pending entry stays queued for the next upload,
		// but adopt the server id so that upload addresses the right row
		if local != nil && local.ServerID == nil {
			local.ServerID = &rr.ServerID
			return tx.Records.Upsert(ctx, local)
		}
		return nil

	case ActionDropLocal:
		if err := tx.Ledger.RemoveByEntity(ctx, rr.EntityType, pending.EntityID); err != nil {
			return err
		}
		if local != nil {
			res.Updated++
			return tx.Records.DeleteByID(ctx, rr.EntityType, local.ID)
		}
		return nil

	default:
		return fmt.Errorf("unsupported conflict action %d", resolved.Action)
	}
}

// --- reconcile ------------------------------------------------------------

// commitWatermark advances the watermark to the newest remote timestamp
// observed this cycle. When nothing was downloaded the previous watermark is
// still valid and stays put.
func (s *SyncService) commitWatermark(ctx context.Context, maxSeen int64) error {
	current, ok, err := metadata.GetLastSync(ctx, s.store.Metadata)
	if err != nil {
		return err
	}
	if ok && maxSeen <= current {
		return nil
	}
	if !ok && maxSeen == 0 {
		return nil
	}
	return metadata.SetLastSync(ctx, s.store.Metadata, maxSeen)
}
