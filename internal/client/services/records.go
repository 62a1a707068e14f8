package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/db"
	"github.com/chronie/homemoney-sync/internal/client/models"
	"github.com/chronie/homemoney-sync/internal/logging"
	"github.com/google/uuid"
)

// RecordService is the write path for user-initiated CRUD. Every mutation
// updates the local record and enqueues the matching ledger entry in one
// transaction, so work created while a sync cycle is in flight is never lost.
type RecordService struct {
	store *db.Store
	log   logging.Logger

	now   func() time.Time
	newID func() string
}

func NewRecordService(store *db.Store, log logging.Logger) *RecordService {
	if log == nil {
		log = logging.Nop()
	}
	return &RecordService{
		store: store,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *RecordService) AddExpense(ctx context.Context, e models.Expense) (*models.Record, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return s.add(ctx, models.EntityExpense, e)
}

func (s *RecordService) AddDebt(ctx context.Context, d models.Debt) (*models.Record, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return s.add(ctx, models.EntityDebt, d)
}

func (s *RecordService) UpdateExpense(ctx context.Context, id string, e models.Expense) (*models.Record, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return s.update(ctx, models.EntityExpense, id, e)
}

func (s *RecordService) UpdateDebt(ctx context.Context, id string, d models.Debt) (*models.Record, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return s.update(ctx, models.EntityDebt, id, d)
}

// Delete removes the record locally and queues the deletion for upload. The
// ledger snapshot keeps the record's server id so the upload phase can still
// address the entity after the row is gone.
func (s *RecordService) Delete(ctx context.Context, entityType models.EntityType, id string) error {
	rec, err := s.store.Records.GetByID(ctx, entityType, id)
	if err != nil {
		return err
	}

	snap, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to snapshot record: %w", err)
	}

	return s.store.InTx(ctx, func(ctx context.Context, tx *db.Store) error {
		if err := tx.Records.DeleteByID(ctx, entityType, id); err != nil {
			return err
		}
		return tx.Ledger.Record(ctx, entityType, id, models.OpDelete, snap)
	})
}

func (s *RecordService) List(ctx context.Context, entityType models.EntityType) ([]models.Record, error) {
	return s.store.Records.List(ctx, entityType)
}

func (s *RecordService) Get(ctx context.Context, entityType models.EntityType, id string) (*models.Record, error) {
	return s.store.Records.GetByID(ctx, entityType, id)
}

func (s *RecordService) add(ctx context.Context, entityType models.EntityType, payload any) (*models.Record, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	rec := &models.Record{
		EntityType: entityType,
		ID:         s.newID(),
		UpdatedAt:  s.now().UnixMilli(),
		IsSynced:   false,
		Payload:    body,
	}

	if err := s.persist(ctx, rec, models.OpCreate); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RecordService) update(ctx context.Context, entityType models.EntityType, id string, payload any) (*models.Record, error) {
	rec, err := s.store.Records.GetByID(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	rec.Payload = body
	rec.UpdatedAt = s.now().UnixMilli()
	rec.IsSynced = false

	if err := s.persist(ctx, rec, models.OpUpdate); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RecordService) persist(ctx context.Context, rec *models.Record, op models.Operation) error {
	snap, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to snapshot record: %w", err)
	}

	return s.store.InTx(ctx, func(ctx context.Context, tx *db.Store) error {
		if err := tx.Records.Upsert(ctx, rec); err != nil {
			return err
		}
		return tx.Ledger.Record(ctx, rec.EntityType, rec.ID, op, snap)
	})
}
