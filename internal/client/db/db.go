// Package db opens the client's local sqlite database, applies migrations
// and wires the repositories into a single Store handle.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chronie/homemoney-sync/internal/client/migrations"
	"github.com/chronie/homemoney-sync/internal/client/repositories/ledger"
	"github.com/chronie/homemoney-sync/internal/client/repositories/metadata"
	"github.com/chronie/homemoney-sync/internal/client/repositories/records"
	"github.com/chronie/homemoney-sync/internal/dbx"
	"github.com/pressly/goose/v3"
)

// Store aggregates the local repositories over one database handle. InTx
// yields a Store whose repositories are bound to a single transaction, which
// is how the orchestrator keeps each per-entity application atomic.
type Store struct {
	db       *sql.DB
	Records  records.Repository
	Ledger   ledger.Repository
	Metadata metadata.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the sqlite database at dsn, runs
// migrations and returns the wired Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewStore(sqlDB), nil
}

// NewStore wires repositories over an already-open database. The caller is
// responsible for the schema (used by tests with in-memory databases).
func NewStore(sqlDB *sql.DB) *Store {
	return &Store{
		db:       sqlDB,
		Records:  records.NewSQLiteRepository(sqlDB),
		Ledger:   ledger.NewSQLiteRepository(sqlDB),
		Metadata: metadata.NewSQLiteRepository(sqlDB),
	}
}

// InTx runs fn with a Store bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, txStore *Store) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txStore := &Store{
			db:       s.db,
			Records:  records.NewSQLiteRepository(tx),
			Ledger:   ledger.NewSQLiteRepository(tx),
			Metadata: metadata.NewSQLiteRepository(tx),
		}
		return fn(ctx, txStore)
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
