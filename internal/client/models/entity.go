// Package models holds the domain and sync bookkeeping types shared by the
// repositories, the remote client and the sync orchestrator.
package models

// EntityType identifies a syncable domain entity kind.
type EntityType string

const (
	EntityExpense EntityType = "expense"
	EntityDebt    EntityType = "debt"
)

// AllEntityTypes lists every entity kind the engine synchronizes, in the
// order the download phase processes them.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityExpense, EntityDebt}
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityExpense, EntityDebt:
		return true
	}
	return false
}

// Operation is a queued mutation kind in the change ledger.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)
