package models

import "encoding/json"

// LedgerEntry is one queued, not-yet-confirmed local mutation awaiting
// upload. Entries are drained oldest-first; at most one effective entry
// exists per (EntityType, EntityID) thanks to write-time collapsing in the
// ledger repository.
type LedgerEntry struct {
	ID         int64           `json:"id"` // ledger-local autoincrement
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Operation  Operation       `json:"operation"`
	Payload    json.RawMessage `json:"payload"` // record snapshot at mutation time
	RetryCount int             `json:"retryCount"`
	CreatedAt  int64           `json:"createdAt"` // epoch millis
}
