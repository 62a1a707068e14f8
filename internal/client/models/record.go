package models

import "encoding/json"

// Record is the local sync envelope around a domain entity. The engine is
// generic over entity kinds: the typed Expense/Debt fields travel inside
// Payload, while the envelope carries everything reconciliation needs.
//
// Invariant: IsSynced == true implies ServerID != nil.
type Record struct {
	EntityType EntityType      `json:"entityType"`
	ID         string          `json:"id"`       // locally generated uuid, stable
	ServerID   *int64          `json:"serverId"` // assigned on first successful upload
	UpdatedAt  int64           `json:"updatedAt"` // local wall clock, epoch millis
	IsSynced   bool            `json:"isSynced"`
	Payload    json.RawMessage `json:"payload"`
}

// Expense decodes the payload as an expense. Valid only when
// EntityType == EntityExpense.
func (r *Record) Expense() (*Expense, error) {
	var e Expense
	if err := json.Unmarshal(r.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Debt decodes the payload as a debt. Valid only when EntityType == EntityDebt.
func (r *Record) Debt() (*Debt, error) {
	var d Debt
	if err := json.Unmarshal(r.Payload, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// RemoteRecord is the server's representation of an entity as returned by the
// list/create/update endpoints, already decoded from the wire.
type RemoteRecord struct {
	ServerID   int64
	EntityType EntityType
	ClientID   string // client-supplied record id, used for create dedupe
	UpdatedAt  int64  // server clock, epoch millis
	Deleted    bool   // tombstone from the modified-since feed
	Payload    json.RawMessage
}
