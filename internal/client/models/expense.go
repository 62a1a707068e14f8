package models

import "errors"

// Expense is the entity-specific payload of an expense record. Date uses the
// backend's "yyyy-mm-dd" convention; Type is a free-form category string.
type Expense struct {
	Type   string  `json:"type"`
	Remark string  `json:"remark,omitempty"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

func (e *Expense) Validate() error {
	if e.Type == "" {
		return errors.New("expense type is required")
	}
	if e.Amount <= 0 {
		return errors.New("expense amount must be positive")
	}
	if e.Date == "" {
		return errors.New("expense date is required")
	}
	return nil
}
