package models

import "errors"

// Debt direction: money lent to somebody or borrowed from somebody.
const (
	DebtLend   = "lend"
	DebtBorrow = "borrow"
)

// Debt is the entity-specific payload of a debt record.
type Debt struct {
	Type     string  `json:"type"`
	Person   string  `json:"person"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date"`
	IsRepaid bool    `json:"isRepaid"`
	Remark   string  `json:"remark,omitempty"`
}

func (d *Debt) Validate() error {
	if d.Type != DebtLend && d.Type != DebtBorrow {
		return errors.New("debt type must be lend or borrow")
	}
	if d.Person == "" {
		return errors.New("debt person is required")
	}
	if d.Amount <= 0 {
		return errors.New("debt amount must be positive")
	}
	if d.Date == "" {
		return errors.New("debt date is required")
	}
	return nil
}
