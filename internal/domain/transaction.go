package domain

import (
	"fmt"
	"time"
)

// Direction says whether a transaction moves money in or out.
type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Income || d == Expense
}

// Transaction is one recorded money movement. Immutable once created;
// the only delete path is the full database clear.
type Transaction struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"` // always positive; Direction carries the sign
	Category    string    `json:"category"`
	Direction   Direction `json:"type"`
	Date        string    `json:"date"` // calendar date, YYYY-MM-DD
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the invariants that hold for every stored transaction.
func (t *Transaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("transaction: amount must be positive, got %v", t.Amount)
	}
	if !t.Direction.Valid() {
		return fmt.Errorf("transaction: invalid direction %q", t.Direction)
	}
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return fmt.Errorf("transaction: invalid date %q: %w", t.Date, err)
	}
	if t.Description == "" {
		return fmt.Errorf("transaction: description is required")
	}
	return nil
}
