package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User is an account owner of holdings and transactions.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// WelcomeName is the display name, or the local part of the email.
func (u User) WelcomeName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	name, _, _ := strings.Cut(u.Email, "@")
	return name
}

// Holding is an amount of one coin bought at one price.
type Holding struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Coin      string          `json:"coin" db:"coin"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	BuyPrice  decimal.Decimal `json:"buy_price" db:"buy_price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type Action string

const (
	ActionAdded   Action = "Added"
	ActionDeleted Action = "Deleted"
)

// Transaction is an append-only record of a holding being added or deleted.
type Transaction struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Action    Action          `json:"action" db:"action"`
	Coin      string          `json:"coin" db:"coin"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	BuyPrice  decimal.Decimal `json:"buy_price" db:"buy_price"`
	Timestamp time.Time       `json:"timestamp" db:"created_at"`
}

// PricePoint is one sample of a historical series. On the wire it is the
// upstream [milliseconds, price] tuple.
type PricePoint struct {
	Timestamp int64 // unix milliseconds
	Price     float64
}

func (p PricePoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.Timestamp), p.Price})
}

func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var tuple []float64
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("price point: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("price point: expected 2 elements, got %d", len(tuple))
	}
	p.Timestamp = int64(tuple[0])
	p.Price = tuple[1]
	return nil
}

type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
)

type Collection string

const (
	CollectionHoldings     Collection = "holdings"
	CollectionTransactions Collection = "transactions"
)

// ChangeEvent describes one write to a user's holdings or transactions.
type ChangeEvent struct {
	Type        ChangeType   `json:"type"`
	Collection  Collection   `json:"collection"`
	UserID      string       `json:"user_id"`
	ID          string       `json:"id"`
	Holding     *Holding     `json:"holding,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}
