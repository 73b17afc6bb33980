package store

import (
	"context"
	"errors"

	"cryptofolio/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCoin = errors.New("coin already held")
	ErrEmailTaken    = errors.New("email already in use")
)

type Users interface {
	CreateUser(ctx context.Context, user models.User) error
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

// Holdings stores at most one holding per coin per user.
type Holdings interface {
	AddHolding(ctx context.Context, holding models.Holding) error
	Holding(ctx context.Context, userID, id string) (models.Holding, error)
	// ListHoldings returns a user's holdings oldest first.
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	ListAllHoldings(ctx context.Context) ([]models.Holding, error)
	DeleteHolding(ctx context.Context, userID, id string) error
}

type Transactions interface {
	AddTransaction(ctx context.Context, tx models.Transaction) error
	// ListTransactions returns a user's transactions oldest first.
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	ClearTransactions(ctx context.Context, userID string) (int, error)
}

type Repository interface {
	Users
	Holdings
	Transactions
	Close() error
}
