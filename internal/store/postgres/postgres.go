package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"cryptofolio/internal/models"
	"cryptofolio/internal/store"
)

var _ store.Repository = (*Store)(nil)

const uniqueViolation = "23505"

// Store is the postgres repository.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Connect opens a pooled connection and pings it.
func Connect(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established")
	return New(db, logger), nil
}

func New(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// DB returns the underlying *sql.DB, for migrations.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (:id, :email, :display_name, :password_hash, :created_at)`, user)
	if isUniqueViolation(err) {
		return store.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return u, notFound(err, "user")
}

func (s *Store) UserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users WHERE id = $1`, id)
	return u, notFound(err, "user")
}

func (s *Store) AddHolding(ctx context.Context, h models.Holding) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO holdings (id, user_id, coin, amount, buy_price, created_at)
		VALUES (:id, :user_id, :coin, :amount, :buy_price, :created_at)`, h)
	if isUniqueViolation(err) {
		return store.ErrDuplicateCoin
	}
	if err != nil {
		return fmt.Errorf("failed to insert holding: %w", err)
	}
	return nil
}

func (s *Store) Holding(ctx context.Context, userID, id string) (models.Holding, error) {
	var h models.Holding
	err := s.db.GetContext(ctx, &h, `
		SELECT id, user_id, coin, amount, buy_price, created_at
		FROM holdings WHERE user_id = $1 AND id = $2`, userID, id)
	return h, notFound(err, "holding")
}

func (s *Store) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	out := []models.Holding{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, coin, amount, buy_price, created_at
		FROM holdings WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return out, nil
}

func (s *Store) ListAllHoldings(ctx context.Context) ([]models.Holding, error) {
	out := []models.Holding{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, coin, amount, buy_price, created_at
		FROM holdings ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteHolding(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AddTransaction(ctx context.Context, tx models.Transaction) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO transactions (id, user_id, action, coin, amount, buy_price, created_at)
		VALUES (:id, :user_id, :action, :coin, :amount, :buy_price, :created_at)`, tx)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	out := []models.Transaction{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, action, coin, amount, buy_price, created_at
		FROM transactions WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}

// ClearTransactions deletes a user's whole history in one statement.
func (s *Store) ClearTransactions(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clear transactions: %w", err)
	}
	return int(n), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", what, err)
	}
	return nil
}
