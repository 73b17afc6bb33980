package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptofolio/internal/models"
	"cryptofolio/internal/store"
)

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := models.User{ID: "u1", Email: "Asha@Example.com", PasswordHash: "h"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, models.User{ID: "u2", Email: "asha@example.com"}), store.ErrEmailTaken)

	got, err := s.UserByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	got, err = s.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = s.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UserByID(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Holdings(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	btc := models.Holding{ID: "h1", UserID: "u1", Coin: "bitcoin", Amount: decimal.NewFromInt(1), BuyPrice: decimal.NewFromInt(10), CreatedAt: base.Add(time.Hour)}
	eth := models.Holding{ID: "h2", UserID: "u1", Coin: "ethereum", Amount: decimal.NewFromInt(2), BuyPrice: decimal.NewFromInt(5), CreatedAt: base}
	other := models.Holding{ID: "h3", UserID: "u2", Coin: "bitcoin", CreatedAt: base}

	require.NoError(t, s.AddHolding(ctx, btc))
	require.NoError(t, s.AddHolding(ctx, eth))
	require.NoError(t, s.AddHolding(ctx, other))
	assert.ErrorIs(t, s.AddHolding(ctx, models.Holding{ID: "h4", UserID: "u1", Coin: "bitcoin"}), store.ErrDuplicateCoin)

	list, err := s.ListHoldings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "h2", list[0].ID)
	assert.Equal(t, "h1", list[1].ID)

	all, err := s.ListAllHoldings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.Holding(ctx, "u2", "h1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteHolding(ctx, "u2", "h1"), store.ErrNotFound)

	require.NoError(t, s.DeleteHolding(ctx, "u1", "h1"))
	list, err = s.ListHoldings(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	empty, err := s.ListHoldings(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestStore_Transactions(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddTransaction(ctx, models.Transaction{ID: "t2", UserID: "u1", Action: models.ActionDeleted, Timestamp: base.Add(time.Minute)}))
	require.NoError(t, s.AddTransaction(ctx, models.Transaction{ID: "t1", UserID: "u1", Action: models.ActionAdded, Timestamp: base}))
	require.NoError(t, s.AddTransaction(ctx, models.Transaction{ID: "t3", UserID: "u2", Timestamp: base}))

	list, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "t1", list[0].ID)

	n, err := s.ClearTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err = s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.ListTransactions(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
