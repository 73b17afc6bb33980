package portfolio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptofolio/internal/models"
	"cryptofolio/internal/store"
)

// PriceSource provides live prices in a single display currency.
type PriceSource interface {
	LivePrice(ctx context.Context, coin string) float64
	Currency() string
}

type Publisher interface {
	Publish(ev models.ChangeEvent)
}

// HoldingInput is the raw add-holding form.
type HoldingInput struct {
	Coin     string `json:"coin" validate:"required"`
	Amount   string `json:"amount" validate:"required"`
	BuyPrice string `json:"buy_price" validate:"required"`
}

type Service struct {
	holdings     store.Holdings
	transactions store.Transactions
	prices       PriceSource
	coins        *models.Catalog
	feed         Publisher
	validate     *validator.Validate
	location     *time.Location
	now          func() time.Time
	logger       *zap.Logger
}

func NewService(repo store.Repository, prices PriceSource, coins *models.Catalog, feed Publisher, logger *zap.Logger) *Service {
	return &Service{
		holdings:     repo,
		transactions: repo,
		prices:       prices,
		coins:        coins,
		feed:         feed,
		validate:     validator.New(),
		location:     time.UTC,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
}

func (s *Service) Currency() string {
	return s.prices.Currency()
}

// Coins is the catalog used to resolve and name coins.
func (s *Service) Coins() *models.Catalog {
	return s.coins
}

// AddHolding validates the form, stores the holding and logs an "Added"
// transaction. If the transaction cannot be logged the holding is removed
// again and nothing is published.
func (s *Service) AddHolding(ctx context.Context, userID string, in HoldingInput) (models.Holding, error) {
	in.Coin = strings.TrimSpace(in.Coin)
	in.Amount = strings.TrimSpace(in.Amount)
	in.BuyPrice = strings.TrimSpace(in.BuyPrice)
	if err := s.validate.Struct(in); err != nil {
		return models.Holding{}, invalid(msgMissingFields)
	}

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		return models.Holding{}, invalid(msgNotPositive)
	}
	buyPrice, err := decimal.NewFromString(in.BuyPrice)
	if err != nil || !buyPrice.IsPositive() {
		return models.Holding{}, invalid(msgNotPositive)
	}

	now := s.now()
	holding := models.Holding{
		ID:        uuid.NewString(),
		UserID:    userID,
		Coin:      s.coins.Resolve(in.Coin),
		Amount:    amount,
		BuyPrice:  buyPrice,
		CreatedAt: now,
	}
	if err := s.holdings.AddHolding(ctx, holding); err != nil {
		if errors.Is(err, store.ErrDuplicateCoin) {
			return models.Holding{}, ErrDuplicateCoin
		}
		return models.Holding{}, fmt.Errorf("failed to save holding: %w", err)
	}

	tx, err := s.recordTransaction(ctx, models.ActionAdded, holding, now)
	if err != nil {
		if rbErr := s.holdings.DeleteHolding(ctx, userID, holding.ID); rbErr != nil {
			s.logger.Error("Failed to roll back holding",
				zap.String("user_id", userID),
				zap.String("holding_id", holding.ID),
				zap.Error(rbErr))
		}
		return models.Holding{}, err
	}
	s.publish(models.ChangeEvent{Type: models.ChangeAdded, Collection: models.CollectionHoldings, UserID: userID, ID: holding.ID, Holding: &holding})
	s.publishTransaction(tx)

	s.logger.Info("Holding added",
		zap.String("user_id", userID),
		zap.String("holding_id", holding.ID),
		zap.String("coin", holding.Coin))
	return holding, nil
}

// DeleteHolding logs a "Deleted" transaction and then removes the holding.
func (s *Service) DeleteHolding(ctx context.Context, userID, id string) error {
	holding, err := s.holdings.Holding(ctx, userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.logTransaction(ctx, models.ActionDeleted, holding, s.now()); err != nil {
		return err
	}

	if err := s.holdings.DeleteHolding(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	s.publish(models.ChangeEvent{Type: models.ChangeRemoved, Collection: models.CollectionHoldings, UserID: userID, ID: id, Holding: &holding})

	s.logger.Info("Holding deleted",
		zap.String("user_id", userID),
		zap.String("holding_id", id),
		zap.String("coin", holding.Coin))
	return nil
}

func (s *Service) Holdings(ctx context.Context, userID string) ([]models.Holding, error) {
	return s.holdings.ListHoldings(ctx, userID)
}

// ValuedHoldings prices every holding, looking each distinct coin up once.
func (s *Service) ValuedHoldings(ctx context.Context, userID string) ([]HoldingValuation, error) {
	holdings, err := s.holdings.ListHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64)
	valued := make([]HoldingValuation, 0, len(holdings))
	for _, h := range holdings {
		price, ok := prices[h.Coin]
		if !ok {
			price = s.prices.LivePrice(ctx, h.Coin)
			prices[h.Coin] = price
		}
		valued = append(valued, Value(h, price, s.coins.DisplayName(h.Coin)))
	}
	return valued, nil
}

func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	valued, err := s.ValuedHoldings(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(s.prices.Currency(), valued), nil
}

// Transactions returns the user's transactions matching f, oldest first.
func (s *Service) Transactions(ctx context.Context, userID string, f Filter) ([]models.Transaction, error) {
	txs, err := s.transactions.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FilterTransactions(txs, f, s.location), nil
}

func (s *Service) TransactionYears(ctx context.Context, userID string) ([]int, error) {
	txs, err := s.transactions.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Years(txs, s.location), nil
}

// ClearHistory removes every transaction of the user and returns how many
// there were.
func (s *Service) ClearHistory(ctx context.Context, userID string) (int, error) {
	txs, err := s.transactions.ListTransactions(ctx, userID)
	if err != nil {
		return 0, err
	}

	n, err := s.transactions.ClearTransactions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	for _, tx := range txs {
		s.publish(models.ChangeEvent{Type: models.ChangeRemoved, Collection: models.CollectionTransactions, UserID: userID, ID: tx.ID})
	}

	s.logger.Info("Transaction history cleared", zap.String("user_id", userID), zap.Int("count", n))
	return n, nil
}

// ExportCSV writes the filtered history to w.
func (s *Service) ExportCSV(ctx context.Context, userID string, f Filter, w io.Writer) error {
	txs, err := s.Transactions(ctx, userID, f)
	if err != nil {
		return err
	}
	return WriteCSV(w, txs, s.location)
}

func (s *Service) logTransaction(ctx context.Context, action models.Action, h models.Holding, at time.Time) error {
	tx, err := s.recordTransaction(ctx, action, h, at)
	if err != nil {
		return err
	}
	s.publishTransaction(tx)
	return nil
}

func (s *Service) recordTransaction(ctx context.Context, action models.Action, h models.Holding, at time.Time) (models.Transaction, error) {
	tx := models.Transaction{
		ID:        uuid.NewString(),
		UserID:    h.UserID,
		Action:    action,
		Coin:      h.Coin,
		Amount:    h.Amount,
		BuyPrice:  h.BuyPrice,
		Timestamp: at,
	}
	if err := s.transactions.AddTransaction(ctx, tx); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to log transaction: %w", err)
	}
	return tx, nil
}

func (s *Service) publishTransaction(tx models.Transaction) {
	s.publish(models.ChangeEvent{Type: models.ChangeAdded, Collection: models.CollectionTransactions, UserID: tx.UserID, ID: tx.ID, Transaction: &tx})
}

func (s *Service) publish(ev models.ChangeEvent) {
	if s.feed != nil {
		s.feed.Publish(ev)
	}
}
