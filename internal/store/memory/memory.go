package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"cryptofolio/internal/models"
	"cryptofolio/internal/store"
)

var _ store.Repository = (*Store)(nil)

// Store keeps everything in process memory. It is used for development
// and tests.
type Store struct {
	mu           sync.RWMutex
	users        map[string]models.User
	holdings     map[string]models.Holding
	transactions map[string][]models.Transaction
}

func New() *Store {
	return &Store{
		users:        make(map[string]models.User),
		holdings:     make(map[string]models.Holding),
		transactions: make(map[string][]models.Transaction),
	}
}

func (s *Store) CreateUser(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrEmailTaken
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) AddHolding(_ context.Context, holding models.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.holdings {
		if h.UserID == holding.UserID && h.Coin == holding.Coin {
			return store.ErrDuplicateCoin
		}
	}
	s.holdings[holding.ID] = holding
	return nil
}

func (s *Store) Holding(_ context.Context, userID, id string) (models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[id]
	if !ok || h.UserID != userID {
		return models.Holding{}, store.ErrNotFound
	}
	return h, nil
}

func (s *Store) ListHoldings(_ context.Context, userID string) ([]models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Holding{}
	for _, h := range s.holdings {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sortHoldings(out)
	return out, nil
}

func (s *Store) ListAllHoldings(_ context.Context) ([]models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Holding, 0, len(s.holdings))
	for _, h := range s.holdings {
		out = append(out, h)
	}
	sortHoldings(out)
	return out, nil
}

func (s *Store) DeleteHolding(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holdings[id]
	if !ok || h.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.holdings, id)
	return nil
}

func (s *Store) AddTransaction(_ context.Context, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[tx.UserID] = append(s.transactions[tx.UserID], tx)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]models.Transaction{}, s.transactions[userID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) ClearTransactions(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.transactions[userID])
	delete(s.transactions, userID)
	return n, nil
}

func (s *Store) Close() error {
	return nil
}

func sortHoldings(hs []models.Holding) {
	sort.SliceStable(hs, func(i, j int) bool {
		if hs[i].CreatedAt.Equal(hs[j].CreatedAt) {
			return hs[i].ID < hs[j].ID
		}
		return hs[i].CreatedAt.Before(hs[j].CreatedAt)
	})
}
