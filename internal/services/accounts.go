package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"
	"worldlotto/internal/models"
)

// AccountStore is the balance collaborator. Settlement credits winnings through it and
// ticket purchases debit the ticket price.
type AccountStore interface {
	Get(ctx context.Context, userID string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Create(ctx context.Context, account models.Account) (*models.Account, error)
	Balance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) error
	// Debit fails with ErrInsufficientFunds without changing the balance.
	Debit(ctx context.Context, userID string, amount int64) error
}

// MemoryAccountStore is an in-process AccountStore keyed by user id.
type MemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

// NewMemoryAccountStore creates an empty account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[string]*models.Account),
	}
}

func (s *MemoryAccountStore) Get(ctx context.Context, userID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	c := *account
	return &c, nil
}

func (s *MemoryAccountStore) List(ctx context.Context) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		c := *account
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryAccountStore) Create(ctx context.Context, account models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		account.ID = "user-" + uuid.New().String()
	}
	if _, exists := s.accounts[account.ID]; exists {
		return nil, fmt.Errorf("account %s already exists", account.ID)
	}
	for _, existing := range s.accounts {
		if account.Email != "" && strings.EqualFold(existing.Email, account.Email) {
			return nil, fmt.Errorf("account with email %s already exists", account.Email)
		}
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	stored := account
	s.accounts[stored.ID] = &stored
	return &account, nil
}

func (s *MemoryAccountStore) Balance(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	return account.Balance, nil
}

func (s *MemoryAccountStore) Credit(ctx context.Context, userID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	account.Balance += amount
	return nil
}

func (s *MemoryAccountStore) Debit(ctx context.Context, userID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[userID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	if account.Balance < amount {
		return fmt.Errorf("%w: balance %d, required %d", ErrInsufficientFunds, account.Balance, amount)
	}
	account.Balance -= amount
	return nil
}

// SeedDemoAccounts creates the admin account and ten test accounts used for local runs.
func SeedDemoAccounts(ctx context.Context, store AccountStore) error {
	seed := []models.Account{
		{ID: "admin-001", Email: "admin@world.example", IsAdmin: true, Balance: 100_000},
		{ID: "lara-001", Email: "lara@world.example", Balance: 1_000},
	}
	for i := 1; i <= 10; i++ {
		seed = append(seed, models.Account{
			ID:      fmt.Sprintf("test-%03d", i),
			Email:   fmt.Sprintf("test%d@world.example", i),
			Balance: 1_000,
		})
	}

	for _, account := range seed {
		if _, err := store.Create(ctx, account); err != nil {
			return fmt.Errorf("seed account %s: %w", account.ID, err)
		}
	}
	logger.Infof("Seeded %d demo accounts", len(seed))
	return nil
}
