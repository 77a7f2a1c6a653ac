package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"worldlotto/internal/models"
)

// TicketResult holds the winner fields written to a ticket when its drawing is settled.
type TicketResult struct {
	IsWinner      bool
	WinningClass  int
	WinningAmount int64
	SettledAt     time.Time
}

// TicketStore holds submitted tickets.
type TicketStore interface {
	Create(ctx context.Context, ticket models.Ticket) (*models.Ticket, error)
	Get(ctx context.Context, ticketID string) (*models.Ticket, error)
	List(ctx context.Context) ([]*models.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Ticket, error)
	ListByDrawingDate(ctx context.Context, date time.Time) ([]*models.Ticket, error)
	CountByDrawingDate(ctx context.Context, date time.Time) (int, error)
	// SetResults writes the winner fields of all given tickets in one step. Nothing is written
	// if any ticket is unknown or already has a result (ErrTicketAlreadySettled).
	SetResults(ctx context.Context, results map[string]TicketResult) error
	// ClearResults removes the winner fields again, reverting SetResults.
	ClearResults(ctx context.Context, ticketIDs []string) error
}

// MemoryTicketStore is an in-process TicketStore.
type MemoryTicketStore struct {
	mu      sync.RWMutex
	tickets map[string]*models.Ticket
}

// NewMemoryTicketStore creates an empty ticket store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{
		tickets: make(map[string]*models.Ticket),
	}
}

func (s *MemoryTicketStore) Create(ctx context.Context, ticket models.Ticket) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = "ticket-" + uuid.New().String()
	}
	if _, exists := s.tickets[ticket.ID]; exists {
		return nil, fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	stored := ticket.Clone()
	s.tickets[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryTicketStore) Get(ctx context.Context, ticketID string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	return ticket.Clone(), nil
}

func (s *MemoryTicketStore) List(ctx context.Context) ([]*models.Ticket, error) {
	return s.filter(func(*models.Ticket) bool { return true }), nil
}

func (s *MemoryTicketStore) ListByUser(ctx context.Context, userID string) ([]*models.Ticket, error) {
	return s.filter(func(t *models.Ticket) bool { return t.UserID == userID }), nil
}

func (s *MemoryTicketStore) ListByDrawingDate(ctx context.Context, date time.Time) ([]*models.Ticket, error) {
	return s.filter(func(t *models.Ticket) bool { return t.DrawingDate.Equal(date) }), nil
}

func (s *MemoryTicketStore) CountByDrawingDate(ctx context.Context, date time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.tickets {
		if t.DrawingDate.Equal(date) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryTicketStore) SetResults(ctx context.Context, results map[string]TicketResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ticketID := range results {
		ticket, ok := s.tickets[ticketID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
		}
		if ticket.SettledAt != nil {
			return fmt.Errorf("%w: %s", ErrTicketAlreadySettled, ticketID)
		}
	}

	for ticketID, result := range results {
		ticket := s.tickets[ticketID]
		settledAt := result.SettledAt
		ticket.IsWinner = result.IsWinner
		ticket.WinningClass = result.WinningClass
		ticket.WinningAmount = result.WinningAmount
		ticket.SettledAt = &settledAt
	}
	return nil
}

func (s *MemoryTicketStore) ClearResults(ctx context.Context, ticketIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ticketID := range ticketIDs {
		if _, ok := s.tickets[ticketID]; !ok {
			return fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
		}
	}
	for _, ticketID := range ticketIDs {
		ticket := s.tickets[ticketID]
		ticket.IsWinner = false
		ticket.WinningClass = 0
		ticket.WinningAmount = 0
		ticket.SettledAt = nil
	}
	return nil
}

// filter returns copies of matching tickets ordered by purchase time.
func (s *MemoryTicketStore) filter(match func(*models.Ticket) bool) []*models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Ticket, 0)
	for _, t := range s.tickets {
		if match(t) {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
