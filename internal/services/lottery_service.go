package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/logger"
	"worldlotto/internal/metrics"
	"worldlotto/internal/models"
)

var (
	ErrNoActiveDrawing      = errors.New("no active drawing")
	ErrDrawingNotFound      = errors.New("drawing not found")
	ErrDrawingAlreadyActive = errors.New("a drawing is already active")
	ErrDrawingNotClosed     = errors.New("drawing is not closed")
	ErrInvalidNumbers       = errors.New("invalid lottery numbers")
	ErrInvalidJackpot       = errors.New("invalid jackpot amount")
	ErrNoTickets            = errors.New("no tickets provided")
	ErrTooManyTickets       = errors.New("too many tickets")
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrTicketAlreadySettled = errors.New("ticket already settled")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInsufficientFunds    = errors.New("insufficient balance")
)

// Defaults for Options.
const (
	DefaultMaxTicketsPerPurchase = 10
	DefaultFirstDrawingDelay     = 24 * time.Hour
	DefaultDrawingInterval       = 7 * 24 * time.Hour
)

// Options tunes a LotteryService. Zero values fall back to the defaults.
type Options struct {
	TicketPrice           int64
	BaseJackpot           int64
	MaxTicketsPerPurchase int
	FirstDrawingDelay     time.Duration
	DrawingInterval       time.Duration
	// Rand drives quick picks and the tie-break of the least-frequent number selection.
	Rand *rand.Rand
	Now  func() time.Time
}

// LotteryService runs ticket sales and drawings.
// Drawings and purchases hold the write lock for their whole duration, so no ticket can be
// sold against a drawing that is being closed and no two drawings overlap.
type LotteryService struct {
	mu         sync.RWMutex
	tickets    TicketStore
	drawings   DrawingStore
	accounts   AccountStore
	settlement *SettlementEngine
	rng        *rand.Rand
	now        func() time.Time

	ticketPrice       int64
	baseJackpot       int64
	maxTickets        int
	firstDrawingDelay time.Duration
	drawingInterval   time.Duration
}

// NewLotteryService creates a LotteryService over the given stores.
func NewLotteryService(tickets TicketStore, drawings DrawingStore, accounts AccountStore, opts Options) *LotteryService {
	if opts.TicketPrice <= 0 {
		opts.TicketPrice = DefaultTicketPrice
	}
	if opts.BaseJackpot <= 0 {
		opts.BaseJackpot = DefaultBaseJackpot
	}
	if opts.MaxTicketsPerPurchase <= 0 {
		opts.MaxTicketsPerPurchase = DefaultMaxTicketsPerPurchase
	}
	if opts.FirstDrawingDelay <= 0 {
		opts.FirstDrawingDelay = DefaultFirstDrawingDelay
	}
	if opts.DrawingInterval <= 0 {
		opts.DrawingInterval = DefaultDrawingInterval
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	settlement := NewSettlementEngine(tickets, accounts)
	settlement.now = opts.Now

	return &LotteryService{
		tickets:           tickets,
		drawings:          drawings,
		accounts:          accounts,
		settlement:        settlement,
		rng:               opts.Rand,
		now:               opts.Now,
		ticketPrice:       opts.TicketPrice,
		baseJackpot:       opts.BaseJackpot,
		maxTickets:        opts.MaxTicketsPerPurchase,
		firstDrawingDelay: opts.FirstDrawingDelay,
		drawingInterval:   opts.DrawingInterval,
	}
}

// TicketPrice returns the unit price of a ticket.
func (s *LotteryService) TicketPrice() int64 {
	return s.ticketPrice
}

// EnsureActiveDrawing opens the first drawing with the base jackpot if none is active.
func (s *LotteryService) EnsureActiveDrawing(ctx context.Context) (*models.Drawing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.drawings.Active(ctx)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, ErrNoActiveDrawing) {
		return nil, err
	}

	opened, err := s.drawings.Open(ctx, s.newDrawing(s.now().Add(s.firstDrawingDelay), s.baseJackpot))
	if err != nil {
		return nil, fmt.Errorf("open first drawing: %w", err)
	}
	metrics.SetJackpot(opened.JackpotAmount)
	logger.Infof("Opened drawing %s for %s with jackpot %d", opened.ID, opened.Date.Format(time.RFC3339), opened.JackpotAmount)
	return opened, nil
}

func (s *LotteryService) newDrawing(date time.Time, jackpot int64) models.Drawing {
	return models.Drawing{
		Date:             date,
		MainNumbers:      []int{},
		WorldNumbers:     []int{},
		JackpotAmount:    jackpot,
		SimulatedJackpot: jackpot,
		IsActive:         true,
		WinnersByClass:   map[int]int{},
	}
}

// BuyTickets debits the total price from the user's account and creates one ticket per pick
// for the active drawing.
func (s *LotteryService) BuyTickets(ctx context.Context, userID string, picks []models.NumberPick) ([]*models.Ticket, error) {
	if len(picks) == 0 {
		return nil, ErrNoTickets
	}
	if len(picks) > s.maxTickets {
		return nil, fmt.Errorf("%w: maximum %d tickets per purchase", ErrTooManyTickets, s.maxTickets)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resolved := make([]models.DrawNumbers, len(picks))
	for i, pick := range picks {
		if pick.QuickPick {
			mainNumbers, worldNumbers := QuickPick(s.rng)
			resolved[i] = models.DrawNumbers{MainNumbers: mainNumbers, WorldNumbers: worldNumbers}
			continue
		}
		if err := ValidateNumbers(pick.MainNumbers, pick.WorldNumbers); err != nil {
			return nil, fmt.Errorf("ticket %d: %w", i+1, err)
		}
		resolved[i] = models.DrawNumbers{
			MainNumbers:  sortedCopy(pick.MainNumbers),
			WorldNumbers: sortedCopy(pick.WorldNumbers),
		}
	}

	active, err := s.drawings.Active(ctx)
	if err != nil {
		return nil, err
	}

	totalCost := int64(len(resolved)) * s.ticketPrice
	if err := s.accounts.Debit(ctx, userID, totalCost); err != nil {
		return nil, err
	}

	created := make([]*models.Ticket, 0, len(resolved))
	for i, numbers := range resolved {
		ticket, err := s.tickets.Create(ctx, models.Ticket{
			UserID:       userID,
			MainNumbers:  numbers.MainNumbers,
			WorldNumbers: numbers.WorldNumbers,
			Cost:         s.ticketPrice,
			DrawingDate:  active.Date,
			CreatedAt:    s.now(),
		})
		if err != nil {
			refund := int64(len(resolved)-i) * s.ticketPrice
			if creditErr := s.accounts.Credit(ctx, userID, refund); creditErr != nil {
				logger.Errorf("Refund of %d to user %s failed: %v", refund, userID, creditErr)
			}
			return created, fmt.Errorf("create ticket: %w", err)
		}
		created = append(created, ticket)
	}

	if err := s.refreshRealJackpot(ctx, active.Date); err != nil {
		logger.Warningf("Failed to refresh real jackpot of drawing %s: %v", active.ID, err)
	}

	metrics.AddTicketsSold(len(created), totalCost)
	logger.Infof("User %s bought %d tickets for drawing %s", userID, len(created), active.ID)
	return created, nil
}

func (s *LotteryService) refreshRealJackpot(ctx context.Context, date time.Time) error {
	count, err := s.tickets.CountByDrawingDate(ctx, date)
	if err != nil {
		return err
	}
	_, err = s.drawings.UpdateActive(ctx, func(d *models.Drawing) error {
		d.RealJackpot = JackpotContribution(count, s.ticketPrice)
		return nil
	})
	return err
}

// UpdateJackpot overrides a jackpot value of the active drawing. A simulated amount replaces the
// displayed jackpot; otherwise the real jackpot is overwritten until the next ticket sale.
func (s *LotteryService) UpdateJackpot(ctx context.Context, amount int64, isSimulated bool) (*models.Drawing, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidJackpot, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.drawings.UpdateActive(ctx, func(d *models.Drawing) error {
		if isSimulated {
			d.SimulatedJackpot = amount
			d.JackpotAmount = amount
		} else {
			d.RealJackpot = amount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SetJackpot(updated.JackpotAmount)
	logger.Infof("Jackpot of drawing %s updated to %d (simulated: %t)", updated.ID, amount, isSimulated)
	return updated, nil
}

// UpdateDisplayOverrides sets the presentation overrides of the active drawing.
func (s *LotteryService) UpdateDisplayOverrides(ctx context.Context, overrides models.DisplayOverrides) (*models.Drawing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.drawings.UpdateActive(ctx, func(d *models.Drawing) error {
		d.DisplayOverrides = &overrides
		return nil
	})
}

// ResetDisplayOverrides removes the presentation overrides of the active drawing.
func (s *LotteryService) ResetDisplayOverrides(ctx context.Context) (*models.Drawing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.drawings.UpdateActive(ctx, func(d *models.Drawing) error {
		d.DisplayOverrides = nil
		return nil
	})
}

// DisplayOverrides returns the presentation overrides of the active drawing, empty if none are set.
func (s *LotteryService) DisplayOverrides(ctx context.Context) (models.DisplayOverrides, error) {
	active, err := s.CurrentDrawing(ctx)
	if err != nil {
		return models.DisplayOverrides{}, err
	}
	if active.DisplayOverrides == nil {
		return models.DisplayOverrides{}, nil
	}
	return *active.DisplayOverrides, nil
}

// CurrentDrawing returns the drawing open for ticket sales.
func (s *LotteryService) CurrentDrawing(ctx context.Context) (*models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawings.Active(ctx)
}

// LatestCompletedDrawing returns the most recently closed drawing.
func (s *LotteryService) LatestCompletedDrawing(ctx context.Context) (*models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawings.LatestCompleted(ctx)
}

// DrawingHistory returns all drawings, newest first.
func (s *LotteryService) DrawingHistory(ctx context.Context) ([]*models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawings.History(ctx)
}

// Drawing returns a drawing by id.
func (s *LotteryService) Drawing(ctx context.Context, drawingID string) (*models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawings.Get(ctx, drawingID)
}

// Ticket returns one of the user's tickets. Tickets of other users are reported as not found.
func (s *LotteryService) Ticket(ctx context.Context, userID, ticketID string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	return ticket, nil
}

// AllTickets returns every ticket ever sold.
func (s *LotteryService) AllTickets(ctx context.Context) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickets.List(ctx)
}

// TicketsByUser returns all tickets of a user.
func (s *LotteryService) TicketsByUser(ctx context.Context, userID string) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickets.ListByUser(ctx, userID)
}

// CurrentTicketsForUser returns the user's tickets for the active drawing and the latest completed one.
func (s *LotteryService) CurrentTicketsForUser(ctx context.Context, userID string) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active, err := s.drawings.Active(ctx)
	if err != nil {
		return nil, err
	}
	dates := []time.Time{active.Date}
	latest, err := s.drawings.LatestCompleted(ctx)
	switch {
	case err == nil:
		dates = append(dates, latest.Date)
	case !errors.Is(err, ErrDrawingNotFound):
		return nil, err
	}

	userTickets, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := make([]*models.Ticket, 0, len(userTickets))
	for _, t := range userTickets {
		for _, date := range dates {
			if t.DrawingDate.Equal(date) {
				result = append(result, t)
				break
			}
		}
	}
	return result, nil
}

// Account returns the account of a user.
func (s *LotteryService) Account(ctx context.Context, userID string) (*models.Account, error) {
	return s.accounts.Get(ctx, userID)
}

// Accounts returns all accounts.
func (s *LotteryService) Accounts(ctx context.Context) ([]*models.Account, error) {
	return s.accounts.List(ctx)
}

// Balance returns the account balance of a user.
func (s *LotteryService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.accounts.Balance(ctx, userID)
}

// AdminStats aggregates sales over all tickets and the active drawing.
func (s *LotteryService) AdminStats(ctx context.Context) (models.AdminStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.tickets.List(ctx)
	if err != nil {
		return models.AdminStats{}, err
	}
	users := make(map[string]struct{})
	for _, t := range all {
		users[t.UserID] = struct{}{}
	}

	stats := models.AdminStats{
		TotalUsers:   len(users),
		TotalTickets: len(all),
		TotalRevenue: int64(len(all)) * s.ticketPrice,
	}

	active, err := s.drawings.Active(ctx)
	if errors.Is(err, ErrNoActiveDrawing) {
		return stats, nil
	}
	if err != nil {
		return models.AdminStats{}, err
	}
	current, err := s.tickets.CountByDrawingDate(ctx, active.Date)
	if err != nil {
		return models.AdminStats{}, err
	}
	stats.CurrentDrawingTickets = current
	stats.CurrentDrawingRevenue = int64(current) * s.ticketPrice
	stats.CurrentJackpot = active.JackpotAmount
	stats.RealJackpot = active.RealJackpot
	stats.SimulatedJackpot = active.SimulatedJackpot
	stats.PendingDrawing = len(active.MainNumbers) == 0
	return stats, nil
}
