package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/logger"
	"worldlotto/internal/metrics"
	"worldlotto/internal/models"
)

// SettlementEngine matches the tickets of a closed drawing against its numbers,
// records winners and credits their accounts.
type SettlementEngine struct {
	tickets  TicketStore
	accounts AccountStore
	now      func() time.Time
}

// NewSettlementEngine creates a settlement engine over the given stores.
func NewSettlementEngine(tickets TicketStore, accounts AccountStore) *SettlementEngine {
	return &SettlementEngine{
		tickets:  tickets,
		accounts: accounts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type credit struct {
	userID   string
	ticketID string
	class    int
	amount   int64
}

// Settlement is the applied outcome of settling a drawing. It can be reverted until the drawing
// has been rolled over.
type Settlement struct {
	// WinnersByClass counts winning tickets per class. Classes without winners are absent.
	WinnersByClass map[int]int

	ticketIDs []string
	credited  []credit
}

// Settle settles every ticket sold against drawing.
//
// All results are computed before anything is written. Ticket results are then stored in one
// step and winners are credited; if a credit fails, the credits already made and the ticket
// results are reverted, so the drawing can be settled again.
func (e *SettlementEngine) Settle(ctx context.Context, drawing *models.Drawing, tickets []*models.Ticket) (*Settlement, error) {
	if drawing.IsActive || len(drawing.MainNumbers) == 0 || len(drawing.WorldNumbers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDrawingNotClosed, drawing.ID)
	}
	for _, t := range tickets {
		if t.SettledAt != nil {
			return nil, fmt.Errorf("%w: %s", ErrTicketAlreadySettled, t.ID)
		}
		if !t.DrawingDate.Equal(drawing.Date) {
			return nil, fmt.Errorf("ticket %s belongs to drawing date %s, not %s", t.ID, t.DrawingDate, drawing.Date)
		}
	}

	settledAt := e.now()
	settlement := &Settlement{
		WinnersByClass: make(map[int]int),
		ticketIDs:      make([]string, 0, len(tickets)),
	}
	results := make(map[string]TicketResult, len(tickets))
	var pending []credit
	for _, t := range tickets {
		mainMatches := countMatches(t.MainNumbers, drawing.MainNumbers)
		worldMatches := countMatches(t.WorldNumbers, drawing.WorldNumbers)
		class := DetermineWinningClass(mainMatches, worldMatches)

		result := TicketResult{SettledAt: settledAt}
		if class > 0 {
			result.IsWinner = true
			result.WinningClass = class
			result.WinningAmount = WinningAmount(class, drawing.JackpotAmount)
			settlement.WinnersByClass[class]++
			pending = append(pending, credit{userID: t.UserID, ticketID: t.ID, class: class, amount: result.WinningAmount})
		}
		results[t.ID] = result
		settlement.ticketIDs = append(settlement.ticketIDs, t.ID)
	}

	if err := e.tickets.SetResults(ctx, results); err != nil {
		return nil, fmt.Errorf("store ticket results: %w", err)
	}

	for _, c := range pending {
		if err := e.accounts.Credit(ctx, c.userID, c.amount); err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				logger.Warningf("No account %s for winning ticket %s, class %d prize of %d not credited", c.userID, c.ticketID, c.class, c.amount)
				continue
			}
			creditErr := fmt.Errorf("credit ticket %s: %w", c.ticketID, err)
			if revertErr := e.Revert(ctx, settlement); revertErr != nil {
				return nil, errors.Join(creditErr, revertErr)
			}
			return nil, creditErr
		}
		settlement.credited = append(settlement.credited, c)
	}

	for _, c := range settlement.credited {
		metrics.ObserveWinner(c.class, c.amount)
		logger.Infof("Credited %d to user %s (ticket %s, class %d)", c.amount, c.userID, c.ticketID, c.class)
	}
	return settlement, nil
}

// Revert takes back the credits of a settlement and clears its ticket results.
func (e *SettlementEngine) Revert(ctx context.Context, settlement *Settlement) error {
	var errs []error
	for i := len(settlement.credited) - 1; i >= 0; i-- {
		c := settlement.credited[i]
		if err := e.accounts.Debit(ctx, c.userID, c.amount); err != nil {
			errs = append(errs, fmt.Errorf("revert credit of ticket %s: %w", c.ticketID, err))
		}
	}
	settlement.credited = nil

	if err := e.tickets.ClearResults(ctx, settlement.ticketIDs); err != nil {
		errs = append(errs, fmt.Errorf("clear ticket results: %w", err))
	}
	if len(errs) > 0 {
		logger.Errorf("Settlement revert incomplete: %v", errors.Join(errs...))
		return errors.Join(errs...)
	}
	logger.Warningf("Settlement of %d tickets reverted", len(settlement.ticketIDs))
	return nil
}
