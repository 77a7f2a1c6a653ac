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

// Drawing triggers, used for logging and metrics.
const (
	TriggerManual    = "manual"
	TriggerHeuristic = "heuristic"
)

// PerformDrawing closes the active drawing, settles its tickets and opens the next drawing.
//
// With manual numbers the drawing uses them; otherwise the five main and two world numbers
// picked least often by the tickets of this drawing are drawn, which keeps the number of
// winners low. The closed drawing is returned with its numbers and winner counts.
//
// Nothing is changed when there is no active drawing or the manual numbers are invalid, and a
// drawing that fails during settlement or rollover stays active with its tickets unsettled.
func (s *LotteryService) PerformDrawing(ctx context.Context, manual *models.DrawNumbers) (*models.Drawing, error) {
	if manual != nil {
		if err := ValidateDrawNumbers(*manual); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	active, err := s.drawings.Active(ctx)
	if err != nil {
		return nil, err
	}

	tickets, err := s.tickets.ListByDrawingDate(ctx, active.Date)
	if err != nil {
		return nil, fmt.Errorf("list tickets of drawing %s: %w", active.ID, err)
	}

	trigger := TriggerHeuristic
	var numbers models.DrawNumbers
	if manual != nil {
		trigger = TriggerManual
		numbers = models.DrawNumbers{
			MainNumbers:  sortedCopy(manual.MainNumbers),
			WorldNumbers: sortedCopy(manual.WorldNumbers),
		}
	} else {
		numbers = leastFrequentNumbers(s.rng, tickets)
	}
	logger.Infof("Drawing %s: main %v, world %v (%s, %d tickets)", active.ID, numbers.MainNumbers, numbers.WorldNumbers, trigger, len(tickets))

	drawnAt := s.now()
	closed := active.Clone()
	closed.MainNumbers = numbers.MainNumbers
	closed.WorldNumbers = numbers.WorldNumbers
	closed.IsActive = false
	closed.DrawnAt = &drawnAt

	settlement, err := s.settlement.Settle(ctx, closed, tickets)
	if err != nil {
		return nil, fmt.Errorf("settle drawing %s: %w", active.ID, err)
	}
	winners := settlement.WinnersByClass
	closed.WinnersByClass = winners

	nextJackpot := NextJackpot(closed, len(tickets), s.ticketPrice, s.baseJackpot)
	logger.Infof("Jackpot rollover: class 1 winners %d, previous %d, next %d", winners[JackpotClass], closed.JackpotAmount, nextJackpot)

	stored, next, err := s.drawings.Rollover(ctx, *closed, s.newDrawing(drawnAt.Add(s.drawingInterval), nextJackpot))
	if err != nil {
		rolloverErr := fmt.Errorf("rollover drawing %s: %w", active.ID, err)
		if revertErr := s.settlement.Revert(ctx, settlement); revertErr != nil {
			return nil, errors.Join(rolloverErr, revertErr)
		}
		return nil, rolloverErr
	}

	metrics.ObserveDrawing(trigger, time.Since(start))
	metrics.SetJackpot(next.JackpotAmount)
	logger.Infof("Drawing %s completed, next drawing %s on %s", stored.ID, next.ID, next.Date.Format(time.RFC3339))
	return stored, nil
}
