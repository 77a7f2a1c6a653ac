package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"worldlotto/internal/models"
)

func closedDrawing(mainNumbers, worldNumbers []int, jackpot int64) *models.Drawing {
	drawnAt := testNow
	return &models.Drawing{
		ID:             "drawing-001",
		Date:           testNow,
		MainNumbers:    mainNumbers,
		WorldNumbers:   worldNumbers,
		JackpotAmount:  jackpot,
		WinnersByClass: map[int]int{},
		DrawnAt:        &drawnAt,
	}
}

func TestSettlementEngine_Settle(t *testing.T) {
	ctx := context.Background()

	newTicket := func(t *testing.T, store *MemoryTicketStore, userID string, mainNumbers, worldNumbers []int) *models.Ticket {
		t.Helper()
		ticket, err := store.Create(ctx, models.Ticket{
			UserID:       userID,
			MainNumbers:  mainNumbers,
			WorldNumbers: worldNumbers,
			Cost:         DefaultTicketPrice,
			DrawingDate:  testNow,
		})
		require.NoError(t, err)
		return ticket
	}

	t.Run("records results and credits winners", func(t *testing.T) {
		tickets := NewMemoryTicketStore()
		accounts := NewMemoryAccountStore()
		_, err := accounts.Create(ctx, models.Account{ID: "alice"})
		require.NoError(t, err)
		_, err = accounts.Create(ctx, models.Account{ID: "bob"})
		require.NoError(t, err)

		jackpot := newTicket(t, tickets, "alice", []int{1, 2, 3, 4, 5}, []int{1, 2})
		second := newTicket(t, tickets, "bob", []int{1, 2, 3, 4, 5}, []int{1, 3})
		loser := newTicket(t, tickets, "bob", []int{10, 11, 12, 13, 14}, []int{5, 6})

		engine := NewSettlementEngine(tickets, accounts)
		settlement, err := engine.Settle(ctx, closedDrawing([]int{1, 2, 3, 4, 5}, []int{1, 2}, 3_000_000),
			[]*models.Ticket{jackpot, second, loser})
		require.NoError(t, err)
		assert.Equal(t, map[int]int{1: 1, 2: 1}, settlement.WinnersByClass)

		got, err := tickets.Get(ctx, jackpot.ID)
		require.NoError(t, err)
		assert.True(t, got.IsWinner)
		assert.Equal(t, int64(3_000_000), got.WinningAmount)

		got, err = tickets.Get(ctx, loser.ID)
		require.NoError(t, err)
		assert.False(t, got.IsWinner)
		assert.NotNil(t, got.SettledAt, "losing tickets are settled too")

		aliceBalance, _ := accounts.Balance(ctx, "alice")
		bobBalance, _ := accounts.Balance(ctx, "bob")
		assert.Equal(t, int64(3_000_000), aliceBalance)
		assert.Equal(t, WinningAmount(2, 3_000_000), bobBalance)
	})

	t.Run("unknown account keeps the win on the ticket", func(t *testing.T) {
		tickets := NewMemoryTicketStore()
		accounts := NewMemoryAccountStore()
		orphan := newTicket(t, tickets, "ghost", []int{1, 2, 6, 7, 8}, []int{1, 2})

		engine := NewSettlementEngine(tickets, accounts)
		settlement, err := engine.Settle(ctx, closedDrawing([]int{1, 2, 3, 4, 5}, []int{1, 2}, 1_000_000), []*models.Ticket{orphan})
		require.NoError(t, err)
		assert.Equal(t, map[int]int{8: 1}, settlement.WinnersByClass)

		got, err := tickets.Get(ctx, orphan.ID)
		require.NoError(t, err)
		assert.Equal(t, 8, got.WinningClass)
	})

	t.Run("rejects an open drawing", func(t *testing.T) {
		tickets := NewMemoryTicketStore()
		ticket := newTicket(t, tickets, "alice", []int{1, 2, 3, 4, 5}, []int{1, 2})

		open := closedDrawing(nil, nil, 1_000_000)
		open.IsActive = true
		_, err := NewSettlementEngine(tickets, NewMemoryAccountStore()).Settle(ctx, open, []*models.Ticket{ticket})
		assert.ErrorIs(t, err, ErrDrawingNotClosed)

		got, err := tickets.Get(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, got.SettledAt)
	})

	t.Run("settles nothing when one ticket was already settled", func(t *testing.T) {
		tickets := NewMemoryTicketStore()
		accounts := NewMemoryAccountStore()
		_, err := accounts.Create(ctx, models.Account{ID: "alice"})
		require.NoError(t, err)
		fresh := newTicket(t, tickets, "alice", []int{1, 2, 3, 4, 5}, []int{1, 2})
		old := newTicket(t, tickets, "alice", []int{1, 2, 3, 4, 5}, []int{1, 2})
		require.NoError(t, tickets.SetResults(ctx, map[string]TicketResult{old.ID: {SettledAt: testNow}}))
		old, err = tickets.Get(ctx, old.ID)
		require.NoError(t, err)

		engine := NewSettlementEngine(tickets, accounts)
		_, err = engine.Settle(ctx, closedDrawing([]int{1, 2, 3, 4, 5}, []int{1, 2}, 1_000_000), []*models.Ticket{fresh, old})
		assert.ErrorIs(t, err, ErrTicketAlreadySettled)

		got, err := tickets.Get(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Nil(t, got.SettledAt)
		balance, _ := accounts.Balance(ctx, "alice")
		assert.Zero(t, balance)
	})

	t.Run("credit failure reverts everything", func(t *testing.T) {
		tickets := NewMemoryTicketStore()
		memory := NewMemoryAccountStore()
		for _, id := range []string{"alice", "bob", "carol"} {
			_, err := memory.Create(ctx, models.Account{ID: id})
			require.NoError(t, err)
		}
		accounts := &failingAccounts{AccountStore: memory, failOn: 3}
		sold := []*models.Ticket{
			newTicket(t, tickets, "alice", []int{1, 2, 3, 4, 5}, []int{1, 2}),
			newTicket(t, tickets, "bob", []int{1, 2, 3, 4, 5}, []int{1, 3}),
			newTicket(t, tickets, "carol", []int{1, 2, 3, 9, 10}, []int{1, 2}),
		}

		engine := NewSettlementEngine(tickets, accounts)
		drawing := closedDrawing([]int{1, 2, 3, 4, 5}, []int{1, 2}, 2_000_000)
		_, err := engine.Settle(ctx, drawing, sold)
		assert.ErrorIs(t, err, errLedgerUnavailable)

		for _, ticket := range sold {
			got, err := tickets.Get(ctx, ticket.ID)
			require.NoError(t, err)
			assert.Nil(t, got.SettledAt)
			assert.False(t, got.IsWinner)

			balance, err := memory.Balance(ctx, ticket.UserID)
			require.NoError(t, err)
			assert.Zerof(t, balance, "%s must not keep a credit", ticket.UserID)
		}

		accounts.heal()
		settlement, err := engine.Settle(ctx, drawing, sold)
		require.NoError(t, err)
		assert.Equal(t, map[int]int{1: 1, 2: 1, 6: 1}, settlement.WinnersByClass)
	})

	t.Run("revert takes back credits", func(t *testing.T) {
		tickets := NewMemoryTicketStore()
		accounts := NewMemoryAccountStore()
		_, err := accounts.Create(ctx, models.Account{ID: "alice", Balance: 5})
		require.NoError(t, err)
		ticket := newTicket(t, tickets, "alice", []int{1, 2, 3, 4, 5}, []int{1, 2})

		engine := NewSettlementEngine(tickets, accounts)
		settlement, err := engine.Settle(ctx, closedDrawing([]int{1, 2, 3, 4, 5}, []int{1, 2}, 1_000_000), []*models.Ticket{ticket})
		require.NoError(t, err)
		require.NoError(t, engine.Revert(ctx, settlement))

		balance, _ := accounts.Balance(ctx, "alice")
		assert.Equal(t, int64(5), balance)
		got, err := tickets.Get(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, got.SettledAt)
	})
}
