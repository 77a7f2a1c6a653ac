package services

import "worldlotto/internal/models"

// Jackpot defaults.
const (
	DefaultBaseJackpot int64 = 1_000_000
	DefaultTicketPrice int64 = 2

	// jackpotSharePercent of ticket revenue flows into the jackpot.
	jackpotSharePercent = 40
)

// JackpotContribution is the jackpot share of the revenue from ticketCount tickets, rounded down.
func JackpotContribution(ticketCount int, ticketPrice int64) int64 {
	revenue := int64(ticketCount) * ticketPrice
	return revenue * jackpotSharePercent / 100
}

// NextJackpot computes the starting jackpot of the drawing that follows closed.
// A class 1 winner resets the jackpot to base; otherwise the previous jackpot rolls
// over and grows by the jackpot share of closed's ticket revenue.
func NextJackpot(closed *models.Drawing, ticketCount int, ticketPrice, base int64) int64 {
	if closed.WinnersByClass[JackpotClass] > 0 {
		return base
	}
	return closed.JackpotAmount + JackpotContribution(ticketCount, ticketPrice)
}
