package services

import "worldlotto/internal/models"

// WinningClasses is the prize table, ordered from the jackpot down.
// Class 1 pays the current jackpot; MinPrize of class 1 is informational only.
var WinningClasses = []models.WinningClass{
	{Class: 1, Requirement: "5 + 2", Odds: "1 : 139,838,160", MinPrize: 10_000_000},
	{Class: 2, Requirement: "5 + 1", Odds: "1 : 6,991,908", MinPrize: 1_000_000},
	{Class: 3, Requirement: "5 + 0", Odds: "1 : 3,107,515", MinPrize: 100_000},
	{Class: 4, Requirement: "4 + 2", Odds: "1 : 621,503", MinPrize: 5_000},
	{Class: 5, Requirement: "4 + 1", Odds: "1 : 31,075", MinPrize: 300},
	{Class: 6, Requirement: "3 + 2", Odds: "1 : 14,125", MinPrize: 100},
	{Class: 7, Requirement: "4 + 0", Odds: "1 : 13,811", MinPrize: 80},
	{Class: 8, Requirement: "2 + 2", Odds: "1 : 985", MinPrize: 25},
	{Class: 9, Requirement: "3 + 1", Odds: "1 : 706", MinPrize: 20},
	{Class: 10, Requirement: "3 + 0", Odds: "1 : 314", MinPrize: 15},
	{Class: 11, Requirement: "1 + 2", Odds: "1 : 188", MinPrize: 10},
	{Class: 12, Requirement: "2 + 1", Odds: "1 : 49", MinPrize: 8},
}

// JackpotClass is the winning class that pays the full jackpot.
const JackpotClass = 1

type matchKey struct {
	main  int
	world int
}

var classByMatches = map[matchKey]int{
	{5, 2}: 1,
	{5, 1}: 2,
	{5, 0}: 3,
	{4, 2}: 4,
	{4, 1}: 5,
	{3, 2}: 6,
	{4, 0}: 7,
	{2, 2}: 8,
	{3, 1}: 9,
	{3, 0}: 10,
	{1, 2}: 11,
	{2, 1}: 12,
}

// DetermineWinningClass maps a (main, world) match count pair to its winning class.
// It returns 0 for every pair that does not win.
func DetermineWinningClass(mainMatches, worldMatches int) int {
	return classByMatches[matchKey{mainMatches, worldMatches}]
}

// WinningAmount returns the payout for a class given the drawing's jackpot.
func WinningAmount(class int, jackpot int64) int64 {
	if class == JackpotClass {
		return jackpot
	}
	for _, wc := range WinningClasses {
		if wc.Class == class {
			return wc.MinPrize
		}
	}
	return 0
}

func countMatches(picked, drawn []int) int {
	drawnSet := make(map[int]bool, len(drawn))
	for _, n := range drawn {
		drawnSet[n] = true
	}
	matches := 0
	for _, n := range picked {
		if drawnSet[n] {
			matches++
		}
	}
	return matches
}
