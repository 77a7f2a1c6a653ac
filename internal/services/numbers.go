package services

import (
	"fmt"
	"math/rand"
	"sort"

	"worldlotto/internal/models"
)

// Number pool configuration.
const (
	MainNumberMin    = 1
	MainNumberMax    = 50
	MainNumberCount  = 5
	WorldNumberMin   = 1
	WorldNumberMax   = 12
	WorldNumberCount = 2
)

// ValidateNumbers checks that a combination has exactly 5 distinct main numbers in 1-50
// and 2 distinct world numbers in 1-12.
func ValidateNumbers(mainNumbers, worldNumbers []int) error {
	if err := validatePool(mainNumbers, MainNumberCount, MainNumberMin, MainNumberMax, "main"); err != nil {
		return err
	}
	return validatePool(worldNumbers, WorldNumberCount, WorldNumberMin, WorldNumberMax, "world")
}

// ValidateDrawNumbers is ValidateNumbers for a manually supplied drawing result.
func ValidateDrawNumbers(numbers models.DrawNumbers) error {
	return ValidateNumbers(numbers.MainNumbers, numbers.WorldNumbers)
}

func validatePool(numbers []int, count, min, max int, pool string) error {
	if len(numbers) != count {
		return fmt.Errorf("%w: exactly %d %s numbers required, got %d", ErrInvalidNumbers, count, pool, len(numbers))
	}
	seen := make(map[int]bool, count)
	for _, n := range numbers {
		if n < min || n > max {
			return fmt.Errorf("%w: %s number %d out of range %d-%d", ErrInvalidNumbers, pool, n, min, max)
		}
		if seen[n] {
			return fmt.Errorf("%w: duplicate %s number %d", ErrInvalidNumbers, pool, n)
		}
		seen[n] = true
	}
	return nil
}

func sortedCopy(numbers []int) []int {
	out := append([]int(nil), numbers...)
	sort.Ints(out)
	return out
}

// QuickPick generates a random valid combination.
func QuickPick(rng *rand.Rand) ([]int, []int) {
	return pickDistinct(rng, MainNumberMin, MainNumberMax, MainNumberCount),
		pickDistinct(rng, WorldNumberMin, WorldNumberMax, WorldNumberCount)
}

func pickDistinct(rng *rand.Rand, min, max, count int) []int {
	perm := rng.Perm(max - min + 1)[:count]
	numbers := make([]int, count)
	for i, p := range perm {
		numbers[i] = p + min
	}
	sort.Ints(numbers)
	return numbers
}

type candidate struct {
	number    int
	frequency int
}

// chooseLeastFrequent returns the count numbers in [min, max] that appear least often in frequency,
// sorted ascending. Numbers with equal frequency are ordered randomly, not numerically.
func chooseLeastFrequent(rng *rand.Rand, min, max, count int, frequency map[int]int) []int {
	candidates := make([]candidate, 0, max-min+1)
	for n := min; n <= max; n++ {
		candidates = append(candidates, candidate{number: n, frequency: frequency[n]})
	}

	// Shuffle first so the stable sort leaves ties in uniformly random order.
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].frequency < candidates[j].frequency
	})

	numbers := make([]int, count)
	for i := range numbers {
		numbers[i] = candidates[i].number
	}
	sort.Ints(numbers)
	return numbers
}

// leastFrequentNumbers runs the frequency-minimizing heuristic over the tickets sold for a drawing.
func leastFrequentNumbers(rng *rand.Rand, tickets []*models.Ticket) models.DrawNumbers {
	mainFrequency := make(map[int]int)
	worldFrequency := make(map[int]int)
	for _, t := range tickets {
		for _, n := range t.MainNumbers {
			mainFrequency[n]++
		}
		for _, n := range t.WorldNumbers {
			worldFrequency[n]++
		}
	}

	return models.DrawNumbers{
		MainNumbers:  chooseLeastFrequent(rng, MainNumberMin, MainNumberMax, MainNumberCount, mainFrequency),
		WorldNumbers: chooseLeastFrequent(rng, WorldNumberMin, WorldNumberMax, WorldNumberCount, worldFrequency),
	}
}
