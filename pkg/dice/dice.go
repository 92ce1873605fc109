// Package dice implements the randomized dice mechanics the narrator can
// invoke. All parameter validation happens here so a malformed request
// surfaces as an error value, never a panic.
package dice

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Die sizes a roll may use.
var validSides = map[int]bool{
	4:   true,
	6:   true,
	8:   true,
	10:  true,
	12:  true,
	20:  true,
	100: true,
}

// MaxCount is the largest number of dice a single roll may request.
const MaxCount = 20

// Common errors for roll requests.
var (
	// ErrUnknownDie is returned when the requested die size is not one of
	// d4, d6, d8, d10, d12, d20 or d100.
	ErrUnknownDie = errors.New("unknown die size")
	// ErrInvalidCount is returned when the requested count is outside [1, MaxCount].
	ErrInvalidCount = errors.New("invalid dice count")
)

// Result holds the outcome of one roll request.
// Total is always the sum of Rolls.
type Result struct {
	Rolls []int `json:"rolls"`
	Total int   `json:"total"`
}

// Roller rolls dice from an injected random source.
// Given the same source state and the same requests, a Roller always
// produces the same results, which is what tests rely on.
// Roll is safe for concurrent use; a single Roller is shared across
// sessions.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller creates a Roller seeded from the current time.
func NewRoller() *Roller {
	return NewRollerFromSource(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewRollerFromSource creates a Roller using the provided random source.
// Tests pass a seeded source for deterministic outcomes.
func NewRollerFromSource(rng *rand.Rand) *Roller {
	return &Roller{rng: rng}
}

// Roll rolls count dice with the given number of sides.
// Each die is independently uniform over [1, sides].
func (r *Roller) Roll(sides, count int) (Result, error) {
	if !validSides[sides] {
		return Result{}, fmt.Errorf("%w: d%d", ErrUnknownDie, sides)
	}
	if count < 1 || count > MaxCount {
		return Result{}, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidCount, count, MaxCount)
	}

	rolls := make([]int, count)
	total := 0
	r.mu.Lock()
	for i := 0; i < count; i++ {
		v := r.rng.Intn(sides) + 1
		rolls[i] = v
		total += v
	}
	r.mu.Unlock()

	return Result{Rolls: rolls, Total: total}, nil
}
