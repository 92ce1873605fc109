package dice

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
)

func newTestRoller() *Roller {
	return NewRollerFromSource(rand.New(rand.NewSource(1)))
}

func TestRollBoundsAndTotal(t *testing.T) {
	r := newTestRoller()

	for _, sides := range []int{4, 6, 8, 10, 12, 20, 100} {
		for count := 1; count <= MaxCount; count++ {
			res, err := r.Roll(sides, count)
			if err != nil {
				t.Fatalf("Roll(d%d, %d) error = %v", sides, count, err)
			}
			if len(res.Rolls) != count {
				t.Fatalf("Roll(d%d, %d) returned %d rolls", sides, count, len(res.Rolls))
			}
			sum := 0
			for _, v := range res.Rolls {
				if v < 1 || v > sides {
					t.Errorf("Roll(d%d, %d) produced out-of-range value %d", sides, count, v)
				}
				sum += v
			}
			if sum != res.Total {
				t.Errorf("Roll(d%d, %d) total = %d, want %d", sides, count, res.Total, sum)
			}
		}
	}
}

func TestRollDeterministicWithSeed(t *testing.T) {
	a, err := NewRollerFromSource(rand.New(rand.NewSource(42))).Roll(20, 5)
	if err != nil {
		t.Fatalf("Roll() error = %v", err)
	}
	b, err := NewRollerFromSource(rand.New(rand.NewSource(42))).Roll(20, 5)
	if err != nil {
		t.Fatalf("Roll() error = %v", err)
	}

	if a.Total != b.Total {
		t.Fatalf("same seed produced different totals: %d vs %d", a.Total, b.Total)
	}
	for i := range a.Rolls {
		if a.Rolls[i] != b.Rolls[i] {
			t.Fatalf("same seed produced different rolls: %v vs %v", a.Rolls, b.Rolls)
		}
	}
}

func TestRollConcurrent(t *testing.T) {
	r := NewRoller()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				res, err := r.Roll(20, 10)
				if err != nil {
					t.Errorf("Roll() error = %v", err)
					return
				}
				if res.Total < 10 || res.Total > 200 {
					t.Errorf("Roll() total %d out of range", res.Total)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRollUnknownDie(t *testing.T) {
	r := newTestRoller()

	for _, sides := range []int{0, 1, 2, 3, 5, 7, 13, 50, 1000, -6} {
		if _, err := r.Roll(sides, 1); !errors.Is(err, ErrUnknownDie) {
			t.Errorf("Roll(d%d, 1) error = %v, want ErrUnknownDie", sides, err)
		}
	}
}

func TestRollInvalidCount(t *testing.T) {
	r := newTestRoller()

	for _, count := range []int{0, -1, 21, 100} {
		if _, err := r.Roll(20, count); !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Roll(d20, %d) error = %v, want ErrInvalidCount", count, err)
		}
	}
}
