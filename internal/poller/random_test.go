package poller

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRandomInterval_WithinBounds(t *testing.T) {
	for i := 0; i < 2000; i++ {
		d := RandomInterval(MinInterval, MaxInterval)
		assert.GreaterOrEqual(t, d, MinInterval)
		assert.LessOrEqual(t, d, MaxInterval)
		assert.Zero(t, d%time.Second, "interval must be whole seconds")
	}
}

func TestRandomIntervalFrom_CoversBothEnds(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	seen := map[time.Duration]bool{}
	for i := 0; i < 5000; i++ {
		seen[RandomIntervalFrom(r, 2*time.Second, 5*time.Second)] = true
	}
	for s := 2; s <= 5; s++ {
		assert.True(t, seen[time.Duration(s)*time.Second], "missing %ds", s)
	}
	assert.Len(t, seen, 4)
}

func TestRandomIntervalFrom_SwappedAndEqualBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 100; i++ {
		d := RandomIntervalFrom(r, 10*time.Second, 3*time.Second)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
	}
	assert.Equal(t, 30*time.Second, RandomIntervalFrom(r, 30*time.Second, 30*time.Second))
}

func TestRandomIntervalFrom_Deterministic(t *testing.T) {
	a := rand.New(rand.NewPCG(42, 99))
	b := rand.New(rand.NewPCG(42, 99))
	for i := 0; i < 50; i++ {
		assert.Equal(t, RandomIntervalFrom(a, MinInterval, MaxInterval), RandomIntervalFrom(b, MinInterval, MaxInterval))
	}
}

func TestRandomIntervalFrom_StaysWithinArbitraryBounds(t *testing.T) {
	fixed := [][2]time.Duration{
		{1500 * time.Millisecond, 1500 * time.Millisecond},
		{200 * time.Millisecond, 800 * time.Millisecond},
		{800 * time.Millisecond, 200 * time.Millisecond},
		{900 * time.Millisecond, 1100 * time.Millisecond},
		{1500 * time.Millisecond, 2500 * time.Millisecond},
		{0, 0},
		{-3 * time.Second, 2 * time.Second},
		{MinInterval, MaxInterval},
	}

	for seed := uint64(0); seed < 500; seed++ {
		r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

		bounds := fixed[seed%uint64(len(fixed))]
		if seed >= uint64(len(fixed)) {
			a := time.Duration(r.Int64N(int64(10 * time.Second)))
			b := time.Duration(r.Int64N(int64(10 * time.Second)))
			if seed%3 == 0 {
				b = a
			}
			bounds = [2]time.Duration{a, b}
		}

		lo, hi := bounds[0], bounds[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		lo, hi = max(lo, 0), max(hi, 0)

		d := RandomIntervalFrom(r, bounds[0], bounds[1])
		assert.GreaterOrEqual(t, d, lo, "seed %d bounds %v", seed, bounds)
		assert.LessOrEqual(t, d, hi, "seed %d bounds %v", seed, bounds)
	}
}

func TestRandomInterval_SubSecondBounds(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, RandomInterval(1500*time.Millisecond, 1500*time.Millisecond))
	assert.Equal(t, 200*time.Millisecond, RandomInterval(200*time.Millisecond, 800*time.Millisecond))
	assert.Equal(t, 2*time.Second, RandomInterval(1500*time.Millisecond, 2500*time.Millisecond))
}
