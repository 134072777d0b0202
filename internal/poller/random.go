package poller

import (
	"math/rand/v2"
	"time"
)

// Bounds of the wait between two scans, both inclusive.
const (
	MinInterval = 45 * time.Second
	MaxInterval = 120 * time.Second
)

// RandomInterval returns a whole number of seconds drawn uniformly from
// [min, max]. Swapped bounds are accepted and negative bounds count as zero.
// When no whole second lies inside the bounds, min is returned.
func RandomInterval(min, max time.Duration) time.Duration {
	return randomSeconds(rand.IntN, min, max)
}

// RandomIntervalFrom is RandomInterval drawing from r.
func RandomIntervalFrom(r *rand.Rand, min, max time.Duration) time.Duration {
	return randomSeconds(r.IntN, min, max)
}

func randomSeconds(intN func(int) int, min, max time.Duration) time.Duration {
	if min > max {
		min, max = max, min
	}
	min, max = durationAtLeastZero(min), durationAtLeastZero(max)

	// round inward so the result never leaves [min, max]
	lo := int((min + time.Second - 1) / time.Second)
	hi := int(max / time.Second)
	if lo > hi {
		return min
	}
	return time.Duration(lo+intN(hi-lo+1)) * time.Second
}

func durationAtLeastZero(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
