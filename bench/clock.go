package bench

import "time"

// Clock measures elapsed time from a shared start instant. time.Time carries
// a monotonic reading, so wall clock adjustments do not affect it.
type Clock struct {
	start time.Time
}

func StartClock() Clock {
	return Clock{start: Now()}
}

// Elapsed returns nanoseconds since the start instant. An int64 holds
// roughly 292 years of nanoseconds.
func (c Clock) Elapsed() int64 {
	return int64(time.Since(c.start))
}

func Now() time.Time {
	return time.Now()
}

// Resolution reports the tick resolution of the monotonic clock.
func Resolution() time.Duration {
	return resolution()
}

// observedResolution is the smallest positive step seen between successive
// clock readings.
func observedResolution() time.Duration {
	best := time.Duration(0)
	prev := Now()
	for i := 0; i < 10000; i++ {
		cur := Now()
		if d := cur.Sub(prev); d > 0 && (best == 0 || d < best) {
			best = d
		}
		prev = cur
	}
	if best == 0 {
		best = time.Nanosecond
	}
	return best
}
