package webhook

import "time"

// Backoff computes exponential delays between delivery attempts.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// NextDelay returns the wait after the given 1-based attempt failed.
func (b Backoff) NextDelay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	maximum := b.Max
	if maximum <= 0 {
		maximum = DefaultMaxBackoff
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = DefaultMultiplier
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}
