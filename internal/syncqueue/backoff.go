package syncqueue

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes retry delays: base * factor^attempt, capped at Max,
// plus up to 10% random jitter so a fleet of devices coming back
// online does not retry in lockstep.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

// DefaultBackoff matches the retry cadence used across the system.
var DefaultBackoff = Backoff{
	Base:   time.Second,
	Factor: 2,
	Max:    30 * time.Second,
}

const jitterFraction = 0.10

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		b.Base = DefaultBackoff.Base
	}
	if b.Factor < 1 {
		b.Factor = DefaultBackoff.Factor
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	d := time.Duration(float64(b.Base) * math.Pow(b.Factor, float64(attempt)))
	if d > b.Max || d < 0 {
		d = b.Max
	}
	jitter := time.Duration(rand.Float64() * jitterFraction * float64(d))
	return d + jitter
}
