package player

import (
	"math/rand/v2"
	"time"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing if it has not fired yet.
	Stop() bool
}

// Clock schedules deferred callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules callbacks with time.AfterFunc.
type RealClock struct{}

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// DelayFunc returns the base delay before the next step, before speed scaling.
type DelayFunc func() time.Duration

// RandomDelay returns a DelayFunc drawing uniformly from [minDelay, maxDelay).
// A non-positive or inverted window collapses to minDelay.
func RandomDelay(minDelay, maxDelay time.Duration) DelayFunc {
	if minDelay < 0 {
		minDelay = 0
	}
	span := maxDelay - minDelay
	if span <= 0 {
		return FixedDelay(minDelay)
	}
	return func() time.Duration {
		return minDelay + rand.N(span)
	}
}

// FixedDelay returns a DelayFunc that always yields d.
func FixedDelay(d time.Duration) DelayFunc {
	return func() time.Duration { return d }
}

// DefaultDelay is the 50-150ms window used by recorded-stream playback.
func DefaultDelay() DelayFunc {
	return RandomDelay(model.DefaultMinDelay, model.DefaultMaxDelay)
}
