// Package clock derives locally ticking countdowns from server-issued
// absolute timestamps. Remaining time is recomputed from the wall clock on
// every tick, never decremented, so a client that missed ticks (background
// tab, suspended process) self-corrects on the next tick instead of
// drifting.
//
// No clock-offset correction is applied between client and server; the
// server timestamp is compared directly against the local wall clock. A
// production-grade sync would estimate offset from round-trip times.
package clock

import "time"

// FromEpochSeconds converts a server timestamp (epoch seconds, possibly
// fractional) into a time.Time.
func FromEpochSeconds(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// Remaining returns how much of a phase of duration d, anchored at start,
// is left at now. Never negative.
func Remaining(start time.Time, d time.Duration, now time.Time) time.Duration {
	rem := d - now.Sub(start)
	if rem < 0 {
		return 0
	}
	return rem
}

// Countdown is one server-anchored phase timer.
type Countdown struct {
	Start    time.Time
	Duration time.Duration
}

// NewCountdown builds a countdown from the wire representation.
func NewCountdown(startEpochSec float64, durationSec int) Countdown {
	return Countdown{
		Start:    FromEpochSeconds(startEpochSec),
		Duration: time.Duration(durationSec) * time.Second,
	}
}

// Remaining is the time left at now.
func (c Countdown) Remaining(now time.Time) time.Duration {
	return Remaining(c.Start, c.Duration, now)
}

// Expired reports whether the countdown has run out at now.
func (c Countdown) Expired(now time.Time) bool {
	return c.Remaining(now) == 0
}

// Zero reports whether the countdown was never armed.
func (c Countdown) Zero() bool {
	return c.Start.IsZero()
}
