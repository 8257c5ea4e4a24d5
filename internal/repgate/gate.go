// Package repgate is the single chokepoint between the pose-detection
// pipeline and the network. The detector may keep running outside the live
// phase for form feedback; only increments that pass the gate are ever
// transmitted or counted.
package repgate

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ForwardFunc receives each qualifying rep count. Implementations must not
// block; the detection loop runs on its own frame-rate cadence.
type ForwardFunc func(count int, at time.Time)

// Gate deduplicates and gates a monotonically non-decreasing rep-count
// stream. Safe for concurrent use: the detector calls OnRepDetected from
// its own loop while the session goroutine flips the gate open and closed.
type Gate struct {
	mu       sync.Mutex
	open     bool
	lastSent int
	lastRep  time.Time

	clock   clockwork.Clock
	forward ForwardFunc
	logger  *zap.Logger
}

// New builds a closed gate. forward is called once per strict increase
// observed while the gate is open.
func New(clk clockwork.Clock, logger *zap.Logger, forward ForwardFunc) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{clock: clk, forward: forward, logger: logger}
}

// SetOpen opens or closes the gate. The session flips it when the round
// phase or either ready flag changes.
func (g *Gate) SetOpen(open bool) {
	g.mu.Lock()
	g.open = open
	g.mu.Unlock()
}

// Reset clears the duplicate-suppression counter. Must run when a new
// round begins, before detection resumes, or the first rep of the round
// would be dropped as a stale duplicate.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.lastSent = 0
	g.lastRep = time.Time{}
	g.mu.Unlock()
}

// OnRepDetected is the detection pipeline's entry point. The count is the
// running total for the current attempt; calls with a count at or below
// the last forwarded value are dropped regardless of frequency.
func (g *Gate) OnRepDetected(count int) {
	g.mu.Lock()
	if !g.open || count <= g.lastSent {
		g.mu.Unlock()
		return
	}
	now := g.clock.Now()
	g.lastSent = count
	g.lastRep = now
	fwd := g.forward
	g.mu.Unlock()

	g.logger.Debug("rep forwarded", zap.Int("count", count))
	if fwd != nil {
		fwd(count, now)
	}
}

// LastSent is the highest count forwarded since the last Reset.
func (g *Gate) LastSent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSent
}

// LastRepAt is when the last qualifying rep was observed. Zero when none
// has been seen this round.
func (g *Gate) LastRepAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRep
}
