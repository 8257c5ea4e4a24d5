package repgate

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	counts []int
}

func (r *recorder) forward(count int, _ time.Time) {
	r.mu.Lock()
	r.counts = append(r.counts, count)
	r.mu.Unlock()
}

func (r *recorder) sent() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.counts...)
}

func TestForwardsOnlyStrictIncreasesWhileOpen(t *testing.T) {
	clk := clockwork.NewFakeClock()
	rec := &recorder{}
	g := New(clk, nil, rec.forward)
	g.SetOpen(true)

	// The detector reports a running total at frame rate; repeats and
	// stale values are dropped no matter how often they arrive.
	for _, count := range []int{0, 1, 1, 1, 2, 2, 3, 3, 3, 3} {
		g.OnRepDetected(count)
	}

	assert.Equal(t, []int{1, 2, 3}, rec.sent())
	assert.Equal(t, 3, g.LastSent())
}

func TestClosedGateDropsEverything(t *testing.T) {
	clk := clockwork.NewFakeClock()
	rec := &recorder{}
	g := New(clk, nil, rec.forward)

	g.OnRepDetected(1)
	g.OnRepDetected(2)
	assert.Empty(t, rec.sent())
	assert.Zero(t, g.LastSent())
	assert.True(t, g.LastRepAt().IsZero())

	// Reps detected while closed never retroactively count.
	g.SetOpen(true)
	g.OnRepDetected(3)
	assert.Equal(t, []int{3}, rec.sent())
}

func TestResetAllowsFirstRepOfNewRound(t *testing.T) {
	clk := clockwork.NewFakeClock()
	rec := &recorder{}
	g := New(clk, nil, rec.forward)
	g.SetOpen(true)

	for i := 1; i <= 8; i++ {
		g.OnRepDetected(i)
	}
	assert.Equal(t, 8, g.LastSent())

	// Without a reset, the new round's first rep (1 <= 8) would be
	// swallowed as a stale duplicate.
	g.Reset()
	g.OnRepDetected(1)
	assert.Equal(t, 1, g.LastSent())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 1}, rec.sent())
}

func TestLastRepAtTracksForwardedReps(t *testing.T) {
	clk := clockwork.NewFakeClock()
	rec := &recorder{}
	g := New(clk, nil, rec.forward)
	g.SetOpen(true)

	g.OnRepDetected(1)
	first := g.LastRepAt()
	assert.False(t, first.IsZero())

	clk.Advance(2 * time.Second)
	g.OnRepDetected(1) // duplicate: must not refresh the inactivity timer
	assert.Equal(t, first, g.LastRepAt())

	g.OnRepDetected(2)
	assert.Equal(t, first.Add(2*time.Second), g.LastRepAt())
}

func TestConcurrentDetectionLoopIsSafe(t *testing.T) {
	clk := clockwork.NewFakeClock()
	rec := &recorder{}
	g := New(clk, nil, rec.forward)
	g.SetOpen(true)

	var wg sync.WaitGroup
	// A frame-rate detection loop hammering the gate while the session
	// goroutine flips it must not tear the counters.
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			g.OnRepDetected(i / 5)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			g.SetOpen(i%2 == 0)
		}
	}()
	wg.Wait()

	// Forwarded counts are strictly increasing regardless of interleaving.
	sent := rec.sent()
	for i := 1; i < len(sent); i++ {
		assert.Greater(t, sent[i], sent[i-1])
	}
}
