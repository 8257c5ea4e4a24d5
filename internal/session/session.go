// Package session runs one battle from the client's side. A single
// goroutine owns the state machine and serializes everything that can
// mutate it: inbound protocol messages, the 10 Hz clock tick, local
// commands, rep-gate notifications and the fallback bootstrap result.
// Nothing else touches engine state, so no transition can tear.
package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/contender-app/battle-client/internal/engine"
	"github.com/contender-app/battle-client/internal/repgate"
	"github.com/contender-app/battle-client/internal/transport"
	"github.com/contender-app/battle-client/pkg/types"
)

// Transport is the slice of the connection layer the session needs.
type Transport interface {
	Send(msg types.Message)
	Messages() <-chan types.Message
	StatusChanges() <-chan transport.Status
	Close()
}

// Fetcher is the fallback bootstrap dependency.
type Fetcher interface {
	FetchMatch(ctx context.Context, matchID int) (types.GameState, error)
}

// EventKind classifies session events delivered to the UI layer.
type EventKind string

const (
	EventPhaseChanged EventKind = "phase_changed"
	EventServerError  EventKind = "server_error"
	EventConnStatus   EventKind = "conn_status"
	EventGameOver     EventKind = "game_over"
)

// Event is a UI-facing notification with the state snapshot that produced
// it.
type Event struct {
	Kind    EventKind
	Message string
	State   engine.State
}

// Config fixes session timing.
type Config struct {
	TickInterval     time.Duration // state machine tick cadence
	FallbackDeadline time.Duration // how long to wait for GAME_STATE before the REST fallback
	Engine           engine.Config
}

// DefaultConfig returns production timing: 10 Hz ticks, 3 s fallback.
func DefaultConfig() Config {
	return Config{
		TickInterval:     100 * time.Millisecond,
		FallbackDeadline: 3 * time.Second,
		Engine:           engine.DefaultConfig(),
	}
}

type command interface{ isCommand() }

type cmdSetReady struct{ ready bool }
type cmdChoose struct{ exerciseID int }
type cmdRepForwarded struct {
	count int
	at    time.Time
}
type cmdSnapshot struct{ reply chan engine.State }

func (cmdSetReady) isCommand()     {}
func (cmdChoose) isCommand()       {}
func (cmdRepForwarded) isCommand() {}
func (cmdSnapshot) isCommand()     {}

// Session owns one match's client state. Construct with New, then Run.
type Session struct {
	cfg       Config
	matchID   int
	transport Transport
	fetcher   Fetcher
	clock     clockwork.Clock
	logger    *zap.Logger

	gate   *repgate.Gate
	cmds   chan command
	events chan Event
	done   chan struct{} // closed on teardown; unblocks late callers

	state        engine.State
	gotRealState bool
	prevRound    int
	prevPhase    engine.Phase
	prevOver     bool
}

// New wires a session for the given match and local player. fetcher may be
// nil to disable the REST fallback.
func New(cfg Config, matchID, playerID int, tr Transport, fetcher Fetcher, clk clockwork.Clock, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		cfg:       cfg,
		matchID:   matchID,
		transport: tr,
		fetcher:   fetcher,
		clock:     clk,
		logger:    logger,
		cmds:      make(chan command, 64),
		events:    make(chan Event, 32),
		done:      make(chan struct{}),
		state:     engine.NewState(playerID, cfg.Engine),
		prevPhase: engine.PhaseIdle,
	}
	s.gate = repgate.New(clk, logger.Named("repgate"), s.onRepForwarded)
	return s
}

// Gate exposes the rep gate; the detection pipeline calls OnRepDetected on
// it from its own cadence.
func (s *Session) Gate() *repgate.Gate { return s.gate }

// Events delivers UI notifications. Slow consumers lose events rather than
// stalling the session.
func (s *Session) Events() <-chan Event { return s.events }

// SetReady toggles the local ready flag.
func (s *Session) SetReady(ready bool) {
	s.enqueue(cmdSetReady{ready: ready})
}

// ChooseExercise submits the local player's exercise pick.
func (s *Session) ChooseExercise(exerciseID int) {
	s.enqueue(cmdChoose{exerciseID: exerciseID})
}

// Snapshot returns a copy of the current machine state. Safe to call after
// Run has returned; it then answers from the final state instead of
// blocking on the stopped loop.
func (s *Session) Snapshot() engine.State {
	reply := make(chan engine.State, 1)
	select {
	case s.cmds <- cmdSnapshot{reply: reply}:
	case <-s.done:
		return s.state
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return s.state
	}
}

// enqueue submits a command unless the session has already stopped.
func (s *Session) enqueue(cmd command) {
	select {
	case s.cmds <- cmd:
	case <-s.done:
	}
}

// onRepForwarded runs on the detection cadence; it transmits immediately
// and hands the bookkeeping to the session loop.
func (s *Session) onRepForwarded(count int, at time.Time) {
	s.transport.Send(types.RepIncrement{RepCount: count})
	select {
	case s.cmds <- cmdRepForwarded{count: count, at: at}:
	default:
		s.logger.Warn("command buffer full, dropping rep bookkeeping", zap.Int("count", count))
	}
}

// Run drives the session until ctx is cancelled or the transport closes
// its inbox for good. On return all timers are stopped, the gate is shut,
// and the transport is deliberately closed so no reconnect follows.
func (s *Session) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	defer s.teardown()

	fallbackTimer := s.clock.NewTimer(s.cfg.FallbackDeadline)
	defer fallbackTimer.Stop()
	fallbackResult := make(chan types.GameState, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-s.transport.Messages():
			if !ok {
				return nil
			}
			if _, isState := msg.(types.GameState); isState {
				s.gotRealState = true
			}
			s.apply(engine.MsgIn{Msg: msg, At: s.clock.Now()})

		case <-ticker.Chan():
			s.apply(engine.Tick{At: s.clock.Now()})

		case <-fallbackTimer.Chan():
			if s.gotRealState || s.fetcher == nil {
				break
			}
			s.logger.Info("no game state within deadline, fetching over REST",
				zap.Int("match_id", s.matchID))
			go s.fetchFallback(ctx, fallbackResult)

		case snap := <-fallbackResult:
			// Last writer wins by arrival recency: a real frame applied
			// while the fetch was in flight makes this snapshot stale.
			if s.gotRealState {
				s.logger.Info("discarding stale fallback state")
				break
			}
			s.apply(engine.MsgIn{Msg: snap, At: s.clock.Now()})

		case cmd := <-s.cmds:
			s.handleCommand(cmd)

		case st := <-s.transport.StatusChanges():
			s.emit(Event{Kind: EventConnStatus, Message: string(st), State: s.state})
		}
	}
}

func (s *Session) fetchFallback(ctx context.Context, result chan<- types.GameState) {
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	snap, err := s.fetcher.FetchMatch(fetchCtx, s.matchID)
	if err != nil {
		s.logger.Warn("fallback fetch failed", zap.Error(err))
		return
	}
	select {
	case result <- snap:
	case <-ctx.Done():
	}
}

func (s *Session) handleCommand(cmd command) {
	switch c := cmd.(type) {
	case cmdSetReady:
		s.apply(engine.SetReady{Ready: c.ready, At: s.clock.Now()})
	case cmdChoose:
		s.apply(engine.ChooseExercise{ExerciseID: c.exerciseID, At: s.clock.Now()})
	case cmdRepForwarded:
		s.apply(engine.RepForwarded{Count: c.count, At: c.at})
	case cmdSnapshot:
		c.reply <- s.state
	}
}

// apply runs one input through the machine, performs its effects, and
// keeps the rep gate in step with the new state.
func (s *Session) apply(in engine.Input) {
	effects, next, err := engine.Apply(s.state, in)
	if err != nil {
		s.logger.Warn("input rejected", zap.Error(err))
		return
	}
	s.state = next

	for _, eff := range effects {
		switch e := eff.(type) {
		case engine.Send:
			s.transport.Send(e.Msg)
		case engine.Warn:
			s.logger.Warn(e.Reason)
		case engine.ServerError:
			s.logger.Warn("server error", zap.String("message", e.Message))
			s.emit(Event{Kind: EventServerError, Message: e.Message, State: s.state})
		}
	}

	s.syncGate()
	s.notifyPhase()
}

// syncGate resets duplicate suppression when a new round session begins
// (before detection resumes) and mirrors the gating condition.
func (s *Session) syncGate() {
	if s.state.Round.Number != s.prevRound {
		s.gate.Reset()
		s.prevRound = s.state.Round.Number
	}
	s.gate.SetOpen(s.state.RepsOpen())
}

func (s *Session) notifyPhase() {
	if phase := s.state.Round.Phase; phase != s.prevPhase {
		s.prevPhase = phase
		s.emit(Event{Kind: EventPhaseChanged, Message: string(phase), State: s.state})
	}
	if s.state.GameOver && !s.prevOver {
		s.prevOver = true
		s.emit(Event{Kind: EventGameOver, State: s.state})
	}
}

func (s *Session) teardown() {
	s.gate.SetOpen(false)
	s.transport.Close()
	close(s.events)
	close(s.done)
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
