// Package engine implements the client-side mirror of match and round
// progression. The state machine is pure: Apply consumes one input (an
// inbound protocol message, a clock tick, or a local command) and returns
// the effects to perform plus the next state. All authority over round
// outcomes stays with the server; local transitions are either
// server-ordered or clock-derived from server-issued timestamps.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/contender-app/battle-client/internal/clock"
	"github.com/contender-app/battle-client/internal/exercise"
	"github.com/contender-app/battle-client/pkg/types"
)

var (
	ErrWrongPhase      = errors.New("command not valid in current phase")
	ErrNotChooser      = errors.New("local player is not the chooser")
	ErrUnknownExercise = errors.New("unknown exercise id")
	ErrMatchCompleted  = errors.New("match already completed")
)

// Phase is the sub-state of the current round.
type Phase string

const (
	PhaseIdle      Phase = "idle"       // no GAME_STATE applied yet
	PhaseCoinFlip  Phase = "coin_flip"  // round 1 only, brief display window
	PhaseSelecting Phase = "selecting"  // waiting for the chooser's exercise
	PhaseReady     Phase = "ready"      // exercise confirmed, readying up
	PhaseCountdown Phase = "countdown"  // server-ordered countdown running
	PhaseLive      Phase = "live"       // reps count
	PhaseEnded     Phase = "ended"      // waiting on authoritative outcome
)

// Match statuses as the server reports them.
const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusRoundEnd = "round_end"
	StatusFinished = "finished"
)

// PlayerRef is one participant. Score is advisory until confirmed by a
// GAME_STATE or ROUND_END message.
type PlayerRef struct {
	ID    int
	Score int
}

// Match mirrors the server's view of the best-of-three contest.
type Match struct {
	ID           int
	PlayerA      PlayerRef
	PlayerB      PlayerRef
	CurrentRound int
	RoundsWonA   int
	RoundsWonB   int
	Status       string
}

// Round is the transient per-round session. It is replaced wholesale when
// an inbound ROUND_START arrives; within one Round the phase only moves
// forward.
type Round struct {
	Number        int
	ExerciseID    int // 0 until confirmed by FORM_RULES
	ExerciseName  string
	Phase         Phase
	ReadyWindow   clock.Countdown
	CountdownTmr  clock.Countdown
	LiveStart     time.Time
	LocalReady     bool
	OpponentReady  bool
	EndRequested   bool // ROUND_END request sent, never repeated
	StartRequested bool // next-round request resolved, never repeated
}

// Config carries the locally fixed timing rules.
type Config struct {
	RoundDuration   time.Duration // live phase length for rep-counted exercises
	InactivityLimit time.Duration // no qualifying rep for this long ends the round
	CoinFlipDisplay time.Duration // how long the coin-flip result is shown
	RoundEndSummary time.Duration // how long the round outcome is shown before the next round is requested
}

// DefaultConfig matches the production battle rules.
func DefaultConfig() Config {
	return Config{
		RoundDuration:   60 * time.Second,
		InactivityLimit: 10 * time.Second,
		CoinFlipDisplay: 2 * time.Second,
		RoundEndSummary: 5 * time.Second,
	}
}

// State is the whole client-side machine. Copied by value through Apply
// and confined to a single owning goroutine.
type State struct {
	LocalID int
	Cfg     Config

	Started bool
	Match   Match
	Round   Round

	ChooserID    int
	coinFlipOver time.Time
	roundEndOver time.Time

	LastRepAt time.Time

	GameOver      bool
	MatchWinnerID int
}

// NewState builds an empty machine for the given local participant.
func NewState(localID int, cfg Config) State {
	return State{
		LocalID: localID,
		Cfg:     cfg,
		Round:   Round{Phase: PhaseIdle},
	}
}

// Input is the sealed set of things that can drive the machine.
type Input interface{ isInput() }

// MsgIn is an inbound protocol message, stamped with local arrival time.
type MsgIn struct {
	Msg types.Message
	At  time.Time
}

// Tick is one clock tick; all time-derived transitions happen here.
type Tick struct{ At time.Time }

// SetReady is the local player toggling their ready flag.
type SetReady struct {
	Ready bool
	At    time.Time
}

// ChooseExercise is the local player picking the round's exercise.
type ChooseExercise struct {
	ExerciseID int
	At         time.Time
}

// RepForwarded notes that the rep gate let a rep through. The count is the
// local advisory score; At feeds the inactivity timer.
type RepForwarded struct {
	Count int
	At    time.Time
}

func (MsgIn) isInput()          {}
func (Tick) isInput()           {}
func (SetReady) isInput()       {}
func (ChooseExercise) isInput() {}
func (RepForwarded) isInput()   {}

// Effect is what the caller must carry out after an Apply.
type Effect interface{ isEffect() }

// Send transmits a message to the server.
type Send struct{ Msg types.Message }

// Warn flags inbound data the machine ignored (unknown ids, messages
// arriving out of precondition). Non-fatal by design.
type Warn struct{ Reason string }

// ServerError surfaces an ERROR message to the caller without changing
// phase.
type ServerError struct{ Message string }

func (Send) isEffect()        {}
func (Warn) isEffect()        {}
func (ServerError) isEffect() {}

// Apply advances the machine by one input.
func Apply(s State, in Input) ([]Effect, State, error) {
	switch input := in.(type) {
	case MsgIn:
		return applyMessage(s, input.Msg, input.At)
	case Tick:
		return applyTick(s, input.At)
	case SetReady:
		return applySetReady(s, input)
	case ChooseExercise:
		return applyChoose(s, input)
	case RepForwarded:
		s.LastRepAt = input.At
		s = setScore(s, s.LocalID, input.Count)
		return nil, s, nil
	default:
		return nil, s, fmt.Errorf("unsupported input %T", in)
	}
}

func applySetReady(s State, in SetReady) ([]Effect, State, error) {
	if s.GameOver {
		return nil, s, ErrMatchCompleted
	}
	if s.Round.Phase != PhaseReady {
		return nil, s, ErrWrongPhase
	}
	s.Round.LocalReady = in.Ready
	out := Send{Msg: types.PlayerReady{PlayerID: s.LocalID, IsReady: in.Ready}}
	return []Effect{out}, s, nil
}

func applyChoose(s State, in ChooseExercise) ([]Effect, State, error) {
	if s.GameOver {
		return nil, s, ErrMatchCompleted
	}
	if s.Round.Phase != PhaseSelecting {
		return nil, s, ErrWrongPhase
	}
	if s.ChooserID != s.LocalID {
		return nil, s, ErrNotChooser
	}
	if _, ok := exercise.ByID(in.ExerciseID); !ok {
		return nil, s, ErrUnknownExercise
	}
	// The exercise is not applied locally here; the machine waits for the
	// server's FORM_RULES confirmation so both peers transition together.
	out := Send{Msg: types.ExerciseSelected{ExerciseID: in.ExerciseID}}
	return []Effect{out}, s, nil
}

func applyMessage(s State, msg types.Message, at time.Time) ([]Effect, State, error) {
	if s.GameOver {
		// Final state is irreversible; late messages cannot reopen the match.
		if _, ok := msg.(types.ErrorMessage); !ok {
			return nil, s, nil
		}
	}

	switch m := msg.(type) {
	case types.GameState:
		return applyGameState(s, m, at)
	case types.RepIncrement:
		if !isParticipant(s.Match, m.PlayerID) {
			return []Effect{Warn{Reason: fmt.Sprintf("rep increment from non-participant %d", m.PlayerID)}}, s, nil
		}
		s = setScore(s, m.PlayerID, m.RepCount)
		return nil, s, nil
	case types.FormRules:
		return applyFormRules(s, m)
	case types.PlayerReady:
		return applyPlayerReady(s, m)
	case types.ReadyPhaseStart:
		if s.Round.Phase != PhaseReady {
			return []Effect{Warn{Reason: "ready phase start before exercise confirmed, ignored"}}, s, nil
		}
		s.Round.ReadyWindow = clock.NewCountdown(m.StartTimestamp, m.DurationSeconds)
		return nil, s, nil
	case types.CountdownStart:
		return applyCountdownStart(s, m)
	case types.RoundStart:
		return applyRoundStart(s, m)
	case types.RoundEnd:
		return applyRoundEnd(s, m, at)
	case types.ErrorMessage:
		return []Effect{ServerError{Message: m.Message}}, s, nil
	case types.Ping:
		return []Effect{Send{Msg: types.Pong{}}}, s, nil
	case types.Pong:
		return nil, s, nil
	case types.Unknown:
		return []Effect{Warn{Reason: "unrecognized message type " + m.Type}}, s, nil
	default:
		return nil, s, fmt.Errorf("unsupported message %T", msg)
	}
}

func applyGameState(s State, m types.GameState, at time.Time) ([]Effect, State, error) {
	if !s.Started {
		s.Started = true
		s.Match = Match{
			ID:           m.GameID,
			PlayerA:      PlayerRef{ID: m.PlayerA.ID, Score: m.PlayerA.Score},
			PlayerB:      PlayerRef{ID: m.PlayerB.ID, Score: m.PlayerB.Score},
			CurrentRound: m.CurrentRound,
			Status:       m.Status,
		}
		s.Round = Round{Number: m.CurrentRound}
		if m.ExerciseID != nil && *m.ExerciseID != 0 {
			// Joined (or rejoined) a round with the exercise already picked.
			s.Round.ExerciseID = *m.ExerciseID
			if ex, ok := exercise.ByID(*m.ExerciseID); ok {
				s.Round.ExerciseName = ex.Name
			}
			s.Round.Phase = PhaseReady
			s.ChooserID = CoinFlipChooser(m.GameID, m.PlayerA.ID, m.PlayerB.ID)
		} else {
			// Round 1 opens with the network-free coin flip; both peers
			// compute the same chooser from shared values.
			s.ChooserID = CoinFlipChooser(m.GameID, m.PlayerA.ID, m.PlayerB.ID)
			s.Round.Phase = PhaseCoinFlip
			s.coinFlipOver = at.Add(s.Cfg.CoinFlipDisplay)
		}
		return nil, s, nil
	}

	// Already initialized: adopt the authoritative scores and status but
	// never regress the round phase off a snapshot.
	s.Match.PlayerA.Score = m.PlayerA.Score
	s.Match.PlayerB.Score = m.PlayerB.Score
	s.Match.Status = m.Status
	if m.CurrentRound > s.Match.CurrentRound {
		s.Match.CurrentRound = m.CurrentRound
	}
	return nil, s, nil
}

func applyFormRules(s State, m types.FormRules) ([]Effect, State, error) {
	if !s.Started {
		return []Effect{Warn{Reason: "form rules before game state, ignored"}}, s, nil
	}
	switch s.Round.Phase {
	case PhaseCoinFlip, PhaseSelecting, PhaseReady:
	default:
		return []Effect{Warn{Reason: "form rules outside selection, ignored"}}, s, nil
	}

	var effects []Effect
	name := m.ExerciseName
	if ex, ok := exercise.ByID(m.ExerciseID); ok {
		name = ex.Name
	} else {
		// Unmappable id still clears the waiting state so neither peer
		// stalls on the selection screen.
		effects = append(effects, Warn{Reason: fmt.Sprintf("form rules for unknown exercise %d", m.ExerciseID)})
	}
	s.Round.ExerciseID = m.ExerciseID
	s.Round.ExerciseName = name
	s.Round.Phase = PhaseReady
	s.Round.LocalReady = false
	s.Round.OpponentReady = false
	return effects, s, nil
}

func applyPlayerReady(s State, m types.PlayerReady) ([]Effect, State, error) {
	if m.PlayerID == s.LocalID {
		// Server echo of our own flag; the local flag is set on SetReady.
		return nil, s, nil
	}
	if !isParticipant(s.Match, m.PlayerID) {
		return []Effect{Warn{Reason: fmt.Sprintf("ready flag from non-participant %d", m.PlayerID)}}, s, nil
	}
	s.Round.OpponentReady = m.IsReady
	// Both flags true does NOT start the countdown; only COUNTDOWN_START
	// does, so the two peers cannot split-brain the round start.
	return nil, s, nil
}

func applyCountdownStart(s State, m types.CountdownStart) ([]Effect, State, error) {
	if s.Round.Phase != PhaseReady || s.Round.ExerciseID == 0 {
		return []Effect{Warn{Reason: "countdown start before exercise confirmed, ignored"}}, s, nil
	}
	s.Round.Phase = PhaseCountdown
	s.Round.CountdownTmr = clock.NewCountdown(m.StartTimestamp, m.DurationSeconds)
	return nil, s, nil
}

func applyRoundStart(s State, m types.RoundStart) ([]Effect, State, error) {
	if !s.Started {
		return []Effect{Warn{Reason: "round start before game state, ignored"}}, s, nil
	}
	if m.CurrentRound != 0 {
		s.Match.CurrentRound = m.CurrentRound
	} else {
		s.Match.CurrentRound++
	}
	s.Match.PlayerA.Score = 0
	s.Match.PlayerB.Score = 0
	s.Match.Status = StatusActive

	s.roundEndOver = time.Time{}
	s.Round = Round{Number: s.Match.CurrentRound, Phase: PhaseSelecting}
	if m.ExerciseID != nil && *m.ExerciseID != 0 {
		var effects []Effect
		name := ""
		if ex, ok := exercise.ByID(*m.ExerciseID); ok {
			name = ex.Name
		} else {
			effects = append(effects, Warn{Reason: fmt.Sprintf("round start with unknown exercise %d", *m.ExerciseID)})
		}
		s.Round.ExerciseID = *m.ExerciseID
		s.Round.ExerciseName = name
		s.Round.Phase = PhaseReady
		return effects, s, nil
	}
	return nil, s, nil
}

func applyRoundEnd(s State, m types.RoundEnd, at time.Time) ([]Effect, State, error) {
	if !s.Started {
		return []Effect{Warn{Reason: "round end before game state, ignored"}}, s, nil
	}

	s.Match.PlayerA.Score = m.PlayerAScore
	s.Match.PlayerB.Score = m.PlayerBScore
	s.Match.RoundsWonA = m.PlayerARoundsWon
	s.Match.RoundsWonB = m.PlayerBRoundsWon
	if m.CurrentRound != 0 {
		s.Match.CurrentRound = m.CurrentRound
	}
	s.Round.Phase = PhaseEnded

	over := m.GameOver || s.Match.RoundsWonA >= 2 || s.Match.RoundsWonB >= 2 || s.Match.CurrentRound >= 3
	if over {
		s.GameOver = true
		s.Match.Status = StatusFinished
		if m.MatchWinnerID != nil {
			s.MatchWinnerID = *m.MatchWinnerID
		}
		return nil, s, nil
	}

	s.Match.Status = StatusRoundEnd
	s.ChooserID = NextChooser(m.LoserID, s.ChooserID, s.Match.PlayerA.ID, s.Match.PlayerB.ID)
	// The server advances rounds only on a client-sent ROUND_START; arm the
	// summary window after which the next chooser requests it.
	s.roundEndOver = at.Add(s.Cfg.RoundEndSummary)
	return nil, s, nil
}

func applyTick(s State, at time.Time) ([]Effect, State, error) {
	switch s.Round.Phase {
	case PhaseCoinFlip:
		if !at.Before(s.coinFlipOver) {
			s.Round.Phase = PhaseSelecting
		}
		return nil, s, nil

	case PhaseCountdown:
		if s.Round.CountdownTmr.Expired(at) {
			s.Round.Phase = PhaseLive
			// Anchor the live window at the countdown's server-side end, not
			// at tick arrival, so both peers share the same round deadline.
			s.Round.LiveStart = s.Round.CountdownTmr.Start.Add(s.Round.CountdownTmr.Duration)
			s.LastRepAt = s.Round.LiveStart
		}
		return nil, s, nil

	case PhaseLive:
		if exercise.IsStaticHold(s.Round.ExerciseID) {
			// Static holds are scored by duration; only the server ends them.
			return nil, s, nil
		}
		expired := at.Sub(s.Round.LiveStart) >= s.Cfg.RoundDuration
		idle := at.Sub(s.LastRepAt) >= s.Cfg.InactivityLimit
		if (expired || idle) && !s.Round.EndRequested {
			s.Round.Phase = PhaseEnded
			s.Round.EndRequested = true
			return []Effect{Send{Msg: types.RoundEnd{}}}, s, nil
		}
		return nil, s, nil

	case PhaseEnded:
		if s.GameOver || s.Round.StartRequested || s.roundEndOver.IsZero() || at.Before(s.roundEndOver) {
			return nil, s, nil
		}
		s.Round.StartRequested = true
		if s.ChooserID != s.LocalID {
			// The next chooser requests the round; this peer waits for the
			// server's ROUND_START broadcast.
			return nil, s, nil
		}
		return []Effect{Send{Msg: types.RoundStart{}}}, s, nil

	default:
		return nil, s, nil
	}
}

func setScore(s State, playerID, score int) State {
	switch playerID {
	case s.Match.PlayerA.ID:
		s.Match.PlayerA.Score = score
	case s.Match.PlayerB.ID:
		s.Match.PlayerB.Score = score
	}
	return s
}

func isParticipant(m Match, playerID int) bool {
	return playerID != 0 && (playerID == m.PlayerA.ID || playerID == m.PlayerB.ID)
}

// Opponent returns the non-local participant.
func (s State) Opponent() PlayerRef {
	if s.Match.PlayerA.ID == s.LocalID {
		return s.Match.PlayerB
	}
	return s.Match.PlayerA
}

// Local returns the local participant.
func (s State) Local() PlayerRef {
	if s.Match.PlayerA.ID == s.LocalID {
		return s.Match.PlayerA
	}
	return s.Match.PlayerB
}

// RepsOpen reports whether locally detected reps may count right now. This
// is the gate condition for forwarding REP_INCREMENT.
func (s State) RepsOpen() bool {
	return s.Round.Phase == PhaseLive && s.Round.LocalReady && s.Round.OpponentReady
}

// CountdownRemaining is the time left in the countdown at now, zero when
// no countdown is armed.
func (s State) CountdownRemaining(now time.Time) time.Duration {
	if s.Round.CountdownTmr.Zero() {
		return 0
	}
	return s.Round.CountdownTmr.Remaining(now)
}

// ReadyRemaining is the time left in the ready-up window at now, zero when
// no READY_PHASE_START has arrived.
func (s State) ReadyRemaining(now time.Time) time.Duration {
	if s.Round.ReadyWindow.Zero() {
		return 0
	}
	return s.Round.ReadyWindow.Remaining(now)
}

// RoundRemaining is the time left in the live window at now.
func (s State) RoundRemaining(now time.Time) time.Duration {
	if s.Round.Phase != PhaseLive || s.Round.LiveStart.IsZero() {
		return 0
	}
	return clock.Remaining(s.Round.LiveStart, s.Cfg.RoundDuration, now)
}
