// Package types defines the wire protocol spoken between the battle client
// and the match server. Every frame is a JSON envelope of the form
// {"type": "...", "payload": {...}}; payload field names follow the server
// exactly (camelCase, except FORM_RULES which the server emits snake_case).
package types

import (
	"encoding/json"
	"fmt"
)

// Message type tags, as emitted/accepted by the server.
const (
	TypeGameState        = "GAME_STATE"
	TypeRepIncrement     = "REP_INCREMENT"
	TypeRoundStart       = "ROUND_START"
	TypeRoundEnd         = "ROUND_END"
	TypeExerciseSelected = "EXERCISE_SELECTED"
	TypeFormRules        = "FORM_RULES"
	TypePlayerReady      = "PLAYER_READY"
	TypeReadyPhaseStart  = "READY_PHASE_START"
	TypeCountdownStart   = "COUNTDOWN_START"
	TypeError            = "ERROR"
	TypePing             = "PING"
	TypePong             = "PONG"
	TypeEcho             = "ECHO"
)

// Envelope is the outer frame for every protocol message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is the decoded form of an inbound or outbound frame. The concrete
// types below are the full, closed set; state machines switch over them
// exhaustively.
type Message interface{ isMessage() }

func (GameState) isMessage()        {}
func (RepIncrement) isMessage()     {}
func (RoundStart) isMessage()       {}
func (RoundEnd) isMessage()         {}
func (ExerciseSelected) isMessage() {}
func (FormRules) isMessage()        {}
func (PlayerReady) isMessage()      {}
func (ReadyPhaseStart) isMessage()  {}
func (CountdownStart) isMessage()   {}
func (ErrorMessage) isMessage()     {}
func (Ping) isMessage()             {}
func (Pong) isMessage()             {}
func (Unknown) isMessage()          {}

// PlayerState is one participant's advisory score inside GAME_STATE.
type PlayerState struct {
	ID    int `json:"id"`
	Score int `json:"score"`
}

// GameState mirrors the server's authoritative match snapshot.
type GameState struct {
	GameID       int         `json:"gameId"`
	PlayerA      PlayerState `json:"playerA"`
	PlayerB      PlayerState `json:"playerB"`
	CurrentRound int         `json:"currentRound"`
	Status       string      `json:"status"`
	ExerciseID   *int        `json:"exerciseId,omitempty"`
}

// RepIncrement carries a rep count. Outbound it reports the local player's
// count; inbound it reports the opponent's (playerId set by the server).
type RepIncrement struct {
	PlayerID int `json:"playerId,omitempty"`
	RepCount int `json:"repCount"`
}

// RoundStart announces the next round. Outbound it requests one.
type RoundStart struct {
	GameID       int  `json:"gameId,omitempty"`
	CurrentRound int  `json:"currentRound,omitempty"`
	ExerciseID   *int `json:"exerciseId,omitempty"`
}

// RoundEnd is the server's authoritative round outcome. Outbound (as a
// request) the payload is empty; the server recomputes everything itself.
type RoundEnd struct {
	GameID           int    `json:"gameId,omitempty"`
	WinnerID         *int   `json:"winnerId"`
	LoserID          *int   `json:"loserId"`
	PlayerAScore     int    `json:"playerAScore"`
	PlayerBScore     int    `json:"playerBScore"`
	PlayerARoundsWon int    `json:"playerARoundsWon"`
	PlayerBRoundsWon int    `json:"playerBRoundsWon"`
	CurrentRound     int    `json:"currentRound"`
	GameOver         bool   `json:"gameOver"`
	MatchWinnerID    *int   `json:"matchWinnerId"`
	Narrative        string `json:"narrative,omitempty"`
}

// ExerciseSelected is the chooser's pick for the current round.
type ExerciseSelected struct {
	ExerciseID int `json:"exerciseId"`
}

// AngleRange bounds one tracked joint angle for form validation.
type AngleRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FormRules confirms an exercise selection to both peers and carries the
// per-joint form envelope. Field names are snake_case on the wire.
type FormRules struct {
	ExerciseID   int                   `json:"exercise_id"`
	ExerciseName string                `json:"exercise_name"`
	Rules        map[string]AngleRange `json:"form_rules"`
}

// PlayerReady toggles a readiness flag. The server stamps playerId when
// relaying to the opponent.
type PlayerReady struct {
	PlayerID int  `json:"playerId,omitempty"`
	IsReady  bool `json:"isReady"`
}

// ReadyPhaseStart opens the ready-up window. StartTimestamp is epoch
// seconds on the server's clock.
type ReadyPhaseStart struct {
	StartTimestamp  float64 `json:"startTimestamp"`
	DurationSeconds int     `json:"durationSeconds"`
}

// CountdownStart is the server's commitment to begin the round. Both peers
// derive the live transition from the same timestamp.
type CountdownStart struct {
	StartTimestamp  float64 `json:"startTimestamp"`
	DurationSeconds int     `json:"durationSeconds"`
}

// ErrorMessage surfaces a server-side failure. The payload is a bare JSON
// string, not an object.
type ErrorMessage struct {
	Message string
}

// Ping and Pong are the app-level keepalive pair.
type Ping struct{}
type Pong struct{}

// Unknown preserves frames whose type tag the client does not recognize.
type Unknown struct {
	Type    string
	Payload json.RawMessage
}

// Decode parses a raw frame into its typed form. Unrecognized type tags
// decode to Unknown rather than erroring; the protocol fails soft.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope parses an already-framed envelope.
func DecodeEnvelope(env Envelope) (Message, error) {
	switch env.Type {
	case TypeGameState:
		var p GameState
		return p, unmarshalPayload(env, &p)
	case TypeRepIncrement:
		var p RepIncrement
		return p, unmarshalPayload(env, &p)
	case TypeRoundStart:
		var p RoundStart
		return p, unmarshalPayload(env, &p)
	case TypeRoundEnd:
		var p RoundEnd
		return p, unmarshalPayload(env, &p)
	case TypeExerciseSelected:
		var p ExerciseSelected
		return p, unmarshalPayload(env, &p)
	case TypeFormRules:
		var p FormRules
		return p, unmarshalPayload(env, &p)
	case TypePlayerReady:
		var p PlayerReady
		return p, unmarshalPayload(env, &p)
	case TypeReadyPhaseStart:
		var p ReadyPhaseStart
		return p, unmarshalPayload(env, &p)
	case TypeCountdownStart:
		var p CountdownStart
		return p, unmarshalPayload(env, &p)
	case TypeError:
		var msg string
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				// Some server paths wrap the message in an object; keep the raw text.
				msg = string(env.Payload)
			}
		}
		return ErrorMessage{Message: msg}, nil
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	default:
		return Unknown{Type: env.Type, Payload: env.Payload}, nil
	}
}

func unmarshalPayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

// Marshal frames a typed message into wire bytes.
func Marshal(msg Message) ([]byte, error) {
	tag, payload, err := split(msg)
	if err != nil {
		return nil, err
	}
	env := Envelope{Type: tag}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", tag, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func split(msg Message) (string, any, error) {
	switch m := msg.(type) {
	case GameState:
		return TypeGameState, m, nil
	case RepIncrement:
		return TypeRepIncrement, m, nil
	case RoundStart:
		return TypeRoundStart, m, nil
	case RoundEnd:
		return TypeRoundEnd, m, nil
	case ExerciseSelected:
		return TypeExerciseSelected, m, nil
	case FormRules:
		return TypeFormRules, m, nil
	case PlayerReady:
		return TypePlayerReady, m, nil
	case ReadyPhaseStart:
		return TypeReadyPhaseStart, m, nil
	case CountdownStart:
		return TypeCountdownStart, m, nil
	case ErrorMessage:
		return TypeError, m.Message, nil
	case Ping:
		return TypePing, struct{}{}, nil
	case Pong:
		return TypePong, struct{}{}, nil
	case Unknown:
		return m.Type, json.RawMessage(m.Payload), nil
	default:
		return "", nil, fmt.Errorf("unsupported message %T", msg)
	}
}
