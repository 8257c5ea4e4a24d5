package mockserver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/contender-app/battle-client/internal/engine"
	"github.com/contender-app/battle-client/internal/exercise"
	"github.com/contender-app/battle-client/pkg/types"
)

const (
	readyPhaseSeconds = 10
	countdownSeconds  = 3
)

// Msg is the sealed set of game-actor messages.
type Msg interface{ isGameMsg() }

// Join attaches a player connection; the game immediately sends GAME_STATE
// to the new outbox. Outbox frames are wire-ready JSON.
type Join struct {
	PlayerID int
	Outbox   chan []byte
}

// Leave detaches a player connection.
type Leave struct{ PlayerID int }

// FromPlayer is one decoded client frame.
type FromPlayer struct {
	PlayerID int
	Msg      types.Message
}

// Shutdown stops the game loop and closes every outbox.
type Shutdown struct{}

// GetView replies with a copy of the game's state, for handlers and tests.
type GetView struct{ Reply chan View }

func (Join) isGameMsg()       {}
func (Leave) isGameMsg()      {}
func (FromPlayer) isGameMsg() {}
func (Shutdown) isGameMsg()   {}
func (GetView) isGameMsg()    {}

// View is the externally visible game state.
type View struct {
	ID           int
	PlayerAID    int
	PlayerBID    int
	ScoreA       int
	ScoreB       int
	RoundsWonA   int
	RoundsWonB   int
	CurrentRound int
	Status       string
	ExerciseID   int
	CreatedAt    time.Time
}

// Game is one battle's server-side actor. State is mutated only inside the
// loop goroutine.
type Game struct {
	inbox  chan Msg
	view   View
	readyA bool
	readyB bool

	outboxes map[int]chan []byte
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewGame starts a game actor in the waiting state.
func NewGame(parent context.Context, id, playerA, playerB, exerciseID int, logger *zap.Logger) *Game {
	ctx, cancel := context.WithCancel(parent)
	g := &Game{
		inbox: make(chan Msg, 64),
		view: View{
			ID:           id,
			PlayerAID:    playerA,
			PlayerBID:    playerB,
			CurrentRound: 1,
			Status:       engine.StatusWaiting,
			ExerciseID:   exerciseID,
			CreatedAt:    time.Now(),
		},
		outboxes: make(map[int]chan []byte),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	go g.loop()
	return g
}

// Inbox accepts game messages.
func (g *Game) Inbox() chan<- Msg { return g.inbox }

// HasPlayer reports whether the id belongs to this game.
func (g *Game) HasPlayer(playerID int) bool {
	return playerID == g.view.PlayerAID || playerID == g.view.PlayerBID
}

func (g *Game) loop() {
	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case m := <-g.inbox:
			switch msg := m.(type) {
			case Join:
				g.outboxes[msg.PlayerID] = msg.Outbox
				g.sendTo(msg.PlayerID, g.gameStateMsg())

			case Leave:
				delete(g.outboxes, msg.PlayerID)

			case FromPlayer:
				g.handle(msg.PlayerID, msg.Msg)

			case GetView:
				msg.Reply <- g.view

			case Shutdown:
				g.shutdown()
				return
			}
		}
	}
}

func (g *Game) handle(playerID int, msg types.Message) {
	switch m := msg.(type) {
	case types.Ping:
		g.sendTo(playerID, types.Pong{})

	case types.RepIncrement:
		g.applyRep(playerID, m.RepCount)

	case types.PlayerReady:
		g.applyReady(playerID, m.IsReady)

	case types.ExerciseSelected:
		g.applySelection(m.ExerciseID)

	case types.RoundEnd:
		g.applyRoundEnd()

	case types.RoundStart:
		exID := 0
		if m.ExerciseID != nil {
			exID = *m.ExerciseID
		}
		g.applyRoundStart(exID)

	case types.Unknown:
		// The production server echoes unknown types back for debugging.
		g.sendTo(playerID, types.Unknown{Type: types.TypeEcho, Payload: m.Payload})

	default:
		g.sendTo(playerID, types.ErrorMessage{Message: "unsupported message"})
	}
}

func (g *Game) applyRep(playerID, count int) {
	switch playerID {
	case g.view.PlayerAID:
		g.view.ScoreA = count
	case g.view.PlayerBID:
		g.view.ScoreB = count
	default:
		return
	}
	if g.view.Status == engine.StatusWaiting {
		g.view.Status = engine.StatusActive
	}
	g.sendToOpponent(playerID, types.RepIncrement{PlayerID: playerID, RepCount: count})
	g.broadcast(g.gameStateMsg())
}

func (g *Game) applyReady(playerID int, ready bool) {
	switch playerID {
	case g.view.PlayerAID:
		g.readyA = ready
	case g.view.PlayerBID:
		g.readyB = ready
	default:
		return
	}
	g.sendToOpponent(playerID, types.PlayerReady{PlayerID: playerID, IsReady: ready})

	if g.readyA && g.readyB {
		// Server, not client, decides when the countdown starts.
		g.broadcast(types.CountdownStart{
			StartTimestamp:  float64(time.Now().UnixNano()) / float64(time.Second),
			DurationSeconds: countdownSeconds,
		})
		g.readyA = false
		g.readyB = false
	}
}

func (g *Game) applySelection(exerciseID int) {
	ex, ok := exercise.ByID(exerciseID)
	if !ok {
		g.logger.Warn("selection for unknown exercise", zap.Int("exercise_id", exerciseID))
		return
	}
	g.view.ExerciseID = exerciseID
	g.broadcast(types.FormRules{
		ExerciseID:   exerciseID,
		ExerciseName: ex.Name,
		Rules:        defaultFormRules(exerciseID),
	})
	g.broadcast(types.ReadyPhaseStart{
		StartTimestamp:  float64(time.Now().UnixNano()) / float64(time.Second),
		DurationSeconds: readyPhaseSeconds,
	})
}

func (g *Game) applyRoundEnd() {
	if g.view.Status == engine.StatusFinished {
		return
	}

	var winnerID, loserID *int
	a, b := g.view.PlayerAID, g.view.PlayerBID
	switch {
	case g.view.ScoreA > g.view.ScoreB:
		winnerID, loserID = &a, &b
		g.view.RoundsWonA++
	case g.view.ScoreB > g.view.ScoreA:
		winnerID, loserID = &b, &a
		g.view.RoundsWonB++
	}

	gameOver := false
	var matchWinner *int
	switch {
	case g.view.RoundsWonA >= 2:
		gameOver, matchWinner = true, &a
	case g.view.RoundsWonB >= 2:
		gameOver, matchWinner = true, &b
	case g.view.CurrentRound >= 3:
		gameOver = true
		switch {
		case g.view.RoundsWonA > g.view.RoundsWonB:
			matchWinner = &a
		case g.view.RoundsWonB > g.view.RoundsWonA:
			matchWinner = &b
		}
	}

	if gameOver {
		g.view.Status = engine.StatusFinished
	} else {
		g.view.Status = engine.StatusRoundEnd
	}

	g.broadcast(types.RoundEnd{
		GameID:           g.view.ID,
		WinnerID:         winnerID,
		LoserID:          loserID,
		PlayerAScore:     g.view.ScoreA,
		PlayerBScore:     g.view.ScoreB,
		PlayerARoundsWon: g.view.RoundsWonA,
		PlayerBRoundsWon: g.view.RoundsWonB,
		CurrentRound:     g.view.CurrentRound,
		GameOver:         gameOver,
		MatchWinnerID:    matchWinner,
	})
	g.broadcast(g.gameStateMsg())
}

func (g *Game) applyRoundStart(exerciseID int) {
	if g.view.Status == engine.StatusFinished {
		return
	}
	g.view.CurrentRound++
	g.view.ScoreA = 0
	g.view.ScoreB = 0
	g.readyA = false
	g.readyB = false
	if exerciseID != 0 {
		g.view.ExerciseID = exerciseID
	}
	g.view.Status = engine.StatusActive

	exID := g.view.ExerciseID
	var exPtr *int
	if exID != 0 {
		exPtr = &exID
	}
	g.broadcast(types.RoundStart{
		GameID:       g.view.ID,
		CurrentRound: g.view.CurrentRound,
		ExerciseID:   exPtr,
	})
	g.broadcast(g.gameStateMsg())
}

func (g *Game) gameStateMsg() types.GameState {
	var exPtr *int
	if g.view.ExerciseID != 0 {
		ex := g.view.ExerciseID
		exPtr = &ex
	}
	return types.GameState{
		GameID:       g.view.ID,
		PlayerA:      types.PlayerState{ID: g.view.PlayerAID, Score: g.view.ScoreA},
		PlayerB:      types.PlayerState{ID: g.view.PlayerBID, Score: g.view.ScoreB},
		CurrentRound: g.view.CurrentRound,
		Status:       g.view.Status,
		ExerciseID:   exPtr,
	}
}

func (g *Game) sendTo(playerID int, msg types.Message) {
	out, ok := g.outboxes[playerID]
	if !ok {
		return
	}
	data, err := types.Marshal(msg)
	if err != nil {
		g.logger.Warn("encode failed", zap.Error(err))
		return
	}
	select {
	case out <- data:
	default:
		// Slow client: drop the connection rather than block the game.
		close(out)
		delete(g.outboxes, playerID)
	}
}

func (g *Game) sendToOpponent(playerID int, msg types.Message) {
	opponent := g.view.PlayerAID
	if playerID == g.view.PlayerAID {
		opponent = g.view.PlayerBID
	}
	g.sendTo(opponent, msg)
}

func (g *Game) broadcast(msg types.Message) {
	g.sendTo(g.view.PlayerAID, msg)
	g.sendTo(g.view.PlayerBID, msg)
}

func (g *Game) shutdown() {
	for id, out := range g.outboxes {
		close(out)
		delete(g.outboxes, id)
	}
	g.cancel()
}

func defaultFormRules(exerciseID int) map[string]types.AngleRange {
	switch exerciseID {
	case exercise.PushUp:
		return map[string]types.AngleRange{"elbow_angle": {Min: 90, Max: 180}}
	case exercise.Squat:
		return map[string]types.AngleRange{"knee_angle": {Min: 80, Max: 170}}
	case exercise.Plank:
		return map[string]types.AngleRange{"hip_angle": {Min: 160, Max: 195}}
	case exercise.SitUp:
		return map[string]types.AngleRange{"torso_angle": {Min: 30, Max: 100}}
	default:
		return nil
	}
}
