package mockserver

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/contender-app/battle-client/internal/engine"
	"github.com/contender-app/battle-client/internal/exercise"
	"github.com/contender-app/battle-client/pkg/types"
)

// helper: receive and decode one frame with a timeout so tests never hang
func recvMsg(t *testing.T, ch <-chan []byte, within time.Duration) types.Message {
	t.Helper()
	select {
	case frame, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		msg, err := types.Decode(frame)
		if err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return nil // unreachable
	}
}

func recvNoMsg(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case frame, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame within %v, but got: %s", within, frame)
	case <-time.After(within):
	}
}

func recvView(t *testing.T, g *Game, within time.Duration) View {
	t.Helper()
	reply := make(chan View, 1)
	g.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func newTestGame(t *testing.T) *Game {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewGame(ctx, 1, 1, 2, 0, zap.NewNop())
}

func TestGame_Join_SendsSnapshot(t *testing.T) {
	g := newTestGame(t)

	out := make(chan []byte, 4)
	g.Inbox() <- Join{PlayerID: 1, Outbox: out}

	msg := recvMsg(t, out, 100*time.Millisecond)
	state, ok := msg.(types.GameState)
	if !ok {
		t.Fatalf("after join: want GameState, got %T", msg)
	}
	if state.GameID != 1 || state.PlayerA.ID != 1 || state.PlayerB.ID != 2 {
		t.Fatalf("after join: bad snapshot %+v", state)
	}
	if state.Status != engine.StatusWaiting {
		t.Fatalf("after join: want status waiting, got %q", state.Status)
	}
}

func TestGame_RepIncrement_RelaysToOpponentAndRebroadcasts(t *testing.T) {
	g := newTestGame(t)

	out2 := make(chan []byte, 4)
	g.Inbox() <- Join{PlayerID: 2, Outbox: out2}
	_ = recvMsg(t, out2, 100*time.Millisecond) // join snapshot

	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.RepIncrement{RepCount: 3}}

	rep, ok := recvMsg(t, out2, 100*time.Millisecond).(types.RepIncrement)
	if !ok || rep.PlayerID != 1 || rep.RepCount != 3 {
		t.Fatalf("opponent relay: want rep playerId=1 count=3, got %+v", rep)
	}

	state, ok := recvMsg(t, out2, 100*time.Millisecond).(types.GameState)
	if !ok || state.PlayerA.Score != 3 {
		t.Fatalf("rebroadcast: want playerA score 3, got %+v", state)
	}
	if state.Status != engine.StatusActive {
		t.Fatalf("first rep should activate the match, got %q", state.Status)
	}
}

func TestGame_BothReady_StartsCountdownAndResetsFlags(t *testing.T) {
	g := newTestGame(t)

	out1 := make(chan []byte, 8)
	out2 := make(chan []byte, 8)
	g.Inbox() <- Join{PlayerID: 1, Outbox: out1}
	g.Inbox() <- Join{PlayerID: 2, Outbox: out2}
	_ = recvMsg(t, out1, 100*time.Millisecond)
	_ = recvMsg(t, out2, 100*time.Millisecond)

	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.PlayerReady{IsReady: true}}
	ready, ok := recvMsg(t, out2, 100*time.Millisecond).(types.PlayerReady)
	if !ok || ready.PlayerID != 1 || !ready.IsReady {
		t.Fatalf("relay: want ready from player 1, got %+v", ready)
	}
	// One ready is not enough.
	recvNoMsg(t, out1, 100*time.Millisecond)

	g.Inbox() <- FromPlayer{PlayerID: 2, Msg: types.PlayerReady{IsReady: true}}
	if _, ok := recvMsg(t, out1, 100*time.Millisecond).(types.PlayerReady); !ok {
		t.Fatalf("player 1 should see player 2 ready up")
	}

	cd1, ok := recvMsg(t, out1, 100*time.Millisecond).(types.CountdownStart)
	if !ok {
		t.Fatalf("player 1: want CountdownStart")
	}
	cd2, ok := recvMsg(t, out2, 100*time.Millisecond).(types.CountdownStart)
	if !ok {
		t.Fatalf("player 2: want CountdownStart")
	}
	if cd1.StartTimestamp != cd2.StartTimestamp || cd1.DurationSeconds != countdownSeconds {
		t.Fatalf("countdown must be identical for both peers: %+v vs %+v", cd1, cd2)
	}

	// Flags reset: a single ready after the countdown must not retrigger.
	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.PlayerReady{IsReady: true}}
	_ = recvMsg(t, out2, 100*time.Millisecond) // the relay
	recvNoMsg(t, out1, 100*time.Millisecond)
}

func TestGame_Selection_BroadcastsFormRulesThenReadyPhase(t *testing.T) {
	g := newTestGame(t)

	out := make(chan []byte, 8)
	g.Inbox() <- Join{PlayerID: 1, Outbox: out}
	_ = recvMsg(t, out, 100*time.Millisecond)

	g.Inbox() <- FromPlayer{PlayerID: 2, Msg: types.ExerciseSelected{ExerciseID: exercise.Squat}}

	rules, ok := recvMsg(t, out, 100*time.Millisecond).(types.FormRules)
	if !ok {
		t.Fatalf("want FormRules first")
	}
	if rules.ExerciseID != exercise.Squat || rules.ExerciseName != "Squat" {
		t.Fatalf("bad form rules: %+v", rules)
	}
	if _, found := rules.Rules["knee_angle"]; !found {
		t.Fatalf("squat rules must carry knee_angle, got %+v", rules.Rules)
	}

	phase, ok := recvMsg(t, out, 100*time.Millisecond).(types.ReadyPhaseStart)
	if !ok || phase.DurationSeconds != readyPhaseSeconds {
		t.Fatalf("want ReadyPhaseStart with %ds window, got %+v", readyPhaseSeconds, phase)
	}

	// Unknown exercise ids are ignored, not broadcast.
	g.Inbox() <- FromPlayer{PlayerID: 2, Msg: types.ExerciseSelected{ExerciseID: 42}}
	recvNoMsg(t, out, 100*time.Millisecond)
}

func TestGame_BestOfThree_TwoWinsEndsMatch(t *testing.T) {
	g := newTestGame(t)

	out := make(chan []byte, 16)
	g.Inbox() <- Join{PlayerID: 1, Outbox: out}
	_ = recvMsg(t, out, 100*time.Millisecond)

	// Round 1: player 1 outscores player 2.
	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.RepIncrement{RepCount: 5}}
	_ = recvMsg(t, out, 100*time.Millisecond) // state rebroadcast
	g.Inbox() <- FromPlayer{PlayerID: 2, Msg: types.RepIncrement{RepCount: 3}}
	_ = recvMsg(t, out, 100*time.Millisecond) // opponent rep relay
	_ = recvMsg(t, out, 100*time.Millisecond) // state rebroadcast

	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.RoundEnd{}}
	end1, ok := recvMsg(t, out, 100*time.Millisecond).(types.RoundEnd)
	if !ok {
		t.Fatalf("want RoundEnd broadcast")
	}
	if end1.GameOver || end1.WinnerID == nil || *end1.WinnerID != 1 || end1.PlayerARoundsWon != 1 {
		t.Fatalf("round 1 outcome wrong: %+v", end1)
	}
	_ = recvMsg(t, out, 100*time.Millisecond) // state rebroadcast

	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.RoundStart{}}
	start, ok := recvMsg(t, out, 100*time.Millisecond).(types.RoundStart)
	if !ok || start.CurrentRound != 2 {
		t.Fatalf("want round 2 start, got %+v", start)
	}
	state, _ := recvMsg(t, out, 100*time.Millisecond).(types.GameState)
	if state.PlayerA.Score != 0 || state.PlayerB.Score != 0 {
		t.Fatalf("scores must reset between rounds: %+v", state)
	}

	// Round 2: player 1 wins again, which ends the match.
	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.RepIncrement{RepCount: 2}}
	_ = recvMsg(t, out, 100*time.Millisecond)
	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.RoundEnd{}}
	end2, ok := recvMsg(t, out, 100*time.Millisecond).(types.RoundEnd)
	if !ok {
		t.Fatalf("want RoundEnd broadcast")
	}
	if !end2.GameOver || end2.MatchWinnerID == nil || *end2.MatchWinnerID != 1 {
		t.Fatalf("two round wins must end the match: %+v", end2)
	}

	view := recvView(t, g, 100*time.Millisecond)
	if view.Status != engine.StatusFinished {
		t.Fatalf("want finished status, got %q", view.Status)
	}

	// A finished match ignores further round traffic.
	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.RoundStart{}}
	if v := recvView(t, g, 100*time.Millisecond); v.CurrentRound != 2 {
		t.Fatalf("finished match must not advance rounds, got round %d", v.CurrentRound)
	}
}

func TestGame_DropSlowClient(t *testing.T) {
	g := newTestGame(t)

	// Buffer of one and never read: the second frame cannot be delivered.
	out := make(chan []byte, 1)
	g.Inbox() <- Join{PlayerID: 2, Outbox: out}

	// Join snapshot fills the buffer; the rep relay overflows it.
	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.RepIncrement{RepCount: 1}}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return // dropped, channel closed
			}
		case <-deadline:
			t.Fatalf("slow client was never dropped")
		}
	}
}

func TestGame_Ping_AnswersPong(t *testing.T) {
	g := newTestGame(t)

	out := make(chan []byte, 4)
	g.Inbox() <- Join{PlayerID: 1, Outbox: out}
	_ = recvMsg(t, out, 100*time.Millisecond)

	g.Inbox() <- FromPlayer{PlayerID: 1, Msg: types.Ping{}}
	if _, ok := recvMsg(t, out, 100*time.Millisecond).(types.Pong); !ok {
		t.Fatalf("want Pong")
	}
}
