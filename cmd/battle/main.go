// Command battle is a terminal battle client. It stands in for the mobile
// UI and the pose-detection pipeline: phase changes print to stdout and
// stdin commands drive the session.
//
//	ready        toggle ready on
//	unready      toggle ready off
//	pick <id>    choose the round's exercise (1 push-up, 2 squat, 3 plank, 4 sit-up)
//	rep <count>  simulate the detector reporting a running rep count
//	state        print the current snapshot
//	quit         tear the session down
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/contender-app/battle-client/internal/bootstrap"
	"github.com/contender-app/battle-client/internal/config"
	"github.com/contender-app/battle-client/internal/engine"
	"github.com/contender-app/battle-client/internal/exercise"
	"github.com/contender-app/battle-client/internal/session"
	"github.com/contender-app/battle-client/internal/transport"
)

func main() {
	_ = godotenv.Load()

	matchFlag := flag.Int("match", 0, "match id (overrides BATTLE_MATCH_ID)")
	playerFlag := flag.Int("player", 0, "local player id (overrides BATTLE_PLAYER_ID)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if *matchFlag != 0 {
		cfg.MatchID = *matchFlag
	}
	if *playerFlag != 0 {
		cfg.PlayerID = *playerFlag
	}
	if cfg.MatchID == 0 || cfg.PlayerID == 0 {
		logger.Fatal("match id and player id are required (flags or env)")
	}

	clk := clockwork.NewRealClock()

	trCfg := transport.DefaultConfig(cfg.ServerWSURL, cfg.MatchID, cfg.PlayerID)
	trCfg.BaseDelay = cfg.ReconnectBaseDelay()
	trCfg.MaxAttempts = cfg.ReconnectMaxAttempts
	tr := transport.New(trCfg, clk, logger.Named("transport"))

	sessCfg := session.DefaultConfig()
	sessCfg.TickInterval = cfg.TickInterval()
	sessCfg.FallbackDeadline = cfg.FallbackDeadline()
	sessCfg.Engine.RoundDuration = cfg.RoundDuration()
	sessCfg.Engine.InactivityLimit = cfg.InactivityLimit()
	sessCfg.Engine.RoundEndSummary = cfg.RoundEndSummary()

	fetcher := bootstrap.New(cfg.ServerHTTPURL)
	sess := session.New(sessCfg, cfg.MatchID, cfg.PlayerID, tr, fetcher, clk, logger.Named("session"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := tr.Run(ctx); err != nil {
			logger.Warn("transport stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("session stopped", zap.Error(err))
		}
	}()

	go printEvents(sess)

	runREPL(sess, cancel)
}

func printEvents(sess *session.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case session.EventPhaseChanged:
			fmt.Printf(">> phase: %s (round %d, you %d - %d them)\n",
				ev.Message, ev.State.Round.Number, ev.State.Local().Score, ev.State.Opponent().Score)
			if ev.State.Round.Phase == engine.PhaseSelecting {
				if ev.State.ChooserID == ev.State.LocalID {
					fmt.Println(">> you pick the exercise: pick <1-4>")
				} else {
					fmt.Println(">> waiting for your opponent to pick")
				}
			}
		case session.EventConnStatus:
			fmt.Printf(">> connection: %s\n", ev.Message)
		case session.EventServerError:
			fmt.Printf(">> server error: %s\n", ev.Message)
		case session.EventGameOver:
			verdict := "tie"
			switch ev.State.MatchWinnerID {
			case ev.State.LocalID:
				verdict = "you win"
			case ev.State.Opponent().ID:
				verdict = "you lose"
			}
			fmt.Printf(">> match over: %s (rounds %d - %d)\n",
				verdict, ev.State.Match.RoundsWonA, ev.State.Match.RoundsWonB)
		}
	}
}

func runREPL(sess *session.Session, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "ready":
			sess.SetReady(true)
		case "unready":
			sess.SetReady(false)
		case "pick":
			if len(fields) < 2 {
				fmt.Println("usage: pick <exercise id>")
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("usage: pick <exercise id>")
				continue
			}
			sess.ChooseExercise(id)
		case "rep":
			if len(fields) < 2 {
				fmt.Println("usage: rep <count>")
				continue
			}
			count, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("usage: rep <count>")
				continue
			}
			sess.Gate().OnRepDetected(count)
		case "state":
			printState(sess.Snapshot())
		case "quit", "exit":
			cancel()
			return
		default:
			fmt.Println("commands: ready | unready | pick <id> | rep <count> | state | quit")
		}
	}
	cancel()
}

func printState(s engine.State) {
	exName := s.Round.ExerciseName
	if exName == "" {
		if ex, ok := exercise.ByID(s.Round.ExerciseID); ok {
			exName = ex.Name
		} else {
			exName = "-"
		}
	}
	fmt.Printf("match %d round %d/%s phase=%s exercise=%s score %d-%d rounds %d-%d chooser=%d\n",
		s.Match.ID, s.Round.Number, s.Match.Status, s.Round.Phase, exName,
		s.Match.PlayerA.Score, s.Match.PlayerB.Score,
		s.Match.RoundsWonA, s.Match.RoundsWonB, s.ChooserID)

	now := time.Now()
	switch s.Round.Phase {
	case engine.PhaseReady:
		if rem := s.ReadyRemaining(now); rem > 0 {
			fmt.Printf("ready window: %.0fs left\n", rem.Seconds())
		}
	case engine.PhaseCountdown:
		fmt.Printf("countdown: %.1fs\n", s.CountdownRemaining(now).Seconds())
	case engine.PhaseLive:
		fmt.Printf("time left: %.0fs\n", s.RoundRemaining(now).Seconds())
	}
}
