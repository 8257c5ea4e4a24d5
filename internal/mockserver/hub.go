// Package mockserver is a development stand-in for the production match
// server. It speaks the full battle protocol (state snapshots, exercise
// selection, ready-up, countdown, round scoring) so the client can be run
// and tested end to end without the real backend. It is not authoritative
// infrastructure; it exists for local development and integration tests.
package mockserver

import (
	"context"

	"go.uber.org/zap"
)

// HubMsg is the sealed set of hub commands.
type HubMsg interface{ isHubMsg() }

// CreateGame registers a new game between two players.
type CreateGame struct {
	PlayerAID  int
	PlayerBID  int
	ExerciseID int
	Reply      chan *Game
}

// GetGame looks a game up by id; Reply receives nil when absent.
type GetGame struct {
	ID    int
	Reply chan *Game
}

// RemoveGame drops a finished game.
type RemoveGame struct{ ID int }

// ShutdownHub stops every game and then the hub itself.
type ShutdownHub struct{}

func (CreateGame) isHubMsg()  {}
func (GetGame) isHubMsg()     {}
func (RemoveGame) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the live games. All access goes through its inbox so the map
// never needs a lock.
type Hub struct {
	inbox  chan HubMsg
	games  map[int]*Game
	nextID int
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub starts the hub loop.
func NewHub(parent context.Context, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		games:  make(map[int]*Game),
		nextID: 1,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

// Inbox accepts hub commands.
func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateGame:
				id := h.nextID
				h.nextID++
				g := NewGame(h.ctx, id, msg.PlayerAID, msg.PlayerBID, msg.ExerciseID, h.logger.Named("game"))
				h.games[id] = g
				h.logger.Info("game created",
					zap.Int("game_id", id),
					zap.Int("player_a", msg.PlayerAID),
					zap.Int("player_b", msg.PlayerBID))
				msg.Reply <- g

			case GetGame:
				msg.Reply <- h.games[msg.ID] // may be nil

			case RemoveGame:
				delete(h.games, msg.ID)

			case ShutdownHub:
				for _, g := range h.games {
					g.Inbox() <- Shutdown{}
				}
				clear(h.games)
				h.cancel()
			}
		}
	}
}
