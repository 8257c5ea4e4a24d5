package mockserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contender-app/battle-client/pkg/types"
)

// WSHandler upgrades /ws/{gameID}?player_id=N and bridges the socket to
// the game actor. Rejections close with policy violation (1008) exactly
// like the production server, which the client treats as non-retryable.
func WSHandler(h *Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := strconv.Atoi(chi.URLParam(r, "gameID"))
		if err != nil {
			http.Error(w, "bad game id", http.StatusBadRequest)
			return
		}
		playerID, err := strconv.Atoi(r.URL.Query().Get("player_id"))
		if err != nil || playerID == 0 {
			// Accept then close with 1008 so the client sees the same
			// close code the production server uses for a bad player id.
			conn, aerr := websocket.Accept(w, r, nil)
			if aerr != nil {
				return
			}
			conn.Close(websocket.StatusPolicyViolation, "player_id must be a non-zero integer")
			return
		}

		reply := make(chan *Game, 1)
		h.Inbox() <- GetGame{ID: gameID, Reply: reply}
		game := <-reply

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if game == nil {
			conn.Close(websocket.StatusPolicyViolation, "game not found")
			return
		}
		if !game.HasPlayer(playerID) {
			conn.Close(websocket.StatusPolicyViolation, "player not part of this game")
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		logger.Info("player connected",
			zap.String("conn_id", connID),
			zap.Int("game_id", gameID),
			zap.Int("player_id", playerID))

		out := make(chan []byte, 32)
		game.Inbox() <- Join{PlayerID: playerID, Outbox: out}
		defer func() { game.Inbox() <- Leave{PlayerID: playerID} }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				ctx, cancel := context.WithTimeout(writeCtx, 5*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, frame)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					logger.Debug("read ended", zap.String("conn_id", connID), zap.Error(err))
				}
				return
			}

			msg, err := types.Decode(data)
			if err != nil {
				frame, _ := types.Marshal(types.ErrorMessage{Message: "Invalid JSON"})
				_ = conn.Write(r.Context(), websocket.MessageText, frame)
				continue
			}
			game.Inbox() <- FromPlayer{PlayerID: playerID, Msg: msg}
		}
	}
}
