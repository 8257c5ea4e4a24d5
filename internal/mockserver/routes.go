package mockserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SetupRoutes builds the HTTP surface: match CRUD for the REST fallback
// plus the WebSocket endpoint.
func SetupRoutes(h *Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/api/matches", CreateMatch(h))
	r.Get("/api/matches/{matchID}", GetMatch(h))
	r.Get("/ws/{gameID}", WSHandler(h, logger))
	r.Get("/healthz", Healthz)
	return r
}

type createMatchRequest struct {
	PlayerAID  int  `json:"player_a_id"`
	PlayerBID  int  `json:"player_b_id"`
	ExerciseID *int `json:"exercise_id"`
}

// matchResponse mirrors the production REST shape, snake_case included,
// so the client's fallback fetcher works unmodified against the mock.
type matchResponse struct {
	ID                int    `json:"id"`
	PlayerAID         int    `json:"player_a_id"`
	PlayerBID         int    `json:"player_b_id"`
	PlayerAScore      int    `json:"player_a_score"`
	PlayerBScore      int    `json:"player_b_score"`
	CurrentRound      int    `json:"current_round"`
	Status            string `json:"status"`
	CurrentExerciseID *int   `json:"current_exercise_id"`
	CreatedAt         string `json:"created_at"`
}

func viewToResponse(v View) matchResponse {
	var exPtr *int
	if v.ExerciseID != 0 {
		ex := v.ExerciseID
		exPtr = &ex
	}
	return matchResponse{
		ID:                v.ID,
		PlayerAID:         v.PlayerAID,
		PlayerBID:         v.PlayerBID,
		PlayerAScore:      v.ScoreA,
		PlayerBScore:      v.ScoreB,
		CurrentRound:      v.CurrentRound,
		Status:            v.Status,
		CurrentExerciseID: exPtr,
		CreatedAt:         v.CreatedAt.Format(time.RFC3339),
	}
}

// CreateMatch registers a game and returns its REST representation.
func CreateMatch(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if req.PlayerAID == 0 || req.PlayerBID == 0 {
			http.Error(w, "both player ids are required", http.StatusBadRequest)
			return
		}

		exID := 0
		if req.ExerciseID != nil {
			exID = *req.ExerciseID
		}
		reply := make(chan *Game, 1)
		h.Inbox() <- CreateGame{PlayerAID: req.PlayerAID, PlayerBID: req.PlayerBID, ExerciseID: exID, Reply: reply}
		game := <-reply

		viewReply := make(chan View, 1)
		game.Inbox() <- GetView{Reply: viewReply}
		view := <-viewReply

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(viewToResponse(view))
	}
}

// GetMatch serves the fallback bootstrap lookup.
func GetMatch(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, err := strconv.Atoi(chi.URLParam(r, "matchID"))
		if err != nil {
			http.Error(w, "bad match id", http.StatusBadRequest)
			return
		}

		reply := make(chan *Game, 1)
		h.Inbox() <- GetGame{ID: matchID, Reply: reply}
		game := <-reply
		if game == nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}

		viewReply := make(chan View, 1)
		game.Inbox() <- GetView{Reply: viewReply}
		view := <-viewReply

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(viewToResponse(view))
	}
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
