// Package bootstrap fetches authoritative match state over plain HTTP when
// the WebSocket has not delivered an initial GAME_STATE within its
// deadline. The result is mapped into the same shape as a GAME_STATE frame
// so the state machine cannot tell the two apart; the session layer
// discards it if a real frame arrived first.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/contender-app/battle-client/pkg/types"
)

// matchResponse is the REST shape of GET /api/matches/{id}.
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

// Fetcher issues one-shot match lookups against the REST API.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// New builds a fetcher for the given API base URL (e.g. http://host:8000).
func New(baseURL string) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchMatch retrieves the match and returns it as a synthetic GAME_STATE.
func (f *Fetcher) FetchMatch(ctx context.Context, matchID int) (types.GameState, error) {
	url := fmt.Sprintf("%s/api/matches/%d", f.baseURL, matchID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.GameState{}, fmt.Errorf("build match request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return types.GameState{}, fmt.Errorf("fetch match %d: %w", matchID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return types.GameState{}, fmt.Errorf("fetch match %d: status %d: %s", matchID, resp.StatusCode, body)
	}

	var m matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return types.GameState{}, fmt.Errorf("decode match %d: %w", matchID, err)
	}

	return types.GameState{
		GameID:       m.ID,
		PlayerA:      types.PlayerState{ID: m.PlayerAID, Score: m.PlayerAScore},
		PlayerB:      types.PlayerState{ID: m.PlayerBID, Score: m.PlayerBScore},
		CurrentRound: m.CurrentRound,
		Status:       m.Status,
		ExerciseID:   m.CurrentExerciseID,
	}, nil
}
