package app

import (
	"time"

	"github.com/google/uuid"

	"codeduel/internal/domain"
)

// GameRecord is the persisted summary of a finished session.
type GameRecord struct {
	ID           string            `json:"id"`
	RoomCode     string            `json:"room_code"`
	PlayerIDs    []string          `json:"player_ids"`
	PlayerNames  map[string]string `json:"player_names"`
	Scores       map[string]int    `json:"scores"`
	Winners      []string          `json:"winners"`
	Reason       domain.EndReason  `json:"reason"`
	PlayedCards  []string          `json:"played_cards"`
	FinalCode    string            `json:"final_code"`
	VsAI         bool              `json:"vs_ai"`
	AIDifficulty domain.Difficulty `json:"ai_difficulty,omitempty"`
	Turns        int               `json:"turns"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      time.Time         `json:"ended_at"`
}

// NewGameRecord snapshots a finished game.
func NewGameRecord(game *domain.Game) GameRecord {
	rec := GameRecord{
		ID:          uuid.NewString(),
		RoomCode:    game.Code,
		PlayerNames: make(map[string]string, len(game.Players)),
		Scores:      make(map[string]int, len(game.Players)),
		Winners:     append([]string(nil), game.Winners...),
		Reason:      game.Reason,
		PlayedCards: domain.CardIDs(game.Sequence),
		FinalCode:   domain.BuildCode(game.Sequence),
		Turns:       game.TurnNumber,
		StartedAt:   game.StartedAt,
		EndedAt:     game.EndedAt,
	}
	for _, pl := range game.Players {
		if pl == nil {
			continue
		}
		rec.PlayerIDs = append(rec.PlayerIDs, pl.ID)
		rec.PlayerNames[pl.ID] = pl.Name
		rec.Scores[pl.ID] = pl.Score
		if pl.IsAI {
			rec.VsAI = true
			rec.AIDifficulty = pl.Difficulty
		}
	}
	return rec
}

// Duration is how long the session ran.
func (r GameRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Won reports whether userID is among the winners.
func (r GameRecord) Won(userID string) bool {
	for _, w := range r.Winners {
		if w == userID {
			return true
		}
	}
	return false
}
