package ports

import (
	"context"

	"codeduel/internal/app"
)

// LeaderboardEntry is one ranked row of the wins leaderboard.
type LeaderboardEntry struct {
	Rank   int64  `json:"rank"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Wins   int64  `json:"wins"`
}

// ResultStore persists finished games.
type ResultStore interface {
	// RecordGame stores the record and folds it into player stats and the leaderboard.
	// AI players are not ranked.
	RecordGame(ctx context.Context, rec app.GameRecord) error

	// TopPlayers returns up to limit leaderboard rows, best first.
	TopPlayers(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// ApplyRecord folds rec into stats for userID.
func ApplyRecord(stats PlayerStats, rec app.GameRecord, userID string) PlayerStats {
	stats.UserID = userID
	stats.GamesPlayed++
	score := rec.Scores[userID]
	stats.TotalScore += score
	if score > stats.BestScore {
		stats.BestScore = score
	}
	switch {
	case len(rec.Winners) > 1 && rec.Won(userID):
		stats.Draws++
	case rec.Won(userID):
		stats.Wins++
	default:
		stats.Losses++
	}
	return stats
}
