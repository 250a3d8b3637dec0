package ports

import "context"

// PlayerStats is the career summary kept per account.
type PlayerStats struct {
	UserID      string `json:"user_id"`
	GamesPlayed int    `json:"games_played"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Draws       int    `json:"draws"`
	TotalScore  int    `json:"total_score"`
	BestScore   int    `json:"best_score"`
}

// StatsPort stores per-player statistics.
type StatsPort interface {
	// InitStatsOnce writes zeroed stats for userID.
	// Returns created=false when stats already exist.
	InitStatsOnce(ctx context.Context, userID string) (bool, error)

	// GetStats reads the stats for userID; a missing record yields zero stats.
	GetStats(ctx context.Context, userID string) (PlayerStats, error)
}
