package ports

import (
	"testing"

	"codeduel/internal/app"
)

func TestApplyRecord(t *testing.T) {
	tests := []struct {
		name    string
		winners []string
		want    PlayerStats
	}{
		{name: "win", winners: []string{"u1"}, want: PlayerStats{UserID: "u1", GamesPlayed: 2, Wins: 2, TotalScore: 62, BestScore: 52}},
		{name: "loss", winners: []string{"u2"}, want: PlayerStats{UserID: "u1", GamesPlayed: 2, Wins: 1, Losses: 1, TotalScore: 62, BestScore: 52}},
		{name: "shared win", winners: []string{"u1", "u2"}, want: PlayerStats{UserID: "u1", GamesPlayed: 2, Wins: 1, Draws: 1, TotalScore: 62, BestScore: 52}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := PlayerStats{UserID: "u1", GamesPlayed: 1, Wins: 1, TotalScore: 10, BestScore: 10}
			rec := app.GameRecord{Scores: map[string]int{"u1": 52, "u2": 30}, Winners: tt.winners}
			if got := ApplyRecord(prev, rec, "u1"); got != tt.want {
				t.Fatalf("ApplyRecord() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
