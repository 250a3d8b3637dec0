package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"codeduel/internal/app"
	"codeduel/internal/bot"
	"codeduel/internal/ports"
)

const (
	statsCollection  = "codeduel"
	statsKey         = "stats_v1"
	recordCollection = "game_records"
)

// NakamaResultsAdapter persists game records and player stats in Nakama storage and
// ranks winners on the wins leaderboard.
type NakamaResultsAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaResultsAdapter creates a new results adapter.
func NewNakamaResultsAdapter(nk runtime.NakamaModule) *NakamaResultsAdapter {
	return &NakamaResultsAdapter{nk: nk}
}

// InitStatsOnce writes zeroed stats; an existing object rejects the "*" version.
func (a *NakamaResultsAdapter) InitStatsOnce(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID is required")
	}
	value, err := json.Marshal(ports.PlayerStats{UserID: userID})
	if err != nil {
		return false, fmt.Errorf("failed to marshal stats: %w", err)
	}
	writes := []*runtime.StorageWrite{statsWrite(userID, string(value), "*")}
	if _, _, err := a.nk.MultiUpdate(ctx, nil, writes, nil, nil, false); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return false, nil
		}
		return false, fmt.Errorf("failed to init stats: %w", err)
	}
	return true, nil
}

// GetStats reads the stats object for userID.
func (a *NakamaResultsAdapter) GetStats(ctx context.Context, userID string) (ports.PlayerStats, error) {
	stats, _, err := a.readStats(ctx, userID)
	return stats, err
}

func (a *NakamaResultsAdapter) readStats(ctx context.Context, userID string) (ports.PlayerStats, string, error) {
	objects, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: statsCollection,
		Key:        statsKey,
		UserID:     userID,
	}})
	if err != nil {
		return ports.PlayerStats{}, "", fmt.Errorf("failed to read stats: %w", err)
	}
	if len(objects) == 0 {
		return ports.PlayerStats{UserID: userID}, "", nil
	}
	var stats ports.PlayerStats
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &stats); err != nil {
		return ports.PlayerStats{}, "", fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return stats, objects[0].GetVersion(), nil
}

// RecordGame writes the record and the updated stats of every human player in one
// storage transaction, then ranks a sole winner.
func (a *NakamaResultsAdapter) RecordGame(ctx context.Context, rec app.GameRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}
	writes := []*runtime.StorageWrite{{
		Collection:      recordCollection,
		Key:             rec.ID,
		Value:           string(value),
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}}

	for _, userID := range rec.PlayerIDs {
		if bot.IsBot(userID) {
			continue
		}
		stats, version, err := a.readStats(ctx, userID)
		if err != nil {
			return err
		}
		updated, err := json.Marshal(ports.ApplyRecord(stats, rec, userID))
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		writes = append(writes, statsWrite(userID, string(updated), version))
	}

	if _, _, err := a.nk.MultiUpdate(ctx, nil, writes, nil, nil, false); err != nil {
		return fmt.Errorf("failed to store game record: %w", err)
	}

	if len(rec.Winners) != 1 || bot.IsBot(rec.Winners[0]) {
		return nil
	}
	winner := rec.Winners[0]
	_, err = a.nk.LeaderboardRecordWrite(ctx, LeaderboardWins, winner, rec.PlayerNames[winner], 1, int64(rec.Scores[winner]), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to rank winner: %w", err)
	}
	return nil
}

// TopPlayers lists the wins leaderboard.
func (a *NakamaResultsAdapter) TopPlayers(ctx context.Context, limit int) ([]ports.LeaderboardEntry, error) {
	records, _, _, _, err := a.nk.LeaderboardRecordsList(ctx, LeaderboardWins, nil, limit, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}
	entries := make([]ports.LeaderboardEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, ports.LeaderboardEntry{
			Rank:   r.GetRank(),
			UserID: r.GetOwnerId(),
			Name:   r.GetUsername().GetValue(),
			Wins:   r.GetScore(),
		})
	}
	return entries, nil
}

func statsWrite(userID, value, version string) *runtime.StorageWrite {
	return &runtime.StorageWrite{
		Collection:      statsCollection,
		Key:             statsKey,
		UserID:          userID,
		Value:           value,
		Version:         version,
		PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}
}

var (
	_ ports.ResultStore = (*NakamaResultsAdapter)(nil)
	_ ports.StatsPort   = (*NakamaResultsAdapter)(nil)
)
