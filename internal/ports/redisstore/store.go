// Package redisstore keeps game records, player stats and the wins leaderboard in
// Redis for the standalone server.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"codeduel/internal/app"
	"codeduel/internal/bot"
	"codeduel/internal/config"
	"codeduel/internal/ports"
)

const (
	recentLimit = 1000
	maxRetries  = 5
)

// Store implements ResultStore and StatsPort on one Redis database.
type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "codeduel"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Open connects with cfg and checks the connection.
func Open(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return New(rdb, cfg.Prefix), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) gameKey(id string) string      { return s.prefix + ":game:" + id }
func (s *Store) recentKey() string             { return s.prefix + ":games" }
func (s *Store) statsKey(userID string) string { return s.prefix + ":stats:" + userID }
func (s *Store) leaderboardKey() string        { return s.prefix + ":leaderboard" }
func (s *Store) namesKey() string              { return s.prefix + ":names" }

// InitStatsOnce writes zeroed stats unless the user already has some.
func (s *Store) InitStatsOnce(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID is required")
	}
	value, err := json.Marshal(ports.PlayerStats{UserID: userID})
	if err != nil {
		return false, fmt.Errorf("failed to marshal stats: %w", err)
	}
	created, err := s.rdb.SetNX(ctx, s.statsKey(userID), value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to init stats: %w", err)
	}
	return created, nil
}

func (s *Store) GetStats(ctx context.Context, userID string) (ports.PlayerStats, error) {
	return readStats(ctx, s.rdb, s.statsKey(userID), userID)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readStats(ctx context.Context, c getter, key, userID string) (ports.PlayerStats, error) {
	raw, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ports.PlayerStats{UserID: userID}, nil
	}
	if err != nil {
		return ports.PlayerStats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	var stats ports.PlayerStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return ports.PlayerStats{}, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return stats, nil
}

// RecordGame stores rec, folds it into the stats of every human player and ranks a
// sole human winner. Stats keys are watched so concurrent results retry instead of
// overwriting each other.
func (s *Store) RecordGame(ctx context.Context, rec app.GameRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}
	humans := humanIDs(rec)
	keys := make([]string, len(humans))
	for i, id := range humans {
		keys[i] = s.statsKey(id)
	}

	txf := func(tx *redis.Tx) error {
		updated := make(map[string][]byte, len(humans))
		for i, id := range humans {
			stats, err := readStats(ctx, tx, keys[i], id)
			if err != nil {
				return err
			}
			b, err := json.Marshal(ports.ApplyRecord(stats, rec, id))
			if err != nil {
				return fmt.Errorf("failed to marshal stats: %w", err)
			}
			updated[keys[i]] = b
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.gameKey(rec.ID), value, 0)
			pipe.LPush(ctx, s.recentKey(), rec.ID)
			pipe.LTrim(ctx, s.recentKey(), 0, recentLimit-1)
			for key, b := range updated {
				pipe.Set(ctx, key, b, 0)
			}
			if winner := rankedWinner(rec); winner != "" {
				pipe.ZIncrBy(ctx, s.leaderboardKey(), 1, winner)
				pipe.HSet(ctx, s.namesKey(), winner, rec.PlayerNames[winner])
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to store game record %s: %w", rec.ID, err)
		}
		return nil
	}
	return fmt.Errorf("failed to store game record %s: %w", rec.ID, redis.TxFailedErr)
}

// TopPlayers reads the wins leaderboard, best first.
func (s *Store) TopPlayers(ctx context.Context, limit int) ([]ports.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.rdb.ZRevRangeWithScores(ctx, s.leaderboardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}
	if len(rows) == 0 {
		return []ports.LeaderboardEntry{}, nil
	}

	ids := make([]string, len(rows))
	for i, z := range rows {
		ids[i], _ = z.Member.(string)
	}
	names, err := s.rdb.HMGet(ctx, s.namesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard names: %w", err)
	}

	entries := make([]ports.LeaderboardEntry, len(rows))
	for i, z := range rows {
		entries[i] = ports.LeaderboardEntry{Rank: int64(i + 1), UserID: ids[i], Wins: int64(z.Score)}
		if i < len(names) {
			entries[i].Name, _ = names[i].(string)
		}
	}
	return entries, nil
}

func humanIDs(rec app.GameRecord) []string {
	out := make([]string, 0, len(rec.PlayerIDs))
	for _, id := range rec.PlayerIDs {
		if !bot.IsBot(id) {
			out = append(out, id)
		}
	}
	return out
}

// rankedWinner is the sole human winner of rec, or "" when nobody is ranked.
func rankedWinner(rec app.GameRecord) string {
	if len(rec.Winners) != 1 || bot.IsBot(rec.Winners[0]) {
		return ""
	}
	return rec.Winners[0]
}

var (
	_ ports.ResultStore = (*Store)(nil)
	_ ports.StatsPort   = (*Store)(nil)
)
