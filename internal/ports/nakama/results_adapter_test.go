package nakama

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"codeduel/internal/app"
	"codeduel/internal/ports"
)

// storageNakama keeps storage objects in memory and honours the "*" version.
type storageNakama struct {
	runtime.NakamaModule
	objects map[string]*api.StorageObject
	ranked  map[string]int64
}

func newStorageNakama() *storageNakama {
	return &storageNakama{objects: make(map[string]*api.StorageObject), ranked: make(map[string]int64)}
}

func storageID(collection, key, userID string) string {
	return collection + "/" + key + "/" + userID
}

func (s *storageNakama) MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	for _, w := range storageWrites {
		if _, exists := s.objects[storageID(w.Collection, w.Key, w.UserID)]; exists && w.Version == "*" {
			return nil, nil, runtime.ErrStorageRejectedVersion
		}
	}
	acks := make([]*api.StorageObjectAck, 0, len(storageWrites))
	for _, w := range storageWrites {
		s.objects[storageID(w.Collection, w.Key, w.UserID)] = &api.StorageObject{
			Collection: w.Collection,
			Key:        w.Key,
			UserId:     w.UserID,
			Value:      w.Value,
			Version:    "v1",
		}
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, UserId: w.UserID})
	}
	return acks, nil, nil
}

func (s *storageNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	var out []*api.StorageObject
	for _, r := range reads {
		if obj, ok := s.objects[storageID(r.Collection, r.Key, r.UserID)]; ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (s *storageNakama) LeaderboardRecordWrite(ctx context.Context, id, ownerID, username string, score, subscore int64, metadata map[string]interface{}, overrideOperator *int) (*api.LeaderboardRecord, error) {
	s.ranked[ownerID] += score
	return &api.LeaderboardRecord{LeaderboardId: id, OwnerId: ownerID, Score: s.ranked[ownerID]}, nil
}

func (s *storageNakama) LeaderboardRecordsList(ctx context.Context, id string, ownerIDs []string, limit int, cursor string, expiry int64) ([]*api.LeaderboardRecord, []*api.LeaderboardRecord, string, string, error) {
	records := []*api.LeaderboardRecord{
		{LeaderboardId: id, OwnerId: "u2", Username: wrapperspb.String("Bea"), Score: 7, Rank: 1},
		{LeaderboardId: id, OwnerId: "u1", Username: wrapperspb.String("Ada"), Score: 3, Rank: 2},
	}
	if limit < len(records) {
		records = records[:limit]
	}
	return records, nil, "", "", nil
}

func TestTopPlayers(t *testing.T) {
	adapter := NewNakamaResultsAdapter(newStorageNakama())

	entries, err := adapter.TopPlayers(context.Background(), 1)
	if err != nil {
		t.Fatalf("TopPlayers: %v", err)
	}
	want := ports.LeaderboardEntry{Rank: 1, UserID: "u2", Name: "Bea", Wins: 7}
	if len(entries) != 1 || entries[0] != want {
		t.Fatalf("entries = %+v, want [%+v]", entries, want)
	}
}

func TestInitStatsOnce(t *testing.T) {
	nk := newStorageNakama()
	adapter := NewNakamaResultsAdapter(nk)

	created, err := adapter.InitStatsOnce(context.Background(), "u1")
	if err != nil || !created {
		t.Fatalf("first InitStatsOnce = %t, %v", created, err)
	}
	created, err = adapter.InitStatsOnce(context.Background(), "u1")
	if err != nil || created {
		t.Fatalf("second InitStatsOnce = %t, %v", created, err)
	}
	if _, err := adapter.InitStatsOnce(context.Background(), ""); err == nil {
		t.Fatalf("Expected an error for an empty user id")
	}
}

func TestRecordGameUpdatesStatsAndLeaderboard(t *testing.T) {
	nk := newStorageNakama()
	adapter := NewNakamaResultsAdapter(nk)
	ctx := context.Background()

	rec := app.GameRecord{
		ID:          "rec-1",
		RoomCode:    "ABC234",
		PlayerIDs:   []string{"u1", "bot-1"},
		PlayerNames: map[string]string{"u1": "Ada", "bot-1": "Bot"},
		Scores:      map[string]int{"u1": 52, "bot-1": 30},
		Winners:     []string{"u1"},
	}
	if err := adapter.RecordGame(ctx, rec); err != nil {
		t.Fatalf("RecordGame: %v", err)
	}

	stats, err := adapter.GetStats(ctx, "u1")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	want := ports.PlayerStats{UserID: "u1", GamesPlayed: 1, Wins: 1, TotalScore: 52, BestScore: 52}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
	if _, ok := nk.objects[storageID(statsCollection, statsKey, "bot-1")]; ok {
		t.Fatalf("Bots must not get stats")
	}
	if nk.ranked["u1"] != 1 {
		t.Fatalf("Expected one leaderboard win for u1, got %d", nk.ranked["u1"])
	}

	stored := nk.objects[storageID(recordCollection, "rec-1", "")]
	if stored == nil {
		t.Fatalf("Game record not stored")
	}
	var back app.GameRecord
	if err := json.Unmarshal([]byte(stored.Value), &back); err != nil || back.RoomCode != "ABC234" {
		t.Fatalf("Stored record = %+v (%v)", back, err)
	}

	draw := rec
	draw.ID = "rec-2"
	draw.Winners = []string{"u1", "bot-1"}
	if err := adapter.RecordGame(ctx, draw); err != nil {
		t.Fatalf("RecordGame draw: %v", err)
	}
	stats, _ = adapter.GetStats(ctx, "u1")
	if stats.Draws != 1 || stats.GamesPlayed != 2 {
		t.Fatalf("stats after draw = %+v", stats)
	}
	if nk.ranked["u1"] != 1 {
		t.Fatalf("A shared win must not be ranked")
	}
}
