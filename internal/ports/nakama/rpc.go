package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"

	"codeduel/internal/app"
	"codeduel/internal/domain"
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnauthenticated    = 16
)

const defaultLeaderboardLimit = 20

type rpcFunc = func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// RegisterRPCs registers Nakama RPC endpoints.
func (m *Module) RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]rpcFunc{
		RpcQuickMatch:      m.rpcQuickMatch,
		RpcCreateRoom:      m.rpcCreateRoom,
		RpcJoinRoom:        m.rpcJoinRoom,
		RpcStartAIGame:     m.rpcStartAIGame,
		RpcListRooms:       m.rpcListRooms,
		RpcLegalInsertions: rpcLegalInsertions,
		RpcCards:           rpcCards,
		RpcLeaderboard:     m.rpcLeaderboard,
		RpcStats:           m.rpcStats,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	_, p, err := m.decodeRoomRequest(ctx, payload)
	if err != nil {
		return "", err
	}
	res, err := m.registry.QuickMatch(p)
	return m.respondJoin(ctx, logger, nk, p, res, err)
}

func (m *Module) rpcCreateRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	_, p, err := m.decodeRoomRequest(ctx, payload)
	if err != nil {
		return "", err
	}
	res, err := m.registry.CreateRoom(p)
	return m.respondJoin(ctx, logger, nk, p, res, err)
}

// rpcJoinRoom joins the named room, creating it if it does not exist yet.
func (m *Module) rpcJoinRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	req, p, err := m.decodeRoomRequest(ctx, payload)
	if err != nil {
		return "", err
	}
	if req.Room == "" {
		return "", runtime.NewError("room is required", codeInvalidArgument)
	}
	res, err := m.registry.JoinOrCreate(req.Room, p)
	return m.respondJoin(ctx, logger, nk, p, res, err)
}

func (m *Module) rpcStartAIGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	req, p, err := m.decodeRoomRequest(ctx, payload)
	if err != nil {
		return "", err
	}
	level := m.cfg.DefaultDifficulty()
	if req.Difficulty != "" {
		level = domain.ParseDifficulty(req.Difficulty)
	}
	res, err := m.registry.StartAIGame(p, level, req.RoomCode)
	return m.respondJoin(ctx, logger, nk, p, res, err)
}

func (m *Module) rpcListRooms(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return marshalResponse(map[string]any{"rooms": m.registry.ListOpenRooms()})
}

func rpcLegalInsertions(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var q app.InsertionQuery
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return "", runtime.NewError("invalid payload", codeInvalidArgument)
	}
	res, err := app.QueryInsertions(q)
	if err != nil {
		return "", rpcError(err)
	}
	return marshalResponse(res)
}

func rpcCards(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return marshalResponse(map[string]any{"cards": app.CatalogInfo()})
}

func (m *Module) rpcLeaderboard(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	req := struct {
		Limit int `json:"limit"`
	}{Limit: defaultLeaderboardLimit}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid payload", codeInvalidArgument)
		}
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = defaultLeaderboardLimit
	}
	entries, err := m.results.TopPlayers(ctx, req.Limit)
	if err != nil {
		logger.Error("rpcLeaderboard: %v", err)
		return "", runtime.NewError("leaderboard unavailable", codeInternal)
	}
	return marshalResponse(map[string]any{"entries": entries})
}

func (m *Module) rpcStats(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("authentication required", codeUnauthenticated)
	}
	stats, err := m.stats.GetStats(ctx, userID)
	if err != nil {
		logger.Error("rpcStats [User:%s]: %v", userID, err)
		return "", runtime.NewError("stats unavailable", codeInternal)
	}
	return marshalResponse(stats)
}

// decodeRoomRequest reads the optional JSON payload and resolves the caller.
func (m *Module) decodeRoomRequest(ctx context.Context, payload string) (app.Intent, app.PlayerInfo, error) {
	var req app.Intent
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return req, app.PlayerInfo{}, runtime.NewError("invalid payload", codeInvalidArgument)
		}
	}
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return req, app.PlayerInfo{}, runtime.NewError("authentication required", codeUnauthenticated)
	}
	name := req.PlayerName
	if name == "" {
		name, _ = ctx.Value(runtime.RUNTIME_CTX_USERNAME).(string)
	}
	return req, app.PlayerInfo{UserID: userID, Name: name}, nil
}

// respondJoin binds the room to a Nakama match, pushes the join events into it and
// tells the caller which match to join.
func (m *Module) respondJoin(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, p app.PlayerInfo, res app.JoinResult, err error) (string, error) {
	if err != nil {
		logger.Warn("join [User:%s]: %v", p.UserID, err)
		return "", rpcError(err)
	}
	room := res.Room
	matchID, err := room.BindTransport(func() (string, error) {
		return nk.MatchCreate(ctx, MatchNameCodeDuel, map[string]interface{}{"code": room.Code})
	})
	if err != nil {
		logger.Error("join [User:%s]: Failed to create match for room %s: %v", p.UserID, room.Code, err)
		return "", runtime.NewError("could not create match", codeInternal)
	}

	if len(res.Events) > 0 {
		data, err := encodeSignal(res.Events)
		if err == nil {
			_, err = nk.MatchSignal(ctx, matchID, data)
		}
		if err != nil {
			m.logger.Warn("join events not delivered", zap.String("room", room.Code), zap.Error(err))
		}
	}

	logger.Info("join [User:%s]: room %s match %s (created=%t rejoined=%t)", p.UserID, room.Code, matchID, res.Created, res.Rejoined)
	return marshalResponse(app.SessionPayload{
		Room:     room.Code,
		UserID:   p.UserID,
		Created:  res.Created,
		Rejoined: res.Rejoined,
		MatchID:  matchID,
	})
}

func rpcError(err error) error {
	msg := app.ErrorCode(err)
	switch {
	case errors.Is(err, app.ErrRoomNotFound):
		return runtime.NewError(msg, codeNotFound)
	case errors.Is(err, app.ErrInvalidRoomCode), errors.Is(err, app.ErrInvalidMove):
		return runtime.NewError(msg, codeInvalidArgument)
	case errors.Is(err, app.ErrRoomFull), errors.Is(err, app.ErrAlreadySeated), errors.Is(err, app.ErrGameAlreadyOver):
		return runtime.NewError(msg, codeFailedPrecondition)
	}
	return runtime.NewError(msg, codeInternal)
}

func marshalResponse(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(b), nil
}
