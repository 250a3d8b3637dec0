package nakama

import "codeduel/internal/app"

// RPC ids registered with Nakama.
const (
	RpcQuickMatch      = "quick_match"
	RpcCreateRoom      = "create_room"
	RpcJoinRoom        = "join_room"
	RpcStartAIGame     = "start_ai_game"
	RpcListRooms       = "list_rooms"
	RpcLegalInsertions = "legal_insertions"
	RpcCards           = "cards"
	RpcLeaderboard     = "leaderboard"
	RpcStats           = "stats"

	// MatchNameCodeDuel is the authoritative match handler name registered with Nakama.
	MatchNameCodeDuel = "codeduel_match"

	// LeaderboardWins ranks players by games won.
	LeaderboardWins = "codeduel_wins"

	// tickRate is how many MatchLoop calls Nakama makes per second.
	tickRate = 5
)

// Op codes for client messages and server frames.
const (
	// Client -> Server
	OpPlayCard     int64 = 1
	OpPassTurn     int64 = 2
	OpUsePower     int64 = 3
	OpRequestState int64 = 4
	OpLeaveRoom    int64 = 5

	// Server -> Client
	OpState         int64 = 100
	OpPlayerJoined  int64 = 101
	OpPlayerLeft    int64 = 102
	OpGameStarted   int64 = 103
	OpHandDealt     int64 = 104 // sent privately
	OpCardPlayed    int64 = 105
	OpEffectApplied int64 = 106
	OpTurnPassed    int64 = 107
	OpPowerGranted  int64 = 108
	OpPowerUsed     int64 = 109
	OpPeek          int64 = 110 // sent privately
	OpGameEnded     int64 = 111
	OpError         int64 = 199
)

var eventOpCodes = map[app.EventKind]int64{
	app.EventPlayerJoined:  OpPlayerJoined,
	app.EventPlayerLeft:    OpPlayerLeft,
	app.EventGameStarted:   OpGameStarted,
	app.EventHandDealt:     OpHandDealt,
	app.EventCardPlayed:    OpCardPlayed,
	app.EventEffectApplied: OpEffectApplied,
	app.EventTurnPassed:    OpTurnPassed,
	app.EventPowerGranted:  OpPowerGranted,
	app.EventPowerUsed:     OpPowerUsed,
	app.EventPeek:          OpPeek,
	app.EventGameEnded:     OpGameEnded,
}

var intentOpCodes = map[int64]string{
	OpPlayCard:     app.IntentPlayCard,
	OpPassTurn:     app.IntentPassTurn,
	OpUsePower:     app.IntentUsePower,
	OpRequestState: app.IntentRequestState,
	OpLeaveRoom:    app.IntentLeaveRoom,
}
