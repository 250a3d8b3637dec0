package app

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrInvalidMove     = errors.New("invalid move")
	ErrNoPowerPending  = errors.New("no power pending")
	ErrGameAlreadyOver = errors.New("game already over")
	ErrGameNotStarted  = errors.New("game not started")
	ErrUnknownPlayer   = errors.New("player not found")
	ErrUnknownPower    = errors.New("unknown power")
	ErrEffectActive    = errors.New("another effect is already active")
	ErrAlreadySeated   = errors.New("player already seated")
	ErrInvalidRoomCode = errors.New("invalid room code")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrRoomFull, "room_full"},
	{ErrNotYourTurn, "not_your_turn"},
	{ErrInvalidMove, "invalid_move"},
	{ErrNoPowerPending, "no_power_pending"},
	{ErrGameAlreadyOver, "game_already_over"},
	{ErrGameNotStarted, "game_not_started"},
	{ErrUnknownPlayer, "unknown_player"},
	{ErrUnknownPower, "unknown_power"},
	{ErrEffectActive, "effect_active"},
	{ErrAlreadySeated, "already_seated"},
	{ErrInvalidRoomCode, "invalid_room_code"},
	{ErrInvalidToken, "invalid_token"},
}

// ErrorCode maps err to the stable code sent to clients. Unknown errors map to
// "internal".
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
