package app

import "fmt"

// Intent types accepted from clients. Session intents go through Room.Apply; the
// rest are resolved by the transport against the Registry.
const (
	IntentJoinRoom     = "join_room"
	IntentQuickMatch   = "quick_match"
	IntentStartAIGame  = "start_ai_game"
	IntentPlayCard     = "play_card"
	IntentPassTurn     = "pass_turn"
	IntentUsePower     = "use_power"
	IntentRequestState = "request_state"
	IntentLeaveRoom    = "leave_room"
)

// Intent is one client request. Only the fields relevant to Type are read.
type Intent struct {
	Type       string `json:"type"`
	Room       string `json:"room,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	UID        string `json:"uid,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	RoomCode   string `json:"room_code,omitempty"`
	Card       string `json:"card,omitempty"`
	Position   int    `json:"position"`
	Power      string `json:"power,omitempty"`
	Token      string `json:"token,omitempty"`
}

// Apply runs a session intent for userID.
func (r *Room) Apply(userID string, in Intent) ([]Event, error) {
	switch in.Type {
	case IntentPlayCard:
		return r.PlayCard(userID, in.Card, in.Position)
	case IntentPassTurn:
		return r.PassTurn(userID)
	case IntentUsePower:
		return r.UsePower(userID, in.Power)
	}
	return nil, fmt.Errorf("%w: unsupported intent %q", ErrInvalidMove, in.Type)
}

// Frame types pushed to clients besides event kinds.
const (
	FrameState   = "state"
	FrameError   = "error"
	FrameRooms   = "rooms"
	FrameSession = "session"
)

// Frame is the envelope of every server-to-client message.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionPayload tells a client which room and identity it was bound to. Token lets
// it reconnect after a dropped connection.
type SessionPayload struct {
	Room     string `json:"room"`
	UserID   string `json:"user_id"`
	Token    string `json:"token,omitempty"`
	Created  bool   `json:"created"`
	Rejoined bool   `json:"rejoined"`
	MatchID  string `json:"match_id,omitempty"`
}

func EventFrame(ev Event) Frame {
	return Frame{Type: string(ev.Kind), Payload: ev.Payload}
}

func ErrorFrame(err error) Frame {
	return Frame{Type: FrameError, Payload: ErrorPayload{Code: ErrorCode(err), Message: err.Error()}}
}

func StateFrame(s Snapshot) Frame {
	return Frame{Type: FrameState, Payload: s}
}
