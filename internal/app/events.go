package app

import "codeduel/internal/domain"

// EventKind identifies emitted domain events for transport dispatch.
type EventKind string

const (
	EventPlayerJoined  EventKind = "player_joined"
	EventPlayerLeft    EventKind = "player_left"
	EventGameStarted   EventKind = "game_started"
	EventHandDealt     EventKind = "hand_dealt"
	EventCardPlayed    EventKind = "card_played"
	EventEffectApplied EventKind = "effect_applied"
	EventTurnPassed    EventKind = "turn_passed"
	EventPowerGranted  EventKind = "power_granted"
	EventPowerUsed     EventKind = "power_used"
	EventPeek          EventKind = "peek"
	EventGameEnded     EventKind = "game_ended"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

type PlayerJoinedPayload struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Seat   int    `json:"seat"`
	IsAI   bool   `json:"is_ai"`
}

type PlayerLeftPayload struct {
	UserID    string `json:"user_id"`
	Temporary bool   `json:"temporary"`
}

type GameStartedPayload struct {
	Phase           domain.Phase `json:"phase"`
	FirstTurnUserID string       `json:"first_turn_user_id"`
}

type HandDealtPayload struct {
	UserID string   `json:"user_id"`
	Hand   []string `json:"hand"`
}

type CardPlayedPayload struct {
	UserID         string `json:"user_id"`
	CardID         string `json:"card_id"`
	Index          int    `json:"index"`
	Points         int    `json:"points"`
	Score          int    `json:"score"`
	NextTurnUserID string `json:"next_turn_user_id"`
}

// EffectAppliedPayload reports a SPECIAL card's side effect. Count is the number of
// cards actually moved, which may be short of the nominal amount.
type EffectAppliedPayload struct {
	UserID   string        `json:"user_id"`
	TargetID string        `json:"target_id"`
	Effect   domain.Effect `json:"effect"`
	Count    int           `json:"count,omitempty"`
}

type TurnPassedPayload struct {
	UserID         string `json:"user_id"`
	Forced         bool   `json:"forced"`
	PassStreak     int    `json:"pass_streak"`
	NextTurnUserID string `json:"next_turn_user_id"`
}

type PowerGrantedPayload struct {
	UserID string `json:"user_id"`
}

type PowerUsedPayload struct {
	UserID string       `json:"user_id"`
	Power  domain.Power `json:"power"`
}

// PeekPayload is only ever sent to the player who used the power.
type PeekPayload struct {
	OpponentID   string   `json:"opponent_id"`
	OpponentHand []string `json:"opponent_hand"`
}

type GameEndedPayload struct {
	Reason  domain.EndReason `json:"reason"`
	Winners []string         `json:"winners"`
	Scores  map[string]int   `json:"scores"`
	Record  GameRecord       `json:"-"`
}
