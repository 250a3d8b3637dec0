package app

import (
	"sort"

	"codeduel/internal/domain"
)

type PlayerSnapshot struct {
	UserID     string            `json:"user_id"`
	Name       string            `json:"name"`
	Seat       int               `json:"seat"`
	IsAI       bool              `json:"is_ai"`
	Difficulty domain.Difficulty `json:"difficulty,omitempty"`
	Score      int               `json:"score"`
	HandSize   int               `json:"hand_size"`
	PassStreak int               `json:"pass_streak"`
}

type EffectSnapshot struct {
	Power     domain.Power `json:"power"`
	Owner     string       `json:"owner"`
	Target    string       `json:"target"`
	Remaining int          `json:"remaining"`
}

// Snapshot is one viewer's picture of a room. It never contains the opponent's hand.
type Snapshot struct {
	Room          string           `json:"room"`
	Status        domain.Phase     `json:"status"`
	TurnOwner     string           `json:"turn_owner,omitempty"`
	TurnNumber    int              `json:"turn_number"`
	Players       []PlayerSnapshot `json:"players"`
	Hand          []string         `json:"your_hand"`
	PlayedCards   []string         `json:"played_cards"`
	Code          string           `json:"code"`
	Analysis      domain.Analysis  `json:"analysis"`
	DeckRemaining int              `json:"deck_remaining"`
	DiscardCount  int              `json:"discard_count"`

	PowerPending    bool            `json:"power_pending"`
	TurnsUntilPower int             `json:"turns_until_power"`
	ActiveEffect    *EffectSnapshot `json:"active_effect,omitempty"`

	// Playable maps slot to the distinct card ids that fit there. Only filled for the
	// turn owner.
	Playable   map[int][]string `json:"playable_cards,omitempty"`
	LastAction string           `json:"last_action"`

	Reason  domain.EndReason `json:"reason,omitempty"`
	Winners []string         `json:"winners,omitempty"`
	Rules   RulesSnapshot    `json:"rules"`
}

type RulesSnapshot struct {
	WinScore             int `json:"win_score"`
	MaxHandSize          int `json:"max_hand_size"`
	MaxConsecutivePasses int `json:"max_consecutive_passes"`
	PowerThreshold       int `json:"power_threshold"`
}

// BuildSnapshot renders game for viewerID. Spectators (unknown ids) get the public
// part only.
func BuildSnapshot(game *domain.Game, viewerID string) Snapshot {
	snap := Snapshot{
		Room:        game.Code,
		Status:      game.Phase,
		TurnNumber:  game.TurnNumber,
		PlayedCards: domain.CardIDs(game.Sequence),
		Code:        domain.BuildCode(game.Sequence),
		Analysis:    domain.Analyze(game.Sequence),
		LastAction:  game.LastAction,
		Reason:      game.Reason,
		Winners:     append([]string(nil), game.Winners...),
		Rules: RulesSnapshot{
			WinScore:             game.Rules.WinScore,
			MaxHandSize:          game.Rules.MaxHandSize,
			MaxConsecutivePasses: game.Rules.MaxConsecutivePasses,
			PowerThreshold:       game.Rules.PowerThreshold,
		},
	}
	if game.Deck != nil {
		snap.DeckRemaining = game.Deck.Remaining()
		snap.DiscardCount = game.Deck.DiscardCount()
	}
	if game.Phase == domain.PhaseInProgress {
		snap.TurnOwner = game.Current().ID
	}
	if e := game.Effect; e != nil {
		snap.ActiveEffect = &EffectSnapshot{Power: e.Power, Owner: e.Owner, Target: e.Target, Remaining: e.Remaining}
	}

	for seat, pl := range game.Players {
		if pl == nil {
			continue
		}
		snap.Players = append(snap.Players, PlayerSnapshot{
			UserID:     pl.ID,
			Name:       pl.Name,
			Seat:       seat,
			IsAI:       pl.IsAI,
			Difficulty: pl.Difficulty,
			Score:      pl.Score,
			HandSize:   len(pl.Hand),
			PassStreak: pl.PassStreak,
		})
	}

	viewer, ok := game.Player(viewerID)
	if !ok {
		return snap
	}
	hand := append([]domain.Card(nil), viewer.Hand...)
	domain.SortHand(hand)
	snap.Hand = domain.CardIDs(hand)
	snap.PowerPending = viewer.PowerPending
	if !viewer.PowerPending {
		snap.TurnsUntilPower = max(game.Rules.PowerThreshold-viewer.TurnsSincePower, 0)
	}

	if snap.TurnOwner == viewer.ID {
		snap.Playable = PlayableCards(game.Sequence, viewer.Hand)
	}
	return snap
}

// PlayableCards lists, per slot, the distinct card ids from hand that fit in seq.
func PlayableCards(seq, hand []domain.Card) map[int][]string {
	legal := domain.LegalInsertions(hand, seq)
	out := make(map[int][]string, len(legal))
	for i, cards := range legal {
		out[i] = domain.CardIDs(cards)
	}
	return out
}

// SlotOrder returns the keys of a playable map in ascending order.
func SlotOrder(playable map[int][]string) []int {
	slots := make([]int, 0, len(playable))
	for i := range playable {
		slots = append(slots, i)
	}
	sort.Ints(slots)
	return slots
}
