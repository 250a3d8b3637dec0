package domain

import "fmt"

// GameName is advertised in match labels and records.
const GameName = "codeduel"

// OpenSeat returns the first free seat index, or -1 when both are taken.
func OpenSeat(g *Game) int {
	for i, p := range g.Players {
		if p == nil {
			return i
		}
	}
	return -1
}

// LabelPayload is the values advertised for room discovery.
type LabelPayload struct {
	Open  bool   `json:"open"`
	Game  string `json:"game"`
	Phase string `json:"phase"`
	Code  string `json:"code"`
}

// ComputeLabel derives the advertised label from session state.
func ComputeLabel(g *Game) LabelPayload {
	open := g.Phase == PhaseWaiting && OpenSeat(g) >= 0
	return LabelPayload{Open: open, Game: GameName, Phase: string(g.Phase), Code: g.Code}
}

// RemoveCard takes one instance of id out of hand.
func RemoveCard(hand []Card, id string) ([]Card, Card, bool) {
	for i, c := range hand {
		if c.ID == id {
			out := make([]Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			out = append(out, hand[i+1:]...)
			return out, c, true
		}
	}
	return hand, Card{}, false
}

// CardIDs lists card identities in order.
func CardIDs(cards []Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

// CardsFromIDs resolves identities against the catalog.
func CardsFromIDs(ids []string) ([]Card, error) {
	cards := make([]Card, 0, len(ids))
	for i, id := range ids {
		c, err := Lookup(id)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}
