package app

import (
	"fmt"

	"codeduel/internal/domain"
)

// CardInfo is the public description of a catalog card.
type CardInfo struct {
	ID       string          `json:"id"`
	Category domain.Category `json:"category"`
	Points   int             `json:"points"`
	Effect   domain.Effect   `json:"effect,omitempty"`
	Count    int             `json:"count"`
}

// CatalogInfo lists the catalog in deck order.
func CatalogInfo() []CardInfo {
	cards := domain.Catalog()
	out := make([]CardInfo, len(cards))
	for i, c := range cards {
		out[i] = CardInfo{ID: c.ID, Category: c.Category, Points: c.Points, Effect: c.Effect, Count: c.Count}
	}
	return out
}

// InsertionQuery asks which cards of a hand fit into a sequence, optionally at a
// single slot.
type InsertionQuery struct {
	Hand     []string `json:"hand"`
	Sequence []string `json:"sequence"`
	Index    *int     `json:"index,omitempty"`
}

type InsertionResult struct {
	Playable map[int][]string `json:"playable"`
	Slots    []int            `json:"slots"`
	Analysis domain.Analysis  `json:"analysis"`
	Code     string           `json:"code"`
}

// QueryInsertions answers an InsertionQuery without touching any session.
func QueryInsertions(q InsertionQuery) (InsertionResult, error) {
	hand, err := domain.CardsFromIDs(q.Hand)
	if err != nil {
		return InsertionResult{}, fmt.Errorf("%w: hand: %v", ErrInvalidMove, err)
	}
	seq, err := domain.CardsFromIDs(q.Sequence)
	if err != nil {
		return InsertionResult{}, fmt.Errorf("%w: sequence: %v", ErrInvalidMove, err)
	}

	v := domain.NewValidator(seq)
	playable := make(map[int][]string)
	if q.Index != nil {
		i := *q.Index
		if i < 0 || i > len(seq) {
			return InsertionResult{}, fmt.Errorf("%w: index %d out of range", ErrInvalidMove, i)
		}
		if cards := v.LegalAt(hand, i); len(cards) > 0 {
			playable[i] = domain.CardIDs(cards)
		}
	} else {
		for i, cards := range v.LegalInsertions(hand) {
			playable[i] = domain.CardIDs(cards)
		}
	}

	return InsertionResult{
		Playable: playable,
		Slots:    SlotOrder(playable),
		Analysis: v.Analysis(),
		Code:     domain.BuildCode(seq),
	}, nil
}
