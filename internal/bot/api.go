package bot

import (
	"math/rand"
	"sort"

	"codeduel/internal/domain"
)

// Move represents the decision made by the AI.
type Move struct {
	Pass   bool
	CardID string
	Index  int
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	CalculateMove(view domain.View) (Move, error)
}

type candidate struct {
	card  domain.Card
	index int
}

// candidates lists every legal (card, slot) pair in slot then catalog order.
func candidates(view domain.View) []candidate {
	legal := domain.LegalInsertions(view.Hand, view.Sequence)
	slots := make([]int, 0, len(legal))
	for i := range legal {
		slots = append(slots, i)
	}
	sort.Ints(slots)

	var out []candidate
	for _, i := range slots {
		for _, c := range legal[i] {
			out = append(out, candidate{card: c, index: i})
		}
	}
	return out
}

func (c candidate) move() Move {
	return Move{CardID: c.card.ID, Index: c.index}
}

// pickRandom returns a uniformly chosen element of best.
func pickRandom(rng *rand.Rand, best []candidate) candidate {
	if len(best) == 1 || rng == nil {
		return best[0]
	}
	return best[rng.Intn(len(best))]
}
