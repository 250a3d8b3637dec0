package domain

import (
	"math/rand"
	"sort"
	"time"
)

// Deck is a session-owned draw pile plus discard pile. The top of the draw pile is the
// end of the slice.
type Deck struct {
	draw    []Card
	discard []Card
	rng     *rand.Rand
}

// NewDeck returns a shuffled deck holding every catalog instance. rng should be owned
// by the calling session; nil falls back to a time-seeded source.
func NewDeck(rng *rand.Rand) *Deck {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	d := &Deck{
		draw: make([]Card, 0, totalCards),
		rng:  rng,
	}
	for _, c := range catalog {
		for n := 0; n < c.Count; n++ {
			d.draw = append(d.draw, c)
		}
	}
	d.Shuffle()
	return d
}

// Shuffle permutes the draw pile uniformly at random.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.draw), func(i, j int) { d.draw[i], d.draw[j] = d.draw[j], d.draw[i] })
}

// Draw takes up to n cards. When the draw pile runs out the discard pile is shuffled
// back in; if both are empty fewer than n cards are returned.
func (d *Deck) Draw(n int) []Card {
	out := make([]Card, 0, n)
	for len(out) < n {
		if len(d.draw) == 0 {
			if len(d.discard) == 0 {
				break
			}
			d.draw, d.discard = d.discard, nil
			d.Shuffle()
		}
		top := len(d.draw) - 1
		out = append(out, d.draw[top])
		d.draw = d.draw[:top]
	}
	return out
}

// Discard places cards on the discard pile.
func (d *Deck) Discard(cards ...Card) {
	d.discard = append(d.discard, cards...)
}

// Remaining is the size of the draw pile.
func (d *Deck) Remaining() int {
	return len(d.draw)
}

// DiscardCount is the size of the discard pile.
func (d *Deck) DiscardCount() int {
	return len(d.discard)
}

// Exhausted reports whether both piles are empty.
func (d *Deck) Exhausted() bool {
	return len(d.draw) == 0 && len(d.discard) == 0
}

// SortHand orders cards by catalog position.
func SortHand(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		return CatalogOrder(cards[i].ID) < CatalogOrder(cards[j].ID)
	})
}
