package bot

import (
	"math/rand"

	"codeduel/internal/domain"
)

// EasyBot plays a uniformly random legal move.
type EasyBot struct {
	rng *rand.Rand
}

func (b *EasyBot) CalculateMove(view domain.View) (Move, error) {
	moves := candidates(view)
	if len(moves) == 0 {
		return Move{Pass: true}, nil
	}
	return pickRandom(b.rng, moves).move(), nil
}

// MediumBot maximises the points of the current play.
type MediumBot struct {
	rng *rand.Rand
}

func (b *MediumBot) CalculateMove(view domain.View) (Move, error) {
	moves := candidates(view)
	if len(moves) == 0 {
		return Move{Pass: true}, nil
	}

	var best []candidate
	top := -1
	for _, m := range moves {
		pts := playPoints(view, m.card)
		switch {
		case pts > top:
			top = pts
			best = append(best[:0], m)
		case pts == top:
			best = append(best, m)
		}
	}
	return pickRandom(b.rng, best).move(), nil
}

// HardBot scores each move by points, whether it leaves complete code, and how many
// replies the opponent would have afterwards.
type HardBot struct {
	rng    *rand.Rand
	tuning Tuning
}

func (b *HardBot) CalculateMove(view domain.View) (Move, error) {
	moves := candidates(view)
	if len(moves) == 0 {
		return Move{Pass: true}, nil
	}

	pool := replyPool()
	var best []candidate
	var top float64
	for i, m := range moves {
		score, err := b.score(view, m, pool)
		if err != nil {
			return Move{Pass: true}, err
		}
		switch {
		case i == 0 || score > top:
			top = score
			best = append(best[:0], m)
		case score == top:
			best = append(best, m)
		}
	}
	return pickRandom(b.rng, best).move(), nil
}

func (b *HardBot) score(view domain.View, m candidate, pool []domain.Card) (float64, error) {
	next, err := domain.Insert(view.Sequence, m.card, m.index)
	if err != nil {
		return 0, err
	}
	pts := playPoints(view, m.card)
	v := domain.NewValidator(next)

	score := float64(pts) * b.tuning.PointWeight
	if v.Analysis().IsComplete {
		score += b.tuning.CompleteBonus
	}
	if view.Rules.WinScore > 0 && view.Score+pts >= view.Rules.WinScore {
		score += b.tuning.FinishBonus
	}
	score -= float64(v.OptionCount(pool)) * b.tuning.OpponentOptionWeight
	return score, nil
}

func playPoints(view domain.View, c domain.Card) int {
	if view.DoublePoints {
		return c.Points * 2
	}
	return c.Points
}

var nonSpecial []domain.Card

func init() {
	for _, c := range domain.Catalog() {
		if c.Category != domain.CategorySpecial {
			nonSpecial = append(nonSpecial, c)
		}
	}
}

// replyPool is every non-special card identity; the bot cannot see the opponent's
// hand, so it counts replies over the whole catalog.
func replyPool() []domain.Card {
	return nonSpecial
}
