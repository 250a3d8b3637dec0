package bot

import (
	"math/rand"

	"codeduel/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	ID         string
	Name       string
	Difficulty domain.Difficulty
	Strategy   Brain

	rng *rand.Rand
}

// NewAgent builds an agent with its own brain. rng must not be shared.
func NewAgent(id, name string, level domain.Difficulty, rng *rand.Rand) (*Agent, error) {
	brain, err := NewBrain(level, rng)
	if err != nil {
		return nil, err
	}
	return &Agent{ID: id, Name: name, Difficulty: level, Strategy: brain, rng: rng}, nil
}

// Play asks the agent to calculate its move from its own view of the session.
func (a *Agent) Play(view domain.View) (Move, error) {
	if view.PlayerID != a.ID {
		// Agent is not the viewer
		return Move{Pass: true}, nil
	}

	move, err := a.Strategy.CalculateMove(view)
	if err != nil {
		return Move{Pass: true}, err
	}
	return move, nil
}

// ChoosePower picks a power to spend while one is pending. Easy picks at random,
// medium always doubles, hard blocks when trailing and doubles otherwise.
func (a *Agent) ChoosePower(view domain.View) (domain.Power, bool) {
	if !view.PowerPending {
		return "", false
	}
	switch a.Difficulty {
	case domain.DifficultyEasy:
		if a.rng == nil {
			return domain.PowerPeek, true
		}
		return domain.Powers[a.rng.Intn(len(domain.Powers))], true
	case domain.DifficultyHard:
		if view.Score < view.OpponentScore {
			return domain.PowerBlock, true
		}
		return domain.PowerDoublePoints, true
	default:
		return domain.PowerDoublePoints, true
	}
}
