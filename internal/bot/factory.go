package bot

import (
	"fmt"
	"math/rand"

	"codeduel/internal/domain"
)

// NewBrain creates a new AI brain based on the specified level. Each brain owns rng;
// callers must not share it across goroutines.
func NewBrain(level domain.Difficulty, rng *rand.Rand) (Brain, error) {
	switch level {
	case domain.DifficultyEasy:
		return &EasyBot{rng: rng}, nil
	case domain.DifficultyMedium:
		return &MediumBot{rng: rng}, nil
	case domain.DifficultyHard:
		return &HardBot{rng: rng, tuning: DefaultTuning}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %q", level)
	}
}
