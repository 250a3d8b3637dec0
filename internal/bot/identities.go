package bot

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"codeduel/internal/domain"
)

// IDPrefix marks ids minted for AI players.
const IDPrefix = "bot-"

type BotIdentity struct {
	UserID      string            `json:"-"`
	Username    string            `json:"username"`
	DisplayName string            `json:"display_name"`
	Difficulty  domain.Difficulty `json:"difficulty"` // "easy", "medium", "hard"
}

var (
	botIdentities []BotIdentity
	loadOnce      sync.Once
	loadErr       error
)

// LoadIdentities loads the bot profiles from the given path.
func LoadIdentities(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read bot identities: %w", err)
			return
		}

		if err := json.Unmarshal(data, &botIdentities); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal bot identities: %w", err)
			return
		}
	})
	return loadErr
}

// Identities returns a copy of the loaded pool.
func Identities() []BotIdentity {
	return append([]BotIdentity(nil), botIdentities...)
}

// NewIdentity picks a display profile for a new AI player at the given level. The
// same profile may sit in several rooms at once, so every call mints a fresh id.
func NewIdentity(rng *rand.Rand, level domain.Difficulty) BotIdentity {
	var matching []BotIdentity
	for _, identity := range botIdentities {
		if identity.Difficulty == level {
			matching = append(matching, identity)
		}
	}

	identity := BotIdentity{
		Username:    "bot_" + string(level),
		DisplayName: fmt.Sprintf("AI Player (%s)", level),
		Difficulty:  level,
	}
	if len(matching) > 0 {
		i := 0
		if rng != nil {
			i = rng.Intn(len(matching))
		}
		identity = matching[i]
	}
	identity.UserID = IDPrefix + uuid.NewString()
	return identity
}

// IsBot reports whether the given user ID belongs to an AI player.
func IsBot(userID string) bool {
	return strings.HasPrefix(userID, IDPrefix)
}
