package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"codeduel/internal/ports"
)

// Result captures non-fatal onboarding outcomes.
type Result struct {
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
	// StatsCreated is false when the account already had stats.
	StatsCreated bool
	DisplayName  string
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	stats    ports.StatsPort
	rng      *rand.Rand
}

// NewService constructs an onboarding service with required ports.
// accounts/stats must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, stats ports.StatsPort, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		stats:    stats,
		rng:      rng,
	}
}

// OnboardNewUser gives a new account a friendly name and zeroed stats.
// Returns a Result with any non-fatal issues and an error if stats cannot be created.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil || s.stats == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}

	result := Result{DisplayName: s.generateFriendlyName()}
	if err := s.accounts.UpdateProfile(ctx, userID, result.DisplayName, result.DisplayName); err != nil {
		// Profile updates are best-effort; stats are required for ranking.
		result.ProfileUpdateErr = err
	}

	created, err := s.stats.InitStatsOnce(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("failed to initialize stats: %w", err)
	}
	result.StatsCreated = created
	return result, nil
}

func (s *Service) generateFriendlyName() string {
	adjectives := []string{"Static", "Lazy", "Async", "Nested", "Pure", "Global", "Frozen", "Mutable", "Silent", "Eager"}
	nouns := []string{"Lambda", "Tuple", "Pointer", "Closure", "Iterator", "Module", "Thread", "Buffer", "Cursor", "Token"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
