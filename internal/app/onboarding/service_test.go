package onboarding

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"codeduel/internal/ports"
)

type fakeAccountPort struct {
	updateErr error
	names     []string
}

func (f *fakeAccountPort) UpdateProfile(ctx context.Context, userID, username, displayName string) error {
	f.names = append(f.names, displayName)
	return f.updateErr
}

type fakeStatsPort struct {
	initErr error
	calls   []string
	created bool
}

func (f *fakeStatsPort) InitStatsOnce(ctx context.Context, userID string) (bool, error) {
	f.calls = append(f.calls, userID)
	if f.initErr != nil {
		return false, f.initErr
	}
	return f.created, nil
}

func (f *fakeStatsPort) GetStats(ctx context.Context, userID string) (ports.PlayerStats, error) {
	return ports.PlayerStats{UserID: userID}, nil
}

func TestOnboardNewUser_CreatesStats(t *testing.T) {
	accounts := &fakeAccountPort{}
	stats := &fakeStatsPort{created: true}
	service := NewService(accounts, stats, rand.New(rand.NewSource(1)))

	result, err := service.OnboardNewUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("OnboardNewUser returned error: %v", err)
	}
	if result.ProfileUpdateErr != nil {
		t.Fatalf("Expected no profile update error, got %v", result.ProfileUpdateErr)
	}
	if len(stats.calls) != 1 || stats.calls[0] != "user-1" {
		t.Fatalf("Expected 1 stats init for user-1, got %v", stats.calls)
	}
	if !result.StatsCreated {
		t.Fatal("Expected stats to be marked as created")
	}
	if len(accounts.names) != 1 || accounts.names[0] != result.DisplayName || result.DisplayName == "" {
		t.Fatalf("Expected profile update with %q, got %v", result.DisplayName, accounts.names)
	}
}

func TestOnboardNewUser_AccountUpdateFailureStillCreatesStats(t *testing.T) {
	stats := &fakeStatsPort{created: true}
	service := NewService(&fakeAccountPort{updateErr: errors.New("update failed")}, stats, rand.New(rand.NewSource(1)))

	result, err := service.OnboardNewUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("OnboardNewUser returned error: %v", err)
	}
	if result.ProfileUpdateErr == nil {
		t.Fatal("Expected profile update error to be captured")
	}
	if len(stats.calls) != 1 {
		t.Fatalf("Expected 1 stats init call, got %d", len(stats.calls))
	}
}

func TestOnboardNewUser_StatsFailureReturnsError(t *testing.T) {
	service := NewService(&fakeAccountPort{}, &fakeStatsPort{initErr: errors.New("storage failed")}, rand.New(rand.NewSource(1)))

	if _, err := service.OnboardNewUser(context.Background(), "user-1"); err == nil {
		t.Fatal("Expected error when stats init fails")
	}
}

func TestOnboardNewUser_StatsAlreadyPresent(t *testing.T) {
	service := NewService(&fakeAccountPort{}, &fakeStatsPort{created: false}, rand.New(rand.NewSource(1)))

	result, err := service.OnboardNewUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("OnboardNewUser returned error: %v", err)
	}
	if result.StatsCreated {
		t.Fatal("Expected stats to be reported as already present")
	}
}

func TestOnboardNewUser_RequiresPorts(t *testing.T) {
	if _, err := NewService(nil, nil, nil).OnboardNewUser(context.Background(), "user-1"); err == nil {
		t.Fatal("Expected error for unconfigured service")
	}
}
