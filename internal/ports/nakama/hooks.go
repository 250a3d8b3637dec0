package nakama

import (
	"context"
	"database/sql"
	"fmt"

	jwt "github.com/form3tech-oss/jwt-go"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"codeduel/internal/app/onboarding"
)

// AfterAuthenticateDevice is triggered after an account is authenticated.
// New accounts get a friendly display name and zeroed stats.
func AfterAuthenticateDevice(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error {
	if !out.Created {
		return nil
	}

	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		resolvedID, err := extractUserIDFromToken(out.Token)
		if err != nil {
			logger.Error("AfterAuthenticateDevice: Failed to extract user ID from token: %v", err)
			return err
		}
		userID = resolvedID
	}

	logger.Info("Onboarding new user %s", userID)

	service := onboarding.NewService(NewNakamaAccountAdapter(nk), NewNakamaResultsAdapter(nk), nil)
	result, err := service.OnboardNewUser(ctx, userID)
	if result.ProfileUpdateErr != nil {
		logger.Warn("AfterAuthenticateDevice: Failed to update profile for user %s: %v", userID, result.ProfileUpdateErr)
	}
	if err != nil {
		logger.Error("AfterAuthenticateDevice: Onboarding failed for user %s: %v", userID, err)
		return err
	}
	if !result.StatsCreated {
		logger.Info("AfterAuthenticateDevice: Stats already existed for user %s", userID)
	}
	return nil
}

// extractUserIDFromToken reads the uid claim of a Nakama session token. The hook
// runs inside the server that just signed it, so the signature is not rechecked.
func extractUserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to parse session token: %w", err)
	}
	uid, ok := claims["uid"].(string)
	if !ok || uid == "" {
		return "", fmt.Errorf("token claims missing uid")
	}
	return uid, nil
}
