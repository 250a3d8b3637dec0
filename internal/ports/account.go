package ports

import "context"

// AccountPort renames player accounts on the hosting platform.
type AccountPort interface {
	// UpdateProfile sets the username and display name of userID. Empty values
	// leave the field unchanged.
	UpdateProfile(ctx context.Context, userID, username, displayName string) error
}
