package nakama

import (
	"context"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"codeduel/internal/ports"
)

// NakamaAccountAdapter renames accounts through Nakama's account API.
type NakamaAccountAdapter struct {
	nk runtime.NakamaModule
}

func NewNakamaAccountAdapter(nk runtime.NakamaModule) *NakamaAccountAdapter {
	return &NakamaAccountAdapter{nk: nk}
}

// UpdateProfile sets username and display name; empty values leave the field as is.
func (a *NakamaAccountAdapter) UpdateProfile(ctx context.Context, userID, username, displayName string) error {
	if err := a.nk.AccountUpdateId(ctx, userID, username, nil, displayName, "", "", "", ""); err != nil {
		return fmt.Errorf("update account %s: %w", userID, err)
	}
	return nil
}

var _ ports.AccountPort = (*NakamaAccountAdapter)(nil)
