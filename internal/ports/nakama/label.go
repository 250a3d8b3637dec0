package nakama

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"codeduel/internal/domain"
)

// encodeLabel renders the match label JSON Nakama indexes for MatchList queries.
func encodeLabel(label domain.LabelPayload) (string, error) {
	st, err := structpb.NewStruct(map[string]any{
		"open":  label.Open,
		"game":  label.Game,
		"phase": label.Phase,
		"code":  label.Code,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build label: %w", err)
	}
	b, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(st)
	if err != nil {
		return "", fmt.Errorf("failed to marshal label: %w", err)
	}
	return string(b), nil
}

