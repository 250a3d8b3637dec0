package nakama

import (
	"encoding/json"
	"testing"

	"codeduel/internal/domain"
)

func TestEncodeLabel(t *testing.T) {
	tests := []struct {
		name  string
		label domain.LabelPayload
	}{
		{
			name:  "Waiting",
			label: domain.LabelPayload{Open: true, Game: domain.GameName, Phase: string(domain.PhaseWaiting), Code: "ABC234"},
		},
		{
			name:  "InProgress",
			label: domain.LabelPayload{Open: false, Game: domain.GameName, Phase: string(domain.PhaseInProgress), Code: "XYZ789"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			encoded, err := encodeLabel(test.label)
			if err != nil {
				t.Fatalf("encodeLabel: %v", err)
			}
			var got domain.LabelPayload
			if err := json.Unmarshal([]byte(encoded), &got); err != nil {
				t.Fatalf("Label is not JSON: %v", err)
			}
			if got != test.label {
				t.Errorf("Got %+v, want %+v", got, test.label)
			}
		})
	}
}
