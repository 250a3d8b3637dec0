package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeduel/internal/domain"
)

func TestDefaultMatchesDomainRules(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, domain.DefaultRules(), c.DomainRules())
	assert.Equal(t, domain.DifficultyMedium, c.DefaultDifficulty())
	assert.Equal(t, 30*time.Second, c.Rooms.DisconnectGrace)
	assert.Equal(t, 10*time.Minute, c.Rooms.Retention)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codeduel.yaml")
	body := `
rules:
  win_score: 30
bots:
  default_difficulty: hard
  auto_fill_delay: 5s
rooms:
  disconnect_grace: 1m
server:
  allowed_origins: ["https://play.example"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CODEDUEL_IDENTITY_SECRET", "s3cret")
	t.Setenv("CODEDUEL_RULES_MAX_HAND_SIZE", "12")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, c.Rules.WinScore)
	assert.Equal(t, 12, c.Rules.MaxHandSize)
	assert.Equal(t, domain.DefaultRules().StartingHandSize, c.Rules.StartingHandSize)
	assert.Equal(t, domain.DifficultyHard, c.DefaultDifficulty())
	assert.Equal(t, 5*time.Second, c.Bots.AutoFillDelay)
	assert.Equal(t, time.Minute, c.Rooms.DisconnectGrace)
	assert.Equal(t, []string{"https://play.example"}, c.Server.AllowedOrigins)
	assert.Equal(t, "s3cret", c.Identity.Secret)
}

func TestLoadRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero win score", body: `{"rules": {"win_score": 0}}`},
		{name: "hand cap below deal", body: `{"rules": {"starting_hand_size": 8, "max_hand_size": 7}}`},
		{name: "inverted bot delay", body: `{"bots": {"min_delay": "3s", "max_delay": "1s"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "game_config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
