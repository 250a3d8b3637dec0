package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"codeduel/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. CODEDUEL_RULES_WIN_SCORE.
const EnvPrefix = "CODEDUEL"

type RulesConfig struct {
	WinScore             int `mapstructure:"win_score"`
	StartingHandSize     int `mapstructure:"starting_hand_size"`
	MaxHandSize          int `mapstructure:"max_hand_size"`
	MaxConsecutivePasses int `mapstructure:"max_consecutive_passes"`
	PowerThreshold       int `mapstructure:"power_threshold"`
	DoublePointsPlays    int `mapstructure:"double_points_plays"`
}

type BotConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	IdentitiesPath    string        `mapstructure:"identities_path"`
	DefaultDifficulty string        `mapstructure:"default_difficulty"`
	MinDelay          time.Duration `mapstructure:"min_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	// AutoFillDelay is how long a solo human waits in a room before a bot takes the
	// second seat. Zero disables auto-fill.
	AutoFillDelay time.Duration `mapstructure:"auto_fill_delay"`
}

type RoomConfig struct {
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`
	Retention       time.Duration `mapstructure:"retention"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type IdentityConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

type GameConfig struct {
	Rules    RulesConfig    `mapstructure:"rules"`
	Bots     BotConfig      `mapstructure:"bots"`
	Rooms    RoomConfig     `mapstructure:"rooms"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Identity IdentityConfig `mapstructure:"identity"`
	Log      LogConfig      `mapstructure:"log"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

func setDefaults(v *viper.Viper) {
	rules := domain.DefaultRules()
	v.SetDefault("rules.win_score", rules.WinScore)
	v.SetDefault("rules.starting_hand_size", rules.StartingHandSize)
	v.SetDefault("rules.max_hand_size", rules.MaxHandSize)
	v.SetDefault("rules.max_consecutive_passes", rules.MaxConsecutivePasses)
	v.SetDefault("rules.power_threshold", rules.PowerThreshold)
	v.SetDefault("rules.double_points_plays", rules.DoublePointsPlays)

	v.SetDefault("bots.enabled", true)
	v.SetDefault("bots.identities_path", "data/bot_identities.json")
	v.SetDefault("bots.default_difficulty", string(domain.DifficultyMedium))
	v.SetDefault("bots.min_delay", time.Second)
	v.SetDefault("bots.max_delay", 2*time.Second)
	v.SetDefault("bots.auto_fill_delay", 30*time.Second)

	v.SetDefault("rooms.disconnect_grace", 30*time.Second)
	v.SetDefault("rooms.retention", 10*time.Minute)
	v.SetDefault("rooms.sweep_interval", time.Minute)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "codeduel")

	v.SetDefault("identity.secret", "")
	v.SetDefault("identity.issuer", "codeduel")
	v.SetDefault("identity.ttl", time.Hour)

	v.SetDefault("log.development", false)
}

// Load reads path (JSON, YAML or TOML by extension) on top of the defaults and
// applies CODEDUEL_* environment overrides. An empty path loads defaults and
// environment only.
func Load(path string) (*GameConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read game config: %w", err)
		}
	}

	var c GameConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default is the configuration with no file and no environment.
func Default() *GameConfig {
	v := viper.New()
	setDefaults(v)
	var c GameConfig
	_ = v.Unmarshal(&c)
	return &c
}

// Validate rejects rule sets a session cannot be played with.
func (c *GameConfig) Validate() error {
	r := c.Rules
	switch {
	case r.WinScore <= 0:
		return errors.New("config: rules.win_score must be positive")
	case r.StartingHandSize <= 0:
		return errors.New("config: rules.starting_hand_size must be positive")
	case r.MaxHandSize < r.StartingHandSize:
		return errors.New("config: rules.max_hand_size must be at least the starting hand size")
	case r.MaxConsecutivePasses <= 0:
		return errors.New("config: rules.max_consecutive_passes must be positive")
	case r.PowerThreshold <= 0:
		return errors.New("config: rules.power_threshold must be positive")
	case c.Bots.MaxDelay < c.Bots.MinDelay:
		return errors.New("config: bots.max_delay is below bots.min_delay")
	}
	return nil
}

// DomainRules projects the configured rule values into a domain rule set.
func (c *GameConfig) DomainRules() domain.Rules {
	return domain.Rules{
		WinScore:             c.Rules.WinScore,
		StartingHandSize:     c.Rules.StartingHandSize,
		MaxHandSize:          c.Rules.MaxHandSize,
		MaxConsecutivePasses: c.Rules.MaxConsecutivePasses,
		PowerThreshold:       c.Rules.PowerThreshold,
		DoublePointsPlays:    c.Rules.DoublePointsPlays,
	}
}

// DefaultDifficulty is the bot tier used when a client does not name one.
func (c *GameConfig) DefaultDifficulty() domain.Difficulty {
	return domain.ParseDifficulty(c.Bots.DefaultDifficulty)
}

// LoadGameConfig loads the process-wide configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		cfg, loadErr = Load(path)
	})
	return loadErr
}

// GetGameConfig returns the process-wide configuration, or the defaults when
// LoadGameConfig was never called or failed.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		return Default()
	}
	return cfg
}
