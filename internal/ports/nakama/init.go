package nakama

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"

	"codeduel/internal/app"
	"codeduel/internal/bot"
	"codeduel/internal/config"
	"codeduel/internal/ports"
)

// Module holds the process-wide state shared by RPCs and match handlers.
type Module struct {
	cfg      *config.GameConfig
	registry *app.Registry
	results  ports.ResultStore
	stats    ports.StatsPort
	logger   *zap.Logger
}

// NewModule builds a Module over its own room registry.
func NewModule(cfg *config.GameConfig, logger *zap.Logger, results ports.ResultStore, stats ports.StatsPort) *Module {
	return &Module{
		cfg: cfg,
		registry: app.NewRegistry(
			app.WithRules(cfg.DomainRules()),
			app.WithRetention(cfg.Rooms.Retention),
			app.WithLogger(logger),
		),
		results: results,
		stats:   stats,
		logger:  logger,
	}
}

// InitModule wires RPCs, hooks and the match handler for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if err := config.LoadGameConfig(env["codeduel_config"]); err != nil {
		logger.Warn("InitModule: Could not load game config, using defaults: %v", err)
	}
	cfg := config.GetGameConfig()

	if err := bot.LoadIdentities(cfg.Bots.IdentitiesPath); err != nil {
		logger.Warn("InitModule: Could not load bot identities: %v", err)
	}

	if err := nk.LeaderboardCreate(ctx, LeaderboardWins, true, "desc", "incr", "", nil, true); err != nil {
		logger.Warn("InitModule: Could not create leaderboard %s: %v", LeaderboardWins, err)
	}

	results := NewNakamaResultsAdapter(nk)
	m := NewModule(cfg, newZapLogger(logger), results, results)

	if err := m.RegisterRPCs(initializer); err != nil {
		return err
	}
	if err := initializer.RegisterMatch(MatchNameCodeDuel, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(m), nil
	}); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	logger.Info("CodeDuel Go module loaded.")
	return nil
}
