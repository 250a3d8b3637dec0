// Command server runs the standalone websocket game server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeduel/internal/app"
	"codeduel/internal/bot"
	"codeduel/internal/config"
	"codeduel/internal/ports"
	"codeduel/internal/ports/httpapi"
	"codeduel/internal/ports/redisstore"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	addr    string
)

var rootCmd = &cobra.Command{
	Use:           "codeduel",
	Short:         "Two-player code building card game server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Addr = addr
		}
		return serve(SignalContext(context.Background()), cfg)
	},
}

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Print the card catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tPOINTS\tEFFECT\tCOUNT")
		for _, c := range app.CatalogInfo() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n", c.ID, c.Category, c.Points, c.Effect, c.Count)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd, cardsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.GameConfig) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(ctx context.Context, cfg *config.GameConfig) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := bot.LoadIdentities(cfg.Bots.IdentitiesPath); err != nil {
		logger.Warn("bot identities not loaded, using generated names", zap.Error(err))
	}

	secret := cfg.Identity.Secret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("identity.secret is empty, session tokens will not survive a restart")
	}
	tokens := app.NewTokenService(secret, cfg.Identity.Issuer, cfg.Identity.TTL)

	var (
		results ports.ResultStore
		stats   ports.StatsPort
	)
	if cfg.Redis.Enabled {
		store, err := redisstore.Open(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer store.Close()
		results, stats = store, store
		logger.Info("redis store connected", zap.String("addr", cfg.Redis.Addr))
	}

	hub := httpapi.NewHub(cfg, tokens, results, logger)
	api := httpapi.NewServer(hub, results, stats, logger.Named("http"))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		signal.Stop(sigs)
		cancel()
	}()
	return ctx
}
