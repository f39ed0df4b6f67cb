package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/clinsight/internal/api"
	"github.com/leapstack-labs/clinsight/internal/cli/config"
	"github.com/leapstack-labs/clinsight/internal/dashboards"
	"github.com/leapstack-labs/clinsight/internal/session"
	"github.com/leapstack-labs/clinsight/internal/state"
	"github.com/leapstack-labs/clinsight/internal/viz"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded config in the command context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{Output: config.DefaultOutput}
}

// WithLogger stores the logger in the command context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Client    *api.Client
	Shortcuts *dashboards.Reloader
	Store     *state.Store // nil when the local store could not open
	Manager   *session.Manager
}

// NewCommandContext builds the backend client, the session manager, and
// the optional local store. The returned cleanup must be called,
// typically via defer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := GetConfig(cmd.Context())
	logger := GetLogger(cmd.Context())

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	client, err := api.New(api.Config{
		BaseURL:  cfg.BaseURL,
		Token:    cfg.Token,
		UserID:   cfg.UserID,
		Timeouts: cfg.Timeouts,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}

	shortcuts, err := dashboards.NewReloader(cfg.Dashboards, logger)
	if err != nil {
		return nil, nil, err
	}

	// The local store is best-effort; history logging is lost but the
	// session still works when it cannot open.
	store := state.New(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		logger.Warn("local history store unavailable", "path", cfg.StatePath, "err", err)
		store = nil
	}

	mgr := session.NewManager(session.Config{
		Backend:           client,
		Resolver:          viz.NewResolver(client, logger),
		Logger:            logger,
		Persist:           cfg.Persist,
		PreferredChartFor: shortcuts.PreferredChartFor,
	})

	cc := &CommandContext{
		Cfg:       cfg,
		Logger:    logger,
		Client:    client,
		Shortcuts: shortcuts,
		Store:     store,
		Manager:   mgr,
	}
	cleanup := func() {
		mgr.Close()
		if store != nil {
			_ = store.Close()
		}
	}
	return cc, cleanup, nil
}

// RecordOutcome logs a finished pipeline run to the local store.
func (cc *CommandContext) RecordOutcome(ctx context.Context, rec state.QuestionRecord) {
	if cc.Store == nil {
		return
	}
	if _, err := cc.Store.RecordQuestion(ctx, rec); err != nil {
		cc.Logger.Warn("failed to record question", "err", err)
	}
}
