package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/clinsight/internal/api"
	"github.com/leapstack-labs/clinsight/internal/dashboards"
	"github.com/leapstack-labs/clinsight/internal/server"
	"github.com/leapstack-labs/clinsight/internal/session"
	"github.com/leapstack-labs/clinsight/internal/viz"
)

// NewServeCommand creates the serve command: the JSON API in front of
// the session engine.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session engine as a JSON API",
		Long: `Serve exposes the multi-tab session engine over HTTP. Each browser
user gets a cookie-scoped session; questions, tabs, the active view, and
CSV exports are all available under /api. The dashboards shortcut file
is watched and hot-reloaded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig(cmd.Context())
			logger := GetLogger(cmd.Context())

			if err := cfg.Validate(); err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr, _ = cmd.Flags().GetString("addr")
			}

			shortcuts, err := dashboards.NewReloader(cfg.Dashboards, logger)
			if err != nil {
				return err
			}

			// Demo questions come from a shared, userless client.
			sharedClient, err := api.New(api.Config{
				BaseURL:  cfg.BaseURL,
				Token:    cfg.Token,
				Timeouts: cfg.Timeouts,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			factory := func(userID string) (*session.Manager, error) {
				client, err := api.New(api.Config{
					BaseURL:  cfg.BaseURL,
					Token:    cfg.Token,
					UserID:   userID,
					Timeouts: cfg.Timeouts,
					Logger:   logger,
				})
				if err != nil {
					return nil, err
				}
				return session.NewManager(session.Config{
					Backend:           client,
					Resolver:          viz.NewResolver(client, logger),
					Logger:            logger,
					Persist:           cfg.Persist,
					PreferredChartFor: shortcuts.PreferredChartFor,
				}), nil
			}

			srv, err := server.New(server.Config{
				Addr:          cfg.Serve.Addr,
				SessionKey:    cfg.Serve.SessionKey,
				SecureCookies: cfg.Serve.SecureCookies,
				NewManager:    factory,
				DemoQuestions: sharedClient.DemoQuestions,
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Serve(gctx) })
			g.Go(func() error { return shortcuts.Watch(gctx) })
			return g.Wait()
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default :8765)")
	return cmd
}
