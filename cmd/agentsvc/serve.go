package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agentsvc/internal/observability"
	serverhttp "agentsvc/internal/server/http"
)

func newServeCommand(c *cli) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := c.buildContainer()
			if err != nil {
				return err
			}
			cfg := container.Config
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger := container.Logger
			logger.Info("Serving deployment %s via %s (key=%s)",
				cfg.Model.Deployment, cfg.Model.Provider, observability.SanitizeAPIKey(cfg.Model.APIKey))

			router := serverhttp.NewRouter(serverhttp.RouterDeps{
				Dispatcher:     container.Dispatcher,
				Observability:  container.Observability,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Debug:          cfg.Server.Debug,
			})
			server := serverhttp.NewServer(cfg.Server, router, nil)

			ctx, stop := signalContext()
			defer stop()
			runErr := server.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := container.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Observability shutdown: %v", err)
			}
			if runErr != nil {
				return fmt.Errorf("serve: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides server.port)")
	return cmd
}
