// Package httpd implements the HTTP server command.
package httpd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/channelscout/cmd/common"
	"github.com/jonesrussell/channelscout/internal/api"
)

const shutdownTimeout = 30 * time.Second

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Run the discovery HTTP API",
		Long: `Starts the HTTP API that accepts discovery jobs, streams enrichment
progress through the status endpoint and resumes sessions.`,
		RunE: runHTTPD,
	}
}

// runHTTPD wires the orchestrator and serves until SIGINT or SIGTERM.
func runHTTPD(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	deps, err := common.NewDeps(cfgFile, debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator, cleanup, err := common.BuildOrchestrator(ctx, deps)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := api.NewHTTPServer(deps.Config.Server, deps.Logger, orchestrator)
	if err := api.RunServer(ctx, srv, deps.Logger, shutdownTimeout); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	deps.Logger.Info("server stopped")
	return nil
}
