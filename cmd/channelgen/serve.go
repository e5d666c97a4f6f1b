package main

import (
	"fmt"

	"github.com/artpar/channelgen/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the preview server",
	Long: `Start the preview server.

The server synthesizes posted manifests under the current configuration
without writing anything, serves the OpenAPI export of HTTP channels and
exposes run history and Prometheus metrics. The configuration file and
the manifests are reloaded when they change, or on SIGHUP.

Endpoints:
  POST /v1/generate       Preview bindings for a YAML or JSON manifest
  GET  /v1/protocols      Supported protocols
  GET  /v1/channels       Channels of the configured manifest
  GET  /v1/runs[/{id}]    Run history
  GET  /openapi.json      OpenAPI export of HTTP channels
  GET  /swagger/          Swagger UI
  GET  /metrics           Prometheus metrics

Examples:
  channelgen serve
  CHANNELGEN_INPUT=./channels.yaml CHANNELGEN_SERVER_PORT=9000 channelgen serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, bootstrap.Options{DryRun: true})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer a.Close()

	if a.Config().Path == "" {
		a.Logger.Info().Msg("running with environment variables (no config file)")
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	return a.Serve(ctx)
}
