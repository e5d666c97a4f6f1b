package main

import (
	"fmt"
	"os"

	"github.com/artpar/channelgen/app"
	"github.com/artpar/channelgen/config"
	"github.com/artpar/channelgen/core/schema"
	"github.com/spf13/cobra"
)

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Export HTTP channels as an OpenAPI document",
	Long: `Export the http_client channels of the manifest as an OpenAPI 3.0
document. Methods and security schemes come from the channels' http
settings in the configuration.

Examples:
  channelgen openapi
  channelgen openapi --server https://api.example.com -o openapi.json`,
	RunE: runOpenAPI,
}

var (
	openapiServer  string
	openapiOut     string
	openapiCompact bool
)

func init() {
	rootCmd.AddCommand(openapiCmd)

	openapiCmd.Flags().StringVar(&openapiServer, "server", "", "server URL to list in the document")
	openapiCmd.Flags().StringVarP(&openapiOut, "out", "o", "", "write to this file instead of stdout")
	openapiCmd.Flags().BoolVar(&openapiCompact, "compact", false, "write compact JSON")
}

func runOpenAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}
	m, err := schema.Load(cfg.Input)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	spec, err := app.OpenAPI(cfg, m, openapiServer)
	if err != nil {
		return err
	}

	var data []byte
	if openapiCompact {
		data, err = spec.ToJSONCompact()
	} else {
		data, err = spec.ToJSON()
	}
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if openapiOut == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(openapiOut, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", openapiOut, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "  %s Wrote %s (%d paths)\n", checkMark, openapiOut, len(spec.Paths))
	return nil
}
