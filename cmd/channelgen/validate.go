package main

import (
	"fmt"

	"github.com/artpar/channelgen/app"
	"github.com/artpar/channelgen/bootstrap"
	"github.com/artpar/channelgen/core/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and manifest",
	Long: `Validate the channelgen configuration and the channel manifest.

Checks:
  - Configuration syntax and required fields
  - Manifest syntax, channel ids and messages
  - Every channel can be served over each of its protocols

Nothing is written.

Examples:
  channelgen validate
  channelgen validate --config ./api/channelgen.toml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	a, err := newApp(cmd, bootstrap.Options{DryRun: true})
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	defer a.Close()

	cfg := a.Config()
	if cfg.Path != "" {
		fmt.Fprintf(out, "  %s Config valid (%s)\n", checkMark, cfg.Path)
	} else {
		fmt.Fprintf(out, "  %s Config valid (environment)\n", checkMark)
	}

	m, err := schema.Load(cfg.Input)
	if err != nil {
		fmt.Fprintf(out, "  %s Manifest valid\n", crossMark)
		return fmt.Errorf("manifest error: %w", err)
	}
	fmt.Fprintf(out, "  %s Manifest valid (%d channels)\n", checkMark, len(m.Channels))

	ctx, stop := signalContext(cmd)
	defer stop()

	res, err := a.Generate.Synthesize(ctx, cfg, m)
	if err != nil {
		return err
	}
	report := res.Report

	for _, w := range report.Warnings {
		fmt.Fprintf(out, "  ! %s\n", w)
	}
	if len(report.Failures) == 0 {
		fmt.Fprintf(out, "  %s Bindings: %d\n", checkMark, len(report.Bindings))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Configuration is valid.")
		return nil
	}

	fmt.Fprintf(out, "  %s Bindings: %d, failures: %d\n", crossMark, len(report.Bindings), len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(out, "      %s/%s (%s): %s\n", f.Channel, f.Protocol, f.Reason, f.Error)
	}
	if report.Status == app.StatusFailed {
		return fmt.Errorf("no channel can be generated")
	}
	return fmt.Errorf("%d channel/protocol pairs cannot be generated", len(report.Failures))
}
