package main

import (
	"context"
	"fmt"
	"os"

	"github.com/artpar/channelgen/app"
	"github.com/artpar/channelgen/bootstrap"
	"github.com/artpar/channelgen/core/formatter"
	"github.com/artpar/channelgen/core/schema"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate bindings for every channel",
	Long: `Generate typed Go bindings for the channels of the configured manifest.

Every channel is synthesized once per protocol. A channel that cannot be
served over one of its protocols is reported and the other bindings are
still written. Files whose content did not change are left alone.

Examples:
  channelgen generate
  channelgen generate --dry-run
  channelgen generate --print --color
  channelgen generate --watch
  channelgen generate --format json`,
	RunE: runGenerate,
}

var (
	generateDryRun  bool
	generateWatch   bool
	generatePrint   bool
	generateColor   bool
	generateWorkers int
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "report files without writing them")
	generateCmd.Flags().BoolVarP(&generateWatch, "watch", "w", false, "regenerate when the configuration or a manifest changes")
	generateCmd.Flags().BoolVar(&generatePrint, "print", false, "print generated sources instead of writing them")
	generateCmd.Flags().BoolVar(&generateColor, "color", false, "highlight printed sources (default: when stdout is a terminal)")
	generateCmd.Flags().IntVar(&generateWorkers, "workers", 0, "channels synthesized concurrently (default: GOMAXPROCS)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generatePrint && generateWatch {
		return fmt.Errorf("--print and --watch cannot be combined")
	}

	a, err := newApp(cmd, bootstrap.Options{
		DryRun:  generateDryRun || generatePrint,
		Workers: generateWorkers,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer a.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	if generatePrint {
		return printSources(ctx, cmd, a)
	}

	if generateWatch {
		return a.Watch(ctx, func(report app.Report, err error) {
			if err != nil {
				a.Logger.Error().Err(err).Msg("generate failed")
				return
			}
			if err := render(cmd, report); err != nil {
				a.Logger.Error().Err(err).Msg("render report")
			}
		})
	}

	report, err := a.Generate.Generate(ctx, a.Config())
	if err != nil {
		return err
	}
	if err := render(cmd, report); err != nil {
		return err
	}
	if report.Status == app.StatusFailed {
		return fmt.Errorf("generation failed: %d of %d bindings could not be synthesized", len(report.Failures), len(report.Failures)+len(report.Bindings))
	}
	return nil
}

// printSources writes every generated file to stdout and the report to
// stderr.
func printSources(ctx context.Context, cmd *cobra.Command, a *bootstrap.App) error {
	cfg := a.Config()
	m, err := schema.Load(cfg.Input)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	res, err := a.Generate.Synthesize(ctx, cfg, m)
	if err != nil {
		return err
	}

	color := generateColor
	if !cmd.Flags().Changed("color") {
		color = term.IsTerminal(int(os.Stdout.Fd()))
	}
	for _, f := range res.Files {
		if err := formatter.Source(cmd.OutOrStdout(), f.Path, f.Content, color); err != nil {
			return err
		}
	}

	for _, fl := range res.Report.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s/%s: %s\n", crossMark, fl.Channel, fl.Protocol, fl.Error)
	}
	if res.Report.Status == app.StatusFailed {
		return fmt.Errorf("generation failed")
	}
	return nil
}
