package main

import (
	"errors"
	"fmt"

	"github.com/artpar/channelgen/app"
	"github.com/artpar/channelgen/bootstrap"
	"github.com/artpar/channelgen/ports"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded generation runs",
	Long: `List recorded generation runs, newest first, or show one run with
the files it handled. Requires history.enabled in the configuration.

Examples:
  channelgen history
  channelgen history --limit 5
  channelgen history 01928c4e-8f3a-7b21-9c0d-2f6a1e4b7c90 --format yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer a.Close()

	if a.History == nil {
		return fmt.Errorf("run history is disabled (set history.enabled in the configuration)")
	}

	ctx := cmd.Context()
	if len(args) == 1 {
		run, artifacts, err := a.History.GetRun(ctx, args[0])
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("run %s not found", args[0])
		}
		if err != nil {
			return err
		}
		return render(cmd, app.RunDetail{Run: run, Artifacts: artifacts})
	}

	runs, err := a.History.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	return render(cmd, app.RunList(runs))
}
