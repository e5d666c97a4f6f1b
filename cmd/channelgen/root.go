package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/channelgen/bootstrap"
	"github.com/artpar/channelgen/core/formatter"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile      string
	logLevel     string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "channelgen",
	Short: "Typed Go bindings for message channels",
	Long: `channelgen turns a manifest of message channels into typed Go bindings.

Each channel has a parameterized address, a set of messages and the
protocols it is served over. For every channel and protocol channelgen
writes publish, subscribe, request and reply functions that render and
match the address, encode parameters and validate payloads.

Quick start:
  channelgen init       # Scaffold channelgen.yaml and channels.yaml
  channelgen generate   # Write the bindings

Inspection:
  channelgen validate   # Check the configuration and manifest
  channelgen protocols  # List supported protocols
  channelgen openapi    # Export HTTP channels as OpenAPI
  channelgen history    # Show recorded runs
  channelgen serve      # Start the preview server`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: channelgen.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "output format: table, json, yaml")
}

// newApp wires the application for a command. Logs go to the command's
// stderr so that stdout carries only results.
func newApp(cmd *cobra.Command, opts bootstrap.Options) (*bootstrap.App, error) {
	opts.ConfigPath = cfgFile
	opts.LogLevel = logLevel
	opts.LogOutput = cmd.ErrOrStderr()
	opts.Version = version
	return bootstrap.New(opts)
}

// render writes v to the command's stdout in the selected format.
func render(cmd *cobra.Command, v any) error {
	f, ok := formatter.Get(outputFormat)
	if !ok {
		return fmt.Errorf("unknown format %q (available: %v)", outputFormat, formatter.List())
	}
	return f.Format(cmd.OutOrStdout(), v, formatter.FormatOptions{})
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
