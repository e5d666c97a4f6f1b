package main

import (
	"github.com/artpar/channelgen/adapters/transport"
	"github.com/artpar/channelgen/app"
	"github.com/spf13/cobra"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List supported protocols",
	Long: `List the protocols bindings can be generated for, with the operations
each supports, its address delimiter and its subscription wildcard.

Examples:
  channelgen protocols
  channelgen protocols --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return render(cmd, app.Catalog(transport.NewSynthesizer()))
	},
}

func init() {
	rootCmd.AddCommand(protocolsCmd)
}
