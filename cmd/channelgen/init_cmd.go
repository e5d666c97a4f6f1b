package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a configuration and an example manifest",
	Long: `Create channelgen.yaml (or channelgen.toml) and an example channels.yaml.

The example manifest declares a NATS/Kafka event channel and an HTTP
request/reply channel. Edit it, then run 'channelgen generate'.

Examples:
  channelgen init
  channelgen init --dir ./api --package api
  channelgen init --toml`,
	RunE: runInit,
}

var (
	initDir     string
	initPackage string
	initTOML    bool
	initForce   bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initDir, "dir", ".", "directory to create the files in")
	initCmd.Flags().StringVar(&initPackage, "package", "events", "Go package of generated files")
	initCmd.Flags().BoolVar(&initTOML, "toml", false, "write channelgen.toml instead of channelgen.yaml")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfgName, cfgContent := "channelgen.yaml", fmt.Sprintf(yamlConfig, initPackage)
	if initTOML {
		cfgName, cfgContent = "channelgen.toml", fmt.Sprintf(tomlConfig, initPackage)
	}

	files := []struct{ name, content string }{
		{cfgName, cfgContent},
		{"channels.yaml", fmt.Sprintf(exampleManifest, initPackage)},
	}

	if !initForce {
		for _, f := range files {
			path := filepath.Join(initDir, f.name)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
	}

	if err := os.MkdirAll(initDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", initDir, err)
	}
	for _, f := range files {
		path := filepath.Join(initDir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(out, "  %s Created %s\n", checkMark, path)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Describe your channels in channels.yaml")
	fmt.Fprintln(out, "  2. channelgen validate")
	fmt.Fprintln(out, "  3. channelgen generate")
	return nil
}

const yamlConfig = `# channelgen configuration
input: channels.yaml

output:
  dir: %[1]s
  package: %[1]s
  layout: channel # or "protocol": one file per channel and protocol

# Protocols of channels that name none.
defaults:
  protocols: [nats]

# Validate received payloads with their Validate method.
validation: true

# Per-channel overrides.
channels:
  getOrder:
    http:
      method: GET
      auth: bearer
      retry:
        max_retries: 3
        initial_delay: 200ms

logging:
  level: info
  format: console

history:
  enabled: false
  dsn: .channelgen/history.db

server:
  host: 127.0.0.1
  port: 8090
`

const tomlConfig = `# channelgen configuration
input = "channels.yaml"

# Validate received payloads with their Validate method.
validation = true

[output]
dir = "%[1]s"
package = "%[1]s"
layout = "channel"

# Protocols of channels that name none.
[defaults]
protocols = ["nats"]

[channels.getOrder.http]
method = "GET"
auth = "bearer"

[channels.getOrder.http.retry]
max_retries = 3
initial_delay = "200ms"

[logging]
level = "info"
format = "console"

[history]
enabled = false
dsn = ".channelgen/history.db"

[server]
host = "127.0.0.1"
port = 8090
`

const exampleManifest = `package: %s
channels:
  - id: userSignedUp
    address: user.{userId}.signedup
    description: A user completed sign-up.
    protocols: [nats, kafka]
    parameters:
      - name: userId
    messages:
      - name: UserSignedUp
        validate: true

  - id: getOrder
    address: /orders/{orderId}
    description: Fetch one order.
    protocols: [http_client]
    parameters:
      - name: orderId
      - name: fields
        location: query
        type: array
        items: string
    messages:
      - name: OrderQuery
    reply:
      - name: Order
`
