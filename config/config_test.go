package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/artpar/channelgen/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
input: api/channels.yaml

output:
  dir: internal/events
  layout: protocol

validation: false

defaults:
  protocols: [nats, kafka]
  operations: [publish]

channels:
  listOrders:
    protocols: [http_client]
    validation: true
    http:
      method: get
      auth: bearer
      retry:
        max_retries: 5
        initial_delay: 250ms
        retryable_status: [429, 503]
      pagination:
        style: cursor
        limit: 50

server:
  port: 9090
  read_timeout: 5s
`

	cfg := writeAndLoad(t, content)

	if !strings.HasSuffix(cfg.Input, filepath.Join("api", "channels.yaml")) || !filepath.IsAbs(cfg.Input) {
		t.Errorf("Input = %s, want it resolved against the config dir", cfg.Input)
	}
	if got := cfg.Output.PackageName(""); got != "events" {
		t.Errorf("PackageName() = %s, want events", got)
	}
	if cfg.Output.Layout != "protocol" {
		t.Errorf("Output.Layout = %s, want protocol", cfg.Output.Layout)
	}
	if !reflect.DeepEqual(cfg.Defaults.Protocols, []string{"nats", "kafka"}) {
		t.Errorf("Defaults.Protocols = %v", cfg.Defaults.Protocols)
	}
	if cfg.ValidationEnabled("userSignedUp") {
		t.Error("validation should be off by default for this config")
	}
	if !cfg.ValidationEnabled("listOrders") {
		t.Error("listOrders overrides validation to true")
	}

	http := cfg.Channels["listOrders"].HTTP
	if http == nil {
		t.Fatal("listOrders.http missing")
	}
	if http.Retry.InitialDelay.Std() != 250*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 250ms", http.Retry.InitialDelay.Std())
	}
	if http.Retry.RetryOnNetworkError != nil {
		t.Errorf("RetryOnNetworkError = %v, want unset", *http.Retry.RetryOnNetworkError)
	}
	if http.Pagination.Style != "cursor" || http.Pagination.Limit != 50 {
		t.Errorf("Pagination = %+v", http.Pagination)
	}
	if cfg.Server.Port != 9090 || cfg.Server.ReadTimeout.Std() != 5*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "channelgen.yml",
			content: `
input: channels.yaml
defaults:
  protocols: [mqtt]
channels:
  ping:
    http:
      retry:
        max_delay: 2s
`,
		},
		{
			name: "toml",
			file: "channelgen.toml",
			content: `
input = "channels.yaml"

[defaults]
protocols = ["mqtt"]

[channels.ping.http.retry]
max_delay = "2s"
`,
		},
		{
			name: "jsonc",
			file: "channelgen.jsonc",
			content: `{
  // comments and trailing commas are fine
  "input": "channels.yaml",
  "defaults": {"protocols": ["mqtt"],},
  "channels": {"ping": {"http": {"retry": {"max_delay": "2s"}}}},
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if filepath.Base(cfg.Input) != "channels.yaml" {
				t.Errorf("Input = %s", cfg.Input)
			}
			if !reflect.DeepEqual(cfg.Defaults.Protocols, []string{"mqtt"}) {
				t.Errorf("Defaults.Protocols = %v", cfg.Defaults.Protocols)
			}
			if got := cfg.Channels["ping"].HTTP.Retry.MaxDelay.Std(); got != 2*time.Second {
				t.Errorf("MaxDelay = %v, want 2s", got)
			}
			if cfg.Path != path {
				t.Errorf("Path = %s, want %s", cfg.Path, path)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "input: channels.yaml\n")

	if filepath.Base(cfg.Output.Dir) != "generated" {
		t.Errorf("Output.Dir = %s, want generated", cfg.Output.Dir)
	}
	if got := cfg.Output.PackageName(""); got != "generated" {
		t.Errorf("PackageName() = %s, want generated", got)
	}
	if got := cfg.Output.PackageName("events"); got != "events" {
		t.Errorf("PackageName(events) = %s, want the manifest package", got)
	}
	if cfg.Output.Layout != "channel" {
		t.Errorf("Output.Layout = %s, want channel", cfg.Output.Layout)
	}
	if !cfg.ValidationEnabled("any") {
		t.Error("validation should default to on")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8090 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.History.Enabled {
		t.Error("history should be off by default")
	}
}

func TestLoad_PackageFromDir(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"gen", "gen"},
		{"pkg/event-bindings", "eventbindings"},
		{"out/v1.2", "v12"},
		{"out/2024", "channels"},
		{"out/type", "channels"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			cfg := writeAndLoad(t, "input: c.yaml\noutput:\n  dir: "+tt.dir+"\n")
			if got := cfg.Output.PackageName(""); got != tt.want {
				t.Errorf("PackageName() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_MANIFEST", "/specs/channels.yaml")

	cfg := writeAndLoad(t, "input: ${TEST_MANIFEST}\n")

	if cfg.Input != "/specs/channels.yaml" {
		t.Errorf("Input = %s, want /specs/channels.yaml", cfg.Input)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing input", "output:\n  dir: gen\n", "input is required"},
		{"bad package", "input: c.yaml\noutput:\n  package: my-pkg\n", "output.package"},
		{"bad layout", "input: c.yaml\noutput:\n  layout: flat\n", "output.layout"},
		{"bad log format", "input: c.yaml\nlogging:\n  format: xml\n", "logging.format"},
		{"unknown default operation", "input: c.yaml\ndefaults:\n  operations: [stream]\n", "unknown operation"},
		{
			"unknown channel operation",
			"input: c.yaml\nchannels:\n  a:\n    operations: [send]\n",
			"channels.a.operations",
		},
		{
			"unknown auth",
			"input: c.yaml\nchannels:\n  a:\n    http:\n      auth: digest\n",
			"http.auth",
		},
		{
			"unknown pagination",
			"input: c.yaml\nchannels:\n  a:\n    http:\n      pagination:\n        style: link\n",
			"pagination.style",
		},
		{
			"negative retries",
			"input: c.yaml\nchannels:\n  a:\n    http:\n      retry:\n        max_retries: -1\n",
			"must not be negative",
		},
		{"bad duration", "input: c.yaml\nserver:\n  read_timeout: soon\n", "parse config"},
		{"invalid yaml", "input: [unclosed\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, tt.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/channelgen.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("CHANNELGEN_OUTPUT_DIR", "/tmp/out")
	t.Setenv("CHANNELGEN_OUTPUT_PACKAGE", "bindings")
	t.Setenv("CHANNELGEN_PROTOCOLS", "nats, amqp ,")
	t.Setenv("CHANNELGEN_VALIDATION", "off")
	t.Setenv("CHANNELGEN_LOG_LEVEL", "debug")
	t.Setenv("CHANNELGEN_HISTORY_ENABLED", "yes")
	t.Setenv("CHANNELGEN_SERVER_PORT", "9999")

	content := `
input: channels.yaml
output:
  dir: gen
defaults:
  protocols: [kafka]
logging:
  level: warn
`
	cfg := writeAndLoad(t, content)

	if cfg.Output.Dir != "/tmp/out" {
		t.Errorf("Output.Dir = %s, want /tmp/out", cfg.Output.Dir)
	}
	if got := cfg.Output.PackageName("events"); got != "bindings" {
		t.Errorf("PackageName() = %s, want bindings", got)
	}
	if !reflect.DeepEqual(cfg.Defaults.Protocols, []string{"nats", "amqp"}) {
		t.Errorf("Defaults.Protocols = %v", cfg.Defaults.Protocols)
	}
	if cfg.ValidationEnabled("x") {
		t.Error("CHANNELGEN_VALIDATION=off should disable validation")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled should be true")
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
}

func TestEnvOverrides_InvalidPort(t *testing.T) {
	t.Setenv("CHANNELGEN_SERVER_PORT", "not-a-number")

	cfg := writeAndLoad(t, "input: c.yaml\n")

	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want default 8090", cfg.Server.Port)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHANNELGEN_INPUT", "/specs")
	t.Setenv("CHANNELGEN_LOG_FORMAT", "json")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	if cfg.Input != "/specs" {
		t.Errorf("Input = %s, want /specs", cfg.Input)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %s, want json", cfg.Logging.Format)
	}
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("CHANNELGEN_INPUT", "")

	if _, err := config.LoadFromEnv(); err == nil {
		t.Error("expected error when CHANNELGEN_INPUT is not set")
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := writeConfig(t, "input: c.yaml\n")
		cfg, err := config.LoadWithFallback(path)
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Path != path {
			t.Errorf("Path = %s, want %s", cfg.Path, path)
		}
	})

	t.Run("env only", func(t *testing.T) {
		t.Setenv("CHANNELGEN_INPUT", "/specs")
		cfg, err := config.LoadWithFallback("")
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Input != "/specs" {
			t.Errorf("Input = %s", cfg.Input)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		t.Setenv("CHANNELGEN_INPUT", "")
		_, err := config.LoadWithFallback("")
		if !errors.Is(err, config.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	if _, err := config.Discover(dir); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("Discover(empty) error = %v, want ErrNotFound", err)
	}

	for _, name := range []string{"channelgen.json", "channelgen.toml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := config.Discover(dir)
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if filepath.Base(got) != "channelgen.toml" {
		t.Errorf("Discover = %s, want channelgen.toml to win over json", got)
	}
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()
	return config.Load(writeConfig(t, content))
}

func TestLoad_ExtensionOperations(t *testing.T) {
	cfg := writeAndLoad(t, "input: c.yaml\nchannels:\n  orders:\n    protocols: [nats]\n    operations: [JetStream_Pull_Subscribe, exchange_publish]\n")
	got := cfg.Channels["orders"].Operations
	if !reflect.DeepEqual(got, []string{"JetStream_Pull_Subscribe", "exchange_publish"}) {
		t.Errorf("operations = %v", got)
	}
}
