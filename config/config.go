// Package config provides configuration loading and validation.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	// Input is the channel manifest file or directory.
	Input      string                   `yaml:"input" toml:"input" json:"input"`
	Output     OutputConfig             `yaml:"output" toml:"output" json:"output"`
	Validation *bool                    `yaml:"validation,omitempty" toml:"validation,omitempty" json:"validation,omitempty"`
	Defaults   DefaultsConfig           `yaml:"defaults" toml:"defaults" json:"defaults"`
	Channels   map[string]ChannelConfig `yaml:"channels,omitempty" toml:"channels,omitempty" json:"channels,omitempty"`
	Logging    LoggingConfig            `yaml:"logging" toml:"logging" json:"logging"`
	History    HistoryConfig            `yaml:"history" toml:"history" json:"history"`
	Metrics    MetricsConfig            `yaml:"metrics" toml:"metrics" json:"metrics"`
	Server     ServerConfig             `yaml:"server" toml:"server" json:"server"`

	// Path is the file the configuration was loaded from.
	Path string `yaml:"-" toml:"-" json:"-"`
}

// OutputConfig configures where generated files go.
type OutputConfig struct {
	Dir     string `yaml:"dir" toml:"dir" json:"dir"`
	Package string `yaml:"package" toml:"package" json:"package"`
	// Layout is "channel" (one file per channel) or "protocol" (one file per
	// channel and protocol).
	Layout string `yaml:"layout" toml:"layout" json:"layout"`
}

// DefaultsConfig applies to every channel without its own settings.
type DefaultsConfig struct {
	Protocols  []string `yaml:"protocols,omitempty" toml:"protocols,omitempty" json:"protocols,omitempty"`
	Operations []string `yaml:"operations,omitempty" toml:"operations,omitempty" json:"operations,omitempty"`
	Reverse    bool     `yaml:"reverse,omitempty" toml:"reverse,omitempty" json:"reverse,omitempty"`
}

// ChannelConfig overrides settings for one channel.
type ChannelConfig struct {
	Protocols  []string    `yaml:"protocols,omitempty" toml:"protocols,omitempty" json:"protocols,omitempty"`
	Operations []string    `yaml:"operations,omitempty" toml:"operations,omitempty" json:"operations,omitempty"`
	Validation *bool       `yaml:"validation,omitempty" toml:"validation,omitempty" json:"validation,omitempty"`
	Reverse    *bool       `yaml:"reverse,omitempty" toml:"reverse,omitempty" json:"reverse,omitempty"`
	Skip       bool        `yaml:"skip,omitempty" toml:"skip,omitempty" json:"skip,omitempty"`
	HTTP       *HTTPConfig `yaml:"http,omitempty" toml:"http,omitempty" json:"http,omitempty"`
}

// HTTPConfig configures generated HTTP clients.
type HTTPConfig struct {
	Method     string            `yaml:"method,omitempty" toml:"method,omitempty" json:"method,omitempty"`
	Auth       string            `yaml:"auth,omitempty" toml:"auth,omitempty" json:"auth,omitempty"` // "bearer", "basic", "apiKey", "oauth2"
	Retry      *RetryConfig      `yaml:"retry,omitempty" toml:"retry,omitempty" json:"retry,omitempty"`
	Pagination *PaginationConfig `yaml:"pagination,omitempty" toml:"pagination,omitempty" json:"pagination,omitempty"`
}

// RetryConfig configures the retry policy of generated HTTP clients.
type RetryConfig struct {
	MaxRetries          int      `yaml:"max_retries,omitempty" toml:"max_retries,omitempty" json:"max_retries,omitempty"`
	InitialDelay        Duration `yaml:"initial_delay,omitempty" toml:"initial_delay,omitempty" json:"initial_delay,omitempty"`
	MaxDelay            Duration `yaml:"max_delay,omitempty" toml:"max_delay,omitempty" json:"max_delay,omitempty"`
	Multiplier          float64  `yaml:"multiplier,omitempty" toml:"multiplier,omitempty" json:"multiplier,omitempty"`
	RetryableStatus     []int    `yaml:"retryable_status,omitempty" toml:"retryable_status,omitempty" json:"retryable_status,omitempty"`
	RetryOnNetworkError *bool    `yaml:"retry_on_network_error,omitempty" toml:"retry_on_network_error,omitempty" json:"retry_on_network_error,omitempty"`
}

// PaginationConfig configures pagination of generated HTTP clients.
type PaginationConfig struct {
	Style string `yaml:"style" toml:"style" json:"style"` // "offset", "cursor", "page", "range"
	Limit int    `yaml:"limit,omitempty" toml:"limit,omitempty" json:"limit,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`    // "debug", "info", "warn", "error"
	Format string `yaml:"format" toml:"format" json:"format"` // "json" or "console"
}

// HistoryConfig configures the generation history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	DSN     string `yaml:"dsn" toml:"dsn" json:"dsn"`
}

// MetricsConfig configures generation metrics.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics of each run in the Prometheus
	// text format.
	Textfile string `yaml:"textfile,omitempty" toml:"textfile,omitempty" json:"textfile,omitempty"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Host         string   `yaml:"host" toml:"host" json:"host"`
	Port         int      `yaml:"port" toml:"port" json:"port"`
	ReadTimeout  Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout"`
}

// Duration is a time.Duration written as "250ms" or "5s" in every format.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ValidationEnabled reports whether payload validation is on for channel id.
func (c *Config) ValidationEnabled(id string) bool {
	if ch, ok := c.Channels[id]; ok && ch.Validation != nil {
		return *ch.Validation
	}
	return c.Validation == nil || *c.Validation
}

// Names lists the file names Discover looks for, in order.
var Names = []string{"channelgen.yaml", "channelgen.yml", "channelgen.toml", "channelgen.json", "channelgen.jsonc"}

// ErrNotFound is returned by Discover when no configuration file exists.
var ErrNotFound = errors.New("no configuration file found")

// Discover returns the first configuration file in dir named in Names.
func Discover(dir string) (string, error) {
	for _, name := range Names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrNotFound, dir, strings.Join(Names, ", "))
}

// Load reads configuration from a YAML, TOML or JSON(C) file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := decode(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Path = path

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	// Relative paths are relative to the config file.
	base := filepath.Dir(path)
	cfg.Input = resolvePath(base, cfg.Input)
	cfg.Output.Dir = resolvePath(base, cfg.Output.Dir)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	CHANNELGEN_INPUT            - Channel manifest file or directory (required)
//	CHANNELGEN_OUTPUT_DIR       - Output directory (default: generated)
//	CHANNELGEN_OUTPUT_PACKAGE   - Go package of generated files (default: output dir name)
//	CHANNELGEN_PROTOCOLS        - Default protocols, comma separated
//	CHANNELGEN_VALIDATION       - Validate received payloads (default: true)
//	CHANNELGEN_LOG_LEVEL        - Log level: debug, info, warn, error (default: info)
//	CHANNELGEN_LOG_FORMAT       - Log format: json or console (default: console)
//	CHANNELGEN_HISTORY_ENABLED  - Record runs in the history store (default: false)
//	CHANNELGEN_HISTORY_DSN      - History database path
//	CHANNELGEN_METRICS_TEXTFILE - Write run metrics to this file
//	CHANNELGEN_SERVER_HOST      - Preview server host (default: 127.0.0.1)
//	CHANNELGEN_SERVER_PORT      - Preview server port (default: 8090)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when given, otherwise a configuration
// discovered in the working directory, otherwise the environment.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	if found, err := Discover("."); err == nil {
		return Load(found)
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("%w: run 'channelgen init', pass --config or set CHANNELGEN_INPUT", ErrNotFound)
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("CHANNELGEN_INPUT") != ""
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// applyEnvOverrides applies CHANNELGEN_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHANNELGEN_INPUT"); v != "" {
		cfg.Input = v
	}

	// Output configuration
	if v := os.Getenv("CHANNELGEN_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("CHANNELGEN_OUTPUT_PACKAGE"); v != "" {
		cfg.Output.Package = v
	}

	if v := os.Getenv("CHANNELGEN_PROTOCOLS"); v != "" {
		cfg.Defaults.Protocols = splitList(v)
	}
	if v := os.Getenv("CHANNELGEN_VALIDATION"); v != "" {
		b := parseBool(v)
		cfg.Validation = &b
	}

	// Logging configuration
	if v := os.Getenv("CHANNELGEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHANNELGEN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// History configuration
	if v := os.Getenv("CHANNELGEN_HISTORY_ENABLED"); v != "" {
		cfg.History.Enabled = parseBool(v)
	}
	if v := os.Getenv("CHANNELGEN_HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}

	if v := os.Getenv("CHANNELGEN_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}

	// Server configuration
	if v := os.Getenv("CHANNELGEN_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CHANNELGEN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "generated"
	}
	if cfg.Output.Layout == "" {
		cfg.Output.Layout = "channel"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.History.DSN == "" {
		cfg.History.DSN = filepath.Join(".channelgen", "history.db")
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(60 * time.Second)
	}
}

// PackageName returns the package of generated files: output.package when
// set, else manifest (the package a manifest names), else one derived from
// the output directory.
func (o OutputConfig) PackageName(manifest string) string {
	if o.Package != "" {
		return o.Package
	}
	if manifest != "" {
		return manifest
	}
	return packageName(o.Dir)
}

// packageName derives a package name from the output directory.
func packageName(dir string) string {
	name := strings.ToLower(filepath.Base(dir))
	name = strings.NewReplacer("-", "", ".", "", " ", "").Replace(name)
	if !token.IsIdentifier(name) || token.IsKeyword(name) {
		return "channels"
	}
	return name
}

var (
	validOperations = map[string]bool{
		"publish": true, "subscribe": true, "request": true, "reply": true,
		"jetstream_publish": true, "jetstream_push_subscribe": true, "jetstream_pull_subscribe": true,
		"exchange_publish": true,
	}
	validAuthSchemes = map[string]bool{"": true, "bearer": true, "basic": true, "apiKey": true, "oauth2": true}
	validPagination  = map[string]bool{"offset": true, "cursor": true, "page": true, "range": true}
)

func validate(cfg *Config) error {
	if cfg.Input == "" {
		return fmt.Errorf("input is required")
	}

	if pkg := cfg.Output.Package; pkg != "" && (!token.IsIdentifier(pkg) || token.IsKeyword(pkg)) {
		return fmt.Errorf("output.package %q is not a valid Go package name", cfg.Output.Package)
	}
	if cfg.Output.Layout != "channel" && cfg.Output.Layout != "protocol" {
		return fmt.Errorf("output.layout must be 'channel' or 'protocol', got %q", cfg.Output.Layout)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if err := validateOperations("defaults.operations", cfg.Defaults.Operations); err != nil {
		return err
	}

	for id, ch := range cfg.Channels {
		if err := validateOperations("channels."+id+".operations", ch.Operations); err != nil {
			return err
		}
		if ch.HTTP == nil {
			continue
		}
		if !validAuthSchemes[ch.HTTP.Auth] {
			return fmt.Errorf("channels.%s.http.auth must be one of: bearer, basic, apiKey, oauth2", id)
		}
		if p := ch.HTTP.Pagination; p != nil && !validPagination[p.Style] {
			return fmt.Errorf("channels.%s.http.pagination.style must be one of: offset, cursor, page, range", id)
		}
		if r := ch.HTTP.Retry; r != nil && (r.MaxRetries < 0 || r.Multiplier < 0) {
			return fmt.Errorf("channels.%s.http.retry values must not be negative", id)
		}
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", cfg.Server.Port)
	}

	return nil
}

func validateOperations(field string, ops []string) error {
	for _, op := range ops {
		if !validOperations[strings.ToLower(op)] {
			return fmt.Errorf("%s: unknown operation %q", field, op)
		}
	}
	return nil
}
