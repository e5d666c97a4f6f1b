// Package bootstrap wires all dependencies of the channelgen commands.
// Configuration comes from a channelgen file, discovered or named, with
// CHANNELGEN_* environment variables as overrides or as the whole
// configuration when no file exists.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/artpar/channelgen/adapters/clock"
	apihttp "github.com/artpar/channelgen/adapters/http"
	"github.com/artpar/channelgen/adapters/idgen"
	"github.com/artpar/channelgen/adapters/metrics"
	"github.com/artpar/channelgen/adapters/output"
	"github.com/artpar/channelgen/adapters/sqlite"
	"github.com/artpar/channelgen/adapters/transport"
	"github.com/artpar/channelgen/app"
	"github.com/artpar/channelgen/config"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/ports"
	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// ConfigPath names the configuration file; empty discovers one.
	ConfigPath string
	// DryRun reports files without writing them.
	DryRun bool
	// Workers bounds concurrent channel synthesis (0 = GOMAXPROCS).
	Workers int
	// LogOutput receives log lines (default: stderr).
	LogOutput io.Writer
	// LogLevel overrides the configured level when set.
	LogLevel string
	// Version is reported by the preview server.
	Version string
}

// App holds the wired application.
type App struct {
	Logger   zerolog.Logger
	DB       *sqlite.DB // nil when history is disabled
	History  ports.HistoryStore
	Metrics  *metrics.Collector
	Synth    *synth.Synthesizer
	Generate *app.GenerateService

	// HTTPServer is set while Serve runs.
	HTTPServer *http.Server

	holder  *config.Holder // nil for environment-only configuration
	static  *config.Config
	version string
}

// New loads the configuration and wires the application.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	w := opts.LogOutput
	if w == nil {
		w = os.Stderr
	}
	logger := SetupLogger(level, cfg.Logging.Format, w)

	a := &App{
		Logger:  logger,
		Metrics: metrics.New(),
		Synth:   transport.NewSynthesizer(),
		static:  cfg,
		version: opts.Version,
	}

	if cfg.Path != "" {
		holder, err := config.NewHolder(cfg.Path, logger.With().Str("component", "config").Logger())
		if err != nil {
			return nil, err
		}
		holder.OnChange(func(*config.Config) { a.Metrics.ConfigReloads.Inc() })
		a.holder = holder
	}

	if cfg.History.Enabled {
		if err := a.initHistory(cfg.History.DSN); err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
	}

	a.Generate = app.NewGenerateService(
		a.Synth,
		output.NewWriter(opts.DryRun, logger),
		a.History,
		a.Metrics,
		clock.Real{},
		idgen.UUID{},
		logger,
		app.GenerateServiceConfig{Workers: opts.Workers, DryRun: opts.DryRun},
	)

	logger.Debug().
		Str("config", cfg.Path).
		Str("input", cfg.Input).
		Str("output", cfg.Output.Dir).
		Bool("history", cfg.History.Enabled).
		Msg("channelgen initialized")

	return a, nil
}

func (a *App) initHistory(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.History = sqlite.NewHistoryStore(db)
	return nil
}

// Config returns the current configuration.
func (a *App) Config() *config.Config {
	if a.holder != nil {
		return a.holder.Get()
	}
	return a.static
}

// Watch regenerates on every change to the configuration file or the
// manifests until ctx is done.
func (a *App) Watch(ctx context.Context, onReport func(app.Report, error)) error {
	if a.holder == nil {
		return errors.New("watch needs a configuration file")
	}
	a.holder.WatchSignals()
	return a.Generate.Watch(ctx, a.holder, onReport)
}

// Serve runs the preview server until ctx is done, then shuts it down.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config()

	if a.holder != nil {
		if err := a.holder.Watch(); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer a.holder.Stop()
	}

	h := apihttp.NewHandler(apihttp.HandlerConfig{
		Service:     a.Generate,
		Synthesizer: a.Synth,
		History:     a.History,
		Config:      a.Config,
		Version:     a.version,
	}, a.Logger)

	a.HTTPServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      apihttp.NewRouter(h, a.Logger, apihttp.RouterConfig{Metrics: a.Metrics, EnableOpenAPI: true}),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting preview server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.HTTPServer.Shutdown(shutdownCtx)
}

// Close releases the database.
func (a *App) Close() error {
	if a.holder != nil {
		a.holder.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// SetupLogger builds the process logger. Unknown levels fall back to info;
// any format but json writes human-readable console lines.
func SetupLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format == "json" {
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}
