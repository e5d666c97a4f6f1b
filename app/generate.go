// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/artpar/channelgen/adapters/output"
	"github.com/artpar/channelgen/config"
	"github.com/artpar/channelgen/core/schema"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/descriptor"
	"github.com/artpar/channelgen/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Run outcomes.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Failure is a channel, or a channel on one protocol, that produced nothing.
type Failure struct {
	Channel  string `json:"channel" yaml:"channel"`
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Reason   string `json:"reason" yaml:"reason"`
	Error    string `json:"error" yaml:"error"`
}

// BindingSummary describes one generated binding.
type BindingSummary struct {
	Channel   string `json:"channel" yaml:"channel"`
	Protocol  string `json:"protocol" yaml:"protocol"`
	Operation string `json:"operation" yaml:"operation"`
	Func      string `json:"func" yaml:"func"`
}

// Report is the outcome of one generation run.
type Report struct {
	RunID        string              `json:"run_id" yaml:"run_id"`
	Status       string              `json:"status" yaml:"status"`
	Package      string              `json:"package" yaml:"package"`
	OutputDir    string              `json:"output_dir" yaml:"output_dir"`
	DryRun       bool                `json:"dry_run" yaml:"dry_run"`
	Channels     int                 `json:"channels" yaml:"channels"`
	Bindings     []BindingSummary    `json:"bindings" yaml:"bindings"`
	Failures     []Failure           `json:"failures,omitempty" yaml:"failures,omitempty"`
	Warnings     []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Files        []ports.WriteResult `json:"files" yaml:"files"`
	Dependencies []synth.Dependency  `json:"dependencies" yaml:"dependencies"`
	StartedAt    time.Time           `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time           `json:"finished_at" yaml:"finished_at"`
}

// Result is a synthesized but unwritten run.
type Result struct {
	Report Report
	Files  []ports.File
}

// GenerateService turns channel manifests into binding files.
type GenerateService struct {
	synth   *synth.Synthesizer
	writer  ports.FileWriter
	history ports.HistoryStore
	metrics ports.GenerationMetrics
	clock   ports.Clock
	ids     ports.IDGenerator
	logger  zerolog.Logger
	cfg     GenerateServiceConfig

	// Generate calls are serialized; watch mode may trigger them back to back.
	mu sync.Mutex
}

// GenerateServiceConfig contains configuration for GenerateService.
type GenerateServiceConfig struct {
	Workers int  // Channels synthesized concurrently (default: GOMAXPROCS)
	DryRun  bool // Report files without writing them
}

// NewGenerateService creates a new generation service. history may be nil.
func NewGenerateService(
	s *synth.Synthesizer,
	writer ports.FileWriter,
	history ports.HistoryStore,
	metrics ports.GenerationMetrics,
	clock ports.Clock,
	ids ports.IDGenerator,
	logger zerolog.Logger,
	cfg GenerateServiceConfig,
) *GenerateService {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	return &GenerateService{
		synth:   s,
		writer:  writer,
		history: history,
		metrics: metrics,
		clock:   clock,
		ids:     ids,
		logger:  logger.With().Str("service", "generate").Logger(),
		cfg:     cfg,
	}
}

// Generate loads the manifest named by cfg, synthesizes every channel and
// writes the files. Channel failures are reported, not returned; the error is
// for failures of the run itself.
func (s *GenerateService) Generate(ctx context.Context, cfg *config.Config) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := schema.Load(cfg.Input)
	if err != nil {
		return Report{}, fmt.Errorf("load manifest: %w", err)
	}

	res, err := s.Synthesize(ctx, cfg, m)
	if err != nil {
		return res.Report, err
	}
	report := res.Report

	results, err := s.writer.Write(ctx, cfg.Output.Dir, res.Files)
	report.Files = results
	for _, r := range results {
		s.metrics.FileHandled(r.Status)
	}
	if err != nil {
		report.Status = StatusFailed
		report.FinishedAt = s.clock.Now()
		s.finish(ctx, cfg, report)
		return report, fmt.Errorf("write output: %w", err)
	}

	report.FinishedAt = s.clock.Now()
	s.finish(ctx, cfg, report)

	s.logger.Info().
		Str("run_id", report.RunID).
		Str("status", report.Status).
		Int("channels", report.Channels).
		Int("bindings", len(report.Bindings)).
		Int("failures", len(report.Failures)).
		Int("files", len(report.Files)).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("generation finished")

	return report, nil
}

// Synthesize builds the bindings and files of m without writing anything.
func (s *GenerateService) Synthesize(ctx context.Context, cfg *config.Config, m schema.Manifest) (Result, error) {
	report := Report{
		RunID:     s.ids.New(),
		Package:   cfg.Output.PackageName(m.Package),
		OutputDir: cfg.Output.Dir,
		DryRun:    s.cfg.DryRun,
		StartedAt: s.clock.Now(),
	}
	log := s.logger.With().Str("run_id", report.RunID).Logger()

	run := synth.NewRun()
	outcomes := make([]channelOutcome, len(m.Channels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, ch := range m.Channels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.channel(run, cfg, ch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.Status = StatusFailed
		return Result{Report: report}, err
	}

	var bindings []synth.Binding
	for _, o := range outcomes {
		if o.skipped {
			continue
		}
		report.Channels++
		report.Warnings = append(report.Warnings, o.warnings...)
		report.Failures = append(report.Failures, o.failures...)
		bindings = append(bindings, o.bindings...)

		for _, w := range o.warnings {
			log.Warn().Str("channel", o.id).Msg(w)
		}
		for _, f := range o.failures {
			log.Error().
				Str("channel", f.Channel).
				Str("protocol", f.Protocol).
				Str("reason", f.Reason).
				Str("error", f.Error).
				Msg("channel not generated")
			s.metrics.ChannelFailed(f.Protocol, f.Reason)
		}
	}

	for _, b := range bindings {
		report.Bindings = append(report.Bindings, BindingSummary{
			Channel:   b.Channel,
			Protocol:  b.Protocol,
			Operation: string(b.Operation),
			Func:      b.Func,
		})
		s.metrics.BindingGenerated(b.Protocol, string(b.Operation))
		log.Debug().
			Str("channel", b.Channel).
			Str("protocol", b.Protocol).
			Str("operation", string(b.Operation)).
			Str("func", b.Func).
			Msg("binding generated")
	}
	report.Dependencies = dependencies(bindings)
	report.Status = status(len(report.Bindings), len(report.Failures))

	files, err := output.Assemble(report.Package, output.Layout(cfg.Output.Layout), bindings, run.Validators())
	if err != nil {
		report.Status = StatusFailed
		return Result{Report: report}, fmt.Errorf("assemble output: %w", err)
	}

	report.FinishedAt = s.clock.Now()
	return Result{Report: report, Files: files}, nil
}

type channelOutcome struct {
	id       string
	skipped  bool
	bindings []synth.Binding
	failures []Failure
	warnings []string
}

// channel synthesizes one channel on every protocol it resolves to. A failing
// protocol does not stop the others.
func (s *GenerateService) channel(run *synth.Run, cfg *config.Config, ch schema.Channel) channelOutcome {
	out := channelOutcome{id: ch.ID}
	override := cfg.Channels[ch.ID]
	if override.Skip {
		out.skipped = true
		return out
	}

	protocols := Protocols(cfg, ch)
	if len(protocols) == 0 {
		out.warnings = append(out.warnings, fmt.Sprintf("channel %q: no protocols configured", ch.ID))
		return out
	}

	d, warnings, err := descriptor.Build(ch.Input(), protocols)
	for _, w := range warnings {
		out.warnings = append(out.warnings, w.String())
	}
	if err != nil {
		out.failures = append(out.failures, failure(ch.ID, "", err))
		return out
	}

	opts, err := options(cfg, ch.ID)
	if err != nil {
		out.failures = append(out.failures, failure(ch.ID, "", err))
		return out
	}

	for _, protocol := range d.Protocols() {
		bindings, err := s.synth.Synthesize(run, d, protocol, opts)
		if err != nil {
			out.failures = append(out.failures, failure(ch.ID, protocol, err))
			continue
		}
		out.bindings = append(out.bindings, bindings...)
	}
	return out
}

// options resolves the synthesis options of channel id: its own settings,
// then the defaults.
func options(cfg *config.Config, id string) (synth.Options, error) {
	override := cfg.Channels[id]

	opts := synth.Options{
		Validate: cfg.ValidationEnabled(id),
		Reverse:  cfg.Defaults.Reverse,
	}
	if override.Reverse != nil {
		opts.Reverse = *override.Reverse
	}

	for _, name := range firstNonEmpty(override.Operations, cfg.Defaults.Operations) {
		op, err := synth.ParseOperation(name)
		if err != nil {
			return synth.Options{}, &descriptor.ChannelError{Channel: id, Reason: "operations", Err: err}
		}
		opts.Operations = append(opts.Operations, op)
	}

	if h := override.HTTP; h != nil {
		opts.HTTP = &synth.HTTPOptions{Method: h.Method, Auth: h.Auth}
		if r := h.Retry; r != nil {
			opts.HTTP.Retry = &synth.RetryOptions{
				MaxRetries:          r.MaxRetries,
				InitialDelayMillis:  int(r.InitialDelay.Std().Milliseconds()),
				MaxDelayMillis:      int(r.MaxDelay.Std().Milliseconds()),
				Multiplier:          r.Multiplier,
				RetryableStatus:     r.RetryableStatus,
				RetryOnNetworkError: r.RetryOnNetworkError == nil || *r.RetryOnNetworkError,
			}
		}
		if p := h.Pagination; p != nil {
			opts.HTTP.Pagination = &synth.PaginationOptions{Style: p.Style, Limit: p.Limit}
		}
	}
	return opts, nil
}

// Protocols resolves the transports ch is generated for: its configuration
// entry, then the manifest, then the configured defaults.
func Protocols(cfg *config.Config, ch schema.Channel) []string {
	return firstNonEmpty(cfg.Channels[ch.ID].Protocols, ch.Protocols, cfg.Defaults.Protocols)
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func failure(channel, protocol string, err error) Failure {
	return Failure{Channel: channel, Protocol: protocol, Reason: Reason(err), Error: err.Error()}
}

// Reason classifies a generation error for reports and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, synth.ErrUnsupportedOperation):
		return "unsupported_operation"
	case errors.Is(err, synth.ErrUnknownProtocol):
		return "unknown_protocol"
	case errors.Is(err, synth.ErrUnsatisfiableParameter):
		return "unsatisfiable_parameter"
	case errors.Is(err, descriptor.ErrUnresolvedParameter):
		return "unresolved_parameter"
	case errors.Is(err, descriptor.ErrInvalidChannel):
		return "invalid_channel"
	default:
		return "error"
	}
}

func status(bindings, failures int) string {
	switch {
	case failures == 0:
		return StatusOK
	case bindings == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// dependencies lists the modules generated code needs, once each.
func dependencies(bindings []synth.Binding) []synth.Dependency {
	seen := make(map[string]bool)
	var out []synth.Dependency
	for _, b := range bindings {
		for _, d := range b.Dependencies {
			if seen[d.Module] {
				continue
			}
			seen[d.Module] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

// finish records a run in history and metrics. Recording errors are logged;
// they never fail the run.
func (s *GenerateService) finish(ctx context.Context, cfg *config.Config, report Report) {
	s.metrics.RunFinished(report.Status, report.FinishedAt.Sub(report.StartedAt))

	if cfg.Metrics.Textfile != "" {
		if err := s.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			s.logger.Error().Err(err).Str("path", cfg.Metrics.Textfile).Msg("write metrics textfile failed")
		}
	}

	if s.history == nil {
		return
	}

	run := ports.Run{
		ID:         report.RunID,
		ConfigPath: cfg.Path,
		Input:      cfg.Input,
		OutputDir:  report.OutputDir,
		Status:     report.Status,
		Channels:   report.Channels,
		Bindings:   len(report.Bindings),
		Failures:   len(report.Failures),
		Files:      len(report.Files),
		DryRun:     report.DryRun,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	artifacts := make([]ports.Artifact, 0, len(report.Files))
	for _, f := range report.Files {
		artifacts = append(artifacts, ports.Artifact{RunID: run.ID, Path: f.Path, Status: f.Status, Digest: f.Digest, Bytes: f.Bytes})
	}

	if err := s.history.SaveRun(ctx, run, artifacts); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID).Msg("record run history failed")
	}
}

// Watch generates once, then again whenever the configuration or the
// manifests under it change, until ctx is done. onReport receives every
// outcome.
func (s *GenerateService) Watch(ctx context.Context, holder *config.Holder, onReport func(Report, error)) error {
	if onReport == nil {
		onReport = func(Report, error) {}
	}

	onReport(s.Generate(ctx, holder.Get()))

	holder.OnChange(func(cfg *config.Config) {
		if ctx.Err() != nil {
			return
		}
		onReport(s.Generate(ctx, cfg))
	})
	if err := holder.Watch(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer holder.Stop()

	s.logger.Info().Str("input", holder.Get().Input).Msg("watching for changes")
	<-ctx.Done()
	return nil
}
