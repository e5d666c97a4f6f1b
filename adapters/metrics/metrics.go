// Package metrics provides Prometheus metrics collection for channelgen.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/channelgen/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for channelgen.
type Collector struct {
	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	LastRun     prometheus.Gauge

	// Output metrics
	BindingsTotal *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
	FilesTotal    *prometheus.CounterVec

	// Config metrics
	ConfigReloads prometheus.Counter

	// Preview server metrics
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates a collector registered with its own registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a new metrics collector with a custom registry.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "channelgen",
				Name:      "runs_total",
				Help:      "Total number of generation runs by outcome",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "channelgen",
				Name:      "run_duration_seconds",
				Help:      "Generation run duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		LastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "channelgen",
				Name:      "last_run_timestamp",
				Help:      "Unix timestamp of the last finished run",
			},
		),
		BindingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "channelgen",
				Name:      "bindings_total",
				Help:      "Total number of generated bindings",
			},
			[]string{"protocol", "operation"},
		),
		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "channelgen",
				Name:      "channel_failures_total",
				Help:      "Total number of channel and protocol pairs that failed to generate",
			},
			[]string{"protocol", "reason"},
		),
		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "channelgen",
				Name:      "files_total",
				Help:      "Total number of generated files by write outcome",
			},
			[]string{"status"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "channelgen",
				Name:      "config_reloads_total",
				Help:      "Total number of configuration reloads in watch mode",
			},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "channelgen",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Preview server request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "channelgen",
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Preview server requests being served",
			},
		),
		gatherer: reg,
	}
}

// Gatherer returns the registry the collector's metrics live in.
func (c *Collector) Gatherer() prometheus.Gatherer { return c.gatherer }

// RunFinished implements ports.GenerationMetrics.
func (c *Collector) RunFinished(status string, d time.Duration) {
	c.RunsTotal.WithLabelValues(status).Inc()
	c.RunDuration.Observe(d.Seconds())
	c.LastRun.SetToCurrentTime()
}

// BindingGenerated implements ports.GenerationMetrics.
func (c *Collector) BindingGenerated(protocol, operation string) {
	c.BindingsTotal.WithLabelValues(protocol, operation).Inc()
}

// ChannelFailed implements ports.GenerationMetrics.
func (c *Collector) ChannelFailed(protocol, reason string) {
	c.FailuresTotal.WithLabelValues(protocol, reason).Inc()
}

// FileHandled implements ports.GenerationMetrics.
func (c *Collector) FileHandled(status ports.WriteStatus) {
	c.FilesTotal.WithLabelValues(string(status)).Inc()
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// for pickup by a node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.GenerationMetrics = (*Collector)(nil)

// Nop discards all metrics.
type Nop struct{}

func (Nop) RunFinished(string, time.Duration) {}
func (Nop) BindingGenerated(string, string) {}
func (Nop) ChannelFailed(string, string) {}
func (Nop) FileHandled(ports.WriteStatus) {}
func (Nop) WriteTextfile(string) error { return nil }

var _ ports.GenerationMetrics = Nop{}
