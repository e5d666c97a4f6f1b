// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Output Ports
// -----------------------------------------------------------------------------

// File is one generated source file, relative to the output directory.
type File struct {
	Path     string
	Channels []string
	Content  []byte
}

// WriteStatus is the outcome of writing one file.
type WriteStatus string

const (
	StatusWritten   WriteStatus = "written"
	StatusUnchanged WriteStatus = "unchanged"
	StatusPlanned   WriteStatus = "planned" // dry run
)

// WriteResult describes one file handled by a FileWriter.
type WriteResult struct {
	Path   string      `json:"path" yaml:"path"`
	Status WriteStatus `json:"status" yaml:"status"`
	Digest string      `json:"digest" yaml:"digest"`
	Bytes  int         `json:"bytes" yaml:"bytes"`
}

// FileWriter persists generated files.
type FileWriter interface {
	// Write stores files under dir. Files whose content is already on disk
	// are left alone.
	Write(ctx context.Context, dir string, files []File) ([]WriteResult, error)
}

// -----------------------------------------------------------------------------
// History Ports
// -----------------------------------------------------------------------------

// Run is one recorded generation run.
type Run struct {
	ID         string
	ConfigPath string
	Input      string
	OutputDir  string
	Status     string // "ok", "partial", "failed"
	Channels   int
	Bindings   int
	Failures   int
	Files      int
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Artifact is one file a run produced.
type Artifact struct {
	RunID  string
	Path   string
	Status WriteStatus
	Digest string
	Bytes  int
}

// HistoryStore persists generation runs.
type HistoryStore interface {
	// SaveRun stores a run and its artifacts.
	SaveRun(ctx context.Context, run Run, artifacts []Artifact) error

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// GetRun returns a run and its artifacts.
	GetRun(ctx context.Context, id string) (Run, []Artifact, error)
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// GenerationMetrics records what a run produced.
type GenerationMetrics interface {
	RunFinished(status string, duration time.Duration)
	BindingGenerated(protocol, operation string)
	ChannelFailed(protocol, reason string)
	FileHandled(status WriteStatus)
	// WriteTextfile exports the current values in the Prometheus text format.
	WriteTextfile(path string) error
}
