package output

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/channelgen/ports"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

// Writer implements ports.FileWriter on the local file system.
type Writer struct {
	// DryRun reports what would be written without touching the disk.
	DryRun bool
	logger zerolog.Logger
}

// NewWriter creates a file writer.
func NewWriter(dryRun bool, logger zerolog.Logger) *Writer {
	return &Writer{DryRun: dryRun, logger: logger.With().Str("component", "output").Logger()}
}

// Digest returns the hex blake2b-256 digest of content.
func Digest(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Write stores files under dir. Each file is written to a temporary file and
// renamed into place; files whose content matches the disk are skipped.
func (w *Writer) Write(ctx context.Context, dir string, files []ports.File) ([]ports.WriteResult, error) {
	if !w.DryRun {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	results := make([]ports.WriteResult, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := ports.WriteResult{Path: f.Path, Digest: Digest(f.Content), Bytes: len(f.Content)}
		path := filepath.Join(dir, f.Path)

		switch {
		case unchanged(path, f.Content):
			res.Status = ports.StatusUnchanged
		case w.DryRun:
			res.Status = ports.StatusPlanned
		default:
			if err := writeAtomic(path, f.Content); err != nil {
				return results, fmt.Errorf("write %s: %w", f.Path, err)
			}
			res.Status = ports.StatusWritten
		}

		w.logger.Debug().
			Str("file", f.Path).
			Str("status", string(res.Status)).
			Int("bytes", res.Bytes).
			Msg("file handled")
		results = append(results, res)
	}

	return results, nil
}

func unchanged(path string, content []byte) bool {
	existing, err := os.ReadFile(path)
	return err == nil && Digest(existing) == Digest(content)
}

func writeAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Ensure interface compliance.
var _ ports.FileWriter = (*Writer)(nil)
