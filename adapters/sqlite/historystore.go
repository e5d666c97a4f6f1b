package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpar/channelgen/ports"
)

// HistoryStore implements ports.HistoryStore using SQLite.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new SQLite history store.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// SaveRun stores a run and its artifacts in one transaction.
func (s *HistoryStore) SaveRun(ctx context.Context, run ports.Run, artifacts []ports.Artifact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, config_path, input, output_dir, status,
			channels, bindings, failures, files, dry_run, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.ConfigPath, run.Input, run.OutputDir, run.Status,
		run.Channels, run.Bindings, run.Failures, run.Files, run.DryRun,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(artifacts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO artifacts (run_id, path, status, digest, bytes) VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range artifacts {
			if _, err := stmt.ExecContext(ctx, run.ID, a.Path, string(a.Status), a.Digest, a.Bytes); err != nil {
				return fmt.Errorf("insert artifact %s: %w", a.Path, err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `
	id, config_path, input, output_dir, status,
	channels, bindings, failures, files, dry_run, started_at, finished_at
`

// ListRuns returns up to limit runs, most recent first.
func (s *HistoryStore) ListRuns(ctx context.Context, limit int) ([]ports.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ports.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run and its artifacts ordered by path.
func (s *HistoryStore) GetRun(ctx context.Context, id string) (ports.Run, []ports.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Run{}, nil, ErrNotFound
	}
	if err != nil {
		return ports.Run{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, status, digest, bytes
		FROM artifacts
		WHERE run_id = ?
		ORDER BY path
	`, id)
	if err != nil {
		return ports.Run{}, nil, err
	}
	defer rows.Close()

	var artifacts []ports.Artifact
	for rows.Next() {
		a := ports.Artifact{RunID: id}
		var status string
		if err := rows.Scan(&a.Path, &status, &a.Digest, &a.Bytes); err != nil {
			return ports.Run{}, nil, err
		}
		a.Status = ports.WriteStatus(status)
		artifacts = append(artifacts, a)
	}
	return run, artifacts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ports.Run, error) {
	var run ports.Run
	err := row.Scan(
		&run.ID, &run.ConfigPath, &run.Input, &run.OutputDir, &run.Status,
		&run.Channels, &run.Bindings, &run.Failures, &run.Files, &run.DryRun,
		&run.StartedAt, &run.FinishedAt,
	)
	return run, err
}

// Ensure interface compliance.
var _ ports.HistoryStore = (*HistoryStore)(nil)
