// Package memory provides in-memory implementations for testing and for
// runs that keep no history on disk.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/channelgen/ports"
)

// HistoryStore is an in-memory implementation of ports.HistoryStore.
type HistoryStore struct {
	mu        sync.RWMutex
	runs      map[string]ports.Run
	artifacts map[string][]ports.Artifact // by run ID
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		runs:      make(map[string]ports.Run),
		artifacts: make(map[string][]ports.Artifact),
	}
}

// SaveRun stores a run, replacing any run with the same ID.
func (s *HistoryStore) SaveRun(ctx context.Context, run ports.Run, artifacts []ports.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := slices.Clone(artifacts)
	sort.Slice(stored, func(i, j int) bool { return stored[i].Path < stored[j].Path })

	s.runs[run.ID] = run
	s.artifacts[run.ID] = stored
	return nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *HistoryStore) ListRuns(ctx context.Context, limit int) ([]ports.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ports.Run, 0, len(s.runs))
	for _, r := range s.runs {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return strings.Compare(result[i].ID, result[j].ID) > 0
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetRun returns a run and its artifacts ordered by path.
func (s *HistoryStore) GetRun(ctx context.Context, id string) (ports.Run, []ports.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return ports.Run{}, nil, ports.ErrNotFound
	}
	return run, slices.Clone(s.artifacts[id]), nil
}

// Len returns the number of stored runs.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

var _ ports.HistoryStore = (*HistoryStore)(nil)
