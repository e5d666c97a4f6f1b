// Package idgen provides run identifier generators.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/artpar/channelgen/ports"
	"github.com/google/uuid"
)

// UUID generates time-ordered UUIDs (version 7), so run ids sort by start time.
type UUID struct{}

// New generates a new UUID v7, falling back to v4 if the clock source fails.
func (UUID) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Ensure interface compliance.
var _ ports.IDGenerator = UUID{}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID, zero-padded so ids sort as strings.
func (s *Sequential) New() string {
	return fmt.Sprintf("%s%06d", s.prefix, s.counter.Add(1))
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)
