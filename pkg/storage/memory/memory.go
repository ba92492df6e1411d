package memory

import (
	"context"
	"sync"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
)

// Storage stores titles in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	committed []title.Row
	staged    []title.Row
	closed    bool
	mu        sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		committed: make([]title.Row, 0, 1024),
	}
}

// Insert stages a row until Commit
func (s *Storage) Insert(ctx context.Context, row title.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	s.staged = append(s.staged, row)
	return nil
}

// Commit makes all staged rows visible
func (s *Storage) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	s.committed = append(s.committed, s.staged...)
	s.staged = nil
	return nil
}

// Search retrieves committed titles matching the request
func (s *Storage) Search(ctx context.Context, req storage.QueryRequest) ([]title.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.Search(s.committed, req), nil
}

// Count returns the number of committed titles
func (s *Storage) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return uint64(len(s.committed)), nil
}

// Rows returns a copy of all committed titles in insertion order
func (s *Storage) Rows() []title.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]title.Row, len(s.committed))
	copy(rows, s.committed)
	return rows
}

// Rollback drops staged rows
func (s *Storage) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = nil
	return nil
}

// Close drops staged rows. Committed rows stay readable.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = nil
	s.closed = true
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{}
	for _, r := range s.committed {
		stats.Observe(r)
	}

	// Rough size estimate (each title ~100 bytes)
	stats.SizeBytes = uint64(len(s.committed)) * 100

	return stats, nil
}
