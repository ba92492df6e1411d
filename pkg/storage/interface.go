package storage

import (
	"context"
	"errors"

	"github.com/nicktill/titlefrag/pkg/title"
)

// Search limits
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 10000
)

// ErrClosed is returned by operations on a closed sink
var ErrClosed = errors.New("storage: sink is closed")

// Sink accepts typed title rows for persistence.
// Rows passed to Insert are staged; Commit makes the whole batch durable and
// visible. Close without Commit discards staged rows.
type Sink interface {
	// Insert stages one row
	Insert(ctx context.Context, row title.Row) error

	// Commit finalizes all staged rows
	Commit(ctx context.Context) error

	// Close releases the sink
	Close() error
}

// Rollbacker is implemented by sinks that can drop staged rows without
// closing. Loaders call it when a batch fails.
type Rollbacker interface {
	Rollback() error
}

// Rollback drops staged rows of sink when it supports it
func Rollback(sink Sink) error {
	if rb, ok := sink.(Rollbacker); ok {
		return rb.Rollback()
	}
	return nil
}

// Store is a Sink that can also be read back.
// Implementations: memory (testing), badger (local), mysql (title_basics table)
type Store interface {
	Sink

	// Search returns committed rows matching the request
	Search(ctx context.Context, req QueryRequest) ([]title.Row, error)

	// Count returns the number of committed rows
	Count(ctx context.Context) (uint64, error)

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// QueryRequest specifies which titles to retrieve
type QueryRequest struct {
	// Case-insensitive substring matched against all five columns (optional)
	Query string

	// Limit number of results (0 = DefaultSearchLimit)
	Limit int
}

// EffectiveLimit returns the limit clamped to [1, MaxSearchLimit]
func (r QueryRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultSearchLimit
	}
	if r.Limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return r.Limit
}

// Stats provides storage usage and year coverage info
type Stats struct {
	// Total committed titles
	TotalTitles uint64 `json:"total_titles"`

	// Titles with a present startYear
	WithStartYear uint64 `json:"with_start_year"`

	// Year range over titles with a startYear (nil when none)
	MinStartYear *int64 `json:"min_start_year,omitempty"`
	MaxStartYear *int64 `json:"max_start_year,omitempty"`

	// Storage size in bytes (0 when unknown)
	SizeBytes uint64 `json:"size_bytes"`
}

// Observe folds one row into the year coverage fields
func (s *Stats) Observe(row title.Row) {
	s.TotalTitles++
	if !row.StartYear.Valid {
		return
	}
	s.WithStartYear++
	y := row.StartYear.Int
	if s.MinStartYear == nil || y < *s.MinStartYear {
		s.MinStartYear = &y
	}
	if s.MaxStartYear == nil || y > *s.MaxStartYear {
		v := y
		s.MaxStartYear = &v
	}
}
