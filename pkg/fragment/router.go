package fragment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
)

// Router splits a load across two sinks at a boundary year.
// Rows with StartYear <= Boundary, or no StartYear, go to Lower; later rows
// go to Upper.
type Router struct {
	Boundary int
	Lower    storage.Sink
	Upper    storage.Sink

	mu    sync.Mutex
	lower int64
	upper int64
}

// NewRouter creates a router for the given fragment boundary
func NewRouter(boundary int, lower, upper storage.Sink) *Router {
	return &Router{Boundary: boundary, Lower: lower, Upper: upper}
}

// Side reports which fragment a row belongs to
func (r *Router) Side(row title.Row) string {
	if row.StartYear.Valid && row.StartYear.Int > int64(r.Boundary) {
		return "upper"
	}
	return "lower"
}

// Insert forwards the row to its fragment
func (r *Router) Insert(ctx context.Context, row title.Row) error {
	if r.Side(row) == "upper" {
		if err := r.Upper.Insert(ctx, row); err != nil {
			return fmt.Errorf("upper fragment: %w", err)
		}
		r.mu.Lock()
		r.upper++
		r.mu.Unlock()
		return nil
	}

	if err := r.Lower.Insert(ctx, row); err != nil {
		return fmt.Errorf("lower fragment: %w", err)
	}
	r.mu.Lock()
	r.lower++
	r.mu.Unlock()
	return nil
}

// Commit commits the lower fragment, then the upper one
func (r *Router) Commit(ctx context.Context) error {
	if err := r.Lower.Commit(ctx); err != nil {
		return fmt.Errorf("lower fragment: %w", err)
	}
	if err := r.Upper.Commit(ctx); err != nil {
		return fmt.Errorf("upper fragment: %w", err)
	}
	return nil
}

// Close closes both fragments
func (r *Router) Close() error {
	return errors.Join(r.Lower.Close(), r.Upper.Close())
}

// Rollback drops staged rows on both fragments
func (r *Router) Rollback() error {
	return errors.Join(storage.Rollback(r.Lower), storage.Rollback(r.Upper))
}

// Counts returns the rows routed to each fragment
func (r *Router) Counts() (lower, upper int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lower, r.upper
}
