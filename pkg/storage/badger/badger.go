package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
)

const slowScanThreshold = 5 * time.Second

// Storage implements storage.Store using BadgerDB (LSM tree).
// Rows are keyed by tconst, so re-loading a title overwrites it.
type Storage struct {
	db     *badger.DB
	log    *zap.Logger
	mu     sync.Mutex
	staged []title.Row
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly defaults)
	MaxMemoryMB int64

	// Logger for slow scans (nil = no-op)
	Logger *zap.Logger
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// BadgerDB defaults: 64 MB memtable, 5 x 64 MB = 320 MB total.
	// Default here is 16 MB memtable, the minimum before flushes get excessive.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}
	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Storage{db: db, log: log}, nil
}

// Insert stages a row until Commit
func (s *Storage) Insert(ctx context.Context, row title.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return storage.ErrClosed
	}
	s.staged = append(s.staged, row)
	return nil
}

// Commit writes all staged rows in a single write batch.
// Enforces context cancellation while the batch is being built.
func (s *Storage) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.db == nil {
		s.mu.Unlock()
		return storage.ErrClosed
	}
	rows := s.staged
	s.staged = nil
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()

		for i, r := range rows {
			if i%100 == 0 {
				select {
				case <-ctx.Done():
					done <- ctx.Err()
					return
				default:
				}
			}

			value, err := encodeRow(r)
			if err != nil {
				done <- fmt.Errorf("failed to encode title %s: %w", r.TConst, err)
				return
			}
			if err := wb.Set(makeKey(r.TConst), value); err != nil {
				done <- fmt.Errorf("failed to write title %s: %w", r.TConst, err)
				return
			}
		}
		done <- wb.Flush()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("commit cancelled: %w", ctx.Err())
	}
}

// Search retrieves committed titles matching the request
func (s *Storage) Search(ctx context.Context, req storage.QueryRequest) ([]title.Row, error) {
	var matched []title.Row
	err := s.scan(ctx, true, func(r title.Row) {
		if storage.Matches(r, req.Query) {
			matched = append(matched, r)
		}
	})
	if err != nil {
		return nil, err
	}
	return storage.Search(matched, req), nil
}

// Count returns the number of committed titles
func (s *Storage) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.scan(ctx, false, func(title.Row) { n++ }); err != nil {
		return 0, err
	}
	return n, nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{}
	if err := s.scan(ctx, true, stats.Observe); err != nil {
		return nil, err
	}

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)
	return stats, nil
}

// Rollback discards staged rows
func (s *Storage) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = nil
	return nil
}

// Close discards staged rows and shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	s.staged = nil
	err := s.db.Close()
	s.db = nil
	return err
}

// RunGC runs BadgerDB's value log garbage collection.
// discardRatio: run GC if this fraction of a file can be discarded (0.5 = 50%).
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// scan visits every committed row. With withValues false, fn receives a zero
// Row per key.
func (s *Storage) scan(ctx context.Context, withValues bool, fn func(title.Row)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return storage.ErrClosed
	}

	start := time.Now()
	var iterCount int

	done := make(chan error, 1)
	go func() {
		done <- db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = withValues
			opts.PrefetchSize = 100

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++

				// Check for cancellation every 1000 iterations
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				if !withValues {
					fn(title.Row{})
					continue
				}

				item := it.Item()
				err := item.Value(func(val []byte) error {
					r, err := decodeRow(val)
					if err != nil {
						return fmt.Errorf("decode %s: %w", parseKey(item.Key()), err)
					}
					fn(r)
					return nil
				})
				if err != nil {
					return err
				}
			}

			if elapsed := time.Since(start); elapsed > slowScanThreshold {
				s.log.Warn("slow title scan",
					zap.Duration("elapsed", elapsed),
					zap.Int("iterations", iterCount))
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("scan cancelled: %w", ctx.Err())
	}
}

// makeKey creates a key: [xxhash(tconst) (8 bytes)][tconst]
// The hash prefix spreads sequential tconsts across the keyspace.
func makeKey(tconst string) []byte {
	key := make([]byte, 8+len(tconst))
	binary.BigEndian.PutUint64(key[0:8], xxhash.Sum64String(tconst))
	copy(key[8:], tconst)
	return key
}

// parseKey extracts the tconst from a storage key
func parseKey(key []byte) string {
	if len(key) < 8 {
		return ""
	}
	return string(key[8:])
}

// encodeRow serializes a row to bytes
func encodeRow(r title.Row) ([]byte, error) {
	return json.Marshal(r)
}

// decodeRow deserializes bytes to a row
func decodeRow(data []byte) (title.Row, error) {
	var r title.Row
	err := json.Unmarshal(data, &r)
	return r, err
}
