package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/metrics"
	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
	"github.com/nicktill/titlefrag/pkg/tsv"
)

// Progress is reported every N lines while a load runs
type Progress struct {
	Source  string `json:"source"`
	Lines   int64  `json:"lines"`
	Loaded  int64  `json:"loaded"`
	Skipped int64  `json:"skipped"`
}

// LoadResult summarizes one load run
type LoadResult struct {
	Source     string        `json:"source"`
	Policy     string        `json:"policy"`
	TotalLines int64         `json:"total_lines"`
	Loaded     int64         `json:"loaded"`
	Skipped    int64         `json:"skipped"`
	Errors     []string      `json:"errors,omitempty"`
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
}

// Loader feeds normalized title rows from a record source into a sink
type Loader struct {
	sink     storage.Sink
	sinkName string
	policy   Policy
	logger   *zap.Logger
	metrics  *metrics.Metrics

	progressEvery int64
	progress      func(Progress)
}

// Option configures a Loader
type Option func(*Loader)

// WithPolicy sets the bad-record policy (default SkipInvalid)
func WithPolicy(p Policy) Option {
	return func(l *Loader) { l.policy = p }
}

// WithLogger sets the logger (default no-op)
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records load counters. name labels the sink.
func WithMetrics(m *metrics.Metrics, name string) Option {
	return func(l *Loader) {
		l.metrics = m
		l.sinkName = name
	}
}

// WithProgress calls fn every `every` lines and once at the end
func WithProgress(every int64, fn func(Progress)) Option {
	return func(l *Loader) {
		l.progressEvery = every
		l.progress = fn
	}
}

// NewLoader creates a loader writing to sink
func NewLoader(sink storage.Sink, opts ...Option) *Loader {
	l := &Loader{
		sink:     sink,
		sinkName: "default",
		policy:   SkipInvalid,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load normalizes every record of src in order and inserts it into the sink,
// then commits once. It does not close the sink.
//
// Under AbortOnInvalid the first *title.RecordError is returned as is. An
// insert or commit failure is always fatal. Neither path commits.
func (l *Loader) Load(ctx context.Context, src tsv.Source) (*LoadResult, error) {
	result := &LoadResult{
		Source:    sourceName(src),
		Policy:    l.policy.String(),
		StartTime: time.Now(),
	}

	err := l.load(ctx, src, result)
	result.Duration = time.Since(result.StartTime)
	l.metrics.RecordLoad(err == nil, result.Duration)
	if err != nil {
		if rbErr := storage.Rollback(l.sink); rbErr != nil {
			l.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		l.logger.Error("load failed",
			zap.String("source", result.Source),
			zap.Int64("lines", result.TotalLines),
			zap.Error(err))
		return result, err
	}

	l.report(result)
	l.logger.Info("load committed",
		zap.String("source", result.Source),
		zap.Int64("loaded", result.Loaded),
		zap.Int64("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (l *Loader) load(ctx context.Context, src tsv.Source, result *LoadResult) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fields, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading line %d: %w", src.Line(), err)
		}
		result.TotalLines++

		row, err := title.Normalize(fields)
		if err != nil {
			var rerr *title.RecordError
			if errors.As(err, &rerr) {
				rerr.Line = src.Line()
			}
			if l.policy == AbortOnInvalid {
				return err
			}
			l.skip(result, err)
			continue
		}

		if err := l.sink.Insert(ctx, row); err != nil {
			return fmt.Errorf("insert %s (line %d): %w", row.TConst, src.Line(), err)
		}
		result.Loaded++

		if l.progressEvery > 0 && result.TotalLines%l.progressEvery == 0 {
			l.report(result)
		}
	}

	if err := l.sink.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	l.metrics.RecordLoaded(l.sinkName, result.Loaded)
	return nil
}

func (l *Loader) skip(result *LoadResult, err error) {
	result.Skipped++
	if len(result.Errors) < MaxRecordedErrors {
		result.Errors = append(result.Errors, err.Error())
	}

	reason := "numeric"
	if errors.Is(err, title.ErrArity) {
		reason = "arity"
	}
	l.metrics.RecordSkipped(reason)
	l.logger.Warn("skipping invalid record", zap.String("reason", reason), zap.Error(err))
}

func (l *Loader) report(result *LoadResult) {
	if l.progress == nil {
		return
	}
	l.progress(Progress{
		Source:  result.Source,
		Lines:   result.TotalLines,
		Loaded:  result.Loaded,
		Skipped: result.Skipped,
	})
}

// LoadFile opens path, loads it, and closes it on every path
func (l *Loader) LoadFile(ctx context.Context, path string, opts tsv.Options) (*LoadResult, error) {
	f, err := tsv.Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return l.Load(ctx, f)
}

func sourceName(src tsv.Source) string {
	if named, ok := src.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "stream"
}
