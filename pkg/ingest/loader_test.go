package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nicktill/titlefrag/pkg/metrics"
	"github.com/nicktill/titlefrag/pkg/storage/memory"
	"github.com/nicktill/titlefrag/pkg/title"
	"github.com/nicktill/titlefrag/pkg/tsv"
)

const sample = "t1\tmovie\tA\t1990\t100\n" +
	"t2\tshort\tB\t\\N\t5\n" +
	"t3\tmovie\tbroken\n" +
	"t4\tmovie\tD\tabc\t90\n" +
	"t5\ttvSeries\tE\t2005\t\\N\n"

func source(s string) tsv.Source {
	return tsv.NewReader(strings.NewReader(s), tsv.Options{})
}

func TestLoad_SkipInvalid(t *testing.T) {
	store := memory.New()
	core, logs := observer.New(zapcore.WarnLevel)

	result, err := NewLoader(store, WithLogger(zap.New(core))).Load(context.Background(), source(sample))
	require.NoError(t, err)

	require.Equal(t, int64(5), result.TotalLines)
	require.Equal(t, int64(3), result.Loaded)
	require.Equal(t, int64(2), result.Skipped)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors[0], "line 3")
	require.Contains(t, result.Errors[1], "line 4")
	require.Equal(t, 2, logs.FilterMessage("skipping invalid record").Len())

	rows := store.Rows()
	require.Len(t, rows, 3)
	require.Equal(t, title.Int(1990), rows[0].StartYear)
	require.Equal(t, title.Null(), rows[1].StartYear)
	require.Equal(t, title.Int(2005), rows[2].StartYear)
	require.Equal(t, title.Null(), rows[2].RuntimeMinutes)
}

func TestLoad_AbortOnInvalid(t *testing.T) {
	store := memory.New()

	_, err := NewLoader(store, WithPolicy(AbortOnInvalid)).Load(context.Background(), source(sample))
	require.ErrorIs(t, err, title.ErrArity)

	var rerr *title.RecordError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, 3, rerr.Line)

	// nothing committed
	require.Empty(t, store.Rows())
}

func TestLoad_InsertFailureIsFatal(t *testing.T) {
	sink := &failingSink{failAt: 2}

	_, err := NewLoader(sink).Load(context.Background(), source(sample))
	require.ErrorIs(t, err, errSinkDown)
	require.Contains(t, err.Error(), "insert t2")
	require.False(t, sink.committed)
}

func TestLoad_CommitOnce(t *testing.T) {
	sink := &failingSink{}

	result, err := NewLoader(sink).Load(context.Background(), source(sample))
	require.NoError(t, err)
	require.Equal(t, 1, sink.commits)
	require.Equal(t, int64(3), result.Loaded)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &failingSink{}
	_, err := NewLoader(sink).Load(ctx, source(sample))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, sink.commits)
}

func TestLoad_Progress(t *testing.T) {
	var reports []Progress
	loader := NewLoader(memory.New(), WithProgress(2, func(p Progress) {
		reports = append(reports, p)
	}))

	_, err := loader.Load(context.Background(), source(sample))
	require.NoError(t, err)

	// line 2 and line 4 (only after an insert), plus the final report
	require.Len(t, reports, 2)
	require.Equal(t, int64(2), reports[0].Lines)
	require.Equal(t, Progress{Source: "stream", Lines: 5, Loaded: 3, Skipped: 2}, reports[1])
}

func TestLoad_Metrics(t *testing.T) {
	m := metrics.New()
	_, err := NewLoader(memory.New(), WithMetrics(m, "memory")).Load(context.Background(), source(sample))
	require.NoError(t, err)

	require.Equal(t, 3.0, testutil.ToFloat64(m.RowsLoaded.WithLabelValues("memory")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("arity")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("numeric")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("success")))

	_, err = NewLoader(memory.New(), WithMetrics(m, "memory"), WithPolicy(AbortOnInvalid)).Load(context.Background(), source(sample))
	require.Error(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("error")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.RowsLoaded.WithLabelValues("memory")))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title.basics.tsv")
	header := "tconst\ttitleType\tprimaryTitle\tstartYear\truntimeMinutes\n"
	require.NoError(t, os.WriteFile(path, []byte(header+sample), 0644))

	store := memory.New()
	result, err := NewLoader(store).LoadFile(context.Background(), path, tsv.Options{SkipHeader: true})
	require.NoError(t, err)
	require.Equal(t, path, result.Source)
	require.Equal(t, int64(3), result.Loaded)

	_, err = NewLoader(store).LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing"), tsv.Options{})
	require.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, SkipInvalid, p)

	p, err = ParsePolicy("ABORT")
	require.NoError(t, err)
	require.Equal(t, AbortOnInvalid, p)
	require.Equal(t, "abort", p.String())

	_, err = ParsePolicy("retry")
	require.ErrorIs(t, err, ErrUnknownPolicy)
}

var errSinkDown = errors.New("sink down")

type failingSink struct {
	failAt    int
	inserts   int
	commits   int
	committed bool
}

func (s *failingSink) Insert(ctx context.Context, row title.Row) error {
	s.inserts++
	if s.failAt > 0 && s.inserts == s.failAt {
		return errSinkDown
	}
	return nil
}

func (s *failingSink) Commit(ctx context.Context) error {
	s.commits++
	s.committed = true
	return nil
}

func (s *failingSink) Close() error { return nil }

func TestLoad_AbortRollsBackStagedRows(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := NewLoader(store, WithPolicy(AbortOnInvalid)).Load(ctx, source(sample))
	require.Error(t, err)

	// a later successful load must not pick up rows staged by the failed one
	_, err = NewLoader(store).Load(ctx, source("t9\tmovie\tZ\t2020\t90\n"))
	require.NoError(t, err)

	rows := store.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, "t9", rows[0].TConst)
}
