package fragment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/storage/memory"
	"github.com/nicktill/titlefrag/pkg/title"
)

func row(tconst string, year title.NullInt) title.Row {
	return title.Row{TConst: tconst, TitleType: "movie", PrimaryTitle: tconst, StartYear: year}
}

func TestRouter_SplitsAtBoundary(t *testing.T) {
	ctx := context.Background()
	lower, upper := memory.New(), memory.New()
	r := NewRouter(1990, lower, upper)

	require.NoError(t, r.Insert(ctx, row("t1", title.Int(1989))))
	require.NoError(t, r.Insert(ctx, row("t2", title.Int(1990))))
	require.NoError(t, r.Insert(ctx, row("t3", title.Int(1991))))
	require.NoError(t, r.Insert(ctx, row("t4", title.Null())))
	require.NoError(t, r.Commit(ctx))

	l, u := r.Counts()
	require.Equal(t, int64(3), l)
	require.Equal(t, int64(1), u)

	var lowerIDs []string
	for _, rw := range lower.Rows() {
		lowerIDs = append(lowerIDs, rw.TConst)
	}
	require.Equal(t, []string{"t1", "t2", "t4"}, lowerIDs)
	require.Len(t, upper.Rows(), 1)
	require.Equal(t, "t3", upper.Rows()[0].TConst)

	require.NoError(t, r.Close())
}

func TestRouter_CloseWithoutCommitDiscards(t *testing.T) {
	ctx := context.Background()
	lower, upper := memory.New(), memory.New()
	r := NewRouter(2000, lower, upper)

	require.NoError(t, r.Insert(ctx, row("t1", title.Int(2001))))
	require.NoError(t, r.Close())

	require.Empty(t, upper.Rows())
	require.ErrorIs(t, r.Insert(ctx, row("t2", title.Int(1))), storage.ErrClosed)
}

func TestRouter_WrapsSideInError(t *testing.T) {
	ctx := context.Background()
	lower, upper := memory.New(), memory.New()
	require.NoError(t, upper.Close())

	r := NewRouter(2000, lower, upper)
	err := r.Insert(ctx, row("t1", title.Int(2020)))
	require.Error(t, err)
	require.Contains(t, err.Error(), "upper fragment")
}
