package badger

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
)

func testRows() []title.Row {
	return []title.Row{
		{TConst: "tt0000001", TitleType: "short", PrimaryTitle: "Carmencita", StartYear: title.Int(1894), RuntimeMinutes: title.Int(1)},
		{TConst: "tt0111161", TitleType: "movie", PrimaryTitle: "The Shawshank Redemption", StartYear: title.Int(1994), RuntimeMinutes: title.Int(142)},
		{TConst: "tt9999999", TitleType: "movie", PrimaryTitle: "Untitled", StartYear: title.Null(), RuntimeMinutes: title.Null()},
	}
}

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	// Use in-memory mode for tests
	store, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStorage_InsertCommitSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, r := range testRows() {
		require.NoError(t, store.Insert(ctx, r))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count, "staged rows must not be visible before commit")

	require.NoError(t, store.Commit(ctx))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	results, err := store.Search(ctx, storage.QueryRequest{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "tt0111161", results[0].TConst)
	require.Equal(t, testRows()[1], results[0])
	require.False(t, results[2].StartYear.Valid)
}

func TestBadgerStorage_OverwriteByTConst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	row := testRows()[0]
	require.NoError(t, store.Insert(ctx, row))
	require.NoError(t, store.Commit(ctx))

	row.PrimaryTitle = "Carmencita (restored)"
	require.NoError(t, store.Insert(ctx, row))
	require.NoError(t, store.Commit(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	results, err := store.Search(ctx, storage.QueryRequest{Query: "restored"})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestBadgerStorage_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	{
		store, err := New(Config{Path: dir})
		require.NoError(t, err)
		for _, r := range testRows() {
			require.NoError(t, store.Insert(ctx, r))
		}
		require.NoError(t, store.Commit(ctx))
		require.NoError(t, store.Close())
	}

	store, err := New(Config{Path: dir})
	require.NoError(t, err)
	defer store.Close()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestBadgerStorage_CloseDropsStaged(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, testRows()[0]))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	require.ErrorIs(t, store.Insert(ctx, testRows()[0]), storage.ErrClosed)

	reopened, err := New(Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestBadgerStorage_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, r := range testRows() {
		require.NoError(t, store.Insert(ctx, r))
	}
	require.NoError(t, store.Commit(ctx))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), stats.TotalTitles)
	require.Equal(t, uint64(2), stats.WithStartYear)
	require.Equal(t, int64(1894), *stats.MinStartYear)
	require.Equal(t, int64(1994), *stats.MaxStartYear)
}

func TestBadgerStorage_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Insert(ctx, testRows()[0]), context.Canceled)
	require.ErrorIs(t, store.Commit(ctx), context.Canceled)
	_, err := store.Count(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMakeKey_RoundTrip(t *testing.T) {
	key := makeKey("tt0111161")
	require.Len(t, key, 8+len("tt0111161"))
	require.Equal(t, "tt0111161", parseKey(key))
	require.Equal(t, "", parseKey([]byte{1, 2}))
}

func TestBadgerStorage_CorruptValueNamesTitle(t *testing.T) {
	store := newTestStore(t)

	err := store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey("tt0000666"), []byte("{not json"))
	})
	require.NoError(t, err)

	_, err = store.Search(context.Background(), storage.QueryRequest{})
	require.ErrorContains(t, err, "decode tt0000666")
}

func TestBadgerStorage_Rollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRows()[0]))
	require.NoError(t, store.Rollback())
	require.NoError(t, store.Commit(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}
