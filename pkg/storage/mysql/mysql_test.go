package mysql

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
)

func newMockStore(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := New(db, "", nil)
	require.NoError(t, err)
	return store, mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{
		Host:     "localhost",
		Port:     3306,
		User:     "mco2",
		Password: "secret",
		Database: "imdbDDB",
		Params:   map[string]string{"charset": "utf8mb4"},
	}

	dsn := cfg.DSN()
	require.True(t, strings.HasPrefix(dsn, "mco2:secret@tcp(localhost:3306)/imdbDDB"), dsn)
	require.Contains(t, dsn, "charset=utf8mb4")
}

func TestNew_RejectsBadTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, "title_basics; DROP TABLE x", nil)
	require.ErrorIs(t, err, ErrInvalidTable)
}

func TestStorage_InsertAndCommit(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO `title_basics`")
	prep.ExpectExec().
		WithArgs("tt1", "movie", "A", int64(1990), int64(100)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("tt2", "short", "B", nil, int64(5)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	require.NoError(t, store.Insert(ctx, title.Row{TConst: "tt1", TitleType: "movie", PrimaryTitle: "A", StartYear: title.Int(1990), RuntimeMinutes: title.Int(100)}))
	require.NoError(t, store.Insert(ctx, title.Row{TConst: "tt2", TitleType: "short", PrimaryTitle: "B", RuntimeMinutes: title.Int(5)}))
	require.NoError(t, store.Commit(ctx))
	require.NoError(t, store.Close())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CommitWithoutInsertIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectClose()

	require.NoError(t, store.Commit(context.Background()))
	require.NoError(t, store.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_InsertFailureRollsBackOnClose(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO `title_basics`").
		ExpectExec().
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()
	mock.ExpectClose()

	err := store.Insert(ctx, title.Row{TConst: "tt1", TitleType: "movie", PrimaryTitle: "A"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to insert tt1")

	require.NoError(t, store.Close())
	require.NoError(t, mock.ExpectationsWereMet())

	require.ErrorIs(t, store.Insert(ctx, title.Row{TConst: "tt2"}), storage.ErrClosed)
}

func TestStorage_RollbackKeepsPoolOpen(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO `title_basics`").
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `title_basics`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	require.NoError(t, store.Insert(ctx, title.Row{TConst: "tt1", TitleType: "movie", PrimaryTitle: "A"}))
	require.NoError(t, store.Rollback())
	// nothing left to commit
	require.NoError(t, store.Commit(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `title_basics`")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Search(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"tconst", "titleType", "primaryTitle", "startYear", "runtimeMinutes"}).
		AddRow("tt0111161", "movie", "The Shawshank Redemption", int64(1994), int64(142)).
		AddRow("tt9999999", "movie", "Untitled 50% off", nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tconst, titleType, primaryTitle, startYear, runtimeMinutes FROM `title_basics` WHERE tconst LIKE ?")).
		WithArgs(`%50\%%`, `%50\%%`, `%50\%%`, `%50\%%`, `%50\%%`, 10).
		WillReturnRows(rows)

	results, err := store.Search(context.Background(), storage.QueryRequest{Query: "50%", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, title.Int(1994), results[0].StartYear)
	require.False(t, results[1].StartYear.Valid)
	require.False(t, results[1].RuntimeMinutes.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_SearchWithoutQuery(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM `title_basics` ORDER BY startYear IS NULL, startYear DESC, tconst LIMIT ?")).
		WithArgs(storage.DefaultSearchLimit).
		WillReturnRows(sqlmock.NewRows([]string{"tconst", "titleType", "primaryTitle", "startYear", "runtimeMinutes"}))

	results, err := store.Search(context.Background(), storage.QueryRequest{})
	require.NoError(t, err)
	require.Empty(t, results)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CountAndStats(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `title_basics`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(startYear), MIN(startYear), MAX(startYear)")).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d"}).AddRow(int64(3), int64(2), int64(1894), int64(1994)))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), stats.TotalTitles)
	require.Equal(t, uint64(2), stats.WithStartYear)
	require.Equal(t, int64(1894), *stats.MinStartYear)
	require.Equal(t, int64(1994), *stats.MaxStartYear)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
}
