package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicktill/titlefrag/pkg/title"
)

func TestMatches(t *testing.T) {
	row := title.Row{TConst: "tt0111161", TitleType: "movie", PrimaryTitle: "The Shawshank Redemption", StartYear: title.Int(1994), RuntimeMinutes: title.Int(142)}

	require.True(t, Matches(row, ""))
	require.True(t, Matches(row, "shawshank"))
	require.True(t, Matches(row, "MOVIE"))
	require.True(t, Matches(row, "199"))
	require.True(t, Matches(row, "142"))
	require.False(t, Matches(row, "tvSeries"))

	absent := title.Row{TConst: "tt1", TitleType: "short", PrimaryTitle: "x"}
	require.False(t, Matches(absent, `\N`))
}

func TestSearch_OrderAndLimit(t *testing.T) {
	rows := []title.Row{
		{TConst: "t3", StartYear: title.Null()},
		{TConst: "t2", StartYear: title.Int(1990)},
		{TConst: "t1", StartYear: title.Int(2001)},
		{TConst: "t0", StartYear: title.Int(1990)},
	}

	got := Search(rows, QueryRequest{})
	require.Equal(t, []string{"t1", "t0", "t2", "t3"}, tconsts(got))

	got = Search(rows, QueryRequest{Limit: 2})
	require.Equal(t, []string{"t1", "t0"}, tconsts(got))
}

func TestQueryRequest_EffectiveLimit(t *testing.T) {
	require.Equal(t, DefaultSearchLimit, QueryRequest{}.EffectiveLimit())
	require.Equal(t, 5, QueryRequest{Limit: 5}.EffectiveLimit())
	require.Equal(t, MaxSearchLimit, QueryRequest{Limit: MaxSearchLimit + 1}.EffectiveLimit())
}

func TestStats_Observe(t *testing.T) {
	var s Stats
	s.Observe(title.Row{StartYear: title.Int(1990)})
	s.Observe(title.Row{StartYear: title.Null()})
	s.Observe(title.Row{StartYear: title.Int(1894)})
	s.Observe(title.Row{StartYear: title.Int(2020)})

	require.Equal(t, uint64(4), s.TotalTitles)
	require.Equal(t, uint64(3), s.WithStartYear)
	require.Equal(t, int64(1894), *s.MinStartYear)
	require.Equal(t, int64(2020), *s.MaxStartYear)
}

func tconsts(rows []title.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.TConst
	}
	return out
}
