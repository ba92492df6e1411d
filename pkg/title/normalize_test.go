package title

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_SentinelStartYear(t *testing.T) {
	rows := [][]string{
		{"t1", "movie", "A", "1990", "100"},
		{"t2", "short", "B", `\N`, "5"},
	}

	first, err := Normalize(rows[0])
	require.NoError(t, err)
	require.Equal(t, Int(1990), first.StartYear)
	require.Equal(t, Int(100), first.RuntimeMinutes)

	second, err := Normalize(rows[1])
	require.NoError(t, err)
	require.False(t, second.StartYear.Valid)
	require.Equal(t, Int(5), second.RuntimeMinutes)
}

func TestNormalize_SentinelRuntime(t *testing.T) {
	row, err := Normalize([]string{"tt0000009", "movie", "Miss Jerry", "2005", `\N`})
	require.NoError(t, err)
	require.Equal(t, Int(2005), row.StartYear)
	require.False(t, row.RuntimeMinutes.Valid)
}

func TestNormalize_NoSentinelSurvives(t *testing.T) {
	inputs := [][]string{
		{"t1", "movie", "A", `\N`, `\N`},
		{"t2", "tvSeries", "B", "1994", `\N`},
		{"t3", "short", "C", `\N`, "12"},
		{"t4", "movie", "D", "-3", "0"},
	}

	for _, in := range inputs {
		row, err := Normalize(in)
		require.NoError(t, err)
		for _, v := range []string{row.TConst, row.TitleType, row.PrimaryTitle} {
			require.NotEqual(t, Sentinel, v)
		}
		if row.StartYear.Valid {
			require.NotEqual(t, Sentinel, row.StartYear.String())
		}
		if row.RuntimeMinutes.Valid {
			require.NotEqual(t, Sentinel, row.RuntimeMinutes.String())
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := []string{"tt0000001", "short", "Carmencita", "1894", "1"}

	a, err := Normalize(in)
	require.NoError(t, err)
	b, err := Normalize(in)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestNormalize_WrongArity(t *testing.T) {
	for _, in := range [][]string{
		{"t1", "movie", "A"},
		{"t1", "movie", "A", "1990", "100", "extra"},
		{""},
	} {
		row, err := Normalize(in)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrArity))
		require.Equal(t, Row{}, row)
	}
}

func TestNormalize_BadNumeric(t *testing.T) {
	_, err := Normalize([]string{"t1", "movie", "A", "19x0", "100"})
	require.ErrorIs(t, err, ErrNumeric)

	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	require.Equal(t, ColStartYear, recErr.Field)
	require.Equal(t, "19x0", recErr.Value)

	_, err = Normalize([]string{"t1", "movie", "A", "1990", "1.5"})
	require.ErrorIs(t, err, ErrNumeric)
	require.True(t, errors.As(err, &recErr))
	require.Equal(t, ColRuntimeMinutes, recErr.Field)
}

func TestRecordError_Message(t *testing.T) {
	err := &RecordError{Line: 7, Field: ColStartYear, Value: "abc", Err: ErrNumeric}
	require.Equal(t, `line 7: malformed field: not an integer: startYear="abc"`, err.Error())
}

func TestRow_FieldsRoundTrip(t *testing.T) {
	in := []string{"tt0000002", "short", "Le clown et ses chiens", "1892", `\N`}
	row, err := Normalize(in)
	require.NoError(t, err)
	require.Equal(t, in, row.Fields())
}

func TestNullInt_JSON(t *testing.T) {
	row := Row{TConst: "t1", TitleType: "movie", PrimaryTitle: "A", StartYear: Int(1990)}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	require.JSONEq(t, `{"tconst":"t1","titleType":"movie","primaryTitle":"A","startYear":1990,"runtimeMinutes":null}`, string(data))

	var decoded Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, row, decoded)
}

func TestNullInt_Value(t *testing.T) {
	v, err := Null().Value()
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = Int(42).Value()
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}
