package title

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"strconv"
)

// Sentinel is the literal the IMDb extracts use for an absent value.
const Sentinel = `\N`

// FieldCount is the number of columns in a title_basics record.
const FieldCount = 5

// Column names in record order.
const (
	ColTConst         = "tconst"
	ColTitleType      = "titleType"
	ColPrimaryTitle   = "primaryTitle"
	ColStartYear      = "startYear"
	ColRuntimeMinutes = "runtimeMinutes"
)

// Columns lists the title_basics columns in record order.
var Columns = []string{ColTConst, ColTitleType, ColPrimaryTitle, ColStartYear, ColRuntimeMinutes}

// NullInt is an optional integer. The zero value is absent.
type NullInt struct {
	Int   int64
	Valid bool
}

// Int returns a present NullInt holding v.
func Int(v int64) NullInt {
	return NullInt{Int: v, Valid: true}
}

// Null returns an absent NullInt.
func Null() NullInt {
	return NullInt{}
}

// Value implements driver.Valuer so a NullInt binds as SQL NULL when absent.
func (n NullInt) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Int, nil
}

// String renders the value as it appears in a TSV extract.
func (n NullInt) String() string {
	if !n.Valid {
		return Sentinel
	}
	return strconv.FormatInt(n.Int, 10)
}

// MarshalJSON encodes an absent value as null.
func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(n.Int, 10)), nil
}

// UnmarshalJSON accepts null or a JSON number.
func (n *NullInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = NullInt{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Int(v)
	return nil
}

// Row is one typed title_basics row.
type Row struct {
	TConst         string  `json:"tconst"`
	TitleType      string  `json:"titleType"`
	PrimaryTitle   string  `json:"primaryTitle"`
	StartYear      NullInt `json:"startYear"`
	RuntimeMinutes NullInt `json:"runtimeMinutes"`
}

// Fields renders the row back into its raw record form.
func (r Row) Fields() []string {
	return []string{
		r.TConst,
		r.TitleType,
		r.PrimaryTitle,
		r.StartYear.String(),
		r.RuntimeMinutes.String(),
	}
}
