package title

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrArity is returned when a record does not have exactly FieldCount fields
	ErrArity = errors.New("malformed record: wrong field count")

	// ErrNumeric is returned when an optional integer field is neither the sentinel nor an integer
	ErrNumeric = errors.New("malformed field: not an integer")
)

// RecordError reports why a single record could not be normalized.
// Err is always ErrArity or ErrNumeric.
type RecordError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *RecordError) Error() string {
	var loc string
	if e.Line > 0 {
		loc = fmt.Sprintf("line %d: ", e.Line)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s%v: %s=%q", loc, e.Err, e.Field, e.Value)
	}
	return fmt.Sprintf("%s%v: %s", loc, e.Err, e.Value)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsSentinel reports whether s is the absent-value marker.
func IsSentinel(s string) bool {
	return s == Sentinel
}

// ParseOptionalInt converts a raw field to a NullInt. The sentinel maps to
// absence; anything else must be a base-10 integer.
func ParseOptionalInt(s string) (NullInt, error) {
	if IsSentinel(s) {
		return Null(), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NullInt{}, err
	}
	return Int(v), nil
}

// Normalize converts a raw record into a typed Row. It never guesses a value:
// a record with the wrong arity or a bad numeric field yields a *RecordError
// and a zero Row.
func Normalize(fields []string) (Row, error) {
	if len(fields) != FieldCount {
		return Row{}, &RecordError{
			Err:   ErrArity,
			Value: fmt.Sprintf("got %d fields, want %d", len(fields), FieldCount),
		}
	}

	startYear, err := ParseOptionalInt(fields[3])
	if err != nil {
		return Row{}, &RecordError{Field: ColStartYear, Value: fields[3], Err: ErrNumeric}
	}
	runtime, err := ParseOptionalInt(fields[4])
	if err != nil {
		return Row{}, &RecordError{Field: ColRuntimeMinutes, Value: fields[4], Err: ErrNumeric}
	}

	return Row{
		TConst:         fields[0],
		TitleType:      fields[1],
		PrimaryTitle:   fields[2],
		StartYear:      startYear,
		RuntimeMinutes: runtime,
	}, nil
}
