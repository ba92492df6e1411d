package ingest

import (
	"fmt"
	"strings"
)

// Policy decides what a load does with a record the normalizer rejects
type Policy int

const (
	// SkipInvalid logs and counts the bad record, then continues
	SkipInvalid Policy = iota

	// AbortOnInvalid stops the load on the first bad record without committing
	AbortOnInvalid
)

// MaxRecordedErrors bounds LoadResult.Errors
const MaxRecordedErrors = 100

// ErrUnknownPolicy is returned by ParsePolicy
var ErrUnknownPolicy = fmt.Errorf("unknown policy (want %q or %q)", "skip", "abort")

func (p Policy) String() string {
	switch p {
	case SkipInvalid:
		return "skip"
	case AbortOnInvalid:
		return "abort"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "skip" or "abort". The empty string means SkipInvalid.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return SkipInvalid, nil
	case "abort":
		return AbortOnInvalid, nil
	default:
		return SkipInvalid, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
