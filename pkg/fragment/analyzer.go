package fragment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nicktill/titlefrag/pkg/title"
	"github.com/nicktill/titlefrag/pkg/tsv"
)

// Defaults for the title.basics column layout the analyzer was built against
const (
	DefaultYearColumn = 5
	DefaultMinFields  = 6
	DefaultBudget     = 20000
)

// Configuration errors
var (
	ErrInvalidBudget     = errors.New("fragment: row budget must be positive")
	ErrInvalidYearColumn = errors.New("fragment: year column must not be negative")
)

// Analyzer computes the median start year over a bounded prefix of a file
type Analyzer struct {
	// Budget is the maximum number of rows considered
	Budget int

	// YearColumn is the zero-based field index of startYear
	YearColumn int

	// MinFields is the arity a line needs to be considered at all
	MinFields int
}

// New creates an analyzer with the default column layout
func New(budget int) *Analyzer {
	return &Analyzer{
		Budget:     budget,
		YearColumn: DefaultYearColumn,
		MinFields:  DefaultMinFields,
	}
}

// Stats is the fragmentation statistic for one run
type Stats struct {
	// MedianYear is nil when no considered row had a valid year
	MedianYear *int `json:"median_year"`

	// TotalValid counts considered rows with an integer year
	TotalValid int `json:"total_valid"`

	// TotalConsidered counts rows that passed the arity check
	TotalConsidered int `json:"total_considered"`

	// Missing counts considered rows whose year was the sentinel
	Missing int `json:"missing"`

	// Unparsable counts considered rows whose year was not an integer
	Unparsable int `json:"unparsable"`

	// Skipped counts lines rejected by the arity check
	Skipped int `json:"skipped"`

	Budget int            `json:"budget"`
	Table  FrequencyTable `json:"-"`
}

// Years returns the frequency table as ascending pairs
func (s *Stats) Years() []YearCount {
	return s.Table.Pairs()
}

// MarshalJSON includes the frequency table as an ordered "years" list
func (s *Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	return json.Marshal(struct {
		*plain
		Years []YearCount `json:"years"`
	}{
		plain: (*plain)(s),
		Years: s.Years(),
	})
}

// Analyze reads records from src in order until Budget rows have been
// considered or the input ends. Short lines are skipped without touching
// the budget; absent or unparsable years are excluded from the table.
// Arity is judged on the fields src returns, so a reader built with
// tsv.Options.TrimSpace treats a trailing empty field as missing.
func (a *Analyzer) Analyze(ctx context.Context, src tsv.Source) (*Stats, error) {
	if a.Budget <= 0 {
		return nil, ErrInvalidBudget
	}
	if a.YearColumn < 0 {
		return nil, ErrInvalidYearColumn
	}
	minFields := a.MinFields
	if minFields <= a.YearColumn {
		minFields = a.YearColumn + 1
	}

	stats := &Stats{
		Budget: a.Budget,
		Table:  make(FrequencyTable),
	}

	for stats.TotalConsidered < a.Budget {
		if (stats.TotalConsidered+stats.Skipped)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		fields, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", src.Line(), err)
		}

		if len(fields) < minFields {
			stats.Skipped++
			continue
		}
		stats.TotalConsidered++

		raw := fields[a.YearColumn]
		if title.IsSentinel(raw) {
			stats.Missing++
			continue
		}
		year, err := strconv.Atoi(raw)
		if err != nil {
			stats.Unparsable++
			continue
		}
		stats.Table.Add(year)
	}

	stats.TotalValid = stats.Table.Total()
	if y, ok := Median(stats.Table); ok {
		stats.MedianYear = &y
	}
	return stats, nil
}

// AnalyzeFile runs the analyzer over a file, closing it on every path
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, opts tsv.Options) (*Stats, error) {
	f, err := tsv.Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return a.Analyze(ctx, f)
}
