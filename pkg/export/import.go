package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
)

// Importer loads a JSON export back into a sink
type Importer struct {
	sink storage.Sink
}

// NewImporter creates a new importer
func NewImporter(sink storage.Sink) *Importer {
	return &Importer{sink: sink}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	TitlesImported int       `json:"titles_imported"`
	ImportedAt     time.Time `json:"imported_at"`
	Errors         []string  `json:"errors,omitempty"`
}

// ImportJSON inserts every valid title of a Document and commits once.
// Invalid titles are reported in ImportResult.Errors and skipped. On an
// insert or commit failure the staged titles are rolled back.
func (im *Importer) ImportJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	result := &ImportResult{ImportedAt: time.Now().UTC()}
	for i, row := range doc.Titles {
		if err := validateImportedTitle(row); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("title %d: %v", i, err))
			continue
		}
		if err := im.sink.Insert(ctx, row); err != nil {
			return nil, im.abort(fmt.Errorf("failed to insert %s: %w", row.TConst, err))
		}
		result.TitlesImported++
	}

	if err := im.sink.Commit(ctx); err != nil {
		return nil, im.abort(fmt.Errorf("failed to commit import: %w", err))
	}
	return result, nil
}

func (im *Importer) abort(err error) error {
	if rbErr := storage.Rollback(im.sink); rbErr != nil {
		return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
	}
	return err
}

// validateImportedTitle rejects rows that could not have come from the normalizer
func validateImportedTitle(r title.Row) error {
	if r.TConst == "" {
		return fmt.Errorf("tconst cannot be empty")
	}
	for _, v := range []string{r.TConst, r.TitleType, r.PrimaryTitle} {
		if title.IsSentinel(v) {
			return fmt.Errorf("raw sentinel in text column")
		}
		if hasSeparator(v) {
			return fmt.Errorf("tab or line break in text column %q", v)
		}
	}
	return nil
}
