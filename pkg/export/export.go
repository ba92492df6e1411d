package export

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
)

// FormatVersion is written into JSON export metadata
const FormatVersion = "1.0"

// ErrNotTSVSafe is returned by ExportTSV for a row whose text would split
// into extra fields or lines
var ErrNotTSVSafe = errors.New("export: text column contains a tab or line break")

func hasSeparator(s string) bool {
	return strings.ContainsAny(s, "\t\r\n")
}

// Exporter dumps committed titles from a store
type Exporter struct {
	store storage.Store
}

// NewExporter creates a new exporter
func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Substring filter, same semantics as search (empty = all titles)
	Query string

	// Maximum titles to export (0 = storage.MaxSearchLimit)
	Limit int

	// Header writes the column names as the first TSV line
	Header bool
}

func (o ExportOptions) request() storage.QueryRequest {
	limit := o.Limit
	if limit <= 0 {
		limit = storage.MaxSearchLimit
	}
	return storage.QueryRequest{Query: o.Query, Limit: limit}
}

// ExportResult contains stats about the export
type ExportResult struct {
	TitlesExported int       `json:"titles_exported"`
	Format         string    `json:"format"`
	ExportedAt     time.Time `json:"exported_at"`
}

// Document is the JSON export layout, also accepted by the importer
type Document struct {
	Metadata struct {
		ExportedAt time.Time `json:"exported_at"`
		TitleCount int       `json:"title_count"`
		Query      string    `json:"query,omitempty"`
		Format     string    `json:"format"`
		Version    string    `json:"version"`
	} `json:"metadata"`
	Titles []title.Row `json:"titles"`
}

// ExportJSON writes titles with export metadata as indented JSON
func (e *Exporter) ExportJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	rows, err := e.store.Search(ctx, opts.request())
	if err != nil {
		return nil, fmt.Errorf("failed to query titles: %w", err)
	}
	if rows == nil {
		rows = []title.Row{}
	}

	var doc Document
	doc.Titles = rows
	doc.Metadata.ExportedAt = time.Now().UTC()
	doc.Metadata.TitleCount = len(rows)
	doc.Metadata.Query = opts.Query
	doc.Metadata.Format = "json"
	doc.Metadata.Version = FormatVersion

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		TitlesExported: len(rows),
		Format:         "json",
		ExportedAt:     doc.Metadata.ExportedAt,
	}, nil
}

// ExportTSV writes titles in the five-column title_basics layout with the
// sentinel for absent values, so the output can be loaded again as is.
func (e *Exporter) ExportTSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	rows, err := e.store.Search(ctx, opts.request())
	if err != nil {
		return nil, fmt.Errorf("failed to query titles: %w", err)
	}

	bw := bufio.NewWriter(w)
	if opts.Header {
		if _, err := fmt.Fprintln(bw, strings.Join(title.Columns, "\t")); err != nil {
			return nil, fmt.Errorf("failed to write TSV header: %w", err)
		}
	}
	for _, r := range rows {
		if hasSeparator(r.TConst) || hasSeparator(r.TitleType) || hasSeparator(r.PrimaryTitle) {
			return nil, fmt.Errorf("%s: %w", r.TConst, ErrNotTSVSafe)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(r.Fields(), "\t")); err != nil {
			return nil, fmt.Errorf("failed to write TSV row: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write TSV: %w", err)
	}

	return &ExportResult{
		TitlesExported: len(rows),
		Format:         "tsv",
		ExportedAt:     time.Now().UTC(),
	}, nil
}
