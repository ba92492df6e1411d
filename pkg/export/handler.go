package export

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/httpx"
	"github.com/nicktill/titlefrag/pkg/storage"
)

// Handler handles export/import HTTP endpoints
type Handler struct {
	exporter *Exporter
	importer *Importer
	log      *zap.Logger

	// held for the whole import; shared with loads on the same store
	writeMu sync.Locker
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithWriteLock serializes imports with every other writer holding mu
func WithWriteLock(mu sync.Locker) HandlerOption {
	return func(h *Handler) { h.writeMu = mu }
}

// NewHandler creates a new export/import handler
func NewHandler(store storage.Store, log *zap.Logger, opts ...HandlerOption) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		exporter: NewExporter(store),
		importer: NewImporter(store),
		log:      log,
		writeMu:  &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleExport handles GET /v1/export
// Query params:
//   - format: "tsv" or "json" (default: tsv)
//   - q: substring filter (optional)
//   - limit: maximum titles (default: storage.MaxSearchLimit)
//   - header: write the TSV column header (default: true)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = "tsv"
	}
	if format != "json" && format != "tsv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid format, must be 'tsv' or 'json'")
		return
	}

	limit, ok := httpx.IntParam(r, "limit", 0)
	if !ok || limit < 0 {
		httpx.RespondErrorString(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	header, ok := httpx.BoolParam(r, "header", true)
	if !ok {
		httpx.RespondErrorString(w, http.StatusBadRequest, "header must be a boolean")
		return
	}

	opts := ExportOptions{Query: query.Get("q"), Limit: limit, Header: header}

	timestamp := time.Now().Format("20060102-150405")
	var (
		result *ExportResult
		err    error
	)
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=titles-%s.json", timestamp))
		result, err = h.exporter.ExportJSON(r.Context(), w, opts)
	} else {
		w.Header().Set("Content-Type", "text/tab-separated-values")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=titles-%s.tsv", timestamp))
		result, err = h.exporter.ExportTSV(r.Context(), w, opts)
	}

	if err != nil {
		// headers may already be on the wire; log either way
		h.log.Error("export failed", zap.String("format", format), zap.Error(err))
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	h.log.Info("export finished", zap.Int("titles", result.TitlesExported), zap.String("format", format))
}

// HandleImport handles POST /v1/import with a JSON export as the body
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "application/json" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	result, err := h.importer.ImportJSON(r.Context(), r.Body)
	if err != nil {
		h.log.Error("import failed", zap.Error(err))
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	if len(result.Errors) > 0 {
		h.log.Warn("import skipped invalid titles", zap.Int("errors", len(result.Errors)))
	}
	h.log.Info("import finished", zap.Int("titles", result.TitlesImported))

	httpx.RespondJSON(w, http.StatusOK, result)
}
