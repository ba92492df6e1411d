package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/config"
	"github.com/nicktill/titlefrag/pkg/events"
	"github.com/nicktill/titlefrag/pkg/fragment"
	"github.com/nicktill/titlefrag/pkg/httpx"
	"github.com/nicktill/titlefrag/pkg/ingest"
	"github.com/nicktill/titlefrag/pkg/metrics"
	"github.com/nicktill/titlefrag/pkg/server/monitor"
	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/title"
	"github.com/nicktill/titlefrag/pkg/tsv"
)

// TitleHandler serves the title store and the two core operations over HTTP
type TitleHandler struct {
	store    storage.Store
	backend  string
	analyzer fragment.Analyzer
	load     config.LoadConfig

	hub     *events.Hub
	metrics *metrics.Metrics
	loads   *monitor.LoadMonitor
	storage *monitor.StorageMonitor
	log     *zap.Logger

	// one writer at a time against the shared store
	writeMu sync.Locker

	maxFragmentBody int64
}

// TitleHandlerOptions wires optional collaborators into a TitleHandler
type TitleHandlerOptions struct {
	Backend  string
	Analyzer *fragment.Analyzer
	Load     config.LoadConfig

	Hub            *events.Hub
	Metrics        *metrics.Metrics
	Loads          *monitor.LoadMonitor
	StorageMonitor *monitor.StorageMonitor
	Logger         *zap.Logger

	// WriteLock is held for a whole load. Imports on the same store must
	// share it.
	WriteLock sync.Locker
}

// NewTitleHandler creates a title handler
func NewTitleHandler(store storage.Store, opts TitleHandlerOptions) *TitleHandler {
	h := &TitleHandler{
		store:    store,
		backend:  opts.Backend,
		analyzer: *fragment.New(fragment.DefaultBudget),
		load:     opts.Load,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		loads:    opts.Loads,
		storage:  opts.StorageMonitor,
		log:      opts.Logger,
		writeMu:  opts.WriteLock,

		maxFragmentBody: config.MaxFragmentBodyBytes,
	}
	if h.writeMu == nil {
		h.writeMu = &sync.Mutex{}
	}
	if opts.Analyzer != nil {
		h.analyzer = *opts.Analyzer
	}
	if h.loads == nil {
		h.loads = &monitor.LoadMonitor{}
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.backend == "" {
		h.backend = "default"
	}
	return h
}

// SearchResponse is returned by GET /v1/titles
type SearchResponse struct {
	Query  string      `json:"query,omitempty"`
	Count  int         `json:"count"`
	Titles []title.Row `json:"titles"`
}

// HandleSearch handles GET /v1/titles?q=&limit=
func (h *TitleHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	limit, ok := httpx.IntParam(r, "limit", storage.DefaultSearchLimit)
	if !ok || limit < 0 {
		httpx.RespondErrorString(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	q := r.URL.Query().Get("q")
	rows, err := h.store.Search(ctx, storage.QueryRequest{Query: q, Limit: limit})
	if err != nil {
		h.log.Error("search failed", zap.String("query", q), zap.Error(err))
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []title.Row{}
	}

	httpx.RespondJSON(w, http.StatusOK, SearchResponse{Query: q, Count: len(rows), Titles: rows})
}

// HandleCount handles GET /v1/count
func (h *TitleHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	n, err := h.store.Count(ctx)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	h.metrics.SetStoredTitles(n)

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"backend": h.backend,
		"count":   n,
	})
}

// HandleStats handles GET /v1/stats
func (h *TitleHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.StatsTimeout)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, stats)
}

// HandleLoad handles POST /v1/load?policy=&header= with a TSV body
func (h *TitleHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	policyName := r.URL.Query().Get("policy")
	if policyName == "" {
		policyName = h.load.Policy
	}
	policy, err := ingest.ParsePolicy(policyName)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	header, ok := httpx.BoolParam(r, "header", h.load.SkipHeader)
	if !ok {
		httpx.RespondErrorString(w, http.StatusBadRequest, "header must be a boolean")
		return
	}

	if h.storage != nil {
		if err := h.storage.CheckLimit(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, monitor.ErrStorageFull) {
				status = http.StatusInsufficientStorage
			}
			httpx.RespondError(w, status, err)
			return
		}
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), config.LoadTimeout)
	defer cancel()

	body := http.MaxBytesReader(w, r.Body, config.MaxLoadBodyBytes)
	src := tsv.NewReader(body, tsv.Options{SkipHeader: header})

	h.publish(events.TypeLoadStarted, map[string]string{"policy": policy.String()})
	loader := ingest.NewLoader(h.store,
		ingest.WithPolicy(policy),
		ingest.WithLogger(h.log),
		ingest.WithMetrics(h.metrics, h.backend),
		ingest.WithProgress(h.load.ProgressEvery, func(p ingest.Progress) {
			h.publish(events.TypeLoadProgress, p)
		}),
	)

	result, err := loader.Load(ctx, src)
	if err != nil {
		h.loads.RecordFailure(err)
		h.publish(events.TypeLoadFailed, map[string]string{"error": err.Error()})

		var rerr *title.RecordError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &rerr):
			httpx.RespondError(w, http.StatusUnprocessableEntity, err)
		case errors.As(err, &tooLarge):
			httpx.RespondError(w, http.StatusRequestEntityTooLarge, err)
		default:
			httpx.RespondError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.loads.RecordSuccess(result.Loaded, result.Skipped)
	h.publish(events.TypeLoadCompleted, result)
	httpx.RespondJSON(w, http.StatusOK, result)
}

// HandleFragment handles POST /v1/fragment?budget=&header=&format= with a TSV body
func (h *TitleHandler) HandleFragment(w http.ResponseWriter, r *http.Request) {
	analyzer := h.analyzer

	budget, ok := httpx.IntParam(r, "budget", analyzer.Budget)
	if !ok || budget <= 0 {
		httpx.RespondError(w, http.StatusBadRequest, fragment.ErrInvalidBudget)
		return
	}
	analyzer.Budget = budget

	header, ok := httpx.BoolParam(r, "header", false)
	if !ok {
		httpx.RespondErrorString(w, http.StatusBadRequest, "header must be a boolean")
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "text" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "format must be 'json' or 'text'")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxFragmentBody)
	src := tsv.NewReader(body, tsv.Options{SkipHeader: header, TrimSpace: true})

	start := time.Now()
	stats, err := analyzer.Analyze(r.Context(), src)
	if err != nil {
		h.log.Error("fragment analysis failed", zap.Error(err))

		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			httpx.RespondError(w, http.StatusRequestEntityTooLarge, err)
		case errors.Is(err, fragment.ErrInvalidBudget), errors.Is(err, fragment.ErrInvalidYearColumn):
			httpx.RespondError(w, http.StatusBadRequest, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			httpx.RespondError(w, http.StatusServiceUnavailable, err)
		default:
			httpx.RespondError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.metrics.RecordAnalysis(stats.MedianYear, stats.TotalValid, stats.Missing, stats.Unparsable, stats.Skipped, time.Since(start))
	h.publish(events.TypeFragment, stats)

	if format == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := fragment.WriteReport(w, stats); err != nil {
			h.log.Warn("failed to write fragment report", zap.Error(err))
		}
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}

func (h *TitleHandler) publish(eventType string, data interface{}) {
	if h.hub == nil {
		return
	}
	if err := h.hub.Publish(eventType, data); err != nil {
		h.log.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
