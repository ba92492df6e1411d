package server

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/config"
	"github.com/nicktill/titlefrag/pkg/events"
	"github.com/nicktill/titlefrag/pkg/export"
	"github.com/nicktill/titlefrag/pkg/metrics"
	"github.com/nicktill/titlefrag/pkg/server/monitor"
	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/storage/badger"
	"github.com/nicktill/titlefrag/pkg/storage/memory"
	"github.com/nicktill/titlefrag/pkg/storage/mysql"
)

// InitializeStorage opens the store selected by cfg.Storage.Backend.
func InitializeStorage(ctx context.Context, cfg *config.File, log *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Info("using in-memory title store (data is lost on exit)")
		return memory.New(), nil

	case config.BackendBadger:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := badger.New(badger.Config{
			Path:        cfg.Storage.DataDir,
			MaxMemoryMB: cfg.Storage.MaxMemoryMB,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		log.Info("badger title store ready", zap.String("path", cfg.Storage.DataDir))
		return store, nil

	case config.BackendMySQL:
		store, err := mysql.Open(ctx, cfg.MySQL, log)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		log.Info("mysql title store ready",
			zap.String("host", cfg.MySQL.Host),
			zap.String("database", cfg.MySQL.Database),
			zap.String("table", cfg.MySQL.Table))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Titles         *TitleHandler
	Export         *export.Handler
	Hub            *events.Hub
	Metrics        *metrics.Metrics
	Loads          *monitor.LoadMonitor
	StorageMonitor *monitor.StorageMonitor
	Logger         *zap.Logger

	// WriteLock serializes loads and imports on the store
	WriteLock *sync.Mutex
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// InitializeHandlers creates and configures all request handlers.
func InitializeHandlers(store storage.Store, cfg *config.File, log *zap.Logger) *Handlers {
	h := &Handlers{
		Hub:       events.NewHub(log),
		Loads:     &monitor.LoadMonitor{},
		Logger:    log,
		WriteLock: &sync.Mutex{},
	}

	if cfg.Metrics.Enabled {
		h.Metrics = metrics.New()
	}

	// disk usage only means something for the local store
	if cfg.Storage.Backend == config.BackendBadger {
		h.StorageMonitor = monitor.NewStorageMonitor(cfg.Storage.DataDir, cfg.Storage.MaxStorageGB<<30)
	}

	h.Titles = NewTitleHandler(store, TitleHandlerOptions{
		Backend:        cfg.Storage.Backend,
		Analyzer:       cfg.Analyzer(),
		Load:           cfg.Load,
		Hub:            h.Hub,
		Metrics:        h.Metrics,
		Loads:          h.Loads,
		StorageMonitor: h.StorageMonitor,
		Logger:         log,
		WriteLock:      h.WriteLock,
	})
	h.Export = export.NewHandler(store, log, export.WithWriteLock(h.WriteLock))

	return h
}
