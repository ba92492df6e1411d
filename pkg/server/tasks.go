package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/titlefrag/pkg/config"
	"github.com/nicktill/titlefrag/pkg/events"
	"github.com/nicktill/titlefrag/pkg/metrics"
	"github.com/nicktill/titlefrag/pkg/storage"
	"github.com/nicktill/titlefrag/pkg/storage/badger"
)

// TypeStoreStats is broadcast periodically while clients are connected
const TypeStoreStats = "store.stats"

// BroadcastStats periodically publishes store statistics to WebSocket clients
// and refreshes the stored-titles gauge. Errors back off exponentially so an
// unreachable database does not flood the log.
func BroadcastStats(ctx context.Context, store storage.Store, hub *events.Hub, m *metrics.Metrics, log *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var consecutiveErrors int
	var lastErrorTime time.Time
	const maxBackoff = 5 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !hub.HasClients() && m == nil {
				continue
			}

			queryCtx, cancel := context.WithTimeout(ctx, config.StatsTimeout)
			stats, err := store.Stats(queryCtx)
			cancel()
			if err != nil {
				consecutiveErrors++
				now := time.Now()

				// 1s, 2s, 4s ... capped at maxBackoff
				backoff := time.Duration(1<<uint(min(consecutiveErrors-1, 8))) * time.Second
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				if lastErrorTime.IsZero() || now.Sub(lastErrorTime) >= backoff {
					log.Warn("failed to read store stats",
						zap.Int("consecutive_errors", consecutiveErrors),
						zap.Duration("backoff", backoff),
						zap.Error(err))
					lastErrorTime = now
				}
				continue
			}

			if consecutiveErrors > 0 {
				log.Info("store stats recovered", zap.Int("after_errors", consecutiveErrors))
				consecutiveErrors = 0
			}

			m.SetStoredTitles(stats.TotalTitles)
			if hub.HasClients() {
				if err := hub.Publish(TypeStoreStats, stats); err != nil {
					log.Warn("failed to broadcast store stats", zap.Error(err))
				}
			}
		}
	}
}

// RunBadgerGC runs value log garbage collection periodically. Stores other
// than badger return immediately.
func RunBadgerGC(ctx context.Context, store storage.Store, log *zap.Logger, wg *sync.WaitGroup) {
	defer wg.Done()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()
	log.Info("badger GC scheduler started", zap.Duration("interval", config.BadgerGCInterval))

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			// an error means nothing was worth rewriting
			if err := badgerStore.RunGC(0.5); err != nil {
				log.Debug("badger GC found nothing to reclaim", zap.Duration("elapsed", time.Since(start)))
			} else {
				log.Info("badger GC reclaimed space", zap.Duration("elapsed", time.Since(start)))
			}
		case <-ctx.Done():
			log.Info("stopping badger GC scheduler")
			return
		}
	}
}
