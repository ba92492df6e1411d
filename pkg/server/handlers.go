package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/titlefrag/pkg/httpx"
	"github.com/nicktill/titlefrag/pkg/server/monitor"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

var startTime = time.Now()

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string             `json:"status"`
	Version string             `json:"version"`
	Backend string             `json:"backend"`
	Uptime  string             `json:"uptime"`
	Load    monitor.LoadStatus `json:"load"`
}

// handleHealth returns service health status.
func handleHealth(backend string, loads *monitor.LoadMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := loads.Status()

		overall := "healthy"
		code := http.StatusOK
		if !status.Healthy {
			overall = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.RespondJSON(w, code, HealthResponse{
			Status:  overall,
			Version: Version,
			Backend: backend,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Load:    status,
		})
	}
}

// handleStorageUsage returns current storage usage.
func handleStorageUsage(sm *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sm == nil {
			httpx.RespondErrorString(w, http.StatusNotFound, "storage usage is only tracked for the badger backend")
			return
		}

		usedBytes, err := sm.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.RespondJSON(w, http.StatusOK, StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  sm.GetLimit(),
		})
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, h *Handlers, port string) {
	router.Use(corsMiddleware(port))
	router.Use(instrumentMiddleware(h.Metrics, h.logger()))

	api := router.PathPrefix("/v1").Subrouter()

	// Titles
	api.HandleFunc("/titles", h.Titles.HandleSearch).Methods("GET")
	api.HandleFunc("/count", h.Titles.HandleCount).Methods("GET")
	api.HandleFunc("/stats", h.Titles.HandleStats).Methods("GET")

	// Load and fragmentation
	api.HandleFunc("/load", h.Titles.HandleLoad).Methods("POST")
	api.HandleFunc("/fragment", h.Titles.HandleFragment).Methods("POST")

	// Export/import
	api.HandleFunc("/export", h.Export.HandleExport).Methods("GET")
	api.HandleFunc("/import", h.Export.HandleImport).Methods("POST")

	// Service state
	api.HandleFunc("/storage", handleStorageUsage(h.StorageMonitor)).Methods("GET")
	api.HandleFunc("/health", handleHealth(h.Titles.backend, h.Loads)).Methods("GET")

	// Event stream
	api.HandleFunc("/ws", h.Hub.HandleWebSocket).Methods("GET")

	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics.Handler()).Methods("GET")
	}
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
