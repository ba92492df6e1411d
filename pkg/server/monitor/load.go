package monitor

import (
	"sync"
	"time"
)

// MaxConsecutiveLoadFailures marks the loader unhealthy
const MaxConsecutiveLoadFailures = 3

// LoadMonitor tracks the outcome of load runs for the health endpoint.
type LoadMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
	lastLoaded        int64
	lastSkipped       int64
	totalLoads        int
}

// RecordSuccess records a committed load.
func (lm *LoadMonitor) RecordSuccess(loaded, skipped int64) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	now := time.Now()
	lm.lastSuccess = now
	lm.lastAttempt = now
	lm.consecutiveErrors = 0
	lm.lastError = ""
	lm.lastLoaded = loaded
	lm.lastSkipped = skipped
	lm.totalLoads++
}

// RecordFailure records a load that did not commit.
func (lm *LoadMonitor) RecordFailure(err error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.lastAttempt = time.Now()
	lm.consecutiveErrors++
	if err != nil {
		lm.lastError = err.Error()
	}
}

// IsHealthy is false after MaxConsecutiveLoadFailures failed loads in a row.
// A server that has never loaded anything is healthy.
func (lm *LoadMonitor) IsHealthy() bool {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.healthy()
}

func (lm *LoadMonitor) healthy() bool {
	return lm.consecutiveErrors < MaxConsecutiveLoadFailures
}

// LoadStatus is the load section of the health response.
type LoadStatus struct {
	Healthy           bool   `json:"healthy"`
	TotalLoads        int    `json:"total_loads"`
	LastSuccess       string `json:"last_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	LastLoaded        int64  `json:"last_loaded"`
	LastSkipped       int64  `json:"last_skipped"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns the current load status.
func (lm *LoadMonitor) Status() LoadStatus {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	status := LoadStatus{
		Healthy:     lm.healthy(),
		TotalLoads:  lm.totalLoads,
		LastLoaded:  lm.lastLoaded,
		LastSkipped: lm.lastSkipped,
	}
	if !lm.lastSuccess.IsZero() {
		status.LastSuccess = lm.lastSuccess.Format(time.RFC3339)
	}
	if !lm.lastAttempt.IsZero() {
		status.LastAttempt = lm.lastAttempt.Format(time.RFC3339)
	}
	if lm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = lm.consecutiveErrors
		status.LastError = lm.lastError
	}
	return status
}
