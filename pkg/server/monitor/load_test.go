package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMonitor_NeverLoadedIsHealthy(t *testing.T) {
	var lm LoadMonitor
	require.True(t, lm.IsHealthy())

	status := lm.Status()
	require.True(t, status.Healthy)
	require.Empty(t, status.LastSuccess)
	require.Zero(t, status.TotalLoads)
}

func TestLoadMonitor_Failures(t *testing.T) {
	var lm LoadMonitor
	for i := 0; i < MaxConsecutiveLoadFailures-1; i++ {
		lm.RecordFailure(errors.New("mysql gone"))
	}
	require.True(t, lm.IsHealthy())

	lm.RecordFailure(errors.New("mysql gone"))
	require.False(t, lm.IsHealthy())

	status := lm.Status()
	require.Equal(t, MaxConsecutiveLoadFailures, status.ConsecutiveErrors)
	require.Equal(t, "mysql gone", status.LastError)
	require.NotEmpty(t, status.LastAttempt)

	lm.RecordSuccess(10, 2)
	status = lm.Status()
	require.True(t, status.Healthy)
	require.Zero(t, status.ConsecutiveErrors)
	require.Empty(t, status.LastError)
	require.Equal(t, int64(10), status.LastLoaded)
	require.Equal(t, int64(2), status.LastSkipped)
	require.Equal(t, 1, status.TotalLoads)
}
