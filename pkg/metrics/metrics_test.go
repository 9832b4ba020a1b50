package metrics_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heavybullets8/TT-Migration/pkg/metrics"
)

func TestRegistry_RecordMarker(t *testing.T) {
	r := metrics.NewRegistry()
	r.RecordMarker(true, time.Millisecond)
	r.RecordMarker(true, time.Millisecond)
	r.RecordMarker(false, time.Millisecond)

	n, err := testutil.GatherAndCount(r.Gatherer(), "ttm_markers_created_total", "ttm_marker_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		if len(mf.GetMetric()) == 1 && mf.GetMetric()[0].GetCounter() != nil {
			values[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, values["ttm_markers_created_total"])
	assert.Equal(t, 1.0, values["ttm_marker_failures_total"])
}

func TestRegistry_RecordLogEntryAndVerify(t *testing.T) {
	r := metrics.NewRegistry()
	r.RecordLogEntry("not_tampered", time.Millisecond)
	r.RecordLogEntry(metrics.ResultTampered, time.Millisecond)
	r.RecordVerify(metrics.ResultClean, time.Millisecond)
	r.RecordVerify(metrics.ResultEmpty, time.Millisecond)
	r.RecordCorruptLog()

	n, err := testutil.GatherAndCount(r.Gatherer(), "ttm_log_records_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per status")

	n, err = testutil.GatherAndCount(r.Gatherer(), "ttm_log_verifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(r.Gatherer(), "ttm_log_corrupt_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistry_WriteTextfile(t *testing.T) {
	r := metrics.NewRegistry()
	r.RecordMarker(true, time.Millisecond)

	path := filepath.Join(t.TempDir(), "ttm.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ttm_markers_created_total 1")
}

func TestDefault_Singleton(t *testing.T) {
	assert.Same(t, metrics.Default(), metrics.Default())
}
