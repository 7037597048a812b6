package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBlobOperation_PathLabelEnabled(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := Config{EnablePathLabel: true}
	m := newMetricsWithRegistry(reg, cfg)

	m.RecordBlobOperation("read", "photos/a.jpg")
	m.RecordBlobOperation("read", "photos/a.jpg")
	m.RecordBlobOperation("read", "photos/b.jpg")

	countA := testutil.ToFloat64(m.blobOperationsTotal.WithLabelValues("read", "photos/a.jpg"))
	assert.Equal(t, 2.0, countA)

	countB := testutil.ToFloat64(m.blobOperationsTotal.WithLabelValues("read", "photos/b.jpg"))
	assert.Equal(t, 1.0, countB)
}

func TestRecordBlobOperation_PathLabelDisabled(t *testing.T) {
	// Default config collapses every distinct blob path to "*" to keep
	// the series count bounded regardless of how many blobs a backup
	// contains.
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnablePathLabel: false})

	m.RecordBlobOperation("write", "a.bin")
	m.RecordBlobOperation("write", "b.bin")

	count := testutil.ToFloat64(m.blobOperationsTotal.WithLabelValues("write", "*"))
	assert.Equal(t, 2.0, count)
}

func TestChunkTypeLabel(t *testing.T) {
	tests := []struct {
		chunkType int
		expected  string
	}{
		{0, "manifest"},
		{1, "database"},
		{2, "blob"},
		{99, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, chunkTypeLabel(tt.chunkType))
	}
}
