package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyTracker(t *testing.T) {
	t.Parallel()

	tracker := NewLatencyTracker(0.01)

	for i := 1; i <= 100; i++ {
		tracker.Record("listPosts", time.Duration(i)*time.Millisecond)
	}

	tracker.Record("getPost", 5*time.Millisecond)

	stats, err := tracker.Stats("listPosts")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Count)
	assert.InDelta(t, 50, stats.P50, 2)
	assert.InDelta(t, 99, stats.P99, 2)
	assert.InDelta(t, 100, stats.Max, 2)

	p90, err := tracker.Quantile("listPosts", 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 90, p90, 2)

	_, err = tracker.Stats("deletePost")
	require.ErrorIs(t, err, ErrNoLatencyData)

	all := tracker.AllStats()
	require.Len(t, all, 2)
	assert.Equal(t, "getPost", all[0].Endpoint)
	assert.Equal(t, "listPosts", all[1].Endpoint)
}

func TestLatencyTracker_NilIgnoresRecord(t *testing.T) {
	t.Parallel()

	var tracker *LatencyTracker

	assert.NotPanics(t, func() {
		tracker.Record("listPosts", time.Millisecond)
	})
}
