package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfgate/shelfgate/internal/core/state"
)

type erroringMetricsStore struct {
	state.Store
}

func (erroringMetricsStore) ListPush(ctx context.Context, key string, value []byte) error {
	return context.DeadlineExceeded
}

func (erroringMetricsStore) ListRange(ctx context.Context, key string) ([][]byte, error) {
	return nil, context.DeadlineExceeded
}

func (erroringMetricsStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, context.DeadlineExceeded
}

func newTestAggregator(t *testing.T) (*Aggregator, *state.MemoryStore, *time.Time) {
	t.Helper()

	store := state.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return now }

	agg := &Aggregator{
		Store: store,
		Clock: func() time.Time { return now },
	}
	return agg, store, &now
}

func TestAggregatorEndpointStats(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	for _, ms := range []int{100, 200, 300} {
		agg.RecordEndpointCall(context.Background(), time.Duration(ms)*time.Millisecond)
	}

	snapshot := agg.Snapshot(context.Background())
	require.Equal(t, int64(200), snapshot.Endpoint.AverageMs)
	require.Equal(t, int64(300), snapshot.Endpoint.MaxMs)
	require.Equal(t, int64(100), snapshot.Endpoint.MinMs)
	require.Equal(t, int64(3), snapshot.Endpoint.TotalCalls)
}

func TestAggregatorAverageRounds(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	agg.RecordUpstreamCall(context.Background(), 100*time.Millisecond)
	agg.RecordUpstreamCall(context.Background(), 101*time.Millisecond)

	snapshot := agg.Snapshot(context.Background())
	require.Equal(t, int64(101), snapshot.Upstream.AverageMs)
	require.Equal(t, int64(2), snapshot.Upstream.TotalCalls)
}

func TestAggregatorWindowsAreIndependent(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	agg.RecordEndpointCall(context.Background(), 50*time.Millisecond)
	agg.RecordUpstreamCall(context.Background(), 400*time.Millisecond)

	snapshot := agg.Snapshot(context.Background())
	require.Equal(t, int64(50), snapshot.Endpoint.AverageMs)
	require.Equal(t, int64(1), snapshot.Endpoint.TotalCalls)
	require.Equal(t, int64(400), snapshot.Upstream.AverageMs)
	require.Equal(t, int64(1), snapshot.Upstream.TotalCalls)
}

func TestAggregatorEmptySnapshotIsZero(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	snapshot := agg.Snapshot(context.Background())
	require.Zero(t, snapshot.Endpoint)
	require.Zero(t, snapshot.Upstream)
}

func TestAggregatorResetClearsEverything(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	agg.RecordEndpointCall(context.Background(), 100*time.Millisecond)
	agg.RecordUpstreamCall(context.Background(), 100*time.Millisecond)

	require.NoError(t, agg.Reset(context.Background()))

	snapshot := agg.Snapshot(context.Background())
	require.Zero(t, snapshot.Endpoint)
	require.Zero(t, snapshot.Upstream)
}

func TestAggregatorIdleWindowSelfExpires(t *testing.T) {
	agg, _, now := newTestAggregator(t)
	agg.Window = time.Minute

	agg.RecordEndpointCall(context.Background(), 100*time.Millisecond)

	*now = now.Add(2 * time.Minute)
	snapshot := agg.Snapshot(context.Background())
	require.Zero(t, snapshot.Endpoint)
}

func TestAggregatorWriteRearmsWindow(t *testing.T) {
	agg, _, now := newTestAggregator(t)
	agg.Window = time.Minute

	agg.RecordEndpointCall(context.Background(), 100*time.Millisecond)

	*now = now.Add(45 * time.Second)
	agg.RecordEndpointCall(context.Background(), 200*time.Millisecond)

	// The first sample is still retained because the second write
	// re-armed the shared TTL.
	*now = now.Add(45 * time.Second)
	snapshot := agg.Snapshot(context.Background())
	require.Equal(t, int64(2), snapshot.Endpoint.TotalCalls)
	require.Equal(t, int64(150), snapshot.Endpoint.AverageMs)
}

func TestAggregatorFailsOpenOnStoreErrors(t *testing.T) {
	agg := &Aggregator{Store: erroringMetricsStore{}}

	agg.RecordEndpointCall(context.Background(), 100*time.Millisecond)

	snapshot := agg.Snapshot(context.Background())
	require.Zero(t, snapshot.Endpoint)
	require.Zero(t, snapshot.Upstream)
}
