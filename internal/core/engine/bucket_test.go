package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfgate/shelfgate/internal/core"
	"github.com/shelfgate/shelfgate/internal/core/state"
)

// failingStore errors on every operation to exercise fail-open paths.
type failingStore struct {
	state.Store
}

func (failingStore) Update(ctx context.Context, key string, ttl time.Duration, fn state.UpdateFunc) ([]byte, error) {
	return nil, errors.New("store unavailable")
}

func (failingStore) Delete(ctx context.Context, keys ...string) error {
	return errors.New("store unavailable")
}

func newTestBucket(t *testing.T) (*TokenBucket, *state.MemoryStore, *time.Time) {
	t.Helper()

	store := state.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return now }

	bucket := &TokenBucket{
		Store: store,
		Clock: func() time.Time { return now },
	}
	return bucket, store, &now
}

func TestBucketStartsFull(t *testing.T) {
	bucket, _, _ := newTestBucket(t)

	for _, cost := range []float64{1, 50, 500, 1000} {
		require.True(t, bucket.CanExecute(context.Background(), cost), "cost %g", cost)
	}
}

func TestBucketConsumeDebitsPoints(t *testing.T) {
	bucket, _, _ := newTestBucket(t)

	bucket.Consume(context.Background(), 950)

	require.True(t, bucket.CanExecute(context.Background(), 50))
	require.False(t, bucket.CanExecute(context.Background(), 51))
}

func TestBucketRefillIsMonotonicAndCapped(t *testing.T) {
	bucket, _, now := newTestBucket(t)

	bucket.Consume(context.Background(), 1000)
	require.False(t, bucket.CanExecute(context.Background(), 1))

	// 10 seconds at 50 points/s restores 500 points.
	*now = now.Add(10 * time.Second)
	require.True(t, bucket.CanExecute(context.Background(), 500))
	require.False(t, bucket.CanExecute(context.Background(), 501))

	// 20 more seconds would add 1000, but the bucket caps at max.
	*now = now.Add(20 * time.Second)
	st, err := bucket.State(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1000.0, st.Points)
}

func TestBucketWaitTime(t *testing.T) {
	bucket, _, _ := newTestBucket(t)

	require.Equal(t, time.Duration(0), bucket.WaitTime(context.Background(), 100))

	// Drain to 100 points: cost 150 at 50 points/s needs 1000ms.
	bucket.Consume(context.Background(), 900)
	require.Equal(t, time.Second, bucket.WaitTime(context.Background(), 150))
}

func TestBucketWaitTimeRoundsUp(t *testing.T) {
	bucket, _, _ := newTestBucket(t)

	bucket.Consume(context.Background(), 1000)
	// 75 points short at 50 points/s: ceil(1.5s) in milliseconds.
	require.Equal(t, 1500*time.Millisecond, bucket.WaitTime(context.Background(), 75))
}

func TestBucketConsumeClampsAtZero(t *testing.T) {
	bucket, store, _ := newTestBucket(t)

	bucket.Consume(context.Background(), 1500)

	raw, err := store.Get(context.Background(), "budget:bucket")
	require.NoError(t, err)
	var st core.BucketState
	require.NoError(t, json.Unmarshal(raw, &st))
	require.Equal(t, 0.0, st.Points)
}

func TestBucketFailsOpenOnStoreErrors(t *testing.T) {
	bucket := &TokenBucket{Store: failingStore{}}

	require.True(t, bucket.CanExecute(context.Background(), 1000))
	require.Equal(t, time.Duration(0), bucket.WaitTime(context.Background(), 1000))

	// Consume must swallow the failure entirely.
	bucket.Consume(context.Background(), 100)
}

func TestBucketRefillTimestampAdvances(t *testing.T) {
	bucket, store, now := newTestBucket(t)

	require.True(t, bucket.CanExecute(context.Background(), 1))
	first := *now

	*now = now.Add(3 * time.Second)
	require.True(t, bucket.CanExecute(context.Background(), 1))

	raw, err := store.Get(context.Background(), "budget:bucket")
	require.NoError(t, err)
	var st core.BucketState
	require.NoError(t, json.Unmarshal(raw, &st))
	require.True(t, st.LastRefill.After(first))
}
