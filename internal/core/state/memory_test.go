package state

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfgate/shelfgate/internal/config"
)

func TestMemoryStoreSetGetTTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return now }

	require.NoError(t, store.SetWithTTL(context.Background(), "product:1", []byte(`{"id":"1"}`), 5*time.Minute))

	value, err := store.Get(context.Background(), "product:1")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"id":"1"}`), value)

	now = now.Add(5*time.Minute + time.Second)
	value, err = store.Get(context.Background(), "product:1")
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestMemoryStoreGetAbsent(t *testing.T) {
	store := NewMemoryStore()

	value, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestMemoryStoreUpdateAtomic(t *testing.T) {
	store := NewMemoryStore()

	for i := 0; i < 3; i++ {
		_, err := store.Update(context.Background(), "counter", 0, func(old []byte) ([]byte, error) {
			count := 0
			if len(old) > 0 {
				parsed, err := strconv.Atoi(string(old))
				if err != nil {
					return nil, err
				}
				count = parsed
			}
			return []byte(strconv.Itoa(count + 1)), nil
		})
		require.NoError(t, err)
	}

	value, err := store.Get(context.Background(), "counter")
	require.NoError(t, err)
	require.Equal(t, []byte("3"), value)
}

func TestMemoryStoreUpdatePropagatesFnError(t *testing.T) {
	store := NewMemoryStore()
	sentinel := errors.New("boom")

	_, err := store.Update(context.Background(), "key", 0, func(old []byte) ([]byte, error) {
		return nil, sentinel
	})
	require.ErrorIs(t, err, sentinel)
}

func TestMemoryStoreIncrement(t *testing.T) {
	store := NewMemoryStore()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(context.Background(), "calls")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestMemoryStoreListWindowExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return now }

	require.NoError(t, store.ListPush(context.Background(), "samples", []byte("100")))
	require.NoError(t, store.ListPush(context.Background(), "samples", []byte("200")))
	require.NoError(t, store.Expire(context.Background(), "samples", time.Minute))

	values, err := store.ListRange(context.Background(), "samples")
	require.NoError(t, err)
	require.Len(t, values, 2)

	now = now.Add(2 * time.Minute)
	values, err = store.ListRange(context.Background(), "samples")
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.SetWithTTL(context.Background(), "a", []byte("1"), 0))
	require.NoError(t, store.ListPush(context.Background(), "b", []byte("2")))
	require.NoError(t, store.Delete(context.Background(), "a", "b"))

	value, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	require.Nil(t, value)

	values, err := store.ListRange(context.Background(), "b")
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StateConfig{Driver: "postgres"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported state driver")
}
