package state

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for tests and local
// single-instance development. TTLs are honored against an injectable
// clock.
type MemoryStore struct {
	mu     sync.Mutex
	kv     map[string]memoryEntry
	lists  map[string]memoryList
	Clock  func() time.Time
	closed bool
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryList struct {
	values    [][]byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:    make(map[string]memoryEntry),
		lists: make(map[string]memoryList),
	}
}

func (s *MemoryStore) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *MemoryStore) expired(at time.Time) bool {
	return !at.IsZero() && !s.now().Before(at)
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Get returns the value for key, or (nil, nil) when absent or expired.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.kv[key]
	if !ok || s.expired(entry.expiresAt) {
		delete(s.kv, key)
		return nil, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// SetWithTTL stores value under key with an expiry.
func (s *MemoryStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.kv[key] = memoryEntry{value: stored, expiresAt: s.expiry(ttl)}
	return nil
}

// Update applies fn to the current value of key under the store lock.
func (s *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) ([]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}
	if fn == nil {
		return nil, errors.New("update function is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var old []byte
	if entry, ok := s.kv[key]; ok && !s.expired(entry.expiresAt) {
		old = entry.value
	}

	next, err := fn(old)
	if err != nil {
		return nil, err
	}

	stored := make([]byte, len(next))
	copy(stored, next)
	s.kv[key] = memoryEntry{value: stored, expiresAt: s.expiry(ttl)}
	return next, nil
}

// Increment atomically increments the counter stored at key.
func (s *MemoryStore) Increment(ctx context.Context, key string) (int64, error) {
	next, err := s.Update(ctx, key, 0, func(old []byte) ([]byte, error) {
		count := int64(0)
		if len(old) > 0 {
			parsed, err := strconv.ParseInt(strings.TrimSpace(string(old)), 10, 64)
			if err != nil {
				return nil, err
			}
			count = parsed
		}
		return []byte(strconv.FormatInt(count+1, 10)), nil
	})
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(next), 10, 64)
}

// ListPush appends value to the list stored at key.
func (s *MemoryStore) ListPush(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.lists[key]
	if ok && s.expired(list.expiresAt) {
		list = memoryList{}
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	list.values = append(list.values, stored)
	s.lists[key] = list
	return nil
}

// ListRange returns all values in the list, oldest first.
func (s *MemoryStore) ListRange(ctx context.Context, key string) ([][]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.lists[key]
	if !ok || s.expired(list.expiresAt) {
		delete(s.lists, key)
		return [][]byte{}, nil
	}

	out := make([][]byte, 0, len(list.values))
	for _, v := range list.values {
		value := make([]byte, len(v))
		copy(value, v)
		out = append(out, value)
	}
	return out, nil
}

// Expire re-arms the TTL for key.
func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return errKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.expiry(ttl)
	if entry, ok := s.kv[key]; ok {
		entry.expiresAt = expiresAt
		s.kv[key] = entry
	}
	if list, ok := s.lists[key]; ok {
		list.expiresAt = expiresAt
		s.lists[key] = list
	}
	return nil
}

// Delete removes the given keys.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.kv, key)
		delete(s.lists, key)
	}
	return nil
}

// Ping reports whether the store is usable.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("memory state store is closed")
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
