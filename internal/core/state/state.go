// Package state provides the persisted key-value store shared by all
// shelfgate instances. The core depends only on this minimal operation
// set, never on a specific backend's full feature surface.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shelfgate/shelfgate/internal/config"
)

const (
	driverRedis  = "redis"
	driverLibsql = "libsql"
	driverMemory = "memory"
)

// UpdateFunc transforms the current value of a key into its next value.
// The previous value is nil when the key is absent or expired.
type UpdateFunc func(old []byte) ([]byte, error)

// Store is the minimal persisted state surface the core depends on.
//
// Get returns (nil, nil) for an absent or expired key. Update performs
// an atomic read-modify-write so concurrent writers on different
// instances cannot interleave between the read and the write.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) ([]byte, error)
	Increment(ctx context.Context, key string) (int64, error)
	ListPush(ctx context.Context, key string, value []byte) error
	ListRange(ctx context.Context, key string) ([][]byte, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Open initializes a state store using the configured driver.
func Open(ctx context.Context, cfg config.StateConfig) (Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverRedis
	}

	switch driver {
	case driverRedis:
		return openRedis(ctx, cfg)
	case driverLibsql:
		return openLibsql(ctx, cfg)
	case driverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported state driver: %s", driver)
	}
}

var errKeyRequired = errors.New("state key is required")
