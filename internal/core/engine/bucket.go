// Package engine contains the budget, metrics, and orchestration logic
// of the read path. Components are constructed once at startup and
// share the persisted state store.
package engine

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/shelfgate/shelfgate/internal/core"
	"github.com/shelfgate/shelfgate/internal/core/state"
)

const (
	// DefaultMaxPoints and DefaultRefillRate mirror the upstream's
	// advertised throttle: a 1000 point bucket restoring 50 points
	// per second.
	DefaultMaxPoints  = 1000.0
	DefaultRefillRate = 50.0

	bucketKey = "budget:bucket"
)

// TokenBucket gates expensive upstream calls against a point budget
// shared across all shelfgate instances through the state store.
//
// The bucket is refilled lazily: every read recomputes the available
// points from the elapsed time since the last persisted refill, so no
// background timer is needed. Refill and consumption go through the
// store's atomic Update, which keeps concurrent instances from
// interleaving between the read and the write.
//
// The limiter fails open: when the state store is unavailable the
// bucket behaves as full rather than blocking requests indefinitely.
type TokenBucket struct {
	Store      state.Store
	MaxPoints  float64
	RefillRate float64
	Clock      func() time.Time
	Logger     *logging.Logger
}

func (b *TokenBucket) maxPoints() float64 {
	if b.MaxPoints > 0 {
		return b.MaxPoints
	}
	return DefaultMaxPoints
}

func (b *TokenBucket) refillRate() float64 {
	if b.RefillRate > 0 {
		return b.RefillRate
	}
	return DefaultRefillRate
}

func (b *TokenBucket) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now().UTC()
}

// refill recomputes the available points from elapsed time and
// persists the refreshed state. An absent key defaults to a full
// bucket stamped now.
func (b *TokenBucket) refill(ctx context.Context) (float64, error) {
	var available float64

	_, err := b.Store.Update(ctx, bucketKey, 0, func(old []byte) ([]byte, error) {
		now := b.now()
		bucket := core.BucketState{Points: b.maxPoints(), LastRefill: now}
		if len(old) > 0 {
			if err := json.Unmarshal(old, &bucket); err != nil {
				return nil, err
			}
		}

		elapsed := now.Sub(bucket.LastRefill).Seconds()
		if elapsed < 0 {
			elapsed = 0
		}
		available = math.Min(b.maxPoints(), bucket.Points+elapsed*b.refillRate())

		return json.Marshal(core.BucketState{Points: available, LastRefill: now})
	})
	if err != nil {
		return 0, err
	}
	return available, nil
}

// CanExecute reports whether the budget currently covers cost. It
// never blocks and never errors; store failures count as available.
func (b *TokenBucket) CanExecute(ctx context.Context, cost float64) bool {
	available, err := b.refill(ctx)
	if err != nil {
		b.warn("budget check failed open", err)
		return true
	}
	return available >= cost
}

// WaitTime returns how long a caller should wait before cost points
// are available, or zero when the budget already covers it.
func (b *TokenBucket) WaitTime(ctx context.Context, cost float64) time.Duration {
	available, err := b.refill(ctx)
	if err != nil {
		b.warn("budget wait estimate failed open", err)
		return 0
	}
	if available >= cost {
		return 0
	}

	ms := math.Ceil((cost - available) / b.refillRate() * 1000)
	return time.Duration(ms) * time.Millisecond
}

// Consume debits cost from the persisted budget. The write is best
// effort: callers do not wait for durability and store errors are
// swallowed. The refill timestamp is left untouched so the debit does
// not grant elapsed-time credit.
func (b *TokenBucket) Consume(ctx context.Context, cost float64) {
	_, err := b.Store.Update(ctx, bucketKey, 0, func(old []byte) ([]byte, error) {
		bucket := core.BucketState{Points: b.maxPoints(), LastRefill: b.now()}
		if len(old) > 0 {
			if err := json.Unmarshal(old, &bucket); err != nil {
				return nil, err
			}
		}

		bucket.Points = math.Max(0, bucket.Points-cost)
		return json.Marshal(bucket)
	})
	if err != nil {
		b.warn("budget consume dropped", err)
	}
}

// State refreshes and returns the current bucket state, for the admin
// surface.
func (b *TokenBucket) State(ctx context.Context) (core.BucketState, error) {
	available, err := b.refill(ctx)
	if err != nil {
		return core.BucketState{}, err
	}
	return core.BucketState{Points: available, LastRefill: b.now()}, nil
}

// Reset restores the bucket to full by deleting the persisted state;
// the next read recreates it lazily.
func (b *TokenBucket) Reset(ctx context.Context) error {
	return b.Store.Delete(ctx, bucketKey)
}

func (b *TokenBucket) warn(msg string, err error) {
	if b.Logger == nil {
		return
	}
	b.Logger.Warn(msg, zap.Error(err))
}
