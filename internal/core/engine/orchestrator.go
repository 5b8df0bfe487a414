package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/shelfgate/shelfgate/internal/core"
	"github.com/shelfgate/shelfgate/internal/core/cache"
)

// DefaultMaxPageSize mirrors the upstream's page size ceiling.
const DefaultMaxPageSize = 250

// productIDPrefix is the upstream's canonical identifier form for
// catalog products.
const productIDPrefix = "gid://shopify/Product/"

// CatalogQuerier issues queries against the upstream catalog API. The
// reported cost is the actual query cost declared by the upstream
// response, used to settle the budget after the fact.
//
// A nil product or page with a nil error means the upstream resolved
// the query but found nothing; transport and API failures come back as
// errors.
type CatalogQuerier interface {
	ProductByID(ctx context.Context, id string) (*core.Product, float64, error)
	ListProducts(ctx context.Context, first int, after string) (*core.ProductPage, float64, error)
}

// Orchestrator answers product reads with a cache-aside, budget-aware
// pipeline: cache lookup, advisory budget gate, upstream query, metric
// recording, cache population.
//
// The gate and the debit deliberately use different numbers: the
// pre-call check uses a fixed estimated cost, while the post-call
// settlement debits the actual cost the upstream reported. The gate is
// advisory only; a request short on budget sleeps for the projected
// refill time and then proceeds.
type Orchestrator struct {
	Cache         *cache.Cache
	Bucket        *TokenBucket
	Metrics       *Aggregator
	Upstream      CatalogQuerier
	EstimatedCost float64
	MaxPageSize   int
	Clock         func() time.Time
	Logger        *logging.Logger

	settles sync.WaitGroup
}

func (o *Orchestrator) estimatedCost() float64 {
	if o.EstimatedCost > 0 {
		return o.EstimatedCost
	}
	return 10
}

func (o *Orchestrator) maxPageSize() int {
	if o.MaxPageSize > 0 {
		return o.MaxPageSize
	}
	return DefaultMaxPageSize
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

// NormalizeProductID maps a caller-supplied identifier into the
// upstream's canonical form. Already-canonical identifiers pass
// through unchanged.
func NormalizeProductID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return productIDPrefix + id
}

// ProductByID retrieves a single product. A (nil, nil) return means
// the upstream does not know the id; upstream failures propagate as a
// single aggregated error.
func (o *Orchestrator) ProductByID(ctx context.Context, id string) (*core.Product, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	gid := NormalizeProductID(id)
	if gid == "" {
		return nil, errors.New("product id is required")
	}

	if cached := o.Cache.GetProduct(ctx, gid); cached != nil {
		return cached, nil
	}

	if err := o.gate(ctx); err != nil {
		return nil, err
	}

	start := o.now()
	product, actualCost, err := o.Upstream.ProductByID(ctx, gid)
	o.Metrics.RecordUpstreamCall(ctx, o.now().Sub(start))
	if err != nil {
		return nil, fmt.Errorf("upstream product query: %w", err)
	}
	o.settle(actualCost)
	if product == nil {
		return nil, nil
	}

	o.Cache.PutProduct(ctx, gid, product)
	return product, nil
}

// ListProducts retrieves an ordered page of products. The limit is
// clamped to [1, max page size]; the cursor addresses the page start,
// with an empty cursor meaning the first page.
func (o *Orchestrator) ListProducts(ctx context.Context, limit int, cursor string) (*core.ProductPage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if limit < 1 {
		limit = 1
	}
	if max := o.maxPageSize(); limit > max {
		limit = max
	}
	cursor = strings.TrimSpace(cursor)

	if cached := o.Cache.GetPage(ctx, cursor, limit); cached != nil {
		return cached, nil
	}

	if err := o.gate(ctx); err != nil {
		return nil, err
	}

	start := o.now()
	page, actualCost, err := o.Upstream.ListProducts(ctx, limit, cursor)
	o.Metrics.RecordUpstreamCall(ctx, o.now().Sub(start))
	if err != nil {
		return nil, fmt.Errorf("upstream list query: %w", err)
	}
	o.settle(actualCost)
	if page == nil {
		page = &core.ProductPage{Edges: []core.ProductEdge{}}
	}

	o.Cache.PutPage(ctx, cursor, page)
	return page, nil
}

// MetricsSnapshot exposes the aggregator to the transport layer.
func (o *Orchestrator) MetricsSnapshot(ctx context.Context) core.MetricsSnapshot {
	return o.Metrics.Snapshot(ctx)
}

// ResetMetrics clears both metric windows.
func (o *Orchestrator) ResetMetrics(ctx context.Context) error {
	return o.Metrics.Reset(ctx)
}

// gate applies the advisory budget check. When the estimated cost is
// not covered, the request sleeps for the projected refill time and
// then proceeds; settlement happens after the call with the actual
// cost.
func (o *Orchestrator) gate(ctx context.Context) error {
	estimated := o.estimatedCost()
	if o.Bucket.CanExecute(ctx, estimated) {
		return nil
	}

	wait := o.Bucket.WaitTime(ctx, estimated)
	if wait <= 0 {
		return nil
	}

	if o.Logger != nil {
		o.Logger.Debug("budget short, delaying upstream call",
			zap.Duration("wait", wait),
			zap.Float64("estimated_cost", estimated))
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle debits the actual reported cost in a detached background
// write. A crash between the upstream response and this write loses
// the debit; that is acceptable for an advisory budget.
func (o *Orchestrator) settle(actualCost float64) {
	cost := actualCost
	if cost <= 0 {
		cost = o.estimatedCost()
	}

	o.settles.Add(1)
	go func() {
		defer o.settles.Done()
		o.Bucket.Consume(context.Background(), cost)
	}()
}

// Wait blocks until all in-flight budget settlements have finished.
// Shutdown and tests use it to drain detached writes.
func (o *Orchestrator) Wait() {
	o.settles.Wait()
}
