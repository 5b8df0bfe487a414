package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/core/cache"
	"github.com/shelfgate/shelfgate/internal/core/engine"
	"github.com/shelfgate/shelfgate/internal/core/state"
)

// components holds the explicitly constructed service graph. Commands
// build exactly what they need and close the store when done.
type components struct {
	store   state.Store
	bucket  *engine.TokenBucket
	cache   *cache.Cache
	metrics *engine.Aggregator
}

// buildComponents opens the persisted state store and constructs the
// budget, cache and metrics components on top of it. The caller owns
// the returned store and must Close it.
func buildComponents(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*components, error) {
	store, err := state.Open(ctx, cfg.State)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	return &components{
		store: store,
		bucket: &engine.TokenBucket{
			Store:      store,
			MaxPoints:  cfg.Budget.MaxPoints,
			RefillRate: cfg.Budget.RefillRate,
			Logger:     logger,
		},
		cache: &cache.Cache{
			Store:      store,
			ProductTTL: cfg.Cache.ProductTTL,
			PageTTL:    cfg.Cache.PageTTL,
			Logger:     logger,
		},
		metrics: &engine.Aggregator{
			Store:  store,
			Window: cfg.Metrics.Window,
			Logger: logger,
		},
	}, nil
}

// buildOrchestrator assembles the full query pipeline around an
// upstream querier.
func (c *components) buildOrchestrator(cfg *config.Config, querier engine.CatalogQuerier, logger *logging.Logger) *engine.Orchestrator {
	return &engine.Orchestrator{
		Cache:         c.cache,
		Bucket:        c.bucket,
		Metrics:       c.metrics,
		Upstream:      querier,
		EstimatedCost: cfg.Budget.EstimatedCost,
		MaxPageSize:   cfg.Upstream.MaxPageSize,
		Logger:        logger,
	}
}
