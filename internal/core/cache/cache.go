// Package cache implements the read-through cache for single products
// and cursor-paginated list pages. It exists to avoid duplicate
// upstream fetches inside a TTL window; there is no active
// invalidation, so staleness is bounded by the TTL alone.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/shelfgate/shelfgate/internal/core"
	"github.com/shelfgate/shelfgate/internal/core/state"
)

// DefaultTTL applies when no TTL is configured.
const DefaultTTL = 5 * time.Minute

const (
	productKeyPrefix = "product:"
	pageKeyPrefix    = "list:"

	// startPageKey is the sentinel for the first page, which has no
	// cursor.
	startPageKey = "start"
)

// Cache is a cache-aside store on top of the persisted state store.
//
// Failures never surface to the surrounding request: read errors are
// reported as misses and write errors are logged and dropped.
type Cache struct {
	Store      state.Store
	ProductTTL time.Duration
	PageTTL    time.Duration
	Logger     *logging.Logger
}

func (c *Cache) productTTL() time.Duration {
	if c.ProductTTL > 0 {
		return c.ProductTTL
	}
	return DefaultTTL
}

func (c *Cache) pageTTL() time.Duration {
	if c.PageTTL > 0 {
		return c.PageTTL
	}
	return DefaultTTL
}

func pageKey(cursor string) string {
	if cursor == "" {
		return pageKeyPrefix + startPageKey
	}
	return pageKeyPrefix + cursor
}

// GetProduct returns the cached product for id, or nil on a miss.
func (c *Cache) GetProduct(ctx context.Context, id string) *core.Product {
	raw, err := c.Store.Get(ctx, productKeyPrefix+id)
	if err != nil {
		c.warn("product cache read degraded to miss", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var product core.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		c.warn("product cache entry unreadable", err)
		return nil
	}
	return &product
}

// PutProduct stores product under its id with the configured TTL.
func (c *Cache) PutProduct(ctx context.Context, id string, product *core.Product) {
	if product == nil {
		return
	}

	data, err := json.Marshal(product)
	if err != nil {
		c.warn("product cache write dropped", err)
		return
	}
	if err := c.Store.SetWithTTL(ctx, productKeyPrefix+id, data, c.productTTL()); err != nil {
		c.warn("product cache write dropped", err)
	}
}

// GetPage returns the cached page keyed by cursor, or nil on a miss.
// A cached page only satisfies the request when it holds at least
// limit edges: a shorter page cannot answer a larger request even if
// it has not expired yet.
func (c *Cache) GetPage(ctx context.Context, cursor string, limit int) *core.ProductPage {
	raw, err := c.Store.Get(ctx, pageKey(cursor))
	if err != nil {
		c.warn("page cache read degraded to miss", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var page core.ProductPage
	if err := json.Unmarshal(raw, &page); err != nil {
		c.warn("page cache entry unreadable", err)
		return nil
	}

	if len(page.Edges) < limit {
		return nil
	}
	return &page
}

// PutPage stores page under the cursor key with the configured TTL.
func (c *Cache) PutPage(ctx context.Context, cursor string, page *core.ProductPage) {
	if page == nil {
		return
	}

	data, err := json.Marshal(page)
	if err != nil {
		c.warn("page cache write dropped", err)
		return
	}
	if err := c.Store.SetWithTTL(ctx, pageKey(cursor), data, c.pageTTL()); err != nil {
		c.warn("page cache write dropped", err)
	}
}

func (c *Cache) warn(msg string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn(msg, zap.Error(err))
}
