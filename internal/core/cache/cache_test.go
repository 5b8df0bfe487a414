package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfgate/shelfgate/internal/core"
	"github.com/shelfgate/shelfgate/internal/core/state"
)

type brokenStore struct {
	state.Store
}

func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, context.DeadlineExceeded
}

func (brokenStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return context.DeadlineExceeded
}

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()

	store := state.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return now }

	return &Cache{Store: store}, &now
}

func testPage(edges int) *core.ProductPage {
	page := &core.ProductPage{HasNextPage: true}
	for i := 0; i < edges; i++ {
		page.Edges = append(page.Edges, core.ProductEdge{
			Cursor:  fmt.Sprintf("cursor-%d", i),
			Product: core.Product{ID: fmt.Sprintf("gid://shopify/Product/%d", i)},
		})
	}
	return page
}

func TestCacheProductRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	product := &core.Product{ID: "gid://shopify/Product/42", Title: "Anvil", Handle: "anvil"}

	require.Nil(t, c.GetProduct(context.Background(), product.ID))

	c.PutProduct(context.Background(), product.ID, product)

	got := c.GetProduct(context.Background(), product.ID)
	require.NotNil(t, got)
	require.Equal(t, product, got)
}

func TestCacheProductExpires(t *testing.T) {
	c, now := newTestCache(t)
	c.ProductTTL = time.Minute
	product := &core.Product{ID: "gid://shopify/Product/42", Title: "Anvil"}

	c.PutProduct(context.Background(), product.ID, product)
	require.NotNil(t, c.GetProduct(context.Background(), product.ID))

	*now = now.Add(2 * time.Minute)
	require.Nil(t, c.GetProduct(context.Background(), product.ID))
}

func TestCachePageStartSentinel(t *testing.T) {
	c, _ := newTestCache(t)
	page := testPage(10)

	c.PutPage(context.Background(), "", page)

	got := c.GetPage(context.Background(), "", 10)
	require.NotNil(t, got)
	require.Len(t, got.Edges, 10)
	require.True(t, got.HasNextPage)
	require.Equal(t, "cursor-9", got.NextCursor())
}

func TestCachePageShortPageIsAMiss(t *testing.T) {
	c, _ := newTestCache(t)

	c.PutPage(context.Background(), "", testPage(5))

	// Five cached edges cannot satisfy a request for ten, even
	// though the entry has not expired.
	require.Nil(t, c.GetPage(context.Background(), "", 10))
	require.NotNil(t, c.GetPage(context.Background(), "", 5))
	require.NotNil(t, c.GetPage(context.Background(), "", 3))
}

func TestCachePageKeyedByCursor(t *testing.T) {
	c, _ := newTestCache(t)

	c.PutPage(context.Background(), "cursor-abc", testPage(2))

	require.Nil(t, c.GetPage(context.Background(), "", 2))
	require.NotNil(t, c.GetPage(context.Background(), "cursor-abc", 2))
}

func TestCacheFailsOpen(t *testing.T) {
	c := &Cache{Store: brokenStore{}}
	product := &core.Product{ID: "gid://shopify/Product/42"}

	// Writes are dropped silently, reads degrade to misses.
	c.PutProduct(context.Background(), product.ID, product)
	require.Nil(t, c.GetProduct(context.Background(), product.ID))

	c.PutPage(context.Background(), "", testPage(1))
	require.Nil(t, c.GetPage(context.Background(), "", 1))
}
