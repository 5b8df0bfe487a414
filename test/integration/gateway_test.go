package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/core"
	"github.com/shelfgate/shelfgate/internal/core/cache"
	"github.com/shelfgate/shelfgate/internal/core/engine"
	"github.com/shelfgate/shelfgate/internal/core/state"
	"github.com/shelfgate/shelfgate/internal/server"
	"github.com/shelfgate/shelfgate/internal/server/handlers"
	"github.com/shelfgate/shelfgate/internal/upstream"
)

// fakeCatalogAPI serves a minimal GraphQL catalog with one product and
// reports a fixed actual query cost.
func fakeCatalogAPI(t *testing.T, calls *int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if id, ok := req.Variables["id"].(string); ok {
			if id == "gid://shopify/Product/42" {
				_, _ = w.Write([]byte(`{
					"data": {"product": {"id": "gid://shopify/Product/42", "title": "Anvil", "handle": "anvil"}},
					"extensions": {"cost": {"actualQueryCost": 3}}
				}`))
				return
			}
			_, _ = w.Write([]byte(`{
				"data": {"product": null},
				"extensions": {"cost": {"actualQueryCost": 1}}
			}`))
			return
		}

		_, _ = w.Write([]byte(`{
			"data": {"products": {
				"edges": [
					{"cursor": "c1", "node": {"id": "gid://shopify/Product/1", "title": "One"}},
					{"cursor": "c2", "node": {"id": "gid://shopify/Product/2", "title": "Two"}}
				],
				"pageInfo": {"hasNextPage": false}
			}},
			"extensions": {"cost": {"actualQueryCost": 5}}
		}`))
	}))
}

type gatewayFixture struct {
	server       *server.Server
	orchestrator *engine.Orchestrator
	bucket       *engine.TokenBucket
	calls        int
}

func newGateway(t *testing.T) *gatewayFixture {
	t.Helper()

	cfg := config.StateConfig{Driver: "memory"}
	store, err := state.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fixture := &gatewayFixture{}
	upstreamAPI := fakeCatalogAPI(t, &fixture.calls)
	t.Cleanup(upstreamAPI.Close)

	bucket := &engine.TokenBucket{Store: store}
	orchestrator := &engine.Orchestrator{
		Cache:    &cache.Cache{Store: store},
		Bucket:   bucket,
		Metrics:  &engine.Aggregator{Store: store},
		Upstream: &upstream.Client{URL: upstreamAPI.URL, AccessToken: "shpat_test"},
	}
	t.Cleanup(orchestrator.Wait)

	health := handlers.NewHealthManager("test")
	health.RegisterChecker("state_store", handlers.CheckerFunc(store.Ping))

	fixture.server = server.New("127.0.0.1", 0, server.Dependencies{
		Orchestrator: orchestrator,
		Health:       health,
	})
	fixture.orchestrator = orchestrator
	fixture.bucket = bucket
	return fixture
}

func TestGatewayProductFlow(t *testing.T) {
	gw := newGateway(t)

	rec := httptest.NewRecorder()
	gw.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var product core.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&product))
	assert.Equal(t, "gid://shopify/Product/42", product.ID)
	assert.Equal(t, "Anvil", product.Title)

	// Repeat request hits the cache and never reaches the upstream.
	rec = httptest.NewRecorder()
	gw.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gw.calls)

	// The actual reported cost has been debited from the budget.
	gw.orchestrator.Wait()
	state, err := gw.bucket.State(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 997, state.Points, 0.5)
}

func TestGatewayListAndMetricsFlow(t *testing.T) {
	gw := newGateway(t)

	rec := httptest.NewRecorder()
	gw.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page handlers.ProductListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Len(t, page.Products, 2)
	assert.False(t, page.PageInfo.HasNextPage)
	assert.Equal(t, "c2", page.PageInfo.EndCursor)

	// A second page request with the same shape is a cache hit.
	rec = httptest.NewRecorder()
	gw.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gw.calls)

	rec = httptest.NewRecorder()
	gw.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot core.MetricsSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
	assert.Equal(t, int64(2), snapshot.Endpoint.TotalCalls)
	assert.Equal(t, int64(1), snapshot.Upstream.TotalCalls)
}

func TestGatewayUnknownProduct(t *testing.T) {
	gw := newGateway(t)

	rec := httptest.NewRecorder()
	gw.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Misses are not cached; the next request asks the upstream again.
	rec = httptest.NewRecorder()
	gw.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 2, gw.calls)
}
