// Package upstream implements the client for the rate-limited catalog
// GraphQL API that shelfgate fronts. The client reports the actual
// query cost declared by each response so the caller can settle the
// shared budget.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shelfgate/shelfgate/internal/core"
)

const defaultTimeout = 10 * time.Second

// Client issues queries against the upstream catalog API.
type Client struct {
	URL         string
	AccessToken string
	HTTPClient  *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// ProductByID fetches a single product by its canonical id. A nil
// product with a nil error means the upstream does not know the id.
func (c *Client) ProductByID(ctx context.Context, id string) (*core.Product, float64, error) {
	if c == nil || strings.TrimSpace(c.URL) == "" {
		return nil, 0, errors.New("upstream client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, 0, errors.New("product id is required")
	}

	body, err := c.post(ctx, productQuery, map[string]any{"id": id})
	if err != nil {
		return nil, 0, err
	}

	var decoded productResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, 0, fmt.Errorf("decode product response: %w", err)
	}

	cost := decoded.Extensions.Cost.ActualQueryCost
	if err := joinErrors(decoded.Errors); err != nil {
		return nil, cost, err
	}
	if decoded.Data.Product == nil {
		return nil, cost, nil
	}

	product := mapProduct(*decoded.Data.Product)
	return &product, cost, nil
}

// ListProducts fetches an ordered page of products. An empty after
// cursor requests the first page.
func (c *Client) ListProducts(ctx context.Context, first int, after string) (*core.ProductPage, float64, error) {
	if c == nil || strings.TrimSpace(c.URL) == "" {
		return nil, 0, errors.New("upstream client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if first < 1 {
		return nil, 0, errors.New("page size must be at least 1")
	}

	variables := map[string]any{"first": first}
	if after = strings.TrimSpace(after); after != "" {
		variables["after"] = after
	}

	body, err := c.post(ctx, productsQuery, variables)
	if err != nil {
		return nil, 0, err
	}

	var decoded productsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, 0, fmt.Errorf("decode products response: %w", err)
	}

	cost := decoded.Extensions.Cost.ActualQueryCost
	if err := joinErrors(decoded.Errors); err != nil {
		return nil, cost, err
	}

	page := &core.ProductPage{
		Edges:       make([]core.ProductEdge, 0, len(decoded.Data.Products.Edges)),
		HasNextPage: decoded.Data.Products.PageInfo.HasNextPage,
	}
	for _, edge := range decoded.Data.Products.Edges {
		page.Edges = append(page.Edges, core.ProductEdge{
			Cursor:  edge.Cursor,
			Product: mapProduct(edge.Node),
		})
	}
	return page, cost, nil
}

func (c *Client) post(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode catalog query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(c.AccessToken); token != "" {
		req.Header.Set("X-Shopify-Access-Token", token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// joinErrors folds the upstream's error list into a single failure.
func joinErrors(errs []graphqlError) error {
	if len(errs) == 0 {
		return nil
	}

	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if msg := strings.TrimSpace(e.Message); msg != "" {
			messages = append(messages, msg)
		}
	}
	if len(messages) == 0 {
		messages = append(messages, "unknown catalog error")
	}
	return errors.New(strings.Join(messages, "; "))
}

func mapProduct(node productNode) core.Product {
	return core.Product{
		ID:          node.ID,
		Title:       node.Title,
		Handle:      node.Handle,
		Vendor:      node.Vendor,
		ProductType: node.ProductType,
		Status:      node.Status,
		Tags:        node.Tags,
		CreatedAt:   node.CreatedAt,
		UpdatedAt:   node.UpdatedAt,
	}
}
