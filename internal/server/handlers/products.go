package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shelfgate/shelfgate/internal/core"
	"github.com/shelfgate/shelfgate/internal/core/engine"
	apperrors "github.com/shelfgate/shelfgate/internal/errors"
)

// defaultPageSize applies when the caller does not specify a limit.
const defaultPageSize = 50

// Catalog serves product reads through the orchestrator pipeline.
type Catalog struct {
	Orchestrator *engine.Orchestrator
}

// ProductEdgeResponse is one entry of a product page.
type ProductEdgeResponse struct {
	Cursor string       `json:"cursor"`
	Node   core.Product `json:"node"`
}

// PageInfoResponse carries cursor pagination state.
type PageInfoResponse struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor,omitempty"`
}

// ProductListResponse is the body of a product list request.
type ProductListResponse struct {
	Products []ProductEdgeResponse `json:"products"`
	PageInfo PageInfoResponse      `json:"page_info"`
}

// GetProduct handles GET /products/{id}. The id may be a bare numeric
// identifier or a full canonical gid.
func (h *Catalog) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("product id is required"))
		return
	}

	product, err := h.Orchestrator.ProductByID(r.Context(), id)
	if err != nil {
		respondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "catalog lookup failed"))
		return
	}
	if product == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("product not found"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(product)
}

// ListProducts handles GET /products with optional limit and cursor
// query parameters.
func (h *Catalog) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, r, apperrors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

	page, err := h.Orchestrator.ListProducts(r.Context(), limit, cursor)
	if err != nil {
		respondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "catalog list failed"))
		return
	}

	response := ProductListResponse{
		Products: make([]ProductEdgeResponse, 0, len(page.Edges)),
		PageInfo: PageInfoResponse{
			HasNextPage: page.HasNextPage,
			EndCursor:   page.NextCursor(),
		},
	}
	for _, edge := range page.Edges {
		response.Products = append(response.Products, ProductEdgeResponse{
			Cursor: edge.Cursor,
			Node:   edge.Product,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
