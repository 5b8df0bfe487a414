package upstream

import "time"

// graphqlRequest is the wire shape of an outbound query.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlError is a single error entry from the upstream response.
type graphqlError struct {
	Message string `json:"message"`
}

// costExtension carries the upstream's declared query cost, used for
// budget settlement.
type costExtension struct {
	Cost struct {
		RequestedQueryCost float64 `json:"requestedQueryCost"`
		ActualQueryCost    float64 `json:"actualQueryCost"`
		ThrottleStatus     struct {
			MaximumAvailable   float64 `json:"maximumAvailable"`
			CurrentlyAvailable float64 `json:"currentlyAvailable"`
			RestoreRate        float64 `json:"restoreRate"`
		} `json:"throttleStatus"`
	} `json:"cost"`
}

// productNode is the upstream's product shape.
type productNode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"productType"`
	Status      string    `json:"status"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// productResponse decodes the single-product query.
type productResponse struct {
	Data struct {
		Product *productNode `json:"product"`
	} `json:"data"`
	Errors     []graphqlError `json:"errors"`
	Extensions costExtension  `json:"extensions"`
}

// productsResponse decodes the paginated list query.
type productsResponse struct {
	Data struct {
		Products struct {
			Edges []struct {
				Cursor string      `json:"cursor"`
				Node   productNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
		} `json:"products"`
	} `json:"data"`
	Errors     []graphqlError `json:"errors"`
	Extensions costExtension  `json:"extensions"`
}
