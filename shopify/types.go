package shopify

// PageInfo mirrors the Admin API's cursor pagination block. Callers keep
// requesting pages with EndCursor until HasNextPage is false.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// UserError is the structured field-level error Shopify mutations return
// inside a 200 response.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type graphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path"`
}
