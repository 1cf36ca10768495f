package materialsync

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/materialsync_backend/shopify"
)

const variantsPageSize = 250

var dependentsQuery = fmt.Sprintf(`
	query Variants($query: String!, $cursor: String) {
		productVariants(first: %d, query: $query, after: $cursor) {`, variantsPageSize) + `
			nodes {
				id
				sku
				inventoryItem { id }
				product { title }
			}
			pageInfo {
				hasNextPage
				endCursor
			}
		}
	}`

// searchPredicate builds the dependent search for one material: SKUs
// carrying the code, within the dependent product family, excluding the
// material's own canonical record (named <prefix><code>).
func (e *Engine) searchPredicate(code string) string {
	return fmt.Sprintf("sku:*%s AND product_title:*%s* AND NOT sku:%s%s",
		code, e.familySlug, e.skuPrefix, code)
}

// findDependents pages through every variant matching the material's search
// predicate. The title search can match unrelated products that merely
// contain the substring, so results are re-filtered on the exact family
// marker before being returned.
func (e *Engine) findDependents(ctx context.Context, code string) ([]DependentVariant, error) {
	predicate := e.searchPredicate(code)

	var all []DependentVariant
	var cursor *string
	for {
		var out struct {
			ProductVariants *struct {
				Nodes    []variantNode    `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"productVariants"`
		}
		variables := map[string]any{
			"query":  predicate,
			"cursor": cursor,
		}
		if err := e.api.Execute(ctx, dependentsQuery, variables, &out); err != nil {
			return nil, err
		}

		connection := out.ProductVariants
		if connection == nil {
			break
		}

		for _, node := range connection.Nodes {
			if !strings.Contains(node.Product.Title, e.familyTitle) {
				continue
			}
			all = append(all, DependentVariant{
				ID:              node.ID,
				Sku:             node.Sku,
				ProductTitle:    node.Product.Title,
				InventoryItemID: node.InventoryItem.ID,
			})
		}

		if !connection.PageInfo.HasNextPage {
			break
		}
		next := connection.PageInfo.EndCursor
		cursor = &next
	}
	return all, nil
}
