package materialsync

import (
	"context"
)

type variantNode struct {
	ID            string `json:"id"`
	Sku           string `json:"sku"`
	Title         string `json:"title"`
	InventoryItem struct {
		ID string `json:"id"`
	} `json:"inventoryItem"`
	Product struct {
		Title string `json:"title"`
	} `json:"product"`
}

const variantByIDQuery = `
	query getVariant($id: ID!) {
		node(id: $id) {
			... on ProductVariant {
				id
				sku
				inventoryItem { id }
				product { title }
			}
		}
	}`

const variantTitlesQuery = `
	query GetVariants($ids: [ID!]!) {
		nodes(ids: $ids) {
			... on ProductVariant {
				id
				title
				product { title }
			}
		}
	}`

// getVariant resolves one variant GID. A nil result with nil error means
// the reference is dangling (deleted variant, wrong GID).
func (e *Engine) getVariant(ctx context.Context, gid string) (*variantNode, error) {
	var out struct {
		Node *variantNode `json:"node"`
	}
	if err := e.api.Execute(ctx, variantByIDQuery, map[string]any{"id": gid}, &out); err != nil {
		return nil, err
	}
	if out.Node == nil || out.Node.ID == "" {
		return nil, nil
	}
	return out.Node, nil
}

// VariantTitles returns "Product - Variant" display names for the config
// editor UI. Unresolvable GIDs are simply absent from the result.
func (e *Engine) VariantTitles(ctx context.Context, gids []string) (map[string]string, error) {
	titles := map[string]string{}
	if len(gids) == 0 {
		return titles, nil
	}

	var out struct {
		Nodes []*variantNode `json:"nodes"`
	}
	if err := e.api.Execute(ctx, variantTitlesQuery, map[string]any{"ids": gids}, &out); err != nil {
		return nil, err
	}
	for _, node := range out.Nodes {
		if node == nil || node.ID == "" {
			continue
		}
		product := node.Product.Title
		if product == "" {
			product = "Unknown product"
		}
		titles[node.ID] = product + " - " + node.Title
	}
	return titles, nil
}

// MissingVariants reports which of the submitted GIDs do not resolve to a
// product variant. Used to validate the mapping before it is saved.
func (e *Engine) MissingVariants(ctx context.Context, gids []string) ([]string, error) {
	if len(gids) == 0 {
		return nil, nil
	}

	var out struct {
		Nodes []*variantNode `json:"nodes"`
	}
	if err := e.api.Execute(ctx, variantTitlesQuery, map[string]any{"ids": gids}, &out); err != nil {
		return nil, err
	}

	found := map[string]bool{}
	for _, node := range out.Nodes {
		if node != nil && node.ID != "" {
			found[node.ID] = true
		}
	}
	var missing []string
	for _, gid := range gids {
		if !found[gid] {
			missing = append(missing, gid)
		}
	}
	return missing, nil
}
