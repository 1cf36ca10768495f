package materialsync

import (
	"context"

	"github.com/sirupsen/logrus"
)

const levelsQuery = `
	query GetInventoryLevels($ids: [ID!]!, $locationQuery: String!) {
		nodes(ids: $ids) {
			... on InventoryItem {
				id
				inventoryLevels(first: 1, query: $locationQuery) {
					nodes {
						quantities(names: ["available"]) {
							quantity
						}
					}
				}
			}
		}
	}`

type inventoryItemNode struct {
	ID              string `json:"id"`
	InventoryLevels struct {
		Nodes []struct {
			Quantities []struct {
				Quantity int `json:"quantity"`
			} `json:"quantities"`
		} `json:"nodes"`
	} `json:"inventoryLevels"`
}

// readLevels bulk-reads the available quantity at the configured location
// for a set of inventory items. An empty input returns an empty map with no
// network call. An item missing from the response is a valid zero state
// (no stock record yet), not an error; callers default to 0.
func (e *Engine) readLevels(ctx context.Context, itemIDs []string) (map[string]int, error) {
	out := map[string]int{}
	if len(itemIDs) == 0 {
		return out, nil
	}

	var resp struct {
		Nodes []*inventoryItemNode `json:"nodes"`
	}
	variables := map[string]any{
		"ids":           itemIDs,
		"locationQuery": "location_id:" + e.locationID,
	}
	if err := e.api.Execute(ctx, levelsQuery, variables, &resp); err != nil {
		return nil, err
	}

	if resp.Nodes == nil {
		e.logger.WithFields(logrus.Fields{"module": "materialsync"}).Warn("readLevels: invalid response")
		return out, nil
	}

	for _, node := range resp.Nodes {
		if node == nil || node.ID == "" {
			continue
		}
		qty := 0
		if len(node.InventoryLevels.Nodes) > 0 && len(node.InventoryLevels.Nodes[0].Quantities) > 0 {
			qty = node.InventoryLevels.Nodes[0].Quantities[0].Quantity
		}
		out[node.ID] = qty
	}
	return out, nil
}
