package materialsync

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/materialsync_backend/shopify"
)

const adjustMutation = `
	mutation Adjust($input: InventoryAdjustQuantitiesInput!) {
		inventoryAdjustQuantities(input: $input) {
			inventoryAdjustmentGroup { id }
			userErrors { field message }
		}
	}`

// applyBatch submits the deltas as one adjustment mutation, reason
// "correction" on the "available" channel. The platform's atomicity is
// best-effort; a userError response fails the whole batch here with no
// partial retry.
func (e *Engine) applyBatch(ctx context.Context, deltas []AdjustmentDelta) error {
	if len(deltas) == 0 {
		return errors.New("applyBatch called with no deltas")
	}

	changes := make([]map[string]any, 0, len(deltas))
	for _, d := range deltas {
		changes = append(changes, map[string]any{
			"inventoryItemId": d.InventoryItemID,
			"delta":           d.Delta,
			"locationId":      e.locationGID(),
		})
	}
	input := map[string]any{
		"reason":  "correction",
		"name":    "available",
		"changes": changes,
	}

	var out struct {
		InventoryAdjustQuantities *struct {
			InventoryAdjustmentGroup *struct {
				ID string `json:"id"`
			} `json:"inventoryAdjustmentGroup"`
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"inventoryAdjustQuantities"`
	}
	if err := e.api.Execute(ctx, adjustMutation, map[string]any{"input": input}, &out); err != nil {
		return err
	}
	if out.InventoryAdjustQuantities == nil {
		return errors.New("missing inventoryAdjustQuantities response")
	}
	if len(out.InventoryAdjustQuantities.UserErrors) > 0 {
		return &AdjustmentError{
			Op:         "inventoryAdjustQuantities",
			UserErrors: out.InventoryAdjustQuantities.UserErrors,
		}
	}
	return nil
}
