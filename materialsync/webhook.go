package materialsync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// LineMatcher classifies an order line item to a material code. The default
// substring strategy is deliberately crude; swap it via Engine.SetMatcher
// when stricter matching is needed.
type LineMatcher interface {
	Match(sku string, rel Relations) (string, bool)
}

// SubstringMatcher matches the first material code (in sorted order) that
// appears as a substring of the uppercased SKU. First match wins; a SKU
// that could match two codes is not disambiguated further.
type SubstringMatcher struct{}

func (SubstringMatcher) Match(sku string, rel Relations) (string, bool) {
	sku = strings.ToUpper(sku)
	for _, code := range sortedCodes(rel) {
		if strings.Contains(sku, code) {
			return code, true
		}
	}
	return "", false
}

// accumulateDecrements folds an order's line items into one signed
// decrement per matched material.
func accumulateDecrements(order OrderEvent, rel Relations, matcher LineMatcher) map[string]int {
	decrements := map[string]int{}
	for _, item := range order.LineItems {
		if item.Quantity <= 0 {
			continue
		}
		code, ok := matcher.Match(item.Sku, rel)
		if !ok {
			continue
		}
		decrements[code] -= item.Quantity
	}
	return decrements
}

// HandleOrder applies a sale's decrements to the canonical records only.
// Dependents are deliberately not touched here; they catch up on the next
// periodic pass. Returns the number of materials adjusted.
func (e *Engine) HandleOrder(ctx context.Context, order OrderEvent) (int, error) {
	log := e.logger.WithFields(logrus.Fields{"module": "materialsync", "order": order.ID})
	log.Info("order webhook received")

	relations := e.GetRelations(ctx)
	decrements := accumulateDecrements(order, relations, e.matcher)
	if len(decrements) == 0 {
		return 0, nil
	}

	adjusted := 0
	for _, code := range sortedKeys(decrements) {
		canonicalGID := relations[code]
		if canonicalGID == "" {
			continue
		}
		if err := e.decrementCanonical(ctx, code, canonicalGID, decrements[code]); err != nil {
			return adjusted, err
		}
		adjusted++
	}
	return adjusted, nil
}

// decrementCanonical applies one accumulated delta to the material's
// canonical record, holding the same advisory lock as the reconciler so a
// periodic pass and a sale never mutate the record concurrently.
func (e *Engine) decrementCanonical(ctx context.Context, code string, canonicalGID string, delta int) error {
	if delta == 0 {
		return nil
	}

	lock, err := e.lockMaterial(ctx, code, true)
	if err != nil {
		return fmt.Errorf("lock material %s: %w", code, err)
	}
	defer releaseLock(lock)

	variant, err := e.getVariant(ctx, canonicalGID)
	if err != nil {
		return err
	}
	if variant == nil || variant.InventoryItem.ID == "" {
		e.logger.WithFields(logrus.Fields{"module": "materialsync", "material": code}).
			Warnf("could not get inventory item for variant %s", canonicalGID)
		return nil
	}

	e.logger.WithFields(logrus.Fields{"module": "materialsync", "material": code}).
		Infof("adjusting inventory item %s by %d", variant.InventoryItem.ID, delta)

	return e.applyBatch(ctx, []AdjustmentDelta{
		{InventoryItemID: variant.InventoryItem.ID, Delta: delta},
	})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
