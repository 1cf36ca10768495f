package materialsync

import (
	"context"
	"errors"
	"strings"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// computeDeltas is the pure core of the reconciler: dependents converge
// toward the canonical quantity, never the reverse. Items absent from the
// levels map count as zero stock. Zero deltas are suppressed.
func computeDeltas(canonicalQty int, itemIDs []string, levels map[string]int) []AdjustmentDelta {
	var deltas []AdjustmentDelta
	for _, id := range itemIDs {
		delta := canonicalQty - levels[id]
		if delta == 0 {
			continue
		}
		deltas = append(deltas, AdjustmentDelta{InventoryItemID: id, Delta: delta})
	}
	return deltas
}

// ReconcileMaterial brings every dependent of one material in line with its
// canonical variant. Failures and skips are confined to this material; the
// caller's loop continues regardless of the outcome.
func (e *Engine) ReconcileMaterial(ctx context.Context, code string, canonicalGID string) MaterialResult {
	code = strings.ToUpper(strings.TrimSpace(code))
	log := e.logger.WithFields(logrus.Fields{"module": "materialsync", "material": code})
	log.Info("syncing material")

	lock, err := e.lockMaterial(ctx, code, false)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return MaterialResult{Material: code, Outcome: OutcomeSkipped, Reason: "material locked by another pass"}
		}
		return MaterialResult{Material: code, Outcome: OutcomeFailed, Err: err}
	}
	defer releaseLock(lock)

	canonical, err := e.getVariant(ctx, canonicalGID)
	if err != nil {
		return MaterialResult{Material: code, Outcome: OutcomeFailed, Err: err}
	}
	if canonical == nil || canonical.InventoryItem.ID == "" {
		log.Warnf("canonical variant not found: %s", canonicalGID)
		return MaterialResult{Material: code, Outcome: OutcomeSkipped, Reason: "canonical variant not found"}
	}

	canonicalItemID := canonical.InventoryItem.ID
	levels, err := e.readLevels(ctx, []string{canonicalItemID})
	if err != nil {
		return MaterialResult{Material: code, Outcome: OutcomeFailed, Err: err}
	}
	canonicalQty, ok := levels[canonicalItemID]
	if !ok {
		log.Warn("canonical quantity not found")
		return MaterialResult{Material: code, Outcome: OutcomeSkipped, Reason: "canonical quantity not found"}
	}
	log.Infof("canonical available: %d", canonicalQty)

	dependents, err := e.findDependents(ctx, code)
	if err != nil {
		return MaterialResult{Material: code, Outcome: OutcomeFailed, Err: err}
	}

	// findDependents already filters on the family marker; re-check here so
	// the reconciler never adjusts outside the family even if discovery
	// changes.
	itemIDs := make([]string, 0, len(dependents))
	for _, dep := range dependents {
		if !strings.Contains(dep.ProductTitle, e.familyTitle) {
			continue
		}
		if dep.InventoryItemID == "" {
			continue
		}
		itemIDs = append(itemIDs, dep.InventoryItemID)
	}
	log.Infof("found dependents: %d", len(itemIDs))

	if len(itemIDs) == 0 {
		return MaterialResult{Material: code, Outcome: OutcomeSynced}
	}

	depLevels, err := e.readLevels(ctx, itemIDs)
	if err != nil {
		return MaterialResult{Material: code, Outcome: OutcomeFailed, Err: err}
	}

	deltas := computeDeltas(canonicalQty, itemIDs, depLevels)
	if len(deltas) == 0 {
		log.Info("all dependent variants already in sync")
		return MaterialResult{Material: code, Outcome: OutcomeSynced}
	}

	log.Infof("applying %d inventory adjustments", len(deltas))
	if err := e.applyBatch(ctx, deltas); err != nil {
		return MaterialResult{Material: code, Outcome: OutcomeFailed, Err: err}
	}
	return MaterialResult{Material: code, Outcome: OutcomeSynced, Adjusted: len(deltas)}
}

// SyncMaterials runs one full reconciliation pass. Relations are re-read
// fresh; materials are processed sequentially in sorted order (no
// cross-material invariant exists, sorting just makes runs deterministic).
func (e *Engine) SyncMaterials(ctx context.Context) []MaterialResult {
	e.logger.WithFields(logrus.Fields{"module": "materialsync"}).Info("bulk inventory sync started")

	relations := e.GetRelations(ctx)
	results := make([]MaterialResult, 0, len(relations))
	for _, code := range sortedCodes(relations) {
		canonicalGID := relations[code]
		if canonicalGID == "" {
			e.logger.WithFields(logrus.Fields{"module": "materialsync", "material": code}).
				Warn("no canonical variant gid for material")
			results = append(results, MaterialResult{Material: code, Outcome: OutcomeSkipped, Reason: "no canonical variant configured"})
			continue
		}
		result := e.ReconcileMaterial(ctx, code, canonicalGID)
		if result.Outcome == OutcomeFailed {
			e.logger.WithFields(logrus.Fields{"module": "materialsync", "material": code}).
				Errorf("material sync failed: %v", result.Err)
		}
		results = append(results, result)
	}

	e.logger.WithFields(logrus.Fields{"module": "materialsync"}).Info("all materials bulk-synced")
	return results
}
