package materialsync

import (
	"fmt"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/materialsync_backend/shopify"
	"github.com/go-playground/validator/v10"
)

const (
	// Shop metafield that stores the material -> canonical variant mapping.
	MetafieldNamespace = "material_sync"
	MetafieldKey       = "relations"

	VariantGIDPrefix  = "gid://shopify/ProductVariant/"
	LocationGIDPrefix = "gid://shopify/Location/"
)

// Relations maps a 3-character material code to the GID of its canonical
// product variant. It lives in a shop metafield and is re-read at the start
// of every reconciliation cycle; nothing here is cached across cycles.
type Relations map[string]string

var validate = validator.New()

// ValidateRelations checks a full replacement mapping at the config-write
// boundary. The engine itself only ever consumes already-validated values.
func ValidateRelations(rel Relations) error {
	for code, gid := range rel {
		if err := validate.Var(code, "required,len=3,alphanum,uppercase"); err != nil {
			return fmt.Errorf("invalid material code %q: must be 3 characters of A-Z0-9", code)
		}
		if err := validate.Var(gid, "required,startswith="+VariantGIDPrefix); err != nil {
			return fmt.Errorf("invalid variant reference for material %q", code)
		}
	}
	return nil
}

// NormalizeRelations uppercases material codes. Comparison points all work
// on the normalized form.
func NormalizeRelations(rel Relations) Relations {
	out := make(Relations, len(rel))
	for code, gid := range rel {
		out[strings.ToUpper(strings.TrimSpace(code))] = strings.TrimSpace(gid)
	}
	return out
}

func sortedCodes(rel Relations) []string {
	codes := make([]string, 0, len(rel))
	for code := range rel {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// DependentVariant is a sellable record whose stock tracks a canonical
// variant. Discovered fresh every cycle, never persisted.
type DependentVariant struct {
	ID              string
	Sku             string
	ProductTitle    string
	InventoryItemID string
}

// AdjustmentDelta is one signed quantity change for an inventory item.
// Zero deltas are never emitted.
type AdjustmentDelta struct {
	InventoryItemID string
	Delta           int
}

type Outcome string

const (
	OutcomeSynced  Outcome = "synced"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// MaterialResult is the tagged per-material outcome of a reconciliation
// pass. Skips (dangling references, held locks) are not failures; the sync
// loop aggregates these instead of aborting.
type MaterialResult struct {
	Material string
	Outcome  Outcome
	Adjusted int
	Reason   string
	Err      error
}

// AdjustmentError carries the platform's structured error list for a
// rejected (partially or fully) adjustment mutation.
type AdjustmentError struct {
	Op         string
	UserErrors []shopify.UserError
}

func (e *AdjustmentError) Error() string {
	parts := make([]string, 0, len(e.UserErrors))
	for _, ue := range e.UserErrors {
		if len(ue.Field) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
		} else {
			parts = append(parts, ue.Message)
		}
	}
	return fmt.Sprintf("%s rejected: %s", e.Op, strings.Join(parts, "; "))
}

// OrderEvent is the inbound orders/create webhook payload, reduced to the
// fields the decrement path reads.
type OrderEvent struct {
	ID        int64           `json:"id"`
	LineItems []OrderLineItem `json:"line_items"`
}

type OrderLineItem struct {
	Sku      string `json:"sku"`
	Quantity int    `json:"quantity"`
}
