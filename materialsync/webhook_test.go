package materialsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestSubstringMatcher(t *testing.T) {
	rel := Relations{
		"ALU": "gid://shopify/ProductVariant/1",
		"ZNC": "gid://shopify/ProductVariant/2",
	}
	m := SubstringMatcher{}

	cases := []struct {
		sku      string
		wantCode string
		wantOK   bool
	}{
		{"WIDGET-ALU-RED", "ALU", true},
		{"widget-znc-blue", "ZNC", true},
		{"WIDGET-STL-RED", "", false},
		{"", "", false},
		// Ambiguous SKU: first match in sorted code order wins.
		{"WIDGET-ZNC-ALU", "ALU", true},
	}
	for _, tc := range cases {
		code, ok := m.Match(tc.sku, rel)
		if code != tc.wantCode || ok != tc.wantOK {
			t.Errorf("Match(%q) = (%q, %v), want (%q, %v)", tc.sku, code, ok, tc.wantCode, tc.wantOK)
		}
	}
}

func TestAccumulateDecrements(t *testing.T) {
	rel := Relations{"ALU": "gid://shopify/ProductVariant/1"}
	order := OrderEvent{
		ID: 42,
		LineItems: []OrderLineItem{
			{Sku: "WIDGET-ALU-RED", Quantity: 2},
			{Sku: "WIDGET-ALU-BLU", Quantity: 3},
			{Sku: "WIDGET-STL-RED", Quantity: 5},
			{Sku: "WIDGET-ALU-GRN", Quantity: 0},
			{Sku: "WIDGET-ALU-GRN", Quantity: -1},
		},
	}

	decrements := accumulateDecrements(order, rel, SubstringMatcher{})
	if len(decrements) != 1 {
		t.Fatalf("got %v, want a single ALU entry", decrements)
	}
	if decrements["ALU"] != -5 {
		t.Errorf("ALU = %d, want -5 (2+3 across matching lines, non-positive lines ignored)", decrements["ALU"])
	}
}

// webhookFixture serves the relations metafield and the canonical variant,
// recording adjustments. Dependent discovery queries are rejected: the
// sale path must only touch canonical records.
type webhookFixture struct {
	t           *testing.T
	relations   Relations
	items       map[string]string // canonical gid -> inventory item gid
	adjustCalls [][]map[string]any
}

func (fx *webhookFixture) handle(query string, variables map[string]any) (string, error) {
	switch {
	case strings.Contains(query, "metafield(namespace"):
		relJSON, _ := json.Marshal(fx.relations)
		body, _ := json.Marshal(map[string]any{
			"shop": map[string]any{"metafield": map[string]any{"value": string(relJSON)}},
		})
		return string(body), nil

	case strings.Contains(query, "getVariant"):
		gid, _ := variables["id"].(string)
		itemID, ok := fx.items[gid]
		if !ok {
			return `{"node": null}`, nil
		}
		return fmt.Sprintf(
			`{"node": {"id": %q, "sku": "Color-X", "inventoryItem": {"id": %q}, "product": {"title": "Raw Materials"}}}`,
			gid, itemID), nil

	case strings.Contains(query, "inventoryAdjustQuantities"):
		input := variables["input"].(map[string]any)
		fx.adjustCalls = append(fx.adjustCalls, input["changes"].([]map[string]any))
		return `{"inventoryAdjustQuantities": {"inventoryAdjustmentGroup": {"id": "gid://shopify/InventoryAdjustmentGroup/1"}, "userErrors": []}}`, nil

	case strings.Contains(query, "productVariants"):
		fx.t.Fatal("order handling must not run dependent discovery")
	}
	return "", fmt.Errorf("unexpected query: %s", query)
}

func TestHandleOrderDecrementsCanonicalOnly(t *testing.T) {
	fx := &webhookFixture{
		t:         t,
		relations: Relations{"ALU": "gid://shopify/ProductVariant/100"},
		items:     map[string]string{"gid://shopify/ProductVariant/100": "gid://shopify/InventoryItem/100"},
	}
	api := &fakeAPI{t: t, handle: fx.handle}
	e := newTestEngine(api)

	order := OrderEvent{ID: 7, LineItems: []OrderLineItem{{Sku: "WIDGET-ALU-RED", Quantity: 2}}}
	adjusted, err := e.HandleOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("HandleOrder: %v", err)
	}
	if adjusted != 1 {
		t.Errorf("adjusted = %d, want 1", adjusted)
	}
	if len(fx.adjustCalls) != 1 {
		t.Fatalf("got %d adjust mutations, want 1", len(fx.adjustCalls))
	}
	change := fx.adjustCalls[0][0]
	if change["inventoryItemId"] != "gid://shopify/InventoryItem/100" || change["delta"] != -2 {
		t.Errorf("change = %v, want canonical item decremented by 2", change)
	}
}

func TestHandleOrderNoMatchingLines(t *testing.T) {
	fx := &webhookFixture{
		t:         t,
		relations: Relations{"ALU": "gid://shopify/ProductVariant/100"},
		items:     map[string]string{"gid://shopify/ProductVariant/100": "gid://shopify/InventoryItem/100"},
	}
	api := &fakeAPI{t: t, handle: fx.handle}
	e := newTestEngine(api)

	order := OrderEvent{ID: 8, LineItems: []OrderLineItem{{Sku: "WIDGET-STL-RED", Quantity: 4}}}
	adjusted, err := e.HandleOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("HandleOrder: %v", err)
	}
	if adjusted != 0 {
		t.Errorf("adjusted = %d, want 0", adjusted)
	}
	if len(fx.adjustCalls) != 0 {
		t.Errorf("no adjustments expected for unmatched SKUs")
	}
}

func TestHandleOrderDanglingCanonicalIsTolerated(t *testing.T) {
	fx := &webhookFixture{
		t:         t,
		relations: Relations{"ALU": "gid://shopify/ProductVariant/404"},
		items:     map[string]string{},
	}
	api := &fakeAPI{t: t, handle: fx.handle}
	e := newTestEngine(api)

	order := OrderEvent{ID: 9, LineItems: []OrderLineItem{{Sku: "WIDGET-ALU-RED", Quantity: 1}}}
	adjusted, err := e.HandleOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("HandleOrder: %v", err)
	}
	if adjusted != 1 {
		// The material was processed even though nothing could be applied.
		t.Errorf("adjusted = %d, want 1", adjusted)
	}
	if len(fx.adjustCalls) != 0 {
		t.Errorf("dangling canonical must not produce adjustments")
	}
}
