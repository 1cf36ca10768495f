package materialsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestFindDependentsPaginates(t *testing.T) {
	page1 := make([]variantNode, 0, variantsPageSize)
	for i := 0; i < variantsPageSize; i++ {
		page1 = append(page1, dependent(
			fmt.Sprintf("WIDGET-ALU-%03d", i),
			"Color Run Widget",
			fmt.Sprintf("gid://shopify/InventoryItem/%d", i)))
	}
	page2 := make([]variantNode, 0, 50)
	for i := 0; i < 50; i++ {
		page2 = append(page2, dependent(
			fmt.Sprintf("WIDGET-ALU-9%02d", i),
			"Color Run Widget",
			fmt.Sprintf("gid://shopify/InventoryItem/9%02d", i)))
	}
	// Title-search noise that the client-side family filter must drop.
	page2 = append(page2, dependent("OTHER-ALU", "Colorful Runway Jacket", "gid://shopify/InventoryItem/x"))

	api := &fakeAPI{t: t}
	api.handle = func(query string, variables map[string]any) (string, error) {
		if !strings.Contains(query, "productVariants") {
			return "", fmt.Errorf("unexpected query: %s", query)
		}
		nodes := page1
		pageInfo := map[string]any{"hasNextPage": true, "endCursor": "cursor-1"}
		if cursor, ok := variables["cursor"].(*string); ok && cursor != nil {
			if *cursor != "cursor-1" {
				t.Fatalf("second page requested with cursor %q, want cursor-1", *cursor)
			}
			nodes = page2
			pageInfo = map[string]any{"hasNextPage": false, "endCursor": ""}
		}
		body, _ := json.Marshal(map[string]any{
			"productVariants": map[string]any{"nodes": nodes, "pageInfo": pageInfo},
		})
		return string(body), nil
	}
	e := newTestEngine(api)

	deps, err := e.findDependents(context.Background(), "ALU")
	if err != nil {
		t.Fatalf("findDependents: %v", err)
	}
	if len(deps) != variantsPageSize+50 {
		t.Fatalf("got %d dependents, want %d across both pages", len(deps), variantsPageSize+50)
	}
	if got := api.callCount("productVariants"); got != 2 {
		t.Errorf("got %d page fetches, want 2", got)
	}
	for _, d := range deps {
		if !strings.Contains(d.ProductTitle, "Color Run") {
			t.Fatalf("out-of-family variant leaked through the filter: %+v", d)
		}
	}
}

func TestFindDependentsMissingConnection(t *testing.T) {
	api := &fakeAPI{t: t, handle: func(query string, variables map[string]any) (string, error) {
		// Field-level error path: the client leaves the output untouched.
		return "", nil
	}}
	e := newTestEngine(api)

	deps, err := e.findDependents(context.Background(), "ALU")
	if err != nil {
		t.Fatalf("findDependents: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("got %d dependents from an empty response, want 0", len(deps))
	}
}
