package materialsync

import (
	"context"
	"testing"
)

func TestReadLevelsEmptyInputSkipsNetwork(t *testing.T) {
	api := &fakeAPI{t: t, handle: func(query string, variables map[string]any) (string, error) {
		t.Fatal("readLevels must not hit the platform for an empty id list")
		return "", nil
	}}
	e := newTestEngine(api)

	levels, err := e.readLevels(context.Background(), nil)
	if err != nil {
		t.Fatalf("readLevels: %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("got %v, want empty map", levels)
	}
}

func TestReadLevelsOmitsMissingItems(t *testing.T) {
	api := &fakeAPI{t: t, handle: func(query string, variables map[string]any) (string, error) {
		return `{"nodes": [
			{"id": "i1", "inventoryLevels": {"nodes": [{"quantities": [{"quantity": 5}]}]}},
			null,
			{"id": "i3", "inventoryLevels": {"nodes": []}}
		]}`, nil
	}}
	e := newTestEngine(api)

	levels, err := e.readLevels(context.Background(), []string{"i1", "i2", "i3"})
	if err != nil {
		t.Fatalf("readLevels: %v", err)
	}
	if levels["i1"] != 5 {
		t.Errorf("i1 = %d, want 5", levels["i1"])
	}
	if _, ok := levels["i2"]; ok {
		t.Errorf("i2 should be absent (caller defaults to zero)")
	}
	if qty, ok := levels["i3"]; !ok || qty != 0 {
		t.Errorf("i3 = %d (present=%v), want explicit 0 for item without a level", qty, ok)
	}
}

func TestReadLevelsNilNodesDegrades(t *testing.T) {
	api := &fakeAPI{t: t, handle: func(query string, variables map[string]any) (string, error) {
		return "", nil
	}}
	e := newTestEngine(api)

	levels, err := e.readLevels(context.Background(), []string{"i1"})
	if err != nil {
		t.Fatalf("readLevels: %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("got %v, want empty map on missing nodes", levels)
	}
}
