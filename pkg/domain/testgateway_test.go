package domain

import (
	"fmt"
	"sort"
)

// fakeGateway is a minimal in-package gateway used by the Record tests. It
// mirrors the contract of the real infra stores: rows keyed per table,
// inventory rows keyed separately, keys never reused.
type fakeGateway struct {
	rows      map[Table]map[int64]map[string]any
	inventory map[Table]map[int64]map[string]any
	invOwner  map[Table]map[int64]int64
	nextKey   map[Table]int64

	writes    int
	failWrite error
	failRead  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rows:      make(map[Table]map[int64]map[string]any),
		inventory: make(map[Table]map[int64]map[string]any),
		invOwner:  make(map[Table]map[int64]int64),
		nextKey:   make(map[Table]int64),
	}
}

func (g *fakeGateway) ReadColumn(table Table, key int64, column string) (any, error) {
	if g.failRead != nil {
		return nil, g.failRead
	}
	row, ok := g.rows[table][key]
	if !ok {
		return nil, fmt.Errorf("row %d not found in %q", key, table)
	}
	return row[column], nil
}

func (g *fakeGateway) WriteColumn(table Table, key int64, column string, value any) error {
	if g.failWrite != nil {
		return g.failWrite
	}
	row, ok := g.rows[table][key]
	if !ok {
		return fmt.Errorf("row %d not found in %q", key, table)
	}
	row[column] = value
	g.writes++
	return nil
}

func (g *fakeGateway) InsertRow(table Table, columns map[string]any) (int64, error) {
	if g.failWrite != nil {
		return 0, g.failWrite
	}
	if g.rows[table] == nil {
		g.rows[table] = make(map[int64]map[string]any)
	}
	g.nextKey[table]++
	key := g.nextKey[table]
	row := make(map[string]any, len(columns))
	for k, v := range columns {
		row[k] = v
	}
	g.rows[table][key] = row
	g.writes++
	return key, nil
}

func (g *fakeGateway) ReadInventory(table Table, entityKey int64, column string) (any, error) {
	if g.failRead != nil {
		return nil, g.failRead
	}
	invKey, ok := g.invOwner[table][entityKey]
	if !ok {
		return nil, nil
	}
	return g.inventory[table][invKey][column], nil
}

func (g *fakeGateway) WriteInventory(table Table, entityKey, inventoryKey int64, column string, value any) (int64, error) {
	if g.failWrite != nil {
		return 0, g.failWrite
	}
	if g.inventory[table] == nil {
		g.inventory[table] = make(map[int64]map[string]any)
		g.invOwner[table] = make(map[int64]int64)
	}
	invKey := inventoryKey
	if invKey == 0 {
		invKey = g.invOwner[table][entityKey]
	}
	if invKey == 0 {
		invKey = int64(len(g.inventory[table]) + 1)
		g.inventory[table][invKey] = make(map[string]any)
		g.invOwner[table][entityKey] = invKey
	}
	g.inventory[table][invKey][column] = value
	g.writes++
	return invKey, nil
}

func (g *fakeGateway) Keys(table Table, includeDeleted bool) ([]int64, error) {
	var keys []int64
	for key, row := range g.rows[table] {
		if !includeDeleted {
			if deleted, _ := row[ColumnDeleted].(bool); deleted {
				continue
			}
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (g *fakeGateway) Rows(table Table, includeDeleted bool) (map[int64]map[string]any, error) {
	out := make(map[int64]map[string]any)
	for key, row := range g.rows[table] {
		if !includeDeleted {
			if deleted, _ := row[ColumnDeleted].(bool); deleted {
				continue
			}
		}
		cp := make(map[string]any, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[key] = cp
	}
	return out, nil
}

func testRegistry(t interface{ Fatalf(string, ...any) }) (*Registry, *TypeMeta) {
	registry := NewRegistry()
	meta, err := registry.RegisterType(TypeSpec{
		Table:          "hop",
		InventoryTable: "hop_inventory",
		Version:        1,
		Properties: []PropertyDef{
			{Name: "alpha", Kind: KindFloat, Column: "alpha"},
			{Name: "use", Kind: KindString, Column: "use"},
			{Name: "time", Kind: KindInt, Column: "time"},
		},
	})
	if err != nil {
		t.Fatalf("register hop: %v", err)
	}
	return registry, meta
}
