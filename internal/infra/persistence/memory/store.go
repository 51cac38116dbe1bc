// Package memory implements an in-memory persistence gateway. It is the
// default backend for tests and for embedders that manage durability
// themselves.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"brewcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Gateway   = (*Store)(nil)
	_ domain.RowLister = (*Store)(nil)
)

type tableState struct {
	nextKey    int64
	rows       map[int64]map[string]any
	nextInvKey int64
	inventory  map[int64]map[string]any
	invOwner   map[int64]int64 // entity key -> inventory row key
}

func newTableState() *tableState {
	return &tableState{
		rows:      make(map[int64]map[string]any),
		inventory: make(map[int64]map[string]any),
		invOwner:  make(map[int64]int64),
	}
}

// Store keeps entity and inventory rows in process memory. Keys are
// allocated from per-table counters and never reused, matching the durable
// backends.
type Store struct {
	mu     sync.RWMutex
	tables map[domain.Table]*tableState
}

// NewStore constructs an empty in-memory gateway.
func NewStore() *Store {
	return &Store{tables: make(map[domain.Table]*tableState)}
}

func (s *Store) table(t domain.Table) *tableState {
	state, ok := s.tables[t]
	if !ok {
		state = newTableState()
		s.tables[t] = state
	}
	return state
}

// ReadColumn returns one column of an entity row. A missing row is an error;
// a column never written yields nil.
func (s *Store) ReadColumn(table domain.Table, key int64, column string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("row %d not found in %q", key, table)
	}
	row, ok := state.rows[key]
	if !ok {
		return nil, fmt.Errorf("row %d not found in %q", key, table)
	}
	return row[column], nil
}

// WriteColumn updates one column of an existing entity row.
func (s *Store) WriteColumn(table domain.Table, key int64, column string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("row %d not found in %q", key, table)
	}
	row, ok := state.rows[key]
	if !ok {
		return fmt.Errorf("row %d not found in %q", key, table)
	}
	row[column] = value
	return nil
}

// InsertRow stores a new entity row under a freshly allocated key.
func (s *Store) InsertRow(table domain.Table, columns map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.table(table)
	state.nextKey++
	key := state.nextKey
	row := make(map[string]any, len(columns))
	for k, v := range columns {
		row[k] = v
	}
	state.rows[key] = row
	return key, nil
}

// ReadInventory returns a column of the entity's inventory row, nil when the
// row does not exist yet.
func (s *Store) ReadInventory(table domain.Table, entityKey int64, column string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.tables[table]
	if !ok {
		return nil, nil
	}
	invKey, ok := state.invOwner[entityKey]
	if !ok {
		return nil, nil
	}
	return state.inventory[invKey][column], nil
}

// WriteInventory updates the inventory row for an entity, creating it when
// inventoryKey is zero and the entity has no row yet.
func (s *Store) WriteInventory(table domain.Table, entityKey, inventoryKey int64, column string, value any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.table(table)
	invKey := inventoryKey
	if invKey == 0 {
		invKey = state.invOwner[entityKey]
	}
	if invKey == 0 {
		state.nextInvKey++
		invKey = state.nextInvKey
		state.inventory[invKey] = make(map[string]any)
		state.invOwner[entityKey] = invKey
	}
	row, ok := state.inventory[invKey]
	if !ok {
		return 0, fmt.Errorf("inventory row %d not found in %q", invKey, table)
	}
	row[column] = value
	return invKey, nil
}

// Keys returns the keys stored in a table sorted ascending, excluding
// soft-deleted rows unless includeDeleted is set.
func (s *Store) Keys(table domain.Table, includeDeleted bool) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.tables[table]
	if !ok {
		return nil, nil
	}
	keys := make([]int64, 0, len(state.rows))
	for key, row := range state.rows {
		if !includeDeleted && isDeleted(row) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// Rows exports cloned rows keyed by entity key.
func (s *Store) Rows(table domain.Table, includeDeleted bool) (map[int64]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]map[string]any)
	state, ok := s.tables[table]
	if !ok {
		return out, nil
	}
	for key, row := range state.rows {
		if !includeDeleted && isDeleted(row) {
			continue
		}
		cp := make(map[string]any, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[key] = cp
	}
	return out, nil
}

func isDeleted(row map[string]any) bool {
	deleted, _ := row[domain.ColumnDeleted].(bool)
	return deleted
}
