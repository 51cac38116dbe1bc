package domain

// Gateway is the narrow persistence contract entity records rely on. The
// storage engine behind it is out of scope for this package; implementations
// live under internal/infra/persistence.
//
// All calls are fast local operations with no cancellation concept; failures
// are reported immediately and never retried here.
type Gateway interface {
	// ReadColumn returns the stored value for one column of an entity row.
	// A missing row is an error; a row that never had the column written
	// yields a nil value.
	ReadColumn(table Table, key int64, column string) (any, error)
	// WriteColumn updates one column of an existing entity row.
	WriteColumn(table Table, key int64, column string, value any) error
	// InsertRow persists a new entity row and returns the assigned key.
	// Keys are unique per table and never reused.
	InsertRow(table Table, columns map[string]any) (int64, error)
	// ReadInventory returns a column of the entity's inventory row, or nil
	// when no inventory row exists yet.
	ReadInventory(table Table, entityKey int64, column string) (any, error)
	// WriteInventory updates a column of the inventory row identified by
	// inventoryKey, creating the row when inventoryKey is zero and no row
	// exists for the entity. It returns the inventory row key.
	WriteInventory(table Table, entityKey, inventoryKey int64, column string, value any) (int64, error)
}

// RowLister is an optional gateway capability used for enumeration and
// snapshot export. Default enumeration excludes soft-deleted rows.
type RowLister interface {
	// Keys returns the keys stored in a table, sorted ascending.
	Keys(table Table, includeDeleted bool) ([]int64, error)
	// Rows exports full rows keyed by entity key.
	Rows(table Table, includeDeleted bool) (map[int64]map[string]any, error)
}
