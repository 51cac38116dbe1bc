package domain

import "fmt"

// Lineage models a single-parent, acyclic relation: an entity copied for use
// inside a recipe (or similar container) keeps a back-reference to the
// original it was duplicated from. Only the back-reference is stored; the
// forward list of copies is not tracked. parentKey is write-once, so no
// cycle detection is needed.

// ParentKey returns the key of the entity this record was copied from, zero
// when there is no known parent.
func (r *Record) ParentKey() int64 { return r.parentKey }

// SetParent records parent's key as this record's lineage. Lineage is fixed
// once set: repeating the same parent is a no-op, a different parent fails
// with LineageConflictError. When the record is already persisted the parent
// key is written through immediately; otherwise Insert includes it.
func (r *Record) SetParent(parent *Record) error {
	if parent == nil || parent.Key() == 0 {
		return fmt.Errorf("parent of %s/%d must be a persisted entity", r.Table(), r.key)
	}
	if r.parentKey != 0 {
		if r.parentKey == parent.Key() {
			return nil
		}
		return LineageConflictError{Table: r.Table(), Key: r.key, ParentKey: r.parentKey, Attempted: parent.Key()}
	}
	if r.key != 0 {
		if err := r.gateway.WriteColumn(r.Table(), r.key, ColumnParentKey, parent.Key()); err != nil {
			return StorageWriteError{Table: r.Table(), Key: r.key, Column: ColumnParentKey, Err: err}
		}
	}
	r.parentKey = parent.Key()
	return nil
}
