// Package domain provides the generic base layer shared by every stored
// entity type: identity, property access against a backing store, change
// notification, soft-delete lifecycle, copy lineage, and inventory tracking.
// Concrete types (hops, fermentables, recipes, equipment profiles) compose a
// Record rather than reimplementing persistence glue.
package domain

import (
	"fmt"
)

// Entity is implemented by concrete stored types composed around a Record.
// Parent resolution and the insert column list are type decisions: some
// kinds are never copied and always report no parent.
type Entity interface {
	Record() *Record
	Parent() (Entity, bool)
	InsertInStorage() (int64, error)
}

// Record is the core entity abstraction. It combines identity (table + key),
// the soft-delete and display flags, the transient validity flag, generic
// property accessors backed by a Gateway, and copy lineage.
//
// A Record is confined to a single logical owner; property access and
// notification dispatch carry no internal locking.
type Record struct {
	meta     *TypeMeta
	gateway  Gateway
	notifier *Notifier
	logger   Logger

	key          int64
	parentKey    int64
	inventoryKey int64
	valid        bool
	cache        map[string]any
}

// NewRecord constructs a transient record (no assigned key) for a registered
// type. The record becomes persistent through Insert.
func NewRecord(meta *TypeMeta, gateway Gateway, logger Logger) *Record {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Record{
		meta:     meta,
		gateway:  gateway,
		notifier: NewNotifier(logger),
		logger:   logger,
		valid:    true,
		cache:    make(map[string]any),
	}
}

// LoadRecord constructs a record bound to an existing stored row. Lineage is
// hydrated immediately so the parent link stays fixed across reloads; other
// property values are read through on first access (use SetPropertyCached to
// hydrate during bulk loads).
func LoadRecord(meta *TypeMeta, gateway Gateway, logger Logger, key int64) (*Record, error) {
	r := NewRecord(meta, gateway, logger)
	r.key = key
	raw, err := gateway.ReadColumn(meta.Table(), key, ColumnParentKey)
	if err != nil {
		return nil, StorageReadError{Table: meta.Table(), Key: key, Column: ColumnParentKey, Err: err}
	}
	if raw != nil {
		parent, ok := coerceStored(KindInt, raw)
		if !ok {
			return nil, fmt.Errorf("entity %s/%d has malformed parent key %v", meta.Table(), key, raw)
		}
		r.parentKey = parent.(int64)
	}
	return r, nil
}

// Table returns the storage table identity.
func (r *Record) Table() Table { return r.meta.Table() }

// Key returns the storage key, zero while the record is transient.
func (r *Record) Key() int64 { return r.key }

// Version returns the structural schema version of the record's type.
func (r *Record) Version() int { return r.meta.Version() }

// Meta returns the type metadata the record was built from.
func (r *Record) Meta() *TypeMeta { return r.meta }

// Notifier exposes the record's subscription interface.
func (r *Record) Notifier() *Notifier { return r.notifier }

// IsValid reports whether the record's data passed validation after being
// constructed from an external import. Fresh records are valid.
func (r *Record) IsValid() bool { return r.valid }

// Invalidate marks the record invalid. The transition is one-way and
// idempotent; the flag is never persisted.
func (r *Record) Invalidate() { r.valid = false }

// GetProperty returns the value of a registered property, reading through to
// storage and caching on first access. Transient records yield the kind's
// zero value for properties never set.
func (r *Record) GetProperty(name string) (any, error) {
	def, ok := r.meta.Property(name)
	if !ok {
		return nil, UnknownPropertyError{Table: r.Table(), Name: name}
	}
	if v, ok := r.cache[name]; ok {
		return v, nil
	}
	if r.key == 0 {
		return zeroValue(def.Kind), nil
	}
	raw, err := r.gateway.ReadColumn(r.Table(), r.key, def.Column)
	if err != nil {
		return nil, StorageReadError{Table: r.Table(), Key: r.key, Column: def.Column, Err: err}
	}
	v, ok := coerceStored(def.Kind, raw)
	if !ok {
		return nil, PropertyTypeMismatchError{Table: r.Table(), Name: name, Kind: def.Kind, Value: raw}
	}
	r.cache[name] = v
	return v, nil
}

// SetProperty validates and writes a property through to storage, updates
// the cache on success, and emits change events iff the stored value
// actually changed. Setting name or folder additionally emits the dedicated
// event ahead of the generic one.
func (r *Record) SetProperty(name string, value any) error {
	return r.setProperty(name, value, true, false)
}

// SetPropertyCached updates only the in-memory value: no storage write, no
// notification. It exists for bulk and initial loads, not as a silent
// mutation API.
func (r *Record) SetPropertyCached(name string, value any) error {
	return r.setProperty(name, value, false, true)
}

func (r *Record) setProperty(name string, value any, notify, cachedOnly bool) error {
	def, ok := r.meta.Property(name)
	if !ok {
		return UnknownPropertyError{Table: r.Table(), Name: name}
	}
	norm, ok := normalizeValue(def.Kind, value)
	if !ok {
		return PropertyTypeMismatchError{Table: r.Table(), Name: name, Kind: def.Kind, Value: value}
	}
	if cachedOnly {
		r.cache[name] = norm
		return nil
	}

	changed := true
	if prev, err := r.GetProperty(name); err == nil {
		changed = !equalValue(prev, norm)
	}
	if r.key != 0 {
		if err := r.gateway.WriteColumn(r.Table(), r.key, def.Column, norm); err != nil {
			return StorageWriteError{Table: r.Table(), Key: r.key, Column: def.Column, Err: err}
		}
	}
	r.cache[name] = norm

	if notify && changed {
		switch name {
		case PropName:
			r.notifier.notifyName(norm.(string))
		case PropFolder:
			r.notifier.notifyFolder(norm.(string))
		}
		r.notifier.notifyChanged(PropertyEvent{Name: name, Value: norm})
	}
	return nil
}

// Name returns the display name.
func (r *Record) Name() (string, error) {
	v, err := r.GetProperty(PropName)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetName updates the display name, emitting the name-changed event before
// the generic change event.
func (r *Record) SetName(name string) error {
	return r.SetProperty(PropName, name)
}

// Folder returns the grouping path.
func (r *Record) Folder() (string, error) {
	v, err := r.GetProperty(PropFolder)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetFolder updates the grouping path, emitting the folder-changed event
// before the generic change event.
func (r *Record) SetFolder(folder string) error {
	return r.SetProperty(PropFolder, folder)
}

// Deleted reports the soft-delete flag.
func (r *Record) Deleted() (bool, error) {
	v, err := r.GetProperty(PropDeleted)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// SetDeleted flips the soft-delete flag. A deleted record stays in storage
// and remains addressable by key; it is only hidden from default listings.
func (r *Record) SetDeleted(deleted bool) error {
	return r.SetProperty(PropDeleted, deleted)
}

// Display reports whether the record is eligible for display.
func (r *Record) Display() (bool, error) {
	v, err := r.GetProperty(PropDisplay)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// SetDisplay flips the display flag.
func (r *Record) SetDisplay(display bool) error {
	return r.SetProperty(PropDisplay, display)
}

// Copy returns a transient duplicate of the record: every registered
// property value and the validity flag carry over, the key does not. A
// persisted source is fully read through first, so a cold-loaded record
// copies the same values as a warm one. When the source is persisted the
// copy records the source's key as its parent, fixing lineage at copy time.
// The copy gets its own notifier; observers do not carry over. The inventory
// row is not shared.
func (r *Record) Copy() (*Record, error) {
	if r.key != 0 {
		for _, def := range r.meta.Properties() {
			if _, err := r.GetProperty(def.Name); err != nil {
				return nil, err
			}
		}
	}
	cp := NewRecord(r.meta, r.gateway, r.logger)
	for k, v := range r.cache {
		cp.cache[k] = v
	}
	cp.valid = r.valid
	if r.key != 0 {
		cp.parentKey = r.key
	}
	return cp, nil
}

// Insert persists a transient record (or resurrects one whose stored row is
// gone) and assigns the returned key. The name, folder, deleted, and display
// columns are always included; extra carries the concrete type's columns and
// may not override the base ones.
func (r *Record) Insert(extra map[string]any) (int64, error) {
	if r.key != 0 {
		if _, err := r.gateway.ReadColumn(r.Table(), r.key, ColumnName); err == nil {
			return 0, fmt.Errorf("entity %s/%d is already persisted", r.Table(), r.key)
		}
		// Row gone: resurrect under a fresh key. Keys are never reused.
	}
	cols := r.columnValues()
	for k, v := range extra {
		if _, reserved := cols[k]; reserved {
			continue
		}
		cols[k] = v
	}
	key, err := r.gateway.InsertRow(r.Table(), cols)
	if err != nil {
		return 0, StorageWriteError{Table: r.Table(), Err: err}
	}
	r.key = key
	return key, nil
}

// columnValues maps every cached registered property to its storage column,
// with the base columns always present and lineage included once known.
func (r *Record) columnValues() map[string]any {
	cols := make(map[string]any, len(r.cache)+len(baseProperties)+1)
	// Unset base columns insert as kind zero values; in particular display
	// starts false until set explicitly.
	for _, def := range baseProperties {
		cols[def.Column] = zeroValue(def.Kind)
	}
	for name, value := range r.cache {
		def, ok := r.meta.Property(name)
		if !ok {
			continue
		}
		cols[def.Column] = value
	}
	if r.parentKey != 0 {
		cols[ColumnParentKey] = r.parentKey
	}
	return cols
}

// Inventory reads a column of the record's quantity-on-hand row, which is
// keyed separately from the entity row. It returns nil when no inventory row
// exists yet.
func (r *Record) Inventory(column string) (any, error) {
	invTable, ok := r.meta.InventoryTable()
	if !ok {
		return nil, fmt.Errorf("type %q has no inventory table", r.Table())
	}
	if r.key == 0 {
		return nil, fmt.Errorf("entity %s is transient, no inventory", r.Table())
	}
	v, err := r.gateway.ReadInventory(invTable, r.key, column)
	if err != nil {
		return nil, StorageReadError{Table: invTable, Key: r.key, Column: column, Err: err}
	}
	return v, nil
}

// SetInventory writes a column of the inventory row, creating the row on
// first write, and emits a generic change event carrying the column name.
// Inventory mutations stay off the name/folder streams: stock adjustments
// are a different workflow from descriptive edits.
func (r *Record) SetInventory(column string, value any) error {
	invTable, ok := r.meta.InventoryTable()
	if !ok {
		return fmt.Errorf("type %q has no inventory table", r.Table())
	}
	if r.key == 0 {
		return fmt.Errorf("entity %s is transient, no inventory", r.Table())
	}
	invKey, err := r.gateway.WriteInventory(invTable, r.key, r.inventoryKey, column, value)
	if err != nil {
		return StorageWriteError{Table: invTable, Key: r.key, Column: column, Err: err}
	}
	r.inventoryKey = invKey
	r.notifier.notifyChanged(PropertyEvent{Name: column, Value: value})
	return nil
}

// InventoryKey returns the key of the record's inventory row, zero until the
// first inventory write.
func (r *Record) InventoryKey() int64 { return r.inventoryKey }
