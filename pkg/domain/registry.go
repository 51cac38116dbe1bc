package domain

import (
	"fmt"
	"sort"
)

// Table identifies the storage table an entity type persists to.
type Table string

// Kind enumerates the value kinds a registered property may carry.
type Kind int

// Supported property value kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Base property names shared by every registered entity type.
const (
	PropName    = "name"
	PropFolder  = "folder"
	PropDeleted = "deleted"
	PropDisplay = "display"
)

// Storage columns backing the base properties and lineage.
const (
	ColumnName      = "name"
	ColumnFolder    = "folder"
	ColumnDeleted   = "deleted"
	ColumnDisplay   = "display"
	ColumnParentKey = "parent_key"
)

// PropertyDef describes a single named property: its logical name, value
// kind, and the storage column it maps to.
type PropertyDef struct {
	Name   string
	Kind   Kind
	Column string
}

// TypeSpec declares an entity type for registration.
type TypeSpec struct {
	Table Table
	// InventoryTable names the secondary quantity-on-hand table. Empty means
	// the type carries no inventory.
	InventoryTable Table
	// Version is the structural schema version the type conforms to.
	Version    int
	Properties []PropertyDef
}

// TypeMeta is the read-only metadata for one registered entity type. It is
// built once at registration time and never mutated afterwards, so lookups
// are safe without locking.
type TypeMeta struct {
	table          Table
	inventoryTable Table
	version        int
	props          map[string]PropertyDef
}

// Table returns the storage table for the type.
func (m *TypeMeta) Table() Table { return m.table }

// InventoryTable returns the inventory table and whether the type has one.
func (m *TypeMeta) InventoryTable() (Table, bool) {
	return m.inventoryTable, m.inventoryTable != ""
}

// Version returns the structural schema version of the type.
func (m *TypeMeta) Version() int { return m.version }

// Property looks up a property definition by logical name.
func (m *TypeMeta) Property(name string) (PropertyDef, bool) {
	def, ok := m.props[name]
	return def, ok
}

// Properties returns all property definitions sorted by name.
func (m *TypeMeta) Properties() []PropertyDef {
	out := make([]PropertyDef, 0, len(m.props))
	for _, def := range m.props {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// baseProperties are implicitly present on every type.
var baseProperties = []PropertyDef{
	{Name: PropName, Kind: KindString, Column: ColumnName},
	{Name: PropFolder, Kind: KindString, Column: ColumnFolder},
	{Name: PropDeleted, Kind: KindBool, Column: ColumnDeleted},
	{Name: PropDisplay, Kind: KindBool, Column: ColumnDisplay},
}

// Registry holds per-type property metadata. Types are registered during
// startup; afterwards the registry is read-only.
type Registry struct {
	types map[Table]*TypeMeta
}

// NewRegistry constructs an empty type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[Table]*TypeMeta)}
}

// RegisterType records the metadata for an entity type. The base properties
// (name, folder, deleted, display) are added implicitly and must not be
// redeclared. Registration errors surface immediately; a type can be
// registered only once.
func (r *Registry) RegisterType(spec TypeSpec) (*TypeMeta, error) {
	if spec.Table == "" {
		return nil, fmt.Errorf("register type: empty table")
	}
	if _, exists := r.types[spec.Table]; exists {
		return nil, fmt.Errorf("register type: table %q already registered", spec.Table)
	}
	meta := &TypeMeta{
		table:          spec.Table,
		inventoryTable: spec.InventoryTable,
		version:        spec.Version,
		props:          make(map[string]PropertyDef, len(spec.Properties)+len(baseProperties)),
	}
	for _, def := range baseProperties {
		meta.props[def.Name] = def
	}
	for _, def := range spec.Properties {
		if def.Name == "" || def.Column == "" {
			return nil, fmt.Errorf("register type %q: property needs name and column (got name=%q column=%q)", spec.Table, def.Name, def.Column)
		}
		if _, dup := meta.props[def.Name]; dup {
			return nil, fmt.Errorf("register type %q: property %q already defined", spec.Table, def.Name)
		}
		meta.props[def.Name] = def
	}
	r.types[spec.Table] = meta
	return meta, nil
}

// Type returns the metadata registered for a table.
func (r *Registry) Type(table Table) (*TypeMeta, bool) {
	meta, ok := r.types[table]
	return meta, ok
}

// Tables returns all registered tables sorted by name.
func (r *Registry) Tables() []Table {
	out := make([]Table, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
