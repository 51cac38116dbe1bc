package domain

import "fmt"

// UnknownPropertyError is returned when a property name is not registered for
// the entity's type.
type UnknownPropertyError struct {
	Table Table
	Name  string
}

func (e UnknownPropertyError) Error() string {
	return fmt.Sprintf("property %q is not registered for table %q", e.Name, e.Table)
}

// PropertyTypeMismatchError is returned when a value's kind disagrees with
// the registered property definition.
type PropertyTypeMismatchError struct {
	Table Table
	Name  string
	Kind  Kind
	Value any
}

func (e PropertyTypeMismatchError) Error() string {
	return fmt.Sprintf("property %q on table %q expects %s, got %T", e.Name, e.Table, e.Kind, e.Value)
}

// StorageReadError wraps a gateway failure while reading a column.
type StorageReadError struct {
	Table  Table
	Key    int64
	Column string
	Err    error
}

func (e StorageReadError) Error() string {
	return fmt.Sprintf("read %s.%s key %d: %v", e.Table, e.Column, e.Key, e.Err)
}

func (e StorageReadError) Unwrap() error { return e.Err }

// StorageWriteError wraps a gateway failure while writing a column or
// inserting a row.
type StorageWriteError struct {
	Table  Table
	Key    int64
	Column string
	Err    error
}

func (e StorageWriteError) Error() string {
	return fmt.Sprintf("write %s.%s key %d: %v", e.Table, e.Column, e.Key, e.Err)
}

func (e StorageWriteError) Unwrap() error { return e.Err }

// LineageConflictError is returned when an already-parented entity is
// reparented to a different parent.
type LineageConflictError struct {
	Table     Table
	Key       int64
	ParentKey int64
	Attempted int64
}

func (e LineageConflictError) Error() string {
	return fmt.Sprintf("entity %s/%d already has parent %d, cannot reparent to %d", e.Table, e.Key, e.ParentKey, e.Attempted)
}
