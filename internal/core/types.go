package core

import "brewcore/pkg/domain"

type (
	Table       = domain.Table
	Kind        = domain.Kind
	PropertyDef = domain.PropertyDef
	TypeSpec    = domain.TypeSpec
	TypeMeta    = domain.TypeMeta
	Registry    = domain.Registry
	Gateway     = domain.Gateway
	RowLister   = domain.RowLister
	Record      = domain.Record
	Entity      = domain.Entity

	PropertyEvent    = domain.PropertyEvent
	PropertyObserver = domain.PropertyObserver
	StringObserver   = domain.StringObserver
	Logger           = domain.Logger

	UnknownPropertyError      = domain.UnknownPropertyError
	PropertyTypeMismatchError = domain.PropertyTypeMismatchError
	StorageReadError          = domain.StorageReadError
	StorageWriteError         = domain.StorageWriteError
	LineageConflictError      = domain.LineageConflictError
)

const (
	KindString = domain.KindString
	KindInt    = domain.KindInt
	KindFloat  = domain.KindFloat
	KindBool   = domain.KindBool
	KindTime   = domain.KindTime
)

const (
	PropName    = domain.PropName
	PropFolder  = domain.PropFolder
	PropDeleted = domain.PropDeleted
	PropDisplay = domain.PropDisplay
)

const (
	ColumnName      = domain.ColumnName
	ColumnFolder    = domain.ColumnFolder
	ColumnDeleted   = domain.ColumnDeleted
	ColumnDisplay   = domain.ColumnDisplay
	ColumnParentKey = domain.ColumnParentKey
)
