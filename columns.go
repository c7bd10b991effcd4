package store

import (
	"github.com/google/uuid"
)

// StatementKind selects which include flag a column set honours.
type StatementKind int

const (
	SelectStatement StatementKind = iota
	InsertStatement
	UpdateStatement
	DeleteStatement
)

func (k StatementKind) String() string {
	switch k {
	case SelectStatement:
		return "select"
	case InsertStatement:
		return "insert"
	case UpdateStatement:
		return "update"
	case DeleteStatement:
		return "delete"
	}
	return "unknown"
}

// ColumnRef is one entry of a resolved column set. Descriptor is nil for ad-hoc columns
// named in an only-list but unknown to the record type.
type ColumnRef struct {
	Key        string
	Column     string
	Descriptor *ColumnDescriptor
}

func (c ColumnRef) AdHoc() bool {
	return c.Descriptor == nil
}

// ColumnSet is an ordered field name to database column mapping.
type ColumnSet []ColumnRef

func (cs ColumnSet) Columns() []string {
	return sliceMap(cs, func(c ColumnRef) string { return c.Column })
}

func (cs ColumnSet) Keys() []string {
	return sliceMap(cs, func(c ColumnRef) string { return c.Key })
}

// Declared drops ad-hoc entries.
func (cs ColumnSet) Declared() ColumnSet {
	return sliceFilter(cs, func(c ColumnRef) bool { return !c.AdHoc() })
}

func (cs ColumnSet) Lookup(key string) (ColumnRef, bool) {
	for _, c := range cs {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnRef{}, false
}

// ResolveColumns derives the columns of meta taking part in a statement of the given
// kind. only and exclude are independent filters on logical field names; the table's
// excluded column names are always dropped. Names in only that the record type does not
// declare are appended as ad-hoc columns whose database column is the literal name.
func ResolveColumns(meta *TypeMetadata, kind StatementKind, only, exclude []string) ColumnSet {
	var set ColumnSet
	for i := range meta.columns {
		c := meta.columns[i]
		if !c.Includes(kind) {
			continue
		}
		if len(only) > 0 && !sliceContains(only, c.Field) {
			continue
		}
		if len(exclude) > 0 && sliceContains(exclude, c.Field) {
			continue
		}
		if meta.Table.IsExcluded(c.Column) {
			continue
		}

		set = append(set, ColumnRef{Key: c.Field, Column: c.Column, Descriptor: &c})
	}

	for _, name := range only {
		if isBlank(name) {
			continue
		}
		if _, known := meta.byField[name]; known {
			continue
		}
		set = append(set, ColumnRef{Key: uuid.NewString(), Column: name})
	}

	return set
}
