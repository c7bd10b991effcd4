package store

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// TypeMetadata is the resolved column metadata of one record type. It is immutable once
// committed to a Registry.
type TypeMetadata struct {
	Type    reflect.Type
	Table   TableDescriptor
	columns []ColumnDescriptor
	byField map[string]int
}

// Columns returns the column descriptors in declaration order.
func (m *TypeMetadata) Columns() []ColumnDescriptor {
	cols := make([]ColumnDescriptor, len(m.columns))
	copy(cols, m.columns)
	return cols
}

func (m *TypeMetadata) Column(field string) (ColumnDescriptor, bool) {
	i, ok := m.byField[field]
	if !ok {
		return ColumnDescriptor{}, false
	}
	return m.columns[i], true
}

// ColumnByName finds a descriptor by its database column name, case-insensitively.
func (m *TypeMetadata) ColumnByName(column string) (ColumnDescriptor, bool) {
	for _, c := range m.columns {
		if equalFold(c.Column, column) {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// PrimaryKey returns the first primary key column.
func (m *TypeMetadata) PrimaryKey() (ColumnDescriptor, bool) {
	for _, c := range m.columns {
		if c.Kind.IsPrimaryKey() {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// AutoKey returns the auto generated primary key column, if any.
func (m *TypeMetadata) AutoKey() (ColumnDescriptor, bool) {
	for _, c := range m.columns {
		if c.Kind == AutoGeneratedPrimaryKey {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// Registry caches TypeMetadata per record type for the lifetime of the process.
type Registry struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*TypeMetadata
	naming  NamingStrategy
}

// DefaultRegistry is the process-wide registry used when none is configured.
var DefaultRegistry = NewRegistry(NameAsField)

func NewRegistry(naming NamingStrategy) *Registry {
	if naming == nil {
		naming = NameAsField
	}
	return &Registry{
		entries: make(map[reflect.Type]*TypeMetadata),
		naming:  naming,
	}
}

// MetadataOf resolves T against the DefaultRegistry.
func MetadataOf[T any]() (*TypeMetadata, error) {
	return DefaultRegistry.Resolve(reflect.TypeOf((*T)(nil)).Elem())
}

// Resolve returns the metadata of t, building it on first use. Concurrent first
// resolutions of the same type may build more than once but all callers receive the
// single committed entry.
func (r *Registry) Resolve(t reflect.Type) (*TypeMetadata, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrMissingTableMetadata)
	}

	r.mu.RLock()
	meta, ok := r.entries[t]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta, err := r.build(t, true)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[t]; ok {
		return existing, nil
	}
	r.entries[t] = meta
	return meta, nil
}

// Shape returns the column metadata of t without requiring a table descriptor. It is
// used for projection and result types that are never written to a table.
func (r *Registry) Shape(t reflect.Type) (*TypeMetadata, error) {
	meta, err := r.Resolve(t)
	if err == nil || !errors.Is(err, ErrMissingTableMetadata) {
		return meta, err
	}

	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, err
	}
	return r.build(t, false)
}

// Len returns the number of cached types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) build(t reflect.Type, requireTable bool) (*TypeMetadata, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrMissingTableMetadata, t)
	}

	table, hasTable, cols := parseModel(t, r.naming)

	zero := reflect.New(t).Interface()
	if td, ok := zero.(TableDescriber); ok {
		table, hasTable = td.TableDescriptor(), true
	}
	if cd, ok := zero.(ColumnDescriber); ok {
		cols = nil
		for _, c := range cd.ColumnDescriptors() {
			if f, found := t.FieldByName(c.Field); found {
				c.index = f.Index
				c.typ = f.Type
			}
			if c.Column == "" {
				c.Column = r.naming(c.Field)
			}
			cols = append(cols, c)
		}
	}

	if requireTable && (!hasTable || table.Name == "") {
		return nil, fmt.Errorf("%w: %s", ErrMissingTableMetadata, t)
	}

	meta := &TypeMetadata{
		Type:    t,
		Table:   table,
		byField: make(map[string]int, len(cols)),
	}
	for _, c := range cols {
		if _, dup := meta.byField[c.Field]; dup {
			continue
		}
		meta.byField[c.Field] = len(meta.columns)
		meta.columns = append(meta.columns, c)
	}

	return meta, nil
}
