package store

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Binder reads record field values into statement parameters. Parameters are named
// after the database column of the field.
type Binder struct {
	dialect Dialect
	strict  bool
	logger  *slog.Logger
}

func NewBinder(dialect Dialect, logger *slog.Logger, strict bool) *Binder {
	if dialect == nil {
		dialect = SQLServerDialect{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{dialect: dialect, strict: strict, logger: logger}
}

// Bind produces one parameter per declared column of set. A field that cannot be
// coerced is skipped with a warning, or returned as *FieldBindingError when the binder
// is strict. Ad-hoc columns carry no field and are never bound.
func (b *Binder) Bind(record any, meta *TypeMetadata, set ColumnSet) (*Params, error) {
	params := NewParams()

	rv := reflect.ValueOf(record)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("store: cannot bind nil %s record", meta.Type)
		}
		rv = rv.Elem()
	}
	if rv.Type() != meta.Type {
		return nil, fmt.Errorf("store: cannot bind %s with metadata of %s", rv.Type(), meta.Type)
	}

	for _, ref := range set.Declared() {
		v, err := b.bindField(rv, ref.Descriptor)
		if err != nil {
			bindErr := &FieldBindingError{Field: ref.Descriptor.Field, Column: ref.Column, Err: err}
			if b.strict {
				return nil, bindErr
			}
			b.logger.Warn("skipping parameter", slog.String("field", bindErr.Field), slog.String("column", bindErr.Column), slog.Any("error", err))
			continue
		}
		params.Set(ref.Column, v)
	}

	return params, nil
}

func (b *Binder) bindField(record reflect.Value, col *ColumnDescriptor) (Value, error) {
	if len(col.index) == 0 {
		return Null(), fmt.Errorf("no struct field %s", col.Field)
	}

	fv, err := record.FieldByIndexErr(col.index)
	if err != nil {
		// nil embedded struct pointer
		return Null(), nil
	}

	return b.coerce(fv, col)
}

func (b *Binder) coerce(fv reflect.Value, col *ColumnDescriptor) (Value, error) {
	if (fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface) && fv.IsNil() {
		return Null(), nil
	}

	if fv.Kind() != reflect.Ptr && fv.CanAddr() && reflect.PointerTo(fv.Type()).Implements(valuerType) {
		fv = fv.Addr()
	}
	if fv.Type().Implements(valuerType) && fv.CanInterface() {
		v, err := ValueOf(fv.Interface())
		if err != nil {
			return Null(), err
		}
		return b.checkTime(v), nil
	}

	for fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return Null(), nil
		}
		fv = fv.Elem()
	}

	if fv.Type() == timeType {
		return b.checkTime(Time(fv.Interface().(time.Time))), nil
	}

	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if col.Kind == ForeignKey && fv.Int() == 0 {
			return Null(), nil
		}
		// named integer types are enumerations and bind as their ordinal
		return Int(fv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if col.Kind == ForeignKey && fv.Uint() == 0 {
			return Null(), nil
		}
		return uintValue(fv.Uint())
	case reflect.Struct, reflect.Map, reflect.Chan, reflect.Func, reflect.Array:
		return Null(), fmt.Errorf("unsupported field type %s", fv.Type())
	}

	if !fv.CanInterface() {
		return Null(), errors.New("unexported field value")
	}
	return ValueOf(fv.Interface())
}

func (b *Binder) checkTime(v Value) Value {
	if v.Kind() == KindTime && !b.dialect.ValidTime(v.t) {
		return Null()
	}
	return v
}
