package store

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
)

type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindText
	KindTime
	KindBool
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	}
	return "unknown"
}

// Value is a statement parameter value. The zero Value is null.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
	t    time.Time
	b    bool
	raw  []byte
}

func Null() Value            { return Value{} }
func Int(v int64) Value      { return Value{kind: KindInt, i: v} }
func Float(v float64) Value  { return Value{kind: KindFloat, f: v} }
func Text(v string) Value    { return Value{kind: KindText, s: v} }
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }
func Bool(v bool) Value      { return Value{kind: KindBool, b: v} }

func Bytes(v []byte) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindBytes, raw: v}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// Any returns the Go value held by v, nil for null.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindTime:
		return v.t
	case KindBool:
		return v.b
	case KindBytes:
		return v.raw
	}
	return nil
}

// Value implements driver.Valuer.
func (v Value) Value() (driver.Value, error) {
	return v.Any(), nil
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindText:
		return fmt.Sprintf("%q", v.s)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.raw)
	}
	return fmt.Sprint(v.Any())
}

// ValueOf converts a plain Go value into a Value. driver.Valuer implementations are
// unwrapped first and nil pointers become null.
func ValueOf(x any) (Value, error) {
	if x == nil {
		return Null(), nil
	}

	switch v := x.(type) {
	case Value:
		return v, nil
	case time.Time:
		return Time(v), nil
	case []byte:
		return Bytes(v), nil
	case driver.Valuer:
		rv := reflect.ValueOf(x)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return Null(), nil
		}
		dv, err := v.Value()
		if err != nil {
			return Null(), err
		}
		if _, again := dv.(driver.Valuer); again {
			return Null(), fmt.Errorf("valuer %T returned another valuer", x)
		}
		return ValueOf(dv)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintValue(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Bytes(rv.Bytes()), nil
		}
	}

	return Null(), fmt.Errorf("unsupported parameter type %T", x)
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Null(), fmt.Errorf("unsigned value %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

// Params is an insertion ordered set of named statement parameters.
type Params struct {
	names  []string
	values map[string]Value
}

func NewParams() *Params {
	return &Params{values: make(map[string]Value)}
}

// ParamsFrom converts a plain map. Keys are added in sorted order.
func ParamsFrom(m map[string]any) (*Params, error) {
	p := NewParams()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		p.Set(k, v)
	}
	return p, nil
}

// Set adds or replaces a parameter. A replaced parameter keeps its position.
func (p *Params) Set(name string, v Value) *Params {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = v
	return p
}

// Arg converts x with ValueOf and sets it, panicking on unsupported types.
func (p *Params) Arg(name string, x any) *Params {
	v, err := ValueOf(x)
	if err != nil {
		panic(fmt.Sprintf("store: param %s: %v", name, err))
	}
	return p.Set(name, v)
}

func (p *Params) Get(name string) (Value, bool) {
	if p == nil {
		return Null(), false
	}
	v, ok := p.values[name]
	return v, ok
}

func (p *Params) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

func (p *Params) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.names))
	copy(names, p.names)
	return names
}

// Merge copies every parameter of other into p, overwriting same-named entries.
func (p *Params) Merge(other *Params) *Params {
	if other == nil {
		return p
	}
	for _, n := range other.names {
		p.Set(n, other.values[n])
	}
	return p
}

func (p *Params) Clone() *Params {
	c := NewParams()
	return c.Merge(p)
}

// Map returns the parameters as a plain map, the form sqlx.Named consumes.
func (p *Params) Map() map[string]any {
	m := make(map[string]any, p.Len())
	if p == nil {
		return m
	}
	for _, n := range p.names {
		m[n] = p.values[n]
	}
	return m
}

// NamedArgs returns the parameters as sql.NamedArg values in insertion order.
func (p *Params) NamedArgs() []any {
	args := make([]any, 0, p.Len())
	if p == nil {
		return args
	}
	for _, n := range p.names {
		args = append(args, sql.Named(n, p.values[n]))
	}
	return args
}

func (p *Params) String() string {
	if p == nil {
		return "{}"
	}
	parts := sliceMap(p.names, func(n string) string {
		return n + "=" + p.values[n].String()
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// LogValue implements slog.LogValuer.
func (p *Params) LogValue() slog.Value {
	return slog.StringValue(p.String())
}
