package store

import (
	"database/sql"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// scanPlan maps result column names to destination fields of a record type.
type scanPlan struct {
	typ    reflect.Type
	ptr    bool
	fields map[string][]int
}

func newScanPlan(reg *Registry, typ reflect.Type) *scanPlan {
	p := &scanPlan{typ: typ}
	if typ.Kind() == reflect.Ptr {
		p.typ, p.ptr = typ.Elem(), true
	}

	if p.typ.Kind() != reflect.Struct || p.typ == timeType || reflect.PointerTo(p.typ).Implements(scannerType) {
		return p
	}
	meta, err := reg.Shape(p.typ)
	if err != nil {
		return p
	}

	p.fields = make(map[string][]int)
	for _, c := range meta.columns {
		if len(c.index) == 0 {
			continue
		}
		if key := strings.ToLower(c.Column); p.fields[key] == nil {
			p.fields[key] = c.index
		}
	}
	// result columns aliased to the field name win over raw column names
	for _, c := range meta.columns {
		if len(c.index) > 0 {
			p.fields[strings.ToLower(c.Field)] = c.index
		}
	}
	return p
}

func (p *scanPlan) record() bool {
	return p.fields != nil
}

// scanRows reads the current result set of rows into items. limit <= 0 reads every row.
// The largest TotalRecordsCount value seen is returned as total.
func scanRows[T any](rows *sqlx.Rows, plan *scanPlan, limit int) (items []T, total int64, err error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, err
	}

	for rows.Next() {
		v := reflect.New(plan.typ)
		var rowTotal sql.NullInt64

		dests := make([]any, len(cols))
		for i, col := range cols {
			name := strings.ToLower(col)
			switch {
			case strings.EqualFold(col, TotalRecordsCount):
				dests[i] = &rowTotal
			case plan.record():
				if index, ok := plan.fields[name]; ok {
					dests[i] = reflectx.FieldByIndexes(v.Elem(), index).Addr().Interface()
				} else {
					dests[i] = new(any)
				}
			case i == 0:
				dests[i] = v.Interface()
			default:
				dests[i] = new(any)
			}
		}

		if err := rows.Scan(dests...); err != nil {
			return nil, 0, err
		}
		if rowTotal.Valid && rowTotal.Int64 > total {
			total = rowTotal.Int64
		}

		item := v.Elem()
		if plan.ptr {
			item = v
		}
		items = append(items, item.Interface().(T))

		if limit > 0 && len(items) >= limit {
			break
		}
	}

	return items, total, rows.Err()
}

// scanCount reads a single count value from the current result set.
func scanCount(rows *sqlx.Rows) (int64, error) {
	var total sql.NullInt64
	for rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}
	return total.Int64, rows.Err()
}

// scanIdentity reads the generated key from the first result set holding a row.
func scanIdentity(id *int64) func(*sqlx.Rows) error {
	return func(rows *sqlx.Rows) error {
		for {
			if rows.Next() {
				var v sql.NullInt64
				if err := rows.Scan(&v); err != nil {
					return err
				}
				*id = v.Int64
				return nil
			}
			if err := rows.Err(); err != nil || !rows.NextResultSet() {
				return err
			}
		}
	}
}
