package store

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Table synthesizes statements for the record type T.
type Table[T any] struct {
	meta   *TypeMetadata
	opts   options
	binder *Binder
}

// NewTable resolves the metadata of T and prepares a statement synthesizer for it.
func NewTable[T any](opts ...Option) (*Table[T], error) {
	return newTable[T](defaultOptions().apply(opts...))
}

// TableOf prepares a synthesizer sharing the dialect, registry and binding policy of db.
func TableOf[T any](db *DB, opts ...Option) (*Table[T], error) {
	return newTable[T](db.opts.apply(opts...))
}

func newTable[T any](o options) (*Table[T], error) {
	meta, err := o.registry.Resolve(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return &Table[T]{meta: meta, opts: o, binder: o.binder()}, nil
}

func (t *Table[T]) Metadata() *TypeMetadata { return t.meta }
func (t *Table[T]) Dialect() Dialect        { return t.opts.dialect }

// Source returns the table source used for statements of the given kind.
func (t *Table[T]) Source(kind StatementKind) string {
	if s := strings.TrimSpace(t.opts.sources[kind]); s != "" {
		return s
	}
	return t.meta.Table.FullName()
}

func (t *Table[T]) source(kind StatementKind, o *statementOption) string {
	if s := strings.TrimSpace(o.source); s != "" {
		return s
	}
	return t.Source(kind)
}

func (t *Table[T]) newStatement(sql string, params *Params, o *statementOption) *Statement {
	st := NewStatement(t.opts.dialect, sql, params)
	st.WithCountStrategy(t.opts.count)
	st.SetPrelude(o.prelude)
	st.AddParams(o.params)
	return st
}

// Select builds `select <cols> from <source> [where (<cond>)] [order by <clause>]`.
func (t *Table[T]) Select(opts ...StatementOption) (*Statement, error) {
	o := newStatementOption(opts)
	return selectStatement(t, t.meta, o)
}

// SelectAs selects the columns of R from the select source of t, e.g. a narrower
// projection of the same table.
func SelectAs[R, T any](t *Table[T], opts ...StatementOption) (*Statement, error) {
	meta, err := t.opts.registry.Shape(reflect.TypeOf((*R)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	o := newStatementOption(opts)
	return selectStatement(t, meta, o)
}

func selectStatement[T any](t *Table[T], meta *TypeMetadata, o *statementOption) (*Statement, error) {
	set := ResolveColumns(meta, SelectStatement, o.only, o.exclude)
	if meta != t.meta {
		// projection columns are still subject to the table's exclusions
		set = sliceFilter(set, func(c ColumnRef) bool { return !t.meta.Table.IsExcluded(c.Column) })
	}

	cols := sliceMap(set, func(c ColumnRef) string {
		if c.AdHoc() || c.Column == c.Key {
			return c.Column
		}
		return fmt.Sprintf("%s as %s", c.Column, c.Key)
	})

	var sb strings.Builder
	sb.WriteString("select ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" from ")
	sb.WriteString(t.source(SelectStatement, o))
	writeWhere(&sb, o.where)

	orderBy := strings.TrimSpace(o.orderBy)
	if orderBy == "" {
		orderBy = t.meta.Table.DefaultOrderBy
	}
	if orderBy != "" {
		sb.WriteString(" order by ")
		sb.WriteString(trimOrderBy(orderBy))
	}

	st := t.newStatement(sb.String(), nil, o)
	if len(o.only) > 0 {
		st.setSelectColumns(sliceMap(set, func(c ColumnRef) string {
			if c.AdHoc() {
				return c.Column
			}
			return c.Key
		}))
	}

	if o.paged {
		if err := st.Paginate(o.pageIndex, o.pageSize); err != nil {
			return nil, err
		}
	}

	return st, nil
}

// Insert builds `insert into <source>([a],[b]) values(@a,@b)` with parameters bound from
// record. WithIdentity appends the dialect's generated key clause.
func (t *Table[T]) Insert(record T, opts ...StatementOption) (*Statement, error) {
	o := newStatementOption(opts)
	set := ResolveColumns(t.meta, InsertStatement, o.only, o.exclude).Declared()

	params, err := t.binder.Bind(&record, t.meta, set)
	if err != nil {
		return nil, err
	}

	d := t.opts.dialect
	cols := set.Columns()

	var sb strings.Builder
	sb.WriteString("insert into ")
	sb.WriteString(t.source(InsertStatement, o))
	sb.WriteString("(")
	sb.WriteString(strings.Join(sliceMap(cols, d.QuoteIdent), ","))
	sb.WriteString(") values(")
	sb.WriteString(strings.Join(sliceMap(cols, d.Placeholder), ","))
	sb.WriteString(")")

	var keyColumn string
	if o.identity {
		if key, ok := t.meta.AutoKey(); ok {
			keyColumn = key.Column
		}
		sb.WriteString(d.IdentityClause(keyColumn))
	}

	st := t.newStatement(sb.String(), params, o)
	st.expectsIdentity = o.identity
	st.identityColumn = keyColumn
	return st, nil
}

// InsertParams builds an insert whose columns are the names of params, e.g. rows read
// from a file. Every name must be an insert eligible column of T.
func (t *Table[T]) InsertParams(params *Params, opts ...StatementOption) (*Statement, error) {
	o := newStatementOption(opts)
	cols := params.Names()
	if len(cols) == 0 {
		return nil, fmt.Errorf("store: insert into %s without columns", t.source(InsertStatement, o))
	}
	for _, col := range cols {
		c, ok := t.meta.ColumnByName(col)
		if !ok || !c.InInsert {
			return nil, fmt.Errorf("store: %s is not an insertable column of %s", col, t.meta.Type)
		}
	}

	d := t.opts.dialect
	var sb strings.Builder
	sb.WriteString("insert into ")
	sb.WriteString(t.source(InsertStatement, o))
	sb.WriteString("(")
	sb.WriteString(strings.Join(sliceMap(cols, d.QuoteIdent), ","))
	sb.WriteString(") values(")
	sb.WriteString(strings.Join(sliceMap(cols, d.Placeholder), ","))
	sb.WriteString(")")

	st := t.newStatement(sb.String(), nil, o)
	st.AddParams(params)
	return st, nil
}

// Update builds `update <source> set [a] = @a where (<cond>)` over the update eligible
// columns of record. Parameters referenced by the condition that are not update columns
// are supplied with WithParams.
func (t *Table[T]) Update(record T, where string, opts ...StatementOption) (*Statement, error) {
	if isBlank(where) {
		return nil, ErrUnsafeMutation
	}

	o := newStatementOption(opts)
	set := ResolveColumns(t.meta, UpdateStatement, o.only, o.exclude).Declared()
	if len(set) == 0 {
		return nil, ErrNoUpdateColumns
	}

	params, err := t.binder.Bind(&record, t.meta, set)
	if err != nil {
		return nil, err
	}

	d := t.opts.dialect
	assignments := sliceMap(set.Columns(), func(col string) string {
		return fmt.Sprintf("%s = %s", d.QuoteIdent(col), d.Placeholder(col))
	})

	return t.newStatement(t.updateText(assignments, where, o), params, o), nil
}

// UpdateColumns builds an update from an explicit column to parameter name mapping,
// bypassing the record metadata. Assignments are ordered by column name.
func (t *Table[T]) UpdateColumns(columns map[string]string, where string, params *Params, opts ...StatementOption) (*Statement, error) {
	if isBlank(where) {
		return nil, ErrUnsafeMutation
	}
	if len(columns) == 0 {
		return nil, ErrNoUpdateColumns
	}

	o := newStatementOption(opts)
	names := make([]string, 0, len(columns))
	for col := range columns {
		names = append(names, col)
	}
	sort.Strings(names)

	d := t.opts.dialect
	assignments := sliceMap(names, func(col string) string {
		return fmt.Sprintf("%s = %s", col, d.Placeholder(columns[col]))
	})

	st := t.newStatement(t.updateText(assignments, where, o), nil, o)
	st.AddParams(params)
	return st, nil
}

func (t *Table[T]) updateText(assignments []string, where string, o *statementOption) string {
	var sb strings.Builder
	sb.WriteString("update ")
	sb.WriteString(t.source(UpdateStatement, o))
	sb.WriteString(" set ")
	sb.WriteString(strings.Join(assignments, ", "))
	writeWhere(&sb, where)
	return sb.String()
}

// Delete builds `delete from <source> where (<cond>)` with the delete eligible columns of
// record bound as parameters.
func (t *Table[T]) Delete(record T, where string, opts ...StatementOption) (*Statement, error) {
	if isBlank(where) {
		return nil, ErrUnsafeMutation
	}

	o := newStatementOption(opts)
	set := ResolveColumns(t.meta, DeleteStatement, o.only, o.exclude).Declared()
	params, err := t.binder.Bind(&record, t.meta, set)
	if err != nil {
		return nil, err
	}

	return t.newStatement(t.deleteText(where, o), params, o), nil
}

// DeleteWhere builds a delete from a condition and explicit parameters, which may be nil.
func (t *Table[T]) DeleteWhere(where string, params *Params, opts ...StatementOption) (*Statement, error) {
	if isBlank(where) {
		return nil, ErrUnsafeMutation
	}

	o := newStatementOption(opts)
	st := t.newStatement(t.deleteText(where, o), nil, o)
	st.AddParams(params)
	return st, nil
}

func (t *Table[T]) deleteText(where string, o *statementOption) string {
	var sb strings.Builder
	sb.WriteString("delete from ")
	sb.WriteString(t.source(DeleteStatement, o))
	writeWhere(&sb, where)
	return sb.String()
}

// Raw wraps caller supplied text so it can be paginated and executed like a
// synthesized statement.
func (t *Table[T]) Raw(sql string, params *Params, opts ...StatementOption) *Statement {
	o := newStatementOption(opts)
	st := t.newStatement(sql, nil, o)
	st.AddParams(params)
	return st
}

func writeWhere(sb *strings.Builder, where string) {
	where = strings.TrimSpace(where)
	if where == "" {
		return
	}
	sb.WriteString(" where (")
	sb.WriteString(where)
	sb.WriteString(")")
}

func trimOrderBy(clause string) string {
	clause = strings.TrimSpace(clause)
	if loc := orderByToken.FindStringIndex(clause); loc != nil {
		clause = strings.TrimSpace(clause[loc[1]:])
	}
	return clause
}
