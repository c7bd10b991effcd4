package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx/reflectx"
)

// deleteBatchSize bounds the number of keys bound into a single delete statement.
const deleteBatchSize = 125

// Repository is key based CRUD over the record type T built on Table.
type Repository[K comparable, T any] interface {
	Get(ctx context.Context, id K, options ...QueryOption) (*T, error)
	Select(ctx context.Context, filter map[string]any, options ...QueryOption) ([]T, error)
	Page(ctx context.Context, filter map[string]any, pageIndex, pageSize int, sort []string, options ...QueryOption) (*Collection[T], error)
	Insert(ctx context.Context, value T, options ...QueryOption) (K, error)
	InsertAll(ctx context.Context, values []T, options ...QueryOption) ([]K, error)
	Update(ctx context.Context, id K, keyvals map[string]any, options ...QueryOption) error
	Replace(ctx context.Context, value T, options ...QueryOption) error
	Delete(ctx context.Context, ids []K, options ...QueryOption) error
	SQLQuery(ctx context.Context, sqlStr string, params *Params, options ...QueryOption) ([]T, error)
	SQLExec(ctx context.Context, sqlStr string, params *Params, options ...QueryOption) (int64, error)
	Begin(ctx context.Context) (*Session, error)
	Table() *Table[T]
}

type repository[K comparable, T any] struct {
	db      *DB
	table   *Table[T]
	key     ColumnDescriptor
	sortMap map[string]string
}

// CreateRepository prepares a repository for T on db. T must declare a primary key.
func CreateRepository[K comparable, T any](ctx context.Context, db *DB, options ...RepositoryOption) (Repository[K, T], error) {
	opt := &repositoryOption{}
	for _, op := range options {
		op(opt)
	}

	tableOpts := opt.tableOpts
	if opt.name != "" {
		tableOpts = append(tableOpts, SelectSource(opt.name), InsertSource(opt.name), UpdateSource(opt.name), DeleteSource(opt.name))
	}

	table, err := TableOf[T](db, tableOpts...)
	if err != nil {
		return nil, err
	}

	meta := table.Metadata()
	key, ok := meta.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, meta.Type)
	}

	sortMap := make(map[string]string)
	for _, c := range meta.columns {
		sortMap[strings.ToLower(c.Column)] = c.Column
		sortMap[strings.ToLower(c.Field)] = c.Column
	}

	repo := &repository[K, T]{
		db:      db,
		table:   table,
		key:     key,
		sortMap: sortMap,
	}

	if opt.initValues != nil {
		values, ok := opt.initValues.([]T)
		if !ok {
			return nil, fmt.Errorf("store: init values must be %T, got %T", []T{}, opt.initValues)
		}
		if _, err := repo.InsertAll(ctx, values); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func (r *repository[K, T]) Table() *Table[T] {
	return r.table
}

func (r *repository[K, T]) executor(options []QueryOption) Executor {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}
	if opt.session != nil {
		return opt.session
	}
	return r.db
}

// unitOfWork runs fn inside the caller's session or a new transaction of its own.
func (r *repository[K, T]) unitOfWork(ctx context.Context, options []QueryOption, fn func(ex Executor) error) error {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}
	if opt.session != nil {
		return fn(opt.session)
	}

	sess := r.db.Session()
	defer sess.Close()

	tx, err := sess.Begin(ctx)
	if err != nil {
		return wrapError(err)
	}
	if err := fn(sess); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository[K, T]) keyCondition() string {
	return fmt.Sprintf("%s = %s", r.key.Column, r.db.Dialect().Placeholder(r.key.Column))
}

func (r *repository[K, T]) Get(ctx context.Context, id K, options ...QueryOption) (*T, error) {
	st, err := r.table.Select(Where(r.keyCondition()), WithParams(NewParams().Arg(r.key.Column, id)))
	if err != nil {
		return nil, err
	}

	item, err := Fetch[T](ctx, r.executor(options), st)
	if err != nil {
		return nil, wrapError(err)
	}
	if item == nil {
		return nil, wrapError(sql.ErrNoRows)
	}
	return item, nil
}

func (r *repository[K, T]) filterStatement(filter map[string]any, opts ...StatementOption) (*Statement, error) {
	where, params, err := ParseFilterMapIntoWhereClause(filter, r.db.Dialect())
	if err != nil {
		return nil, err
	}
	return r.table.Select(append([]StatementOption{Where(where), WithParams(params)}, opts...)...)
}

func (r *repository[K, T]) Select(ctx context.Context, filter map[string]any, options ...QueryOption) ([]T, error) {
	st, err := r.filterStatement(filter)
	if err != nil {
		return nil, err
	}

	items, err := FetchAll[T](ctx, r.executor(options), st)
	return items, wrapError(err)
}

// Page returns page pageIndex of the records matching filter, ordered by sort keys
// ("+field", "-field"), the table default order or the primary key.
func (r *repository[K, T]) Page(ctx context.Context, filter map[string]any, pageIndex, pageSize int, sort []string, options ...QueryOption) (*Collection[T], error) {
	orderBy := MakeSortClause(sort, r.sortMap)
	if orderBy == "" && r.table.Metadata().Table.DefaultOrderBy == "" {
		orderBy = r.key.Column
	}

	st, err := r.filterStatement(filter, OrderBy(orderBy))
	if err != nil {
		return nil, err
	}
	if err := st.Paginate(pageIndex, pageSize); err != nil {
		return nil, err
	}

	items, err := FetchCollection[T](ctx, r.executor(options), st)
	return items, wrapError(err)
}

func (r *repository[K, T]) Insert(ctx context.Context, value T, options ...QueryOption) (K, error) {
	return r.insert(ctx, r.executor(options), value)
}

func (r *repository[K, T]) insert(ctx context.Context, ex Executor, value T) (K, error) {
	var zeroKey K

	if r.key.Kind == AutoGeneratedPrimaryKey {
		st, err := r.table.Insert(value, WithIdentity())
		if err != nil {
			return zeroKey, err
		}
		id, err := ExecuteInsert(ctx, ex, st)
		if err != nil {
			return zeroKey, wrapError(err)
		}
		return convertKey[K](id)
	}

	st, err := r.table.Insert(value)
	if err != nil {
		return zeroKey, err
	}
	if _, err := Execute(ctx, ex, st); err != nil {
		return zeroKey, wrapError(err)
	}
	return r.keyOf(value)
}

func (r *repository[K, T]) InsertAll(ctx context.Context, values []T, options ...QueryOption) ([]K, error) {
	keys := make([]K, 0, len(values))
	err := r.unitOfWork(ctx, options, func(ex Executor) error {
		for _, v := range values {
			k, err := r.insert(ctx, ex, v)
			if err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Update sets the columns named by keyvals, by field or column name, on the record with
// key id.
func (r *repository[K, T]) Update(ctx context.Context, id K, keyvals map[string]any, options ...QueryOption) error {
	meta := r.table.Metadata()
	names := make([]string, 0, len(keyvals))
	for k := range keyvals {
		names = append(names, k)
	}
	sort.Strings(names)

	columns := make(map[string]string, len(names))
	params := NewParams()
	for i, name := range names {
		col, ok := meta.Column(name)
		if !ok {
			if col, ok = meta.ColumnByName(name); !ok {
				return fmt.Errorf("store: %s has no column %s", meta.Type, name)
			}
		}
		if !col.InUpdate {
			return fmt.Errorf("store: column %s of %s is not updatable", col.Column, meta.Type)
		}

		param := fmt.Sprintf("u%d", i)
		v, err := ValueOf(keyvals[name])
		if err != nil {
			return fmt.Errorf("store: column %s: %w", col.Column, err)
		}
		columns[col.Column] = param
		params.Set(param, v)
	}
	params.Arg(r.key.Column, id)

	st, err := r.table.UpdateColumns(columns, r.keyCondition(), params)
	if err != nil {
		return err
	}

	n, err := Execute(ctx, r.executor(options), st)
	if err != nil {
		return wrapError(err)
	}
	if n == 0 {
		return wrapError(sql.ErrNoRows)
	}
	return nil
}

// Replace writes every updatable column of value to the record with the same key.
func (r *repository[K, T]) Replace(ctx context.Context, value T, options ...QueryOption) error {
	id, err := r.keyOf(value)
	if err != nil {
		return err
	}

	st, err := r.table.Update(value, r.keyCondition(), WithParams(NewParams().Arg(r.key.Column, id)))
	if err != nil {
		return err
	}

	n, err := Execute(ctx, r.executor(options), st)
	if err != nil {
		return wrapError(err)
	}
	if n == 0 {
		return wrapError(sql.ErrNoRows)
	}
	return nil
}

// Delete removes the records with the given keys in batches of deleteBatchSize.
func (r *repository[K, T]) Delete(ctx context.Context, ids []K, options ...QueryOption) error {
	if len(ids) == 0 {
		return nil
	}

	dialect := r.db.Dialect()
	return r.unitOfWork(ctx, options, func(ex Executor) error {
		for _, batch := range SplitBatch(ids, deleteBatchSize) {
			params := NewParams()
			phs := make([]string, len(batch))
			for i, id := range batch {
				name := fmt.Sprintf("k%d", i)
				params.Arg(name, id)
				phs[i] = dialect.Placeholder(name)
			}

			where := fmt.Sprintf("%s IN(%s)", r.key.Column, strings.Join(phs, ","))
			st, err := r.table.DeleteWhere(where, params)
			if err != nil {
				return err
			}
			if _, err := Execute(ctx, ex, st); err != nil {
				return wrapError(err)
			}
		}
		return nil
	})
}

func (r *repository[K, T]) SQLQuery(ctx context.Context, sqlStr string, params *Params, options ...QueryOption) ([]T, error) {
	items, err := FetchAll[T](ctx, r.executor(options), r.table.Raw(sqlStr, params))
	return items, wrapError(err)
}

func (r *repository[K, T]) SQLExec(ctx context.Context, sqlStr string, params *Params, options ...QueryOption) (int64, error) {
	n, err := Execute(ctx, r.executor(options), r.table.Raw(sqlStr, params))
	return n, wrapError(err)
}

// Begin opens a session with a started transaction. Pass it back with WithSession and
// finish it with Commit or Rollback, then Close.
func (r *repository[K, T]) Begin(ctx context.Context) (*Session, error) {
	sess := r.db.Session()
	if _, err := sess.Begin(ctx); err != nil {
		sess.Close()
		return nil, wrapError(err)
	}
	return sess, nil
}

func (r *repository[K, T]) keyOf(value T) (K, error) {
	var zeroKey K
	rv := reflect.Indirect(reflect.ValueOf(&value).Elem())
	if !rv.IsValid() || len(r.key.index) == 0 {
		return zeroKey, fmt.Errorf("%w: cannot read key of %T", ErrNoPrimaryKey, value)
	}

	kv := reflectx.FieldByIndexesReadOnly(rv, r.key.index)
	if k, ok := kv.Interface().(K); ok {
		return k, nil
	}
	kt := reflect.TypeOf(zeroKey)
	if kt != nil && kv.CanConvert(kt) {
		return kv.Convert(kt).Interface().(K), nil
	}
	return zeroKey, fmt.Errorf("store: key %s of %T is %s, not %T", r.key.Field, value, kv.Type(), zeroKey)
}

func convertKey[K comparable](id int64) (K, error) {
	var zeroKey K
	kt := reflect.TypeOf(zeroKey)
	if kt == nil {
		return zeroKey, fmt.Errorf("store: cannot convert identity to %T", zeroKey)
	}

	switch kt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return reflect.ValueOf(id).Convert(kt).Interface().(K), nil
	}
	return zeroKey, fmt.Errorf("store: cannot convert identity to %s", kt)
}
