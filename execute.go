package store

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/jmoiron/sqlx"
)

func registryOf(ex Executor) *Registry {
	if r, ok := ex.(interface{ Registry() *Registry }); ok {
		return r.Registry()
	}
	return DefaultRegistry
}

// runPrelude executes the prelude statement of st, discarding its result. It shares the
// parameters of st and, when ex is a Session, its connection and transaction.
func runPrelude(ctx context.Context, ex Executor, st *Statement, opts []ExecOption) error {
	if st.Prelude() == "" {
		return nil
	}
	_, err := ex.Exec(ctx, st.Prelude(), st.Params(), opts...)
	return err
}

func fetch[T any](ctx context.Context, ex Executor, st *Statement, limit int, opts []ExecOption) (items []T, reported int64, err error) {
	if err := runPrelude(ctx, ex, st, opts); err != nil {
		return nil, 0, err
	}

	plan := newScanPlan(registryOf(ex), reflect.TypeOf((*T)(nil)).Elem())
	multi := st.Paginated() && st.CountStrategy().MultiResult()

	err = ex.Query(ctx, st.SQL(), st.Params(), func(rows *sqlx.Rows) error {
		if multi {
			count, err := scanCount(rows)
			if err != nil {
				return err
			}
			reported = count
			if !rows.NextResultSet() {
				return nil
			}
		}

		var rowTotal int64
		items, rowTotal, err = scanRows[T](rows, plan, limit)
		if rowTotal > reported {
			reported = rowTotal
		}
		return err
	}, opts...)

	return items, reported, err
}

// Fetch runs st and returns its first row, nil when the statement yields none.
func Fetch[T any](ctx context.Context, ex Executor, st *Statement, opts ...ExecOption) (*T, error) {
	items, _, err := fetch[T](ctx, ex, st, 1, opts)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// FetchAll runs st and returns every row.
func FetchAll[T any](ctx context.Context, ex Executor, st *Statement, opts ...ExecOption) ([]T, error) {
	items, _, err := fetch[T](ctx, ex, st, 0, opts)
	return items, err
}

// FetchCollection runs st and returns its rows with the total match count. For a
// paginated statement the total is the larger of the rows read and the count reported
// by the statement; otherwise it is the number of rows read.
func FetchCollection[T any](ctx context.Context, ex Executor, st *Statement, opts ...ExecOption) (*Collection[T], error) {
	items, reported, err := fetch[T](ctx, ex, st, 0, opts)
	if err != nil {
		return nil, err
	}

	total := int64(len(items))
	if st.Paginated() && reported > total {
		total = reported
	}
	return &Collection[T]{Items: items, TotalRecordsCount: total}, nil
}

// ExecuteInsert runs an insert statement and returns the generated key when the statement
// was built WithIdentity, 0 otherwise.
func ExecuteInsert(ctx context.Context, ex Executor, st *Statement, opts ...ExecOption) (int64, error) {
	if err := runPrelude(ctx, ex, st, opts); err != nil {
		return 0, err
	}

	if !st.ExpectsIdentity() {
		_, err := ex.Exec(ctx, st.SQL(), st.Params(), opts...)
		return 0, err
	}

	if ex.Dialect().IdentityClause(st.identityColumn) == "" {
		res, err := ex.Exec(ctx, st.SQL(), st.Params(), opts...)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			// the driver cannot report keys
			return 0, nil
		}
		return id, nil
	}

	var id int64
	err := ex.Query(ctx, st.SQL(), st.Params(), scanIdentity(&id), opts...)
	return id, err
}

// Execute runs a statement and returns the number of affected rows.
func Execute(ctx context.Context, ex Executor, st *Statement, opts ...ExecOption) (int64, error) {
	if err := runPrelude(ctx, ex, st, opts); err != nil {
		return 0, err
	}

	res, err := ex.Exec(ctx, st.SQL(), st.Params(), opts...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// ExecuteScalar runs st and returns the first column of its first row. A missing row or
// a null value yields the zero value of V.
func ExecuteScalar[V any](ctx context.Context, ex Executor, st *Statement, opts ...ExecOption) (V, error) {
	var v sql.Null[V]
	if err := runPrelude(ctx, ex, st, opts); err != nil {
		return v.V, err
	}

	err := ex.QueryScalar(ctx, st.SQL(), st.Params(), &v, opts...)
	return v.V, err
}
