package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Executor runs finished statement text with its parameters. DB and Session implement it.
type Executor interface {
	Dialect() Dialect
	// Query hands the open result rows to fn and closes them once fn returns.
	Query(ctx context.Context, query string, params *Params, fn func(*sqlx.Rows) error, opts ...ExecOption) error
	QueryScalar(ctx context.Context, query string, params *Params, dest any, opts ...ExecOption) error
	Exec(ctx context.Context, query string, params *Params, opts ...ExecOption) (sql.Result, error)
	// QueryMulti reads every result set the statement produces.
	QueryMulti(ctx context.Context, query string, params *Params, opts ...ExecOption) ([][]map[string]any, error)
}

type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// queryer is the part of *sqlx.DB, *sqlx.Conn and *sqlx.Tx used to run statements.
type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB wraps a connection pool with the dialect, registry and logging of this package.
type DB struct {
	db    *sqlx.DB
	opts  options
	stats *QueryStats
}

func NewDB(db *sqlx.DB, opts ...Option) *DB {
	return &DB{
		db:    db,
		opts:  defaultOptions().apply(opts...),
		stats: &QueryStats{},
	}
}

func (d *DB) DB() *sqlx.DB            { return d.db }
func (d *DB) Dialect() Dialect        { return d.opts.dialect }
func (d *DB) Registry() *Registry     { return d.opts.registry }
func (d *DB) Logger() *slog.Logger    { return d.opts.logger }
func (d *DB) QueryStats() *QueryStats { return d.stats }

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Session starts a unit of work. Its connection is acquired on first use and held until
// Close.
func (d *DB) Session() *Session {
	return &Session{db: d}
}

func (d *DB) Query(ctx context.Context, query string, params *Params, fn func(*sqlx.Rows) error, opts ...ExecOption) error {
	return d.query(ctx, d.db, query, params, fn, opts)
}

func (d *DB) QueryScalar(ctx context.Context, query string, params *Params, dest any, opts ...ExecOption) error {
	return d.query(ctx, d.db, query, params, scalarInto(dest), opts)
}

func (d *DB) Exec(ctx context.Context, query string, params *Params, opts ...ExecOption) (sql.Result, error) {
	return d.exec(ctx, d.db, query, params, opts)
}

func (d *DB) QueryMulti(ctx context.Context, query string, params *Params, opts ...ExecOption) ([][]map[string]any, error) {
	var sets [][]map[string]any
	err := d.query(ctx, d.db, query, params, multiInto(&sets), opts)
	return sets, err
}

// compile turns named parameter text into what the driver accepts.
func (d *DB) compile(query string, params *Params, o *execOption) (string, []any, error) {
	dialect := d.opts.dialect
	if o.commandType == CommandStoredProcedure {
		query = dialect.ProcedureCall(query, params.Names())
	}

	if dialect.NamedArgs() {
		return query, params.NamedArgs(), nil
	}

	q, args, err := sqlx.Named(query, params.Map())
	if err != nil {
		return "", nil, fmt.Errorf("store: compile statement: %w", err)
	}
	return sqlx.Rebind(dialect.BindType(), q), args, nil
}

func (d *DB) query(ctx context.Context, q queryer, query string, params *Params, fn func(*sqlx.Rows) error, opts []ExecOption) error {
	return d.run(ctx, query, params, false, opts, func(ctx context.Context, text string, args []any) error {
		rows, err := q.QueryxContext(ctx, text, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		if err := fn(rows); err != nil {
			return err
		}
		return rows.Err()
	})
}

func (d *DB) exec(ctx context.Context, q queryer, query string, params *Params, opts []ExecOption) (sql.Result, error) {
	var res sql.Result
	err := d.run(ctx, query, params, true, opts, func(ctx context.Context, text string, args []any) (err error) {
		res, err = q.ExecContext(ctx, text, args...)
		return err
	})
	return res, err
}

func (d *DB) run(ctx context.Context, query string, params *Params, isExec bool, opts []ExecOption, fn func(context.Context, string, []any) error) error {
	o := newExecOption(d.opts.commandTimeout, opts)
	text, args, err := d.compile(query, params, o)
	if err != nil {
		return err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	log := d.opts.logger
	start := time.Now()
	err = fn(ctx, text, args)
	elapsed := time.Since(start)

	slow := d.stats.record(isExec, elapsed, d.opts.slowThreshold, err)
	if err != nil {
		log.ErrorContext(ctx, "statement failed", slog.String("query", query), slog.Any("params", params), slog.Duration("elapsed", elapsed), slog.Any("error", err))
		return &ExecutionError{Query: query, Params: params, Elapsed: elapsed, Err: err}
	}

	if slow {
		log.WarnContext(ctx, "slow statement", slog.String("query", query), slog.Any("params", params), slog.Duration("elapsed", elapsed), slog.Duration("threshold", d.opts.slowThreshold))
	} else {
		log.DebugContext(ctx, "statement executed", slog.String("query", query), slog.Any("params", params), slog.Duration("elapsed", elapsed))
	}
	return nil
}

// scalarInto scans the first column of the first row into dest. dest is left untouched
// when there is no row.
func scalarInto(dest any) func(*sqlx.Rows) error {
	return func(rows *sqlx.Rows) error {
		if !rows.Next() {
			return rows.Err()
		}
		return rows.Scan(dest)
	}
}

func multiInto(sets *[][]map[string]any) func(*sqlx.Rows) error {
	return func(rows *sqlx.Rows) error {
		for {
			var set []map[string]any
			for rows.Next() {
				row := make(map[string]any)
				if err := rows.MapScan(row); err != nil {
					return err
				}
				set = append(set, row)
			}
			*sets = append(*sets, set)
			if !rows.NextResultSet() {
				return nil
			}
		}
	}
}

// Session is a unit of work: every statement it runs shares one connection and, after
// Begin, one transaction. A Session must not be used by concurrent units of work.
type Session struct {
	db     *DB
	mu     sync.Mutex
	conn   *sqlx.Conn
	tx     *sqlx.Tx
	closed bool
}

var ErrSessionClosed = errors.New("store: session is closed")

func (s *Session) Dialect() Dialect { return s.db.Dialect() }
func (s *Session) DB() *DB          { return s.db }

func (s *Session) Registry() *Registry {
	return s.db.Registry()
}

// InTransaction reports whether Begin was called without a matching Commit or Rollback.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

func (s *Session) queryer(ctx context.Context) (queryer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	if s.conn == nil {
		conn, err := s.db.db.Connx(ctx)
		if err != nil {
			return nil, err
		}
		s.conn = conn
	}
	return s.conn, nil
}

// Begin starts the session transaction. The returned Transaction is the session itself.
func (s *Session) Begin(ctx context.Context, opts ...*sql.TxOptions) (Transaction, error) {
	if _, err := s.queryer(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return nil, errors.New("store: session transaction already started")
	}

	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	tx, err := s.conn.BeginTxx(ctx, txOpts)
	if err != nil {
		return nil, err
	}
	s.tx = tx
	return s, nil
}

func (s *Session) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return sql.ErrTxDone
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

func (s *Session) Rollback(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return sql.ErrTxDone
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

// Close rolls back a pending transaction and releases the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		s.tx = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		s.conn = nil
	}
	s.closed = true
	return errors.Join(errs...)
}

func (s *Session) Query(ctx context.Context, query string, params *Params, fn func(*sqlx.Rows) error, opts ...ExecOption) error {
	q, err := s.queryer(ctx)
	if err != nil {
		return err
	}
	return s.db.query(ctx, q, query, params, fn, opts)
}

func (s *Session) QueryScalar(ctx context.Context, query string, params *Params, dest any, opts ...ExecOption) error {
	return s.Query(ctx, query, params, scalarInto(dest), opts...)
}

func (s *Session) Exec(ctx context.Context, query string, params *Params, opts ...ExecOption) (sql.Result, error) {
	q, err := s.queryer(ctx)
	if err != nil {
		return nil, err
	}
	return s.db.exec(ctx, q, query, params, opts)
}

func (s *Session) QueryMulti(ctx context.Context, query string, params *Params, opts ...ExecOption) ([][]map[string]any, error) {
	var sets [][]map[string]any
	err := s.Query(ctx, query, params, multiInto(&sets), opts...)
	return sets, err
}
