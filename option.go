package store

import (
	"log/slog"
	"time"
)

// Option configures a DB or a Table.
type Option func(o *options)

type options struct {
	dialect        Dialect
	registry       *Registry
	logger         *slog.Logger
	strict         bool
	count          CountStrategy
	slowThreshold  time.Duration
	commandTimeout time.Duration
	sources        map[StatementKind]string
}

func defaultOptions() options {
	return options{
		dialect:       SQLServerDialect{},
		registry:      DefaultRegistry,
		logger:        slog.Default(),
		count:         WindowCount{},
		slowThreshold: DefaultSlowThreshold,
	}
}

func (o options) apply(opts ...Option) options {
	sources := make(map[StatementKind]string, len(o.sources))
	for k, v := range o.sources {
		sources[k] = v
	}
	o.sources = sources

	for _, op := range opts {
		op(&o)
	}
	return o
}

func (o options) binder() *Binder {
	return NewBinder(o.dialect, o.logger, o.strict)
}

func WithDialect(d Dialect) Option {
	return func(o *options) {
		if d != nil {
			o.dialect = d
		}
	}
}

func WithRegistry(r *Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStrictBinding makes field coercion failures abort binding.
func WithStrictBinding(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

func WithCountStrategy(cs CountStrategy) Option {
	return func(o *options) {
		if cs != nil {
			o.count = cs
		}
	}
}

// WithSlowThreshold sets the duration above which statements are logged as slow.
// Zero disables slow statement detection.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowThreshold = d
	}
}

// WithDefaultTimeout bounds every statement that does not carry its own timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		o.commandTimeout = d
	}
}

// SelectSource overrides the table source of select statements, e.g. a view or a join.
func SelectSource(source string) Option {
	return withSource(SelectStatement, source)
}

func InsertSource(source string) Option {
	return withSource(InsertStatement, source)
}

func UpdateSource(source string) Option {
	return withSource(UpdateStatement, source)
}

func DeleteSource(source string) Option {
	return withSource(DeleteStatement, source)
}

func withSource(kind StatementKind, source string) Option {
	return func(o *options) {
		if o.sources == nil {
			o.sources = make(map[StatementKind]string)
		}
		o.sources[kind] = source
	}
}

// StatementOption tunes a single synthesized statement.
type StatementOption func(o *statementOption)

type statementOption struct {
	where     string
	orderBy   string
	only      []string
	exclude   []string
	prelude   string
	identity  bool
	params    *Params
	source    string
	paged     bool
	pageIndex int
	pageSize  int
}

func newStatementOption(opts []StatementOption) *statementOption {
	o := &statementOption{}
	for _, op := range opts {
		op(o)
	}
	return o
}

// Where sets the condition of the statement. It is embedded verbatim in parentheses.
func Where(cond string) StatementOption {
	return func(o *statementOption) {
		o.where = cond
	}
}

// OrderBy replaces the table's default order by clause.
func OrderBy(clause string) StatementOption {
	return func(o *statementOption) {
		o.orderBy = clause
	}
}

// Only restricts the statement to the named fields. Names unknown to the record type are
// selected verbatim.
func Only(fields ...string) StatementOption {
	return func(o *statementOption) {
		o.only = append(o.only, fields...)
	}
}

func Exclude(fields ...string) StatementOption {
	return func(o *statementOption) {
		o.exclude = append(o.exclude, fields...)
	}
}

// Prelude sets a statement executed ahead of the main one, sharing its parameters.
func Prelude(sql string) StatementOption {
	return func(o *statementOption) {
		o.prelude = sql
	}
}

// WithIdentity makes an insert return the generated key.
func WithIdentity() StatementOption {
	return func(o *statementOption) {
		o.identity = true
	}
}

// WithParams adds parameters on top of the ones bound from the record.
func WithParams(p *Params) StatementOption {
	return func(o *statementOption) {
		if o.params == nil {
			o.params = NewParams()
		}
		o.params.Merge(p)
	}
}

// From overrides the table source of this statement only.
func From(source string) StatementOption {
	return func(o *statementOption) {
		o.source = source
	}
}

// Page applies Statement.Paginate right after a select is built.
func Page(pageIndex, pageSize int) StatementOption {
	return func(o *statementOption) {
		o.paged = true
		o.pageIndex = pageIndex
		o.pageSize = pageSize
	}
}

type CommandType int

const (
	CommandText CommandType = iota
	CommandStoredProcedure
)

// ExecOption tunes a single execution.
type ExecOption func(o *execOption)

type execOption struct {
	timeout     time.Duration
	commandType CommandType
}

func newExecOption(defaultTimeout time.Duration, opts []ExecOption) *execOption {
	o := &execOption{timeout: defaultTimeout}
	for _, op := range opts {
		op(o)
	}
	return o
}

func WithCommandTimeout(d time.Duration) ExecOption {
	return func(o *execOption) {
		o.timeout = d
	}
}

// WithCommandType marks the statement text as a stored procedure name.
func WithCommandType(t CommandType) ExecOption {
	return func(o *execOption) {
		o.commandType = t
	}
}

type RepositoryOption func(o *repositoryOption)

type repositoryOption struct {
	initValues any
	name       string
	tableOpts  []Option
}

// InitWith inserts values ([]T) when the repository is created.
func InitWith(values any) RepositoryOption {
	return func(o *repositoryOption) {
		o.initValues = values
	}
}

// WithName overrides the table name of the record type.
func WithName(name string) RepositoryOption {
	return func(o *repositoryOption) {
		o.name = name
	}
}

func WithTableOptions(opts ...Option) RepositoryOption {
	return func(o *repositoryOption) {
		o.tableOpts = append(o.tableOpts, opts...)
	}
}

type QueryOption func(o *queryOption)

type queryOption struct {
	session *Session
}

// WithSession runs the repository call inside the unit of work of s.
func WithSession(s *Session) QueryOption {
	return func(o *queryOption) {
		o.session = s
	}
}
