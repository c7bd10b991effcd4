package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Dialect names.
const (
	SQLServer = "sqlserver"
	Postgres  = "postgres"
	Oracle    = "oracle"
	MySQL     = "mysql"
	SQLite    = "sqlite"
)

// Dialect holds every backend specific piece of statement text. Pagination and identity
// return are the main injection points.
type Dialect interface {
	Name() string
	// Placeholder renders the named parameter marker used inside statement text.
	Placeholder(name string) string
	QuoteIdent(name string) string
	// PaginationClause restricts a result set to limit rows after offset rows.
	PaginationClause(offset, limit int) string
	// IdentityClause is appended to an insert to return the generated key. keyColumn is
	// empty when the record type declares no auto generated key. An empty result means
	// the key is taken from sql.Result.LastInsertId.
	IdentityClause(keyColumn string) string
	// ValidTime reports whether t is representable by the backend's date types.
	ValidTime(t time.Time) bool
	// ProcedureCall renders a stored procedure invocation.
	ProcedureCall(name string, params []string) string
	// BindType is the sqlx bind type for positional rewriting of ":name" markers.
	BindType() int
	// NamedArgs is true when the driver consumes sql.NamedArg values directly.
	NamedArgs() bool
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SQLServer, "mssql":
		return SQLServerDialect{}, nil
	case Postgres, "postgresql", "pgx":
		return PostgresDialect{}, nil
	case Oracle, "godror", "ora":
		return OracleDialect{}, nil
	case MySQL:
		return MySQLDialect{}, nil
	case SQLite, "sqlite3":
		return SQLiteDialect{}, nil
	}
	return nil, fmt.Errorf("store: unknown dialect %q", name)
}

func offsetFetch(offset, limit int) string {
	return fmt.Sprintf("offset %d rows fetch next %d rows only", offset, limit)
}

func limitOffset(offset, limit int) string {
	return fmt.Sprintf("limit %d offset %d", limit, offset)
}

func colonPlaceholder(name string) string {
	return ":" + name
}

func colonCall(name string, params []string) string {
	return fmt.Sprintf("call %s(%s)", name, strings.Join(sliceMap(params, colonPlaceholder), ", "))
}

var (
	sqlServerMinTime = time.Date(1753, time.January, 1, 0, 0, 0, 0, time.UTC)
	sqlServerMaxTime = time.Date(9999, time.December, 31, 23, 59, 59, 997000000, time.UTC)
	mysqlMinTime     = time.Date(1000, time.January, 1, 0, 0, 0, 0, time.UTC)
	mysqlMaxTime     = time.Date(9999, time.December, 31, 23, 59, 59, 999999000, time.UTC)
)

func timeWithin(t, lo, hi time.Time) bool {
	t = t.UTC()
	return !t.Before(lo) && !t.After(hi)
}

// SQLServerDialect is the default dialect.
type SQLServerDialect struct{}

func (SQLServerDialect) Name() string                     { return SQLServer }
func (SQLServerDialect) Placeholder(name string) string   { return "@" + name }
func (SQLServerDialect) QuoteIdent(name string) string    { return "[" + name + "]" }
func (SQLServerDialect) PaginationClause(o, l int) string { return offsetFetch(o, l) }
func (SQLServerDialect) BindType() int                    { return sqlx.AT }
func (SQLServerDialect) NamedArgs() bool                  { return true }

func (SQLServerDialect) IdentityClause(string) string {
	return "; select cast(scope_identity() as bigint)"
}

func (SQLServerDialect) ValidTime(t time.Time) bool {
	return timeWithin(t, sqlServerMinTime, sqlServerMaxTime)
}

// ProcedureCall returns the bare name; the driver binds named args to the procedure.
func (SQLServerDialect) ProcedureCall(name string, _ []string) string {
	return name
}

type PostgresDialect struct{}

func (PostgresDialect) Name() string                     { return Postgres }
func (PostgresDialect) Placeholder(name string) string   { return colonPlaceholder(name) }
func (PostgresDialect) QuoteIdent(name string) string    { return `"` + name + `"` }
func (PostgresDialect) PaginationClause(o, l int) string { return offsetFetch(o, l) }
func (PostgresDialect) ValidTime(t time.Time) bool       { return !t.IsZero() }
func (PostgresDialect) BindType() int                    { return sqlx.DOLLAR }
func (PostgresDialect) NamedArgs() bool                  { return false }
func (PostgresDialect) ProcedureCall(name string, params []string) string {
	return colonCall(name, params)
}
func (d PostgresDialect) IdentityClause(keyColumn string) string {
	// pgx refuses a second command next to bound parameters
	if keyColumn == "" {
		return ""
	}
	return " returning " + d.QuoteIdent(keyColumn)
}

type OracleDialect struct{}

func (OracleDialect) Name() string                     { return Oracle }
func (OracleDialect) Placeholder(name string) string   { return colonPlaceholder(name) }
func (OracleDialect) QuoteIdent(name string) string    { return `"` + strings.ToUpper(name) + `"` }
func (OracleDialect) PaginationClause(o, l int) string { return offsetFetch(o, l) }
func (OracleDialect) IdentityClause(string) string     { return "" }
func (OracleDialect) ValidTime(t time.Time) bool       { return !t.IsZero() && t.Year() <= 9999 }
func (OracleDialect) BindType() int                    { return sqlx.NAMED }
func (OracleDialect) NamedArgs() bool                  { return false }
func (OracleDialect) ProcedureCall(name string, params []string) string {
	return fmt.Sprintf("begin %s(%s); end;", name, strings.Join(sliceMap(params, colonPlaceholder), ", "))
}

type MySQLDialect struct{}

func (MySQLDialect) Name() string                     { return MySQL }
func (MySQLDialect) Placeholder(name string) string   { return colonPlaceholder(name) }
func (MySQLDialect) QuoteIdent(name string) string    { return "`" + name + "`" }
func (MySQLDialect) PaginationClause(o, l int) string { return limitOffset(o, l) }
func (MySQLDialect) IdentityClause(string) string     { return "" }
func (MySQLDialect) ValidTime(t time.Time) bool       { return timeWithin(t, mysqlMinTime, mysqlMaxTime) }
func (MySQLDialect) BindType() int                    { return sqlx.QUESTION }
func (MySQLDialect) NamedArgs() bool                  { return false }
func (MySQLDialect) ProcedureCall(name string, params []string) string {
	return colonCall(name, params)
}

type SQLiteDialect struct{}

func (SQLiteDialect) Name() string                     { return SQLite }
func (SQLiteDialect) Placeholder(name string) string   { return colonPlaceholder(name) }
func (SQLiteDialect) QuoteIdent(name string) string    { return `"` + name + `"` }
func (SQLiteDialect) PaginationClause(o, l int) string { return limitOffset(o, l) }
func (SQLiteDialect) ValidTime(time.Time) bool         { return true }
func (SQLiteDialect) BindType() int                    { return sqlx.QUESTION }
func (SQLiteDialect) NamedArgs() bool                  { return false }
func (SQLiteDialect) ProcedureCall(name string, _ []string) string {
	return name
}
func (d SQLiteDialect) IdentityClause(keyColumn string) string {
	if keyColumn == "" {
		return ""
	}
	return " returning " + d.QuoteIdent(keyColumn)
}
