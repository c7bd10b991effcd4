package store

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	tests := map[string]string{
		"":           SQLServer,
		"MSSQL":      SQLServer,
		"postgresql": Postgres,
		"pgx":        Postgres,
		"godror":     Oracle,
		"mysql":      MySQL,
		"sqlite3":    SQLite,
	}
	for name, want := range tests {
		d, err := DialectFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name(), name)
	}

	_, err := DialectFor("db2")
	assert.Error(t, err)
}

func TestDialectText(t *testing.T) {
	tests := []struct {
		d         Dialect
		ident     string
		holder    string
		page      string
		identity  string
		noKey     string
		procedure string
		bindType  int
		namedArgs bool
	}{
		{SQLServerDialect{}, "[Name]", "@Name", "offset 20 rows fetch next 10 rows only", "; select cast(scope_identity() as bigint)", "; select cast(scope_identity() as bigint)", "dbo.Refresh", sqlx.AT, true},
		{PostgresDialect{}, `"Name"`, ":Name", "offset 20 rows fetch next 10 rows only", ` returning "Id"`, "", "call dbo.Refresh(:a, :b)", sqlx.DOLLAR, false},
		{OracleDialect{}, `"NAME"`, ":Name", "offset 20 rows fetch next 10 rows only", "", "", "begin dbo.Refresh(:a, :b); end;", sqlx.NAMED, false},
		{MySQLDialect{}, "`Name`", ":Name", "limit 10 offset 20", "", "", "call dbo.Refresh(:a, :b)", sqlx.QUESTION, false},
		{SQLiteDialect{}, `"Name"`, ":Name", "limit 10 offset 20", ` returning "Id"`, "", "dbo.Refresh", sqlx.QUESTION, false},
	}

	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			assert.Equal(t, tt.ident, tt.d.QuoteIdent("Name"))
			assert.Equal(t, tt.holder, tt.d.Placeholder("Name"))
			assert.Equal(t, tt.page, tt.d.PaginationClause(20, 10))
			assert.Equal(t, tt.identity, tt.d.IdentityClause("Id"))
			assert.Equal(t, tt.noKey, tt.d.IdentityClause(""))
			assert.Equal(t, tt.procedure, tt.d.ProcedureCall("dbo.Refresh", []string{"a", "b"}))
			assert.Equal(t, tt.bindType, tt.d.BindType())
			assert.Equal(t, tt.namedArgs, tt.d.NamedArgs())
		})
	}
}

func TestDialectValidTime(t *testing.T) {
	old := time.Date(1700, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, SQLServerDialect{}.ValidTime(old))
	assert.False(t, SQLServerDialect{}.ValidTime(time.Time{}))
	assert.True(t, SQLServerDialect{}.ValidTime(now))
	assert.True(t, SQLServerDialect{}.ValidTime(time.Date(1753, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.True(t, MySQLDialect{}.ValidTime(old))
	assert.False(t, MySQLDialect{}.ValidTime(time.Date(999, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.False(t, PostgresDialect{}.ValidTime(time.Time{}))
	assert.True(t, PostgresDialect{}.ValidTime(old))
	assert.True(t, SQLiteDialect{}.ValidTime(time.Time{}))
}
