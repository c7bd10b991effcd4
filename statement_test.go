package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginateWindowCount(t *testing.T) {
	st := NewStatement(nil, "select a, b from T order by a", nil)

	require.NoError(t, st.Paginate(2, 10))
	assert.True(t, st.Paginated())
	assert.Equal(t, "select count(*) over() as TotalRecordsCount, a, b from T order by a offset 20 rows fetch next 10 rows only", st.SQL())

	// applying a page again starts from the unpaged text
	require.NoError(t, st.Paginate(0, 5))
	assert.Equal(t, "select count(*) over() as TotalRecordsCount, a, b from T order by a offset 0 rows fetch next 5 rows only", st.SQL())
}

func TestPaginateOrderByOverride(t *testing.T) {
	st := NewStatement(SQLiteDialect{}, "select a, b from T where x = 1 order by a;", nil)

	require.NoError(t, st.Paginate(1, 10, "b desc", " ", "a"))
	assert.Equal(t, "select count(*) over() as TotalRecordsCount, a, b from T where x = 1 order by b desc, a limit 10 offset 10", st.SQL())
}

func TestPaginateRequiresOrderBy(t *testing.T) {
	st := NewStatement(nil, "select a from T", nil)

	err := st.Paginate(0, 10)
	require.ErrorIs(t, err, ErrInvalidPagination)
	assert.False(t, st.Paginated())
	assert.Equal(t, "select a from T", st.SQL())

	require.NoError(t, st.Paginate(0, 10, "a"))
	assert.True(t, st.Paginated())
}

func TestPaginateInactive(t *testing.T) {
	st := NewStatement(nil, "select a from T order by a", nil)
	require.NoError(t, st.Paginate(3, 10))
	require.True(t, st.Paginated())

	require.NoError(t, st.Paginate(3, 0))
	assert.False(t, st.Paginated())
	assert.Equal(t, "select a from T order by a", st.SQL())

	require.NoError(t, st.Paginate(-1, 10, "b"))
	assert.False(t, st.Paginated())
	assert.Equal(t, "select a from T order by b", st.SQL())

	// no order by needed when no page is requested
	plain := NewStatement(nil, "select a from T", nil)
	require.NoError(t, plain.Paginate(0, 0))
	assert.Equal(t, "select a from T", plain.SQL())
}

func TestPaginateSetQuantifier(t *testing.T) {
	st := NewStatement(nil, "select distinct a from T order by a", nil)
	require.NoError(t, st.Paginate(0, 10))
	assert.Equal(t, "select count(*) over() as TotalRecordsCount, q.* from (select distinct a from T) q order by a offset 0 rows fetch next 10 rows only", st.SQL())

	st = NewStatement(nil, "SELECT TOP (50) a, b from T order by b", nil)
	require.NoError(t, st.Paginate(1, 10))
	assert.Equal(t, "select count(*) over() as TotalRecordsCount, q.* from (SELECT TOP (50) a, b from T) q order by b offset 10 rows fetch next 10 rows only", st.SQL())

	st = NewStatement(nil, "select all a from T order by a", nil)
	require.NoError(t, st.Paginate(0, 10))
	assert.Equal(t, "select all count(*) over() as TotalRecordsCount, a from T order by a offset 0 rows fetch next 10 rows only", st.SQL())

	// a column merely named like a quantifier is not one
	st = NewStatement(nil, "select distinctive from T order by distinctive", nil)
	require.NoError(t, st.Paginate(0, 10))
	assert.Equal(t, "select count(*) over() as TotalRecordsCount, distinctive from T order by distinctive offset 0 rows fetch next 10 rows only", st.SQL())
}

func TestPaginateOffsetOverflow(t *testing.T) {
	st := NewStatement(nil, "select a from T order by a", nil)

	err := st.Paginate(math.MaxInt/2, 10)
	require.ErrorIs(t, err, ErrInvalidPagination)
	assert.False(t, st.Paginated())
	assert.Equal(t, "select a from T order by a", st.SQL())

	require.NoError(t, st.Paginate(math.MaxInt/10, 10))
	assert.True(t, st.Paginated())
}

func TestPaginateNestedOrderBy(t *testing.T) {
	sql := "select a, (select top 1 b from U order by b) as b from T where c = 'order by x' order by a"
	st := NewStatement(nil, sql, nil)

	require.NoError(t, st.Paginate(0, 10, "c"))
	assert.Equal(t,
		"select count(*) over() as TotalRecordsCount, a, (select top 1 b from U order by b) as b from T where c = 'order by x' order by c offset 0 rows fetch next 10 rows only",
		st.SQL())

	inner := NewStatement(nil, "select a from (select a from T order by a) x", nil)
	require.ErrorIs(t, inner.Paginate(0, 10), ErrInvalidPagination)
}

func TestPaginateResultSetCount(t *testing.T) {
	st := NewStatement(nil, "select a from T order by a", nil).WithCountStrategy(ResultSetCount{})

	require.NoError(t, st.Paginate(1, 25))
	assert.True(t, st.CountStrategy().MultiResult())
	assert.Equal(t, "select count(*) from (select a from T) resultSet; select a from T order by a offset 25 rows fetch next 25 rows only", st.SQL())
}

func TestPaginateSelectColumns(t *testing.T) {
	st := NewStatement(nil, "select a, b from T order by a", nil)
	st.setSelectColumns([]string{"a", "b"})

	require.NoError(t, st.Paginate(0, 10))
	assert.Equal(t, []string{"a", "b", TotalRecordsCount}, st.SelectColumns())

	require.NoError(t, st.Paginate(1, 10))
	assert.Equal(t, []string{"a", "b", TotalRecordsCount}, st.SelectColumns())

	require.NoError(t, st.Paginate(0, 0))
	assert.Equal(t, []string{"a", "b"}, st.SelectColumns())
}

func TestStatementString(t *testing.T) {
	st := NewStatement(nil, "select 1", nil).SetPrelude(" set nocount on ")
	assert.Equal(t, "set nocount on", st.Prelude())
	assert.Equal(t, "set nocount on; select 1", st.String())

	st.Arg("a", 1).AddParams(NewParams().Set("b", Text("x")))
	assert.Equal(t, []string{"a", "b"}, st.Params().Names())

	st.SetParams(nil)
	assert.Zero(t, st.Params().Len())
}

func TestCountStrategyFor(t *testing.T) {
	cs, err := CountStrategyFor("")
	require.NoError(t, err)
	assert.Equal(t, WindowCount{}, cs)

	cs, err = CountStrategyFor("Result_Set")
	require.NoError(t, err)
	assert.Equal(t, ResultSetCount{}, cs)

	_, err = CountStrategyFor("cte")
	assert.Error(t, err)
}

func TestFindTopLevel(t *testing.T) {
	tests := []struct {
		sql  string
		last bool
		want int
	}{
		{"select a from T order by a", true, 16},
		{"select [order by] from T", true, -1},
		{"select a from T reorder by a", true, -1},
		{"select a from T order  by a order by b", true, 28},
		{"select a from T order  by a order by b", false, 16},
		{`select "order by" from T`, true, -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, findTopLevel(tt.sql, orderByToken, tt.last), tt.sql)
	}
}
