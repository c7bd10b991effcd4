package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerMeta(t *testing.T) *TypeMetadata {
	t.Helper()
	meta, err := MetadataOf[Customer]()
	require.NoError(t, err)
	return meta
}

func TestResolveColumnsByKind(t *testing.T) {
	meta := customerMeta(t)

	tests := []struct {
		kind StatementKind
		want []string
	}{
		{SelectStatement, []string{"Id", "Name", "CountryId", "Status", "BirthDate", "Total", "Email"}},
		{InsertStatement, []string{"Name", "CountryId", "Status", "BirthDate", "Email"}},
		{UpdateStatement, []string{"Name", "CountryId", "Status", "BirthDate", "Email"}},
		{DeleteStatement, []string{"Id", "Name", "CountryId", "Status", "BirthDate", "Total", "Email"}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			set := ResolveColumns(meta, tt.kind, nil, nil)
			assert.Equal(t, tt.want, set.Columns())
			assert.Equal(t, set, ResolveColumns(meta, tt.kind, nil, nil))
		})
	}
}

func TestResolveColumnsOnlyAndExclude(t *testing.T) {
	meta := customerMeta(t)

	set := ResolveColumns(meta, SelectStatement, []string{"Email", "Name", "Born"}, nil)
	assert.Equal(t, []string{"Name", "Born", "Email"}, set.Keys())

	set = ResolveColumns(meta, SelectStatement, nil, []string{"Total", "ID"})
	assert.Equal(t, []string{"Name", "CountryID", "Status", "Born", "Email"}, set.Keys())

	set = ResolveColumns(meta, SelectStatement, []string{"Name", "Email"}, []string{"Email"})
	assert.Equal(t, []string{"Name"}, set.Keys())

	set = ResolveColumns(meta, InsertStatement, []string{"ID", "Name"}, nil)
	assert.Equal(t, []string{"Name"}, set.Declared().Keys())

	// table exclusions apply even when the field is asked for explicitly
	set = ResolveColumns(meta, SelectStatement, []string{"Secret"}, nil)
	assert.Empty(t, set.Declared())
}

func TestResolveColumnsAdHoc(t *testing.T) {
	meta := customerMeta(t)

	set := ResolveColumns(meta, SelectStatement, []string{"Name", "count(*) as Orders", " "}, nil)
	require.Len(t, set, 2)

	assert.Equal(t, "Name", set[0].Key)
	assert.False(t, set[0].AdHoc())

	assert.True(t, set[1].AdHoc())
	assert.Equal(t, "count(*) as Orders", set[1].Column)
	_, err := uuid.Parse(set[1].Key)
	assert.NoError(t, err)

	ref, ok := set.Lookup(set[1].Key)
	require.True(t, ok)
	assert.Equal(t, set[1], ref)
	assert.Len(t, set.Declared(), 1)
}
