package strapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryScopeAndSearch(t *testing.T) {
	q := NewQuery().
		Populate("*").
		Eq("clinic.id", 7).
		ContainsAny([]string{"username", "email"}, "ana").
		Page(2, 10)

	assert.Equal(t,
		"populate=%2A&filters[clinic][id][$eq]=7"+
			"&filters[$or][0][username][$containsi]=ana"+
			"&filters[$or][1][email][$containsi]=ana"+
			"&pagination[page]=2&pagination[pageSize]=10",
		q.Encode())
}

func TestQueryBlankSearchKeepsScope(t *testing.T) {
	q := NewQuery().Eq("user.id", 3).ContainsAny([]string{"patient.username"}, "   ")

	assert.Equal(t, "filters[user][id][$eq]=3", q.Encode())
	assert.False(t, q.Has("filters[$or][0][patient][username][$containsi]"))
}

func TestQueryNestedPathsAndEscaping(t *testing.T) {
	q := NewQuery().ContainsAny([]string{"patient.username", "patient.email"}, "a&b c")

	v, ok := q.Get("filters[$or][0][patient][username][$containsi]")
	require.True(t, ok)
	assert.Equal(t, "a&b c", v)
	assert.Contains(t, q.Encode(), "filters[$or][1][patient][email][$containsi]=a%26b+c")
}

func TestQueryFieldsAndPopulateFields(t *testing.T) {
	q := NewQuery().Fields("id", "state").PopulateFields("patient", "id").PageSize(10000)

	assert.Equal(t, "fields[0]=id&fields[1]=state&populate[patient][fields][0]=id&pagination[pageSize]=10000", q.Encode())
}

func TestQueryPath(t *testing.T) {
	assert.Equal(t, "/users", NewQuery().Path("/users"))
	assert.Equal(t, "/users/me?populate=%2A", NewQuery().Populate("*").Path("/users/me"))
	assert.Equal(t, "/x?a=1&fields[0]=id", NewQuery().Fields("id").Path("/x?a=1"))
}
