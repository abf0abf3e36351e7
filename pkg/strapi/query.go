// Package strapi builds query strings in the Strapi REST dialect and decodes its
// response envelopes.
package strapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Filter operators understood by the remote API.
const (
	OpEq        = "$eq"
	OpContainsI = "$containsi"
)

type param struct {
	key   string
	value string
}

// Query accumulates query parameters in insertion order.
type Query struct {
	params  []param
	orGroup int
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{}
}

// Eq adds an equality filter on a dotted field path, e.g. "clinic.id".
func (q *Query) Eq(path string, value interface{}) *Query {
	q.add("filters"+bracket(path)+"["+OpEq+"]", fmt.Sprint(value))
	return q
}

// ContainsAny adds a case-insensitive contains clause per path, OR-combined.
// A blank term adds nothing.
func (q *Query) ContainsAny(paths []string, term string) *Query {
	term = strings.TrimSpace(term)
	if term == "" || len(paths) == 0 {
		return q
	}
	for _, path := range paths {
		key := fmt.Sprintf("filters[$or][%d]%s[%s]", q.orGroup, bracket(path), OpContainsI)
		q.add(key, term)
		q.orGroup++
	}
	return q
}

// Populate requests related entities. A single "*" populates everything.
func (q *Query) Populate(relations ...string) *Query {
	if len(relations) == 1 {
		q.add("populate", relations[0])
		return q
	}
	for i, rel := range relations {
		q.add(fmt.Sprintf("populate[%d]", i), rel)
	}
	return q
}

// PopulateFields populates a relation restricted to the given fields.
func (q *Query) PopulateFields(relation string, fields ...string) *Query {
	for i, field := range fields {
		q.add(fmt.Sprintf("populate%s[fields][%d]", bracket(relation), i), field)
	}
	return q
}

// Fields projects the returned attributes.
func (q *Query) Fields(fields ...string) *Query {
	for i, field := range fields {
		q.add(fmt.Sprintf("fields[%d]", i), field)
	}
	return q
}

// Page sets page-based pagination.
func (q *Query) Page(page, pageSize int) *Query {
	q.add("pagination[page]", strconv.Itoa(page))
	q.add("pagination[pageSize]", strconv.Itoa(pageSize))
	return q
}

// PageSize sets only the page size, used for unpaginated full listings.
func (q *Query) PageSize(pageSize int) *Query {
	q.add("pagination[pageSize]", strconv.Itoa(pageSize))
	return q
}

// Has reports whether a parameter with the given key was added.
func (q *Query) Has(key string) bool {
	for _, p := range q.params {
		if p.key == key {
			return true
		}
	}
	return false
}

// Get returns the first value for key.
func (q *Query) Get(key string) (string, bool) {
	for _, p := range q.params {
		if p.key == key {
			return p.value, true
		}
	}
	return "", false
}

// Encode renders the query without a leading "?". Keys keep literal brackets.
func (q *Query) Encode() string {
	if q == nil || len(q.params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(q.params))
	for _, p := range q.params {
		parts = append(parts, p.key+"="+url.QueryEscape(p.value))
	}
	return strings.Join(parts, "&")
}

// Path appends the encoded query to an endpoint path.
func (q *Query) Path(endpoint string) string {
	encoded := q.Encode()
	if encoded == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + encoded
}

func (q *Query) add(key, value string) {
	q.params = append(q.params, param{key: key, value: value})
}

func bracket(path string) string {
	var b strings.Builder
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(segment)
		b.WriteString("]")
	}
	return b.String()
}
