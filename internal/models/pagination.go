package models

// PageRequest asks a list endpoint for one page of records.
type PageRequest struct {
	Page     int
	PageSize int
	Search   string
}

// Normalize clamps the page to >= 1 and applies the default size.
func (r PageRequest) Normalize(defaultSize int) PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = defaultSize
	}
	return r
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	PageCount  int `json:"page_count"`
	TotalCount int `json:"total_count"`
}

// PageResult is one fetched page, replaced wholesale on every fetch.
type PageResult[T any] struct {
	Records    []T        `json:"records"`
	Pagination Pagination `json:"pagination"`
}

// FirstIndex is the 1-based position of the first record on the page, 0 when empty.
func (p Pagination) FirstIndex(count int) int {
	if count == 0 {
		return 0
	}
	return (p.Page-1)*p.PageSize + 1
}

// LastIndex is the 1-based position of the last record on the page.
func (p Pagination) LastIndex(count int) int {
	if count == 0 {
		return 0
	}
	return (p.Page-1)*p.PageSize + count
}
