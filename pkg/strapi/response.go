package strapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Pagination mirrors meta.pagination of list responses.
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// Meta wraps the pagination block.
type Meta struct {
	Pagination Pagination `json:"pagination"`
}

// ListResponse is the {data, meta} envelope returned by collection endpoints.
type ListResponse[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorBody is the error envelope returned on non-2xx responses.
type ErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// ErrorMessage extracts error.message from a response body, if any.
func ErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.Error.Message
}

// PageCount returns ceil(total / pageSize).
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// DecodeList decodes either the {data, meta} envelope or a bare JSON array.
// Bare arrays come from endpoints that ignore pagination parameters; they are
// treated as the full listing and sliced to the requested page.
func DecodeList[T any](raw []byte, page, pageSize int) ([]T, Pagination, error) {
	if page < 1 {
		page = 1
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var all []T
		if err := json.Unmarshal(trimmed, &all); err != nil {
			return nil, Pagination{}, fmt.Errorf("decode list array: %w", err)
		}
		meta := Pagination{Page: page, PageSize: pageSize, Total: len(all), PageCount: PageCount(len(all), pageSize)}
		if pageSize <= 0 {
			return all, meta, nil
		}
		start := (page - 1) * pageSize
		if start >= len(all) {
			return []T{}, meta, nil
		}
		end := start + pageSize
		if end > len(all) {
			end = len(all)
		}
		return all[start:end], meta, nil
	}

	var envelope ListResponse[T]
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, Pagination{}, fmt.Errorf("decode list envelope: %w", err)
	}
	meta := envelope.Meta.Pagination
	if meta.Page == 0 {
		meta.Page = page
	}
	if meta.PageSize == 0 {
		meta.PageSize = pageSize
	}
	if meta.PageCount == 0 {
		meta.PageCount = PageCount(meta.Total, meta.PageSize)
	}
	if envelope.Data == nil {
		envelope.Data = []T{}
	}
	return envelope.Data, meta, nil
}
