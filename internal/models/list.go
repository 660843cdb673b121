package models

import "strings"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery is the list view's query state.
type ListQuery struct {
	Search   string `json:"search" form:"search"`
	Page     int    `json:"page" form:"page"`
	PageSize int    `json:"page_size" form:"pageSize"`
}

// Normalize enforces page >= 1 and clamps the page size.
func (q ListQuery) Normalize(defaultSize, maxSize int) ListQuery {
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if defaultSize <= 0 || defaultSize > maxSize {
		defaultSize = DefaultPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultSize
	}
	if q.PageSize > maxSize {
		q.PageSize = maxSize
	}
	return q
}

// ListResult is the canonical list envelope every upstream shape is normalised into.
type ListResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// TotalPages reports how many pages the total spans at the given size.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
