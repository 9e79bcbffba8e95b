package models

import "math"

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest is a 1-based page number and a page size.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest clamps page and limit into the accepted range: page >= 1,
// 1 <= limit <= MaxPageLimit, with DefaultPageLimit for a non-positive limit.
func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

// Offset is the number of rows to skip for this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes a page of a larger result set.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewPagination computes Pages = ceil(total/limit).
func NewPagination(p PageRequest, total int64) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
