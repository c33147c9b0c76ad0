// Package listutil parses list-view query parameters (search, filter,
// pagination) so handlers share one interpretation of them.
package listutil

import (
	"net/url"
	"strconv"
)

// DefaultPerPage is used when per_page is absent or invalid.
const DefaultPerPage = 50

// PerPageOptions are the accepted page sizes.
var PerPageOptions = []int{25, 50, 100, 200}

// ListParams carries the parsed list-view parameters.
type ListParams struct {
	Page    int    // 1-indexed page number
	PerPage int    // rows per page
	Search  string // free-text search query
	Status  string // exact-match status filter
}

// PageInfo carries pagination metadata for the response envelope.
type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ParseListParams parses page, per_page, q and status from URL query values.
// POST: Page >= 1 and PerPage is one of PerPageOptions
func ParseListParams(q url.Values) ListParams {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if !isValidPerPage(perPage) {
		perPage = DefaultPerPage
	}
	return ListParams{
		Page:    page,
		PerPage: perPage,
		Search:  q.Get("q"),
		Status:  q.Get("status"),
	}
}

// NewPageInfo computes pagination metadata.
// PRE: total >= 0
// POST: returns PageInfo with TotalPages computed; Page clamped to valid range
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset returns the 0-indexed first row of the current page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func isValidPerPage(n int) bool {
	for _, opt := range PerPageOptions {
		if n == opt {
			return true
		}
	}
	return false
}
