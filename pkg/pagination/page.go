package pagination

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest holds the parameters for a paginated request.
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPageRequest creates a new PageRequest with default values, ensuring they are within valid ranges.
func NewPageRequest(page, pageSize int) *PageRequest {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &PageRequest{
		Page:     page,
		PageSize: pageSize,
	}
}

// FromQuery reads "page" and "limit" from a query string. Malformed values fall back to defaults.
func FromQuery(q url.Values) *PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("limit"))
	return NewPageRequest(page, size)
}

// GetOffset calculates the offset for the database query.
func (p *PageRequest) GetOffset() int64 {
	return int64((p.Page - 1) * p.PageSize)
}

// GetLimit returns the page size, which is the limit for the database query.
func (p *PageRequest) GetLimit() int64 {
	return int64(p.PageSize)
}

// PageResult holds the data for a paginated response.
type PageResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResult creates a new PageResult.
func NewPageResult[T any](data []T, total int64, req *PageRequest) *PageResult[T] {
	totalPages := 0
	if total > 0 && req.PageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	}
	if data == nil {
		data = []T{}
	}
	return &PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}
}
