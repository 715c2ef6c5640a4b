// Package pagination reads limit/offset windows from list requests and wraps
// list results with their totals.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a window over an ordered result set.
type Params struct {
	Limit  int
	Offset int
}

// queryInt returns the first of names that holds a positive integer, or 0.
func queryInt(c echo.Context, names ...string) int {
	for _, name := range names {
		if n, err := strconv.Atoi(c.QueryParam(name)); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// FromContext reads limit and offset. per_page and a 1-based page stand in
// when those are absent. Missing or malformed values fall back to the first
// DefaultLimit rows; limits above MaxLimit are clamped.
func FromContext(c echo.Context) Params {
	p := Params{Limit: queryInt(c, "limit", "per_page"), Offset: queryInt(c, "offset")}
	switch {
	case p.Limit == 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	if p.Offset == 0 {
		if page := queryInt(c, "page"); page > 1 {
			p.Offset = (page - 1) * p.Limit
		}
	}
	return p
}

// Page is the 1-based page the window starts on.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Pages is how many windows of this size total rows span.
func (p Params) Pages(total int) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Response is the JSON envelope of every list endpoint.
type Response[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Page    int  `json:"page"`
	Pages   int  `json:"pages"`
	HasMore bool `json:"has_more"`
}

// NewResponse wraps one window of rows out of total. A nil slice is rendered
// as an empty array.
func NewResponse[T any](data []T, total int, p Params) *Response[T] {
	if data == nil {
		data = []T{}
	}
	return &Response[T]{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page(),
		Pages:   p.Pages(total),
		HasMore: p.HasNext(total),
	}
}
