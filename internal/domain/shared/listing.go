package shared

// MaxPageSize caps how many rows a single listing returns.
const MaxPageSize = 100

const defaultPageSize = 20

// Filter carries paging and ordering for list queries. OrderBy names a
// column; repositories ignore columns they do not whitelist.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter is the first page, newest first.
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: defaultPageSize, OrderBy: "created_at", OrderDir: "desc"}
}

// Limit is the page size clamped to MaxPageSize. Zero means unpaged.
func (f Filter) Limit() int {
	switch {
	case f.PageSize <= 0:
		return 0
	case f.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return f.PageSize
}

// Offset is the number of rows skipped before the filter's page.
func (f Filter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}
