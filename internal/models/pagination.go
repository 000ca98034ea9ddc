package models

// Pagination describes one page of a longer listing.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	Total       int64 `json:"total"`
	PerPage     int   `json:"perPage"`
}

// NewPagination builds the page descriptor for total items split into perPage pages.
func NewPagination(page, perPage int, total int64) Pagination {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Pagination{CurrentPage: page, TotalPages: pages, Total: total, PerPage: perPage}
}

// MaxPage keeps (page-1)*limit far from int overflow for any sane limit.
const MaxPage = 100_000

// NormalizePage clamps page to [1, MaxPage] and limit to (0, max], using def when
// limit is unset.
func NormalizePage(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return page, limit
}
