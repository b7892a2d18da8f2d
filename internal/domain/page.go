package domain

import (
	"strings"
	"time"
)

// SortOrder selects the ordering of document listings.
type SortOrder string

// Supported sort orders. Every order breaks ties by id ascending.
const (
	SortDateDesc  SortOrder = "date_desc"
	SortDateAsc   SortOrder = "date_asc"
	SortTitleAsc  SortOrder = "titre_asc"
	SortTitleDesc SortOrder = "titre_desc"
	SortViewsDesc SortOrder = "vues_desc"
)

// DefaultSortOrder is used when no sort key is given.
const DefaultSortOrder = SortDateDesc

// ParseSortOrder validates a sort key. An empty key selects DefaultSortOrder.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.TrimSpace(s)) {
	case "":
		return DefaultSortOrder, nil
	case SortDateDesc:
		return SortDateDesc, nil
	case SortDateAsc:
		return SortDateAsc, nil
	case SortTitleAsc:
		return SortTitleAsc, nil
	case SortTitleDesc:
		return SortTitleDesc, nil
	case SortViewsDesc:
		return SortViewsDesc, nil
	default:
		return "", NewDomainError(ErrInvalidSort, "", s)
	}
}

// DateLayout is the format accepted for date filters.
const DateLayout = "2006-01-02"

// DateRange bounds the added date of documents. Both days are inclusive.
// A nil bound is open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// ParseDateRange parses optional YYYY-MM-DD bounds. Empty strings leave the bound open.
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange
	if s := strings.TrimSpace(from); s != "" {
		t, err := time.ParseInLocation(DateLayout, s, time.UTC)
		if err != nil {
			return DateRange{}, NewDomainError(ErrInvalidDate, "", s)
		}
		r.From = &t
	}
	if s := strings.TrimSpace(to); s != "" {
		t, err := time.ParseInLocation(DateLayout, s, time.UTC)
		if err != nil {
			return DateRange{}, NewDomainError(ErrInvalidDate, "", s)
		}
		r.To = &t
	}
	return r, nil
}

// ToExclusive returns the first instant after the To day, or nil.
func (r DateRange) ToExclusive() *time.Time {
	if r.To == nil {
		return nil
	}
	t := r.To.AddDate(0, 0, 1)
	return &t
}

// PageRequest holds a requested page number and size.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize clamps the request: pages start at 1 and the size falls back to
// defaultSize when unset and never exceeds maxSize.
func (r *PageRequest) Normalize(defaultSize, maxSize int) {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = defaultSize
	}
	if maxSize > 0 && r.PageSize > maxSize {
		r.PageSize = maxSize
	}
}

// Offset calculates the number of records to skip.
// Check PastEnd first: a huge page number overflows the product.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PastEnd reports whether the requested page starts after the last of total
// records. It compares page numbers, so it never overflows.
func (r PageRequest) PastEnd(total int64) bool {
	if r.PageSize < 1 || total <= 0 {
		return true
	}
	pages := (total-1)/int64(r.PageSize) + 1
	return int64(r.Page-1) >= pages
}

// DocumentFilter selects documents for listing and search.
type DocumentFilter struct {
	// Term is matched case-insensitively against title and description.
	Term string

	// CategoryID restricts results to one category.
	CategoryID *int64

	// Added restricts results by added date.
	Added DateRange

	Sort SortOrder
}

// SearchQuery is the raw input to a catalog search, typically from a query string.
type SearchQuery struct {
	Term       string
	CategoryID *int64
	From       string
	To         string
	Sort       string
	Page       int
	PageSize   int
}

// Empty reports whether no criterion was given.
func (q SearchQuery) Empty() bool {
	return strings.TrimSpace(q.Term) == "" && q.CategoryID == nil &&
		strings.TrimSpace(q.From) == "" && strings.TrimSpace(q.To) == ""
}

// Page holds one page of results along with pagination metadata.
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	PageCount  int   `json:"page_count"`
}

// NewPage creates a Page with the page count derived from total and size.
// PageCount is at least 1 so an empty result still renders as a single page.
func NewPage[T any](items []T, total int64, req PageRequest) Page[T] {
	count := 1
	if req.PageSize > 0 {
		count = int(total / int64(req.PageSize))
		if total%int64(req.PageSize) != 0 {
			count++
		}
		if count < 1 {
			count = 1
		}
	}

	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:      items,
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		PageCount:  count,
	}
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool { return p.Page < p.PageCount }

// Stats aggregates catalog figures for the dashboard.
type Stats struct {
	TotalCategories int64
	TotalDocuments  int64
	TotalUsers      int64

	// RecentDocuments counts documents added within the recent window.
	RecentDocuments int64

	TopViewed []Document
	Latest    []Document
}
