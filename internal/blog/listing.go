package blog

// DefaultPageSize mirrors the paginate_by used across all listings.
const DefaultPageSize = 10

// Listing is one page of an assembled post listing.
type Listing struct {
	Posts       []*Post `json:"posts"`
	Total       int64   `json:"total"`
	Page        int     `json:"page"`
	TotalPages  int     `json:"total_pages"`
	HasNext     bool    `json:"has_next"`
	HasPrevious bool    `json:"has_previous"`

	// Context objects for category and profile scopes.
	Category *Category `json:"category,omitempty"`
	Profile  *User     `json:"profile,omitempty"`
}

// ClampPage snaps a requested page number into the valid range for the given
// total. Out-of-range requests land on the nearest valid page rather than
// erroring; an empty result set still has one (empty) page.
func ClampPage(page int, total int64, pageSize int) (clamped, totalPages int) {
	totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page, totalPages
}

func newListing(posts []*Post, total int64, page, pageSize int) *Listing {
	page, totalPages := ClampPage(page, total, pageSize)
	return &Listing{
		Posts:       posts,
		Total:       total,
		Page:        page,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}
