package listing

// Page is one slice of a shaped listing.
type Page struct {
	Items      []Record `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalItems int      `json:"total_items"`
	TotalPages int      `json:"total_pages"`
}

// TotalPages returns ceil(n/size), zero for an empty list.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Paginate returns page of records. A page outside [1, TotalPages] resets to
// 1, so the result never points past the end of the list.
func Paginate(records []Record, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := TotalPages(len(records), size)
	if page < 1 || page > total {
		page = 1
	}
	start := (page - 1) * size
	end := min(start+size, len(records))
	items := make([]Record, 0, end-start)
	if start < end {
		items = append(items, records[start:end]...)
	}
	return Page{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalItems: len(records),
		TotalPages: total,
	}
}
