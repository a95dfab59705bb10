package listing

// Result is a shaped page together with the criteria that produced it after
// page healing, so callers can resynchronise their state.
type Result struct {
	Page
	Criteria Criteria `json:"criteria"`
}

// Shaper runs Filter, Sort and Paginate in order.
type Shaper struct {
	Sorter Sorter
}

// Shape filters, sorts and paginates records under c. The input slice is not
// modified.
func (s Shaper) Shape(records []Record, c Criteria, refs References) Result {
	filtered := Filter(records, Predicates(c, refs)...)
	sorted := s.Sorter.Sort(filtered, c.Sort, c.Dir)
	page := Paginate(sorted, c.Page, c.PageSize)
	c.Page = page.Page
	c.PageSize = page.PageSize
	return Result{Page: page, Criteria: c}
}
