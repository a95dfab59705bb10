package listing

import (
	"strings"
)

// All is the filter sentinel meaning "no constraint for this key".
const All = "all"

// DefaultPageSize is the manufacturer directory page size.
const DefaultPageSize = 12

// Filter keys understood by Predicates.
const (
	FilterCategory      = "category"
	FilterIndustry      = "industry"
	FilterLocation      = "location"
	FilterStatus        = "status"
	FilterCertification = "certification"
	FilterTag           = "tag"
)

// FilterKeys lists the equality filter keys in evaluation-independent order.
var FilterKeys = []string{
	FilterCategory, FilterIndustry, FilterLocation, FilterStatus, FilterCertification, FilterTag,
}

// Criteria is the user's current search, filter, sort and page selection.
type Criteria struct {
	Search        string            `json:"search"`
	Filters       map[string]string `json:"filters"`
	YearMin       int               `json:"year_min"`
	YearMax       int               `json:"year_max"`
	Volume        string            `json:"volume"`
	MinScore      float64           `json:"min_score"`
	FavoritesOnly bool              `json:"favorites_only"`
	SelectedOnly  bool              `json:"selected_only"`
	Selected      []ID              `json:"selected"`
	Sort          SortKey           `json:"sort"`
	Dir           SortDir           `json:"dir"`
	Page          int               `json:"page"`
	PageSize      int               `json:"page_size"`
}

// NewCriteria returns defaults for a fresh listing view sorted by key.
func NewCriteria(key SortKey) Criteria {
	if !key.Valid() {
		key = SortName
	}
	filters := make(map[string]string, len(FilterKeys))
	for _, k := range FilterKeys {
		filters[k] = All
	}
	return Criteria{
		Filters:  filters,
		Sort:     key,
		Dir:      key.DefaultDir(),
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// Filter returns the active value for key, or "" when the key is unconstrained.
func (c Criteria) Filter(key string) string {
	v := strings.TrimSpace(c.Filters[key])
	if v == All {
		return ""
	}
	return v
}

func (c Criteria) withFilters() Criteria {
	out := make(map[string]string, len(c.Filters)+1)
	for k, v := range c.Filters {
		out[k] = v
	}
	c.Filters = out
	return c
}

// SetSearch replaces the search term and returns to the first page.
func (c Criteria) SetSearch(term string) Criteria {
	c.Search = term
	c.Page = 1
	return c
}

// SetFilter selects value for key and returns to the first page. An empty
// value is stored as All.
func (c Criteria) SetFilter(key, value string) Criteria {
	c = c.withFilters()
	if strings.TrimSpace(value) == "" {
		value = All
	}
	c.Filters[key] = value
	c.Page = 1
	return c
}

// SetYearRange sets the inclusive establishment-year bounds (0 = open).
func (c Criteria) SetYearRange(min, max int) Criteria {
	c.YearMin, c.YearMax = min, max
	c.Page = 1
	return c
}

// SetVolume selects a volume range expression.
func (c Criteria) SetVolume(expr string) Criteria {
	c.Volume = expr
	c.Page = 1
	return c
}

// SetFavoritesOnly toggles the favorites-only view.
func (c Criteria) SetFavoritesOnly(on bool) Criteria {
	c.FavoritesOnly = on
	c.Page = 1
	return c
}

// ToggleSort flips the direction when key is already active; a new key
// starts at its default direction.
func (c Criteria) ToggleSort(key SortKey) Criteria {
	if !key.Valid() {
		return c
	}
	if c.Sort == key {
		c.Dir = c.Dir.Flip()
		return c
	}
	c.Sort = key
	c.Dir = key.DefaultDir()
	return c
}

// SetPage moves to page n. Out-of-range pages are healed by Paginate.
func (c Criteria) SetPage(n int) Criteria {
	c.Page = n
	return c
}
