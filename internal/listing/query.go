package listing

import (
	"net/url"
	"strconv"
	"strings"
)

// MaxPageSize caps the page size a caller may request.
const MaxPageSize = 100

// ParseQuery builds criteria from list query parameters, starting from
// NewCriteria(def). Unknown or malformed values fall back to defaults.
//
// A toggle parameter applies ToggleSort on top of sort and dir, so a client
// can echo its current sort and name the clicked column.
func ParseQuery(q url.Values, def SortKey) Criteria {
	c := NewCriteria(def)
	c.Search = strings.TrimSpace(q.Get("search"))
	for _, key := range FilterKeys {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			c.Filters[key] = v
		}
	}
	c.YearMin = queryInt(q, "year_min", 0)
	c.YearMax = queryInt(q, "year_max", 0)
	c.Volume = strings.TrimSpace(q.Get("volume"))
	if v, err := strconv.ParseFloat(strings.TrimSpace(q.Get("min_score")), 64); err == nil && v > 0 {
		c.MinScore = v
	}
	c.FavoritesOnly = queryBool(q, "favorites")
	c.SelectedOnly = queryBool(q, "selected_only")
	for _, part := range strings.Split(q.Get("selected"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			c.Selected = append(c.Selected, ID(part))
		}
	}

	if key, dir, ok := ParseSort(q.Get("sort")); ok {
		c.Sort, c.Dir = key, dir
	}
	c.Dir = ParseDir(q.Get("dir"), c.Dir)
	if key, ok := ParseSortKey(q.Get("toggle")); ok {
		c = c.ToggleSort(key)
	}

	c.Page = queryInt(q, "page", 1)
	c.PageSize = queryInt(q, "page_size", DefaultPageSize)
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
	return c
}

func queryInt(q url.Values, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(q.Get(key)))
	if err != nil {
		return def
	}
	return v
}

func queryBool(q url.Values, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	return err == nil && v
}

// FetchError tells the client the list could not be loaded.
type FetchError struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Response is the body of a shaped list endpoint.
type Response struct {
	Result
	Sort  SortKey     `json:"sort"`
	Dir   SortDir     `json:"dir"`
	Error *FetchError `json:"error,omitempty"`
}

// NewResponse wraps a shaped result.
func NewResponse(res Result) Response {
	return Response{Result: res, Sort: res.Criteria.Sort, Dir: res.Criteria.Dir}
}

// FailedResponse is the empty list returned when the fetch failed.
func FailedResponse(c Criteria, message string, retryable bool) Response {
	res := Shaper{}.Shape(nil, c, References{})
	resp := NewResponse(res)
	resp.Error = &FetchError{Message: message, Retryable: retryable}
	return resp
}
