package listing

import (
	"slices"
	"strings"
)

// Predicate selects records. Predicates are AND-combined; Cost orders cheap
// checks before expensive ones.
type Predicate interface {
	Match(Record) bool
	Cost() int
}

const (
	costSet = iota
	costEquality
	costRange
	costSearch
)

// Filter returns the records satisfying every predicate, in input order. Nil
// predicates are ignored.
func Filter(records []Record, preds ...Predicate) []Record {
	active := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	slices.SortStableFunc(active, func(a, b Predicate) int { return a.Cost() - b.Cost() })

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if matchAll(r, active) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll(r Record, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(r) {
			return false
		}
	}
	return true
}

// References carries reference sets for the boolean predicates.
type References struct {
	Favorites IDSet
}

// Predicates builds the active predicate list for c. Unconstrained criteria
// contribute no predicate.
func Predicates(c Criteria, refs References) []Predicate {
	var preds []Predicate
	if p := NewSearch(c.Search); p != nil {
		preds = append(preds, p)
	}
	for _, key := range FilterKeys {
		if p := NewEquals(key, c.Filter(key)); p != nil {
			preds = append(preds, p)
		}
	}
	if p := NewYearRange(c.YearMin, c.YearMax); p != nil {
		preds = append(preds, p)
	}
	if p := NewVolume(c.Volume); p != nil {
		preds = append(preds, p)
	}
	if c.MinScore > 0 {
		preds = append(preds, minScore(c.MinScore))
	}
	if c.FavoritesOnly {
		preds = append(preds, InSet(refs.Favorites))
	}
	if c.SelectedOnly {
		preds = append(preds, InSet(NewIDSet(c.Selected...)))
	}
	return preds
}

type searchPredicate struct {
	term string
}

// NewSearch matches the case-folded term against name, description, category
// and location. A blank term yields nil.
func NewSearch(term string) Predicate {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	return searchPredicate{term: fold(term)}
}

func (p searchPredicate) Cost() int { return costSearch }

func (p searchPredicate) Match(r Record) bool {
	for _, field := range [...]string{r.Name, r.Description, r.Category, r.Location} {
		if foldContains(field, p.term) {
			return true
		}
	}
	return false
}

type equalsPredicate struct {
	key   string
	value string
}

// NewEquals builds the equality predicate for a filter key. The All sentinel
// and empty values yield nil. Certification matching is a case-insensitive
// substring; tag matching is case-insensitive membership; other keys compare
// exactly.
func NewEquals(key, value string) Predicate {
	value = strings.TrimSpace(value)
	if value == "" || value == All {
		return nil
	}
	switch key {
	case FilterCertification:
		value = fold(value)
	case FilterCategory, FilterIndustry, FilterLocation, FilterStatus, FilterTag:
	default:
		return nil
	}
	return equalsPredicate{key: key, value: value}
}

func (p equalsPredicate) Cost() int {
	if p.key == FilterCertification {
		return costSearch
	}
	return costEquality
}

func (p equalsPredicate) Match(r Record) bool {
	switch p.key {
	case FilterCategory:
		return r.Category == p.value
	case FilterIndustry:
		return r.Industry == p.value
	case FilterLocation:
		return r.Location == p.value
	case FilterStatus:
		return r.Status == p.value
	case FilterTag:
		return r.HasTag(p.value)
	case FilterCertification:
		for _, c := range r.Certifications {
			if foldContains(c, p.value) {
				return true
			}
		}
		return false
	}
	return true
}

type yearRange struct {
	min, max int
}

// NewYearRange keeps records established within [min, max]. Zero bounds are
// open; both zero yields nil. Records with an unknown year are excluded.
func NewYearRange(min, max int) Predicate {
	if min <= 0 && max <= 0 {
		return nil
	}
	return yearRange{min: min, max: max}
}

func (p yearRange) Cost() int { return costRange }

func (p yearRange) Match(r Record) bool {
	y := r.EstablishedYear
	if y <= 0 {
		return false
	}
	if p.min > 0 && y < p.min {
		return false
	}
	if p.max > 0 && y > p.max {
		return false
	}
	return true
}

type volumePredicate struct {
	want Range
}

// NewVolume keeps records whose parsed volume intersects expr. An unparsable
// expr yields nil; an unparsable record volume fails the record.
func NewVolume(expr string) Predicate {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == All {
		return nil
	}
	want, ok := ParseRange(expr)
	if !ok {
		return nil
	}
	return volumePredicate{want: want}
}

func (p volumePredicate) Cost() int { return costRange }

func (p volumePredicate) Match(r Record) bool {
	have, ok := ParseRange(r.Volume)
	if !ok {
		return false
	}
	return have.Intersects(p.want)
}

type minScore float64

func (p minScore) Cost() int { return costEquality }

func (p minScore) Match(r Record) bool { return r.MatchScore >= float64(p) }

type setPredicate struct {
	set IDSet
}

// InSet keeps records whose id is a member of set. A nil set matches nothing.
func InSet(set IDSet) Predicate {
	return setPredicate{set: set}
}

func (p setPredicate) Cost() int { return costSet }

func (p setPredicate) Match(r Record) bool { return p.set.Has(r.ID) }
