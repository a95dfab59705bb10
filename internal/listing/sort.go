package listing

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the comparator used by Sort.
type SortKey string

const (
	SortName      SortKey = "name"
	SortEstablish SortKey = "establish"
	SortIndustry  SortKey = "industry"
	SortLocation  SortKey = "location"
	SortMatch     SortKey = "match"
	SortStatus    SortKey = "status"
	SortCreated   SortKey = "created"
)

// SortDir is the sort direction.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

var sortAliases = map[string]SortKey{
	"name":             SortName,
	"establish":        SortEstablish,
	"established":      SortEstablish,
	"establishedyear":  SortEstablish,
	"established_year": SortEstablish,
	"year":             SortEstablish,
	"industry":         SortIndustry,
	"location":         SortLocation,
	"match":            SortMatch,
	"matchscore":       SortMatch,
	"match_score":      SortMatch,
	"score":            SortMatch,
	"status":           SortStatus,
	"created":          SortCreated,
	"created_at":       SortCreated,
	"recent":           SortCreated,
	"date":             SortCreated,
}

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortName, SortEstablish, SortIndustry, SortLocation, SortMatch, SortStatus, SortCreated:
		return true
	}
	return false
}

// DefaultDir is descending for recency and score-like keys, ascending for
// alphabetic keys.
func (k SortKey) DefaultDir() SortDir {
	switch k {
	case SortEstablish, SortMatch, SortCreated:
		return Desc
	default:
		return Asc
	}
}

// Flip returns the opposite direction.
func (d SortDir) Flip() SortDir {
	if d == Desc {
		return Asc
	}
	return Desc
}

// ParseDir parses "asc"/"desc", falling back to def.
func ParseDir(s string, def SortDir) SortDir {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc":
		return Asc
	case "desc":
		return Desc
	}
	return def
}

// ParseSortKey resolves a key name or alias.
func ParseSortKey(s string) (SortKey, bool) {
	k, ok := sortAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

// ParseSort accepts "key" or combined "key-dir" tokens such as
// "establish-desc". The direction defaults to the key's default.
func ParseSort(token string) (SortKey, SortDir, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if i := strings.LastIndex(token, "-"); i > 0 {
		if dir := token[i+1:]; dir == "asc" || dir == "desc" {
			if key, ok := ParseSortKey(token[:i]); ok {
				return key, SortDir(dir), true
			}
			return "", "", false
		}
	}
	key, ok := ParseSortKey(token)
	if !ok {
		return "", "", false
	}
	return key, key.DefaultDir(), true
}

// Sorter orders records using locale-aware collation for string keys.
type Sorter struct {
	Language language.Tag
}

// Sort returns a new slice ordered by key and dir. The sort is stable: equal
// keys keep their input order in either direction.
func (s Sorter) Sort(records []Record, key SortKey, dir SortDir) []Record {
	out := slices.Clone(records)
	if out == nil {
		out = []Record{}
	}
	if !key.Valid() {
		return out
	}
	// Collators are not safe for concurrent use.
	col := collate.New(s.language())
	compare := comparator(col, key)
	sign := 1
	if dir == Desc {
		sign = -1
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return sign * compare(a, b)
	})
	return out
}

func (s Sorter) language() language.Tag {
	if s.Language == language.Und {
		return language.English
	}
	return s.Language
}

func comparator(col *collate.Collator, key SortKey) func(a, b Record) int {
	text := func(get func(Record) string) func(a, b Record) int {
		return func(a, b Record) int {
			return col.CompareString(get(a), get(b))
		}
	}
	switch key {
	case SortName:
		return text(func(r Record) string { return r.Name })
	case SortIndustry:
		return text(func(r Record) string { return r.Industry })
	case SortLocation:
		return text(func(r Record) string { return r.Location })
	case SortStatus:
		return text(func(r Record) string { return r.Status })
	case SortEstablish:
		return func(a, b Record) int { return a.EstablishedYear - b.EstablishedYear }
	case SortMatch:
		return func(a, b Record) int { return cmp.Compare(a.MatchScore, b.MatchScore) }
	case SortCreated:
		return func(a, b Record) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
	return func(Record, Record) int { return 0 }
}
