// Package refdata owns the filter-option reference data shown next to the
// manufacturer directory.
package refdata

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/sourcing-hub/marketplace/internal/listing"
)

// Option sources.
const (
	SourceUpstream = "upstream"
	SourceDerived  = "derived"
)

// Options lists the values a user can pick for each directory filter.
type Options struct {
	Categories     []string  `json:"categories"`
	Industries     []string  `json:"industries"`
	Locations      []string  `json:"locations"`
	Certifications []string  `json:"certifications"`
	Source         string    `json:"source"`
	FetchedAt      time.Time `json:"fetched_at"`
}

var upstreamKeys = map[string]string{
	"categories":     listing.FilterCategory,
	"category":       listing.FilterCategory,
	"industries":     listing.FilterIndustry,
	"industry":       listing.FilterIndustry,
	"locations":      listing.FilterLocation,
	"location":       listing.FilterLocation,
	"countries":      listing.FilterLocation,
	"certifications": listing.FilterCertification,
	"certification":  listing.FilterCertification,
}

// FromUpstream maps the upstream filter-options payload onto Options.
// Unknown keys are ignored. Keys are merged in sorted order so synonyms
// such as "category" and "categories" yield the same option order every time.
func FromUpstream(raw map[string][]string, fetchedAt time.Time) Options {
	buckets := map[string][]string{}
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		if field, ok := upstreamKeys[strings.ToLower(key)]; ok {
			buckets[field] = append(buckets[field], raw[key]...)
		}
	}
	return Options{
		Categories:     distinct(buckets[listing.FilterCategory], false),
		Industries:     distinct(buckets[listing.FilterIndustry], false),
		Locations:      distinct(buckets[listing.FilterLocation], false),
		Certifications: distinct(buckets[listing.FilterCertification], false),
		Source:         SourceUpstream,
		FetchedAt:      fetchedAt,
	}
}

// DeriveOptions builds options from the values present in records. It is the
// fallback when the upstream options endpoint is unavailable.
func DeriveOptions(records []listing.Record, fetchedAt time.Time) Options {
	var categories, industries, locations, certifications []string
	for _, r := range records {
		categories = append(categories, r.Category)
		industries = append(industries, r.Industry)
		locations = append(locations, r.Location)
		certifications = append(certifications, r.Certifications...)
	}
	return Options{
		Categories:     distinct(categories, true),
		Industries:     distinct(industries, true),
		Locations:      distinct(locations, true),
		Certifications: distinct(certifications, true),
		Source:         SourceDerived,
		FetchedAt:      fetchedAt,
	}
}

// distinct trims and de-duplicates values, keeping first occurrences. The
// result is never nil.
func distinct(values []string, sorted bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, listing.All) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if sorted {
		slices.Sort(out)
	}
	return out
}

func (o Options) clone() Options {
	o.Categories = slices.Clone(o.Categories)
	o.Industries = slices.Clone(o.Industries)
	o.Locations = slices.Clone(o.Locations)
	o.Certifications = slices.Clone(o.Certifications)
	return o
}
