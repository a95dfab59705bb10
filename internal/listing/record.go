// Package listing shapes marketplace listings: it normalizes raw upstream
// records, filters, sorts and paginates them. Every function in the package is
// pure and never mutates its input slice.
package listing

import (
	"time"
)

// Entity identifies the upstream record family a Record was normalized from.
type Entity string

const (
	EntityManufacturer Entity = "manufacturer"
	EntityProject      Entity = "project"
	EntityMatch        Entity = "match"
	EntityProduct      Entity = "product"
)

// UnknownName is substituted when a record carries no usable name.
const UnknownName = "Unknown"

// ID is a record identifier. Numeric upstream identifiers are stored in base 10.
type ID string

// Record is the canonical shape every list operation depends on.
type Record struct {
	ID              ID             `json:"id"`
	Entity          Entity         `json:"entity"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	Industry        string         `json:"industry"`
	Location        string         `json:"location"`
	Status          string         `json:"status"`
	EstablishedYear int            `json:"established_year"`
	MatchScore      float64        `json:"match_score"`
	Volume          string         `json:"volume"`
	Certifications  []string       `json:"certifications"`
	Tags            []string       `json:"tags"`
	MatchDetails    map[string]any `json:"match_details"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Map renders the record using canonical field names. Normalizing the result
// yields the same record.
func (r Record) Map() map[string]any {
	m := map[string]any{
		fieldID:              string(r.ID),
		fieldName:            r.Name,
		fieldDescription:     r.Description,
		fieldCategory:        r.Category,
		fieldIndustry:        r.Industry,
		fieldLocation:        r.Location,
		fieldStatus:          r.Status,
		fieldEstablishedYear: r.EstablishedYear,
		fieldMatchScore:      r.MatchScore,
		fieldVolume:          r.Volume,
		fieldCertifications:  append([]string(nil), r.Certifications...),
		fieldTags:            append([]string(nil), r.Tags...),
		fieldMatchDetails:    cloneDetails(r.MatchDetails),
	}
	if !r.CreatedAt.IsZero() {
		m[fieldCreatedAt] = r.CreatedAt.Format(time.RFC3339Nano)
	}
	return m
}

// HasTag reports whether any tag equals value, ignoring case.
func (r Record) HasTag(value string) bool {
	for _, tag := range r.Tags {
		if foldEqual(tag, value) {
			return true
		}
	}
	return false
}

func cloneDetails(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// IDSet is a membership set keyed by record id.
type IDSet map[ID]struct{}

// NewIDSet builds a set from ids, ignoring empty values.
func NewIDSet(ids ...ID) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Has reports membership. A nil set contains nothing.
func (s IDSet) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the ids of records in order.
func IDs(records []Record) []ID {
	out := make([]ID, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
