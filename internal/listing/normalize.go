package listing

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	fieldID              = "id"
	fieldName            = "name"
	fieldDescription     = "description"
	fieldCategory        = "category"
	fieldIndustry        = "industry"
	fieldLocation        = "location"
	fieldStatus          = "status"
	fieldEstablishedYear = "established_year"
	fieldMatchScore      = "match_score"
	fieldVolume          = "volume"
	fieldCertifications  = "certifications"
	fieldTags            = "tags"
	fieldMatchDetails    = "match_details"
	fieldCreatedAt       = "created_at"
)

var canonicalFields = []string{
	fieldID, fieldName, fieldDescription, fieldCategory, fieldIndustry, fieldLocation,
	fieldStatus, fieldEstablishedYear, fieldMatchScore, fieldVolume, fieldCertifications,
	fieldTags, fieldMatchDetails, fieldCreatedAt,
}

//go:embed aliases.yaml
var defaultAliases []byte

// ErrSchema reports an invalid alias table.
var ErrSchema = errors.New("listing: invalid alias schema")

// Schema maps a canonical field to its ordered source aliases.
type Schema map[string][]string

// Normalizer converts raw upstream records into Records using one alias table
// per entity.
type Normalizer struct {
	schemas map[Entity]Schema
}

// ParseSchemas decodes a YAML alias table keyed by entity.
func ParseSchemas(data []byte) (*Normalizer, error) {
	var raw map[Entity]Schema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	known := make(map[string]struct{}, len(canonicalFields))
	for _, f := range canonicalFields {
		known[f] = struct{}{}
	}
	schemas := make(map[Entity]Schema, len(raw))
	for entity, schema := range raw {
		out := make(Schema, len(canonicalFields))
		for field, aliases := range schema {
			if _, ok := known[field]; !ok {
				return nil, fmt.Errorf("%w: %s has unknown field %q", ErrSchema, entity, field)
			}
			if len(aliases) == 0 || aliases[0] != field {
				return nil, fmt.Errorf("%w: %s.%s must list %q first", ErrSchema, entity, field, field)
			}
			out[field] = aliases
		}
		for _, f := range canonicalFields {
			if _, ok := out[f]; !ok {
				out[f] = []string{f}
			}
		}
		schemas[entity] = out
	}
	return &Normalizer{schemas: schemas}, nil
}

var (
	defaultOnce       sync.Once
	defaultNormalizer *Normalizer
)

// DefaultNormalizer returns the normalizer built from the embedded alias table.
func DefaultNormalizer() *Normalizer {
	defaultOnce.Do(func() {
		n, err := ParseSchemas(defaultAliases)
		if err != nil {
			panic(err)
		}
		defaultNormalizer = n
	})
	return defaultNormalizer
}

func (n *Normalizer) schema(entity Entity) Schema {
	if n != nil {
		if s, ok := n.schemas[entity]; ok {
			return s
		}
	}
	s := make(Schema, len(canonicalFields))
	for _, f := range canonicalFields {
		s[f] = []string{f}
	}
	return s
}

// Normalize converts one raw record. Missing or unusable fields become zero
// values, empty slices or empty maps; the name falls back to UnknownName.
func (n *Normalizer) Normalize(entity Entity, raw map[string]any) Record {
	s := n.schema(entity)
	rec := Record{
		Entity:          entity,
		ID:              ID(firstString(raw, s[fieldID])),
		Name:            firstString(raw, s[fieldName]),
		Description:     firstString(raw, s[fieldDescription]),
		Category:        firstString(raw, s[fieldCategory]),
		Industry:        firstString(raw, s[fieldIndustry]),
		Location:        firstString(raw, s[fieldLocation]),
		Status:          firstString(raw, s[fieldStatus]),
		EstablishedYear: firstInt(raw, s[fieldEstablishedYear]),
		MatchScore:      firstFloat(raw, s[fieldMatchScore]),
		Volume:          firstString(raw, s[fieldVolume]),
		Certifications:  firstList(raw, s[fieldCertifications]),
		Tags:            firstList(raw, s[fieldTags]),
		MatchDetails:    firstMap(raw, s[fieldMatchDetails]),
		CreatedAt:       firstTime(raw, s[fieldCreatedAt]),
	}
	if rec.Name == "" {
		rec.Name = UnknownName
	}
	return rec
}

// NormalizeAll normalizes raws in order. Records without an id are dropped and
// only the first record of a duplicated id is kept.
func (n *Normalizer) NormalizeAll(entity Entity, raws []map[string]any) []Record {
	out := make([]Record, 0, len(raws))
	seen := make(IDSet, len(raws))
	for _, raw := range raws {
		rec := n.Normalize(entity, raw)
		if rec.ID == "" || seen.Has(rec.ID) {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func lookup(raw map[string]any, path string) (any, bool) {
	if raw == nil {
		return nil, false
	}
	if v, ok := raw[path]; ok {
		return v, v != nil
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	var cur any = raw
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

func firstString(raw map[string]any, aliases []string) string {
	for _, a := range aliases {
		v, ok := lookup(raw, a)
		if !ok {
			continue
		}
		if s := asString(v); s != "" {
			return s
		}
	}
	return ""
}

func firstInt(raw map[string]any, aliases []string) int {
	for _, a := range aliases {
		v, ok := lookup(raw, a)
		if !ok {
			continue
		}
		if n, ok := asInt(v); ok && n != 0 {
			return n
		}
	}
	return 0
}

func firstFloat(raw map[string]any, aliases []string) float64 {
	for _, a := range aliases {
		v, ok := lookup(raw, a)
		if !ok {
			continue
		}
		if f, ok := asFloat(v); ok && f != 0 {
			return f
		}
	}
	return 0
}

func firstList(raw map[string]any, aliases []string) []string {
	for _, a := range aliases {
		v, ok := lookup(raw, a)
		if !ok {
			continue
		}
		if l := asList(v); len(l) > 0 {
			return l
		}
	}
	return []string{}
}

func firstMap(raw map[string]any, aliases []string) map[string]any {
	for _, a := range aliases {
		v, ok := lookup(raw, a)
		if !ok {
			continue
		}
		if m, ok := v.(map[string]any); ok && len(m) > 0 {
			return cloneDetails(m)
		}
	}
	return map[string]any{}
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func firstTime(raw map[string]any, aliases []string) time.Time {
	for _, a := range aliases {
		v, ok := lookup(raw, a)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			if !t.IsZero() {
				return t
			}
		case string:
			s := strings.TrimSpace(t)
			for _, layout := range timeLayouts {
				if parsed, err := time.Parse(layout, s); err == nil {
					return parsed
				}
			}
		}
	}
	return time.Time{}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case map[string]any:
		// Address objects: prefer a readable city/country pair.
		parts := make([]string, 0, 2)
		for _, key := range []string{"city", "country"} {
			if s := asString(t[key]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func asList(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s := asString(item)
			if m, ok := item.(map[string]any); ok {
				s = firstString(m, []string{"name", "label", "title"})
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		out := []string{}
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}
