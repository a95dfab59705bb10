package listing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Range is an inclusive numeric interval. Max may be +Inf.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Intersects reports whether the two inclusive ranges share a value.
func (r Range) Intersects(o Range) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

var (
	quantityToken = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:([kmb])(?:\s+[a-z./\s]*)?|(?:[a-z./][a-z./\s]*)?)$`)
	rangeSplit    = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)
)

var quantityScale = map[string]float64{
	"":  1,
	"k": 1e3,
	"m": 1e6,
	"b": 1e9,
}

// ParseQuantity parses a single quantity such as "500", "100K", "2.5M" or
// "5,000 units".
func ParseQuantity(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	m := quantityToken.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return n * quantityScale[m[2]], true
}

// ParseRange parses volume expressions such as "100K - 500K", "1M+",
// "< 10K", "over 50k", "up to 1000" or a single quantity.
func ParseRange(s string) (Range, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Range{}, false
	}
	for _, prefix := range []string{"<=", "<", "under ", "up to ", "below "} {
		if strings.HasPrefix(s, prefix) {
			hi, ok := ParseQuantity(strings.TrimPrefix(s, prefix))
			return Range{Min: 0, Max: hi}, ok
		}
	}
	for _, prefix := range []string{">=", ">", "over ", "above ", "from "} {
		if strings.HasPrefix(s, prefix) {
			lo, ok := ParseQuantity(strings.TrimPrefix(s, prefix))
			return Range{Min: lo, Max: math.Inf(1)}, ok
		}
	}
	if strings.HasSuffix(s, "+") {
		lo, ok := ParseQuantity(strings.TrimSuffix(s, "+"))
		return Range{Min: lo, Max: math.Inf(1)}, ok
	}
	parts := rangeSplit.Split(s, -1)
	switch len(parts) {
	case 1:
		v, ok := ParseQuantity(parts[0])
		return Range{Min: v, Max: v}, ok
	case 2:
		lo, okLo := ParseQuantity(parts[0])
		hi, okHi := ParseQuantity(parts[1])
		if !okLo || !okHi || lo > hi {
			return Range{}, false
		}
		return Range{Min: lo, Max: hi}, true
	default:
		return Range{}, false
	}
}
