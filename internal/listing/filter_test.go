package listing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manufacturers() []Record {
	return []Record{
		{ID: "1", Name: "FOOBAR INC", Industry: "Food", Category: "Snacks", Location: "France", EstablishedYear: 1995, Volume: "50K", Certifications: []string{"BRC Grade A"}, Tags: []string{"nuts"}},
		{ID: "2", Name: "Green Pack", Industry: "Packaging", Category: "Bottles", Location: "Italy", EstablishedYear: 2005, Volume: "100K - 200K", Certifications: []string{"ISO 9001"}, Tags: []string{}},
		{ID: "3", Name: "Bevco", Industry: "Beverage", Category: "Juice", Location: "Spain", EstablishedYear: 2010, Volume: "1M+", Certifications: []string{"Organic EU"}, Tags: []string{"Vegan"}},
		{ID: "4", Name: "Crunch Labs", Industry: "Food", Category: "Snacks", Location: "Italy", EstablishedYear: 2015, Volume: "call us", Certifications: []string{}, Tags: []string{}},
		{ID: "5", Name: "Unknown", Industry: "Food", Category: "Sauces", Location: "Spain", Description: "foodservice sauces", Certifications: []string{"brc"}, Tags: []string{}},
		{ID: "6", Name: "Glass Works", Industry: "Packaging", Category: "Jars", Location: "France", EstablishedYear: 1990, Volume: "<10K", Certifications: []string{}, Tags: []string{}},
		{ID: "7", Name: "Pasta Uno", Industry: "Food", Category: "Pasta", Location: "Italy", EstablishedYear: 2000, Volume: "500K", Certifications: []string{"IFS"}, Tags: []string{"gluten"}},
		{ID: "8", Name: "Can Do", Industry: "Packaging", Category: "Cans", Location: "Spain", EstablishedYear: 2008, Volume: "250,000 units", Certifications: []string{}, Tags: []string{}},
		{ID: "9", Name: "Jus Frais", Industry: "Beverage", Category: "Juice", Location: "France", EstablishedYear: 2020, Volume: "20K", Certifications: []string{}, Tags: []string{}},
		{ID: "10", Name: "Spice Route", Industry: "Food", Category: "Spices", Location: "India", EstablishedYear: 1985, Volume: "", Certifications: []string{"Organic India"}, Tags: []string{}},
	}
}

func TestSearchMatchesCaseInsensitively(t *testing.T) {
	got := Filter(manufacturers(), NewSearch("Foo"))
	// "foodservice sauces" description also contains "foo".
	assert.Equal(t, []ID{"1", "5"}, IDs(got))

	got = Filter(manufacturers(), NewSearch("  foobar "))
	assert.Equal(t, []ID{"1"}, IDs(got))
}

func TestBlankSearchIsUnconstrained(t *testing.T) {
	list := manufacturers()
	for _, term := range []string{"", "   ", "\t\n"} {
		assert.Nil(t, NewSearch(term))
		c := NewCriteria(SortName).SetSearch(term)
		assert.Len(t, Filter(list, Predicates(c, References{})...), len(list), "term %q", term)
	}
}

func TestSearchCoversConfiguredFields(t *testing.T) {
	list := manufacturers()
	assert.Equal(t, []ID{"3", "9"}, IDs(Filter(list, NewSearch("juice"))))
	assert.Equal(t, []ID{"5"}, IDs(Filter(list, NewSearch("SERVICE"))))
	assert.Equal(t, []ID{"10"}, IDs(Filter(list, NewSearch("indi"))))
	// industry is not a searchable field
	assert.Empty(t, Filter(list, NewSearch("beverage")))
}

func TestAllSentinelMatchesEverything(t *testing.T) {
	list := manufacturers()
	c := NewCriteria(SortName).SetFilter(FilterIndustry, All)
	got := Filter(list, Predicates(c, References{})...)
	assert.Equal(t, IDs(list), IDs(got))
}

func TestSentinelNeutrality(t *testing.T) {
	list := manufacturers()
	base := NewCriteria(SortName).SetSearch("o").SetYearRange(1990, 0)
	for _, key := range FilterKeys {
		withAll := base.SetFilter(key, All)
		without := base.withFilters()
		delete(without.Filters, key)
		assert.Equal(t,
			IDs(Filter(list, Predicates(without, References{})...)),
			IDs(Filter(list, Predicates(withAll, References{})...)),
			"key %s", key)
	}
}

func TestEqualityPredicates(t *testing.T) {
	list := manufacturers()

	assert.Equal(t, []ID{"2", "4", "7"}, IDs(Filter(list, NewEquals(FilterLocation, "Italy"))))
	// exact fields are case-sensitive
	assert.Empty(t, Filter(list, NewEquals(FilterLocation, "italy")))
	// certification is a case-insensitive substring
	assert.Equal(t, []ID{"1", "5"}, IDs(Filter(list, NewEquals(FilterCertification, "BRC"))))
	assert.Equal(t, []ID{"3", "10"}, IDs(Filter(list, NewEquals(FilterCertification, "organic"))))
	assert.Equal(t, []ID{"3"}, IDs(Filter(list, NewEquals(FilterTag, "vegan"))))
	assert.Nil(t, NewEquals("colour", "red"))
}

func TestFiltersAreANDCombined(t *testing.T) {
	c := NewCriteria(SortName).
		SetFilter(FilterIndustry, "Food").
		SetFilter(FilterLocation, "Italy")
	got := Filter(manufacturers(), Predicates(c, References{})...)
	assert.Equal(t, []ID{"4", "7"}, IDs(got))
}

func TestFilterMonotonicity(t *testing.T) {
	list := manufacturers()
	base := NewCriteria(SortName)
	extras := []func(Criteria) Criteria{
		func(c Criteria) Criteria { return c.SetSearch("a") },
		func(c Criteria) Criteria { return c.SetFilter(FilterIndustry, "Food") },
		func(c Criteria) Criteria { return c.SetFilter(FilterCertification, "o") },
		func(c Criteria) Criteria { return c.SetYearRange(2000, 2015) },
		func(c Criteria) Criteria { return c.SetVolume("10K - 600K") },
		func(c Criteria) Criteria { return c.SetFavoritesOnly(true) },
	}
	refs := References{Favorites: NewIDSet("1", "2", "7", "9")}

	current := base
	prev := len(Filter(list, Predicates(current, refs)...))
	for i, extra := range extras {
		current = extra(current)
		n := len(Filter(list, Predicates(current, refs)...))
		assert.LessOrEqual(t, n, prev, "step %d", i)
		prev = n

		alone := extra(base)
		assert.LessOrEqual(t, len(Filter(list, Predicates(alone, refs)...)), len(list), "alone %d", i)
	}
}

func TestYearRangeInclusive(t *testing.T) {
	list := []Record{
		{ID: "a", Name: "a", EstablishedYear: 1995},
		{ID: "b", Name: "b", EstablishedYear: 2005},
		{ID: "c", Name: "c", EstablishedYear: 2010},
		{ID: "d", Name: "d", EstablishedYear: 2015},
		{ID: "e", Name: "e"},
	}
	got := Filter(list, NewYearRange(2000, 2010))
	assert.Equal(t, []ID{"b", "c"}, IDs(got))

	got = Filter(list, NewYearRange(2010, 0))
	assert.Equal(t, []ID{"c", "d"}, IDs(got))
	assert.Nil(t, NewYearRange(0, 0))
}

func TestVolumeRangeFailsClosedPerRecord(t *testing.T) {
	list := manufacturers()
	got := Filter(list, NewVolume("100K - 500K"))
	// "call us" and "" cannot be parsed and are excluded; the rest intersect.
	assert.Equal(t, []ID{"2", "7", "8"}, IDs(got))

	got = Filter(list, NewVolume("1M+"))
	assert.Equal(t, []ID{"3"}, IDs(got))

	// An unparsable selection does not constrain the list.
	assert.Nil(t, NewVolume("lots"))
}

func TestSetPredicates(t *testing.T) {
	list := manufacturers()
	favs := References{Favorites: NewIDSet("3", "9")}

	c := NewCriteria(SortName).SetFavoritesOnly(true)
	assert.Equal(t, []ID{"3", "9"}, IDs(Filter(list, Predicates(c, favs)...)))
	assert.Empty(t, Filter(list, Predicates(c, References{})...))

	c = NewCriteria(SortName)
	c.SelectedOnly = true
	c.Selected = []ID{"10", "1"}
	assert.Equal(t, []ID{"1", "10"}, IDs(Filter(list, Predicates(c, favs)...)))
}

func TestMinScore(t *testing.T) {
	list := []Record{{ID: "a", MatchScore: 40}, {ID: "b", MatchScore: 75}, {ID: "c", MatchScore: 90}}
	c := NewCriteria(SortMatch)
	c.MinScore = 75
	assert.Equal(t, []ID{"b", "c"}, IDs(Filter(list, Predicates(c, References{})...)))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	list := manufacturers()
	before := fmt.Sprint(IDs(list))
	out := Filter(list, NewSearch("pack"))
	require.NotEmpty(t, out)
	out[0].Name = "changed"
	assert.Equal(t, before, fmt.Sprint(IDs(list)))
	assert.Equal(t, "Green Pack", list[1].Name)
}
