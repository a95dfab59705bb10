package listing

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryDefaults(t *testing.T) {
	c := ParseQuery(url.Values{}, SortName)

	assert.Equal(t, NewCriteria(SortName), c)
}

func TestParseQueryReadsEveryCriterion(t *testing.T) {
	q, err := url.ParseQuery("search=+foo+&industry=Food&location=&year_min=2000&year_max=2010" +
		"&volume=1k-5k&min_score=40&favorites=true&selected=a,,b&selected_only=1" +
		"&sort=establish-asc&page=3&page_size=500")
	require.NoError(t, err)

	c := ParseQuery(q, SortName)

	assert.Equal(t, "foo", c.Search)
	assert.Equal(t, "Food", c.Filter(FilterIndustry))
	assert.Equal(t, "", c.Filter(FilterLocation))
	assert.Equal(t, All, c.Filters[FilterLocation])
	assert.Equal(t, 2000, c.YearMin)
	assert.Equal(t, 2010, c.YearMax)
	assert.Equal(t, "1k-5k", c.Volume)
	assert.Equal(t, 40.0, c.MinScore)
	assert.True(t, c.FavoritesOnly)
	assert.True(t, c.SelectedOnly)
	assert.Equal(t, []ID{"a", "b"}, c.Selected)
	assert.Equal(t, SortEstablish, c.Sort)
	assert.Equal(t, Asc, c.Dir)
	assert.Equal(t, 3, c.Page)
	assert.Equal(t, MaxPageSize, c.PageSize)
}

func TestParseQueryToggle(t *testing.T) {
	cases := []struct {
		query string
		sort  SortKey
		dir   SortDir
	}{
		{"toggle=name", SortName, Desc},
		{"sort=name&dir=desc&toggle=name", SortName, Asc},
		{"sort=name&toggle=establish", SortEstablish, Desc},
		{"sort=bogus&toggle=bogus", SortName, Asc},
	}
	for _, tc := range cases {
		q, err := url.ParseQuery(tc.query)
		require.NoError(t, err)
		c := ParseQuery(q, SortName)
		assert.Equal(t, tc.sort, c.Sort, tc.query)
		assert.Equal(t, tc.dir, c.Dir, tc.query)
	}
}

func TestFailedResponseIsEmptyList(t *testing.T) {
	resp := FailedResponse(NewCriteria(SortEstablish), "upstream down", true)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, []any{}, body["items"])
	assert.EqualValues(t, 1, body["page"])
	assert.EqualValues(t, 0, body["total_items"])
	assert.Equal(t, "establish", body["sort"])
	assert.Equal(t, "desc", body["dir"])
	assert.Equal(t, map[string]any{"message": "upstream down", "retryable": true}, body["error"])
}
