package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/platform/httpx"
	"github.com/sourcing-hub/marketplace/internal/upstream"
)

type fakeUpstream struct {
	projects  []upstream.RawRecord
	matches   []upstream.RawRecord
	created   upstream.RawRecord
	listErr   error
	matchErr  error
	createErr error

	payload any
	key     string
}

func (f *fakeUpstream) ListProjects(context.Context) ([]upstream.RawRecord, int, error) {
	return f.projects, len(f.projects), f.listErr
}

func (f *fakeUpstream) CreateProject(_ context.Context, payload any, key string) (upstream.RawRecord, error) {
	f.payload, f.key = payload, key
	return f.created, f.createErr
}

func (f *fakeUpstream) ProjectManufacturers(context.Context, string) ([]upstream.RawRecord, error) {
	return f.matches, f.matchErr
}

func matchFixture() []upstream.RawRecord {
	out := make([]upstream.RawRecord, 0, 7)
	for i, score := range []int{40, 95, 70, 88, 12, 95, 60} {
		out = append(out, upstream.RawRecord{
			"manufacturerId": string(rune('a' + i)),
			"matchScore":     score,
			"manufacturer":   map[string]any{"companyName": "M" + string(rune('A'+i))},
		})
	}
	return out
}

func validRequest() CreateRequest {
	return CreateRequest{
		Title:           "  Oat protein bar ",
		ProductCategory: "Snacks",
		Volume:          "10K - 50K",
		Certifications:  []string{"Organic"},
	}
}

func TestListProjectsSortsByRecency(t *testing.T) {
	up := &fakeUpstream{projects: []upstream.RawRecord{
		{"_id": "p1", "title": "Old", "createdAt": "2023-01-01T00:00:00Z", "status": "active"},
		{"_id": "p2", "title": "New", "createdAt": "2024-06-01T00:00:00Z", "status": "draft"},
		{"_id": "p3", "title": "Mid", "createdAt": "2023-09-01T00:00:00Z", "status": "active"},
	}}
	svc := NewService(up, nil, listing.Sorter{}, nil, nil)

	resp, err := svc.List(context.Background(), listing.NewCriteria(listing.SortCreated))
	require.NoError(t, err)
	assert.Equal(t, []listing.ID{"p2", "p3", "p1"}, listing.IDs(resp.Items))

	active := listing.NewCriteria(listing.SortCreated).SetFilter(listing.FilterStatus, "active")
	resp, err = svc.List(context.Background(), active)
	require.NoError(t, err)
	assert.Equal(t, []listing.ID{"p3", "p1"}, listing.IDs(resp.Items))
}

func TestMatchesFilterAndSortByScore(t *testing.T) {
	svc := NewService(&fakeUpstream{matches: matchFixture()}, nil, listing.Sorter{}, nil, nil)

	c := listing.NewCriteria(listing.SortMatch)
	c.MinScore = 60
	resp, err := svc.Matches(context.Background(), "p1", c)
	require.NoError(t, err)

	assert.Equal(t, []listing.ID{"b", "f", "d", "c", "g"}, listing.IDs(resp.Items))
	assert.Equal(t, "MB", resp.Items[0].Name)
}

func TestCreateReturnsTopMatches(t *testing.T) {
	up := &fakeUpstream{
		created: upstream.RawRecord{"_id": "p9", "title": "Oat protein bar", "status": "active"},
		matches: matchFixture(),
	}
	svc := NewService(up, nil, listing.Sorter{}, nil, nil)

	created, err := svc.Create(context.Background(), validRequest(), "draft-1")
	require.NoError(t, err)

	assert.Equal(t, listing.ID("p9"), created.Project.ID)
	assert.Len(t, created.Matches, TopMatches)
	assert.Equal(t, listing.ID("b"), created.Matches[0].ID)
	assert.Nil(t, created.MatchError)
	assert.Equal(t, "draft-1", up.key)

	sent := up.payload.(CreateRequest)
	assert.Equal(t, "Oat protein bar", sent.Title)
	assert.Equal(t, StatusActive, sent.Status)
}

func TestCreateKeepsProjectWhenMatchesFail(t *testing.T) {
	up := &fakeUpstream{
		created:  upstream.RawRecord{"_id": "p9", "title": "Oat protein bar"},
		matchErr: upstream.ErrUnavailable,
	}
	svc := NewService(up, nil, listing.Sorter{}, nil, nil)

	created, err := svc.Create(context.Background(), validRequest(), "")
	require.NoError(t, err)
	assert.Empty(t, created.Matches)
	require.NotNil(t, created.MatchError)
	assert.True(t, created.MatchError.Retryable)
}

func TestCreateValidatesRequest(t *testing.T) {
	up := &fakeUpstream{}
	svc := NewService(up, nil, listing.Sorter{}, nil, nil)

	req := CreateRequest{Title: "ab", Volume: "lots", Timeline: "someday", Certifications: []string{""}}
	_, err := svc.Create(context.Background(), req, "")

	var fields httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "productCategory")
	assert.Contains(t, fields, "volume")
	assert.Contains(t, fields, "timeline")
	assert.Contains(t, fields, "requiredCertifications[0]")
	assert.Nil(t, up.payload)
}

func TestCreateEndpoint(t *testing.T) {
	up := &fakeUpstream{created: upstream.RawRecord{"_id": "p9", "title": "Oat protein bar"}, matches: matchFixture()}
	r := chi.NewRouter()
	r.Route("/api/projects", NewHandler(nil, NewService(up, nil, listing.Sorter{}, nil, nil)).MountRoutes)

	body, err := json.Marshal(validRequest())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewReader(body))
	req.Header.Set("Idempotency-Key", "k-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "k-1", up.key)

	req = httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewReader([]byte(`{"title":"x","unknown":1}`)))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMatchesEndpointNotFound(t *testing.T) {
	up := &fakeUpstream{matchErr: upstream.ErrNotFound}
	r := chi.NewRouter()
	r.Route("/api/projects", NewHandler(nil, NewService(up, nil, listing.Sorter{}, nil, nil)).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/projects/p1/matches?min_score=50", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "match", resp["sort"])
	assert.Equal(t, []any{}, resp["items"])
}

type memoryKeys struct {
	seen    map[string]bool
	deleted []string
}

func (m *memoryKeys) CheckAndInsert(_ context.Context, key, module string) error {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[module+":"+key] {
		return httpx.ErrConflict
	}
	m.seen[module+":"+key] = true
	return nil
}

func (m *memoryKeys) Delete(_ context.Context, key, module string) error {
	delete(m.seen, module+":"+key)
	m.deleted = append(m.deleted, key)
	return nil
}

func TestCreateRejectsRepeatedIdempotencyKey(t *testing.T) {
	up := &fakeUpstream{created: upstream.RawRecord{"_id": "p9", "title": "Oat protein bar"}}
	keys := &memoryKeys{}
	svc := NewService(up, nil, listing.Sorter{}, nil, nil).WithKeyStore(keys)

	_, err := svc.Create(context.Background(), validRequest(), "k-1")
	require.NoError(t, err)

	up.payload = nil
	_, err = svc.Create(context.Background(), validRequest(), "k-1")
	assert.Equal(t, http.StatusConflict, httpx.StatusFor(err))
	assert.Nil(t, up.payload)

	_, err = svc.Create(context.Background(), validRequest(), "")
	assert.NoError(t, err)
}

func TestCreateReleasesKeyOnUpstreamFailure(t *testing.T) {
	up := &fakeUpstream{createErr: upstream.ErrUnavailable}
	keys := &memoryKeys{}
	svc := NewService(up, nil, listing.Sorter{}, nil, nil).WithKeyStore(keys)

	_, err := svc.Create(context.Background(), validRequest(), "k-2")
	require.Error(t, err)
	assert.Equal(t, []string{"k-2"}, keys.deleted)

	up.createErr = nil
	up.created = upstream.RawRecord{"_id": "p9"}
	_, err = svc.Create(context.Background(), validRequest(), "k-2")
	assert.NoError(t, err)
}
