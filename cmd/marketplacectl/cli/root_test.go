package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcing-hub/marketplace/internal/upstream"
	"github.com/sourcing-hub/marketplace/jobs"
)

const manufacturersBody = `{"success":true,"manufacturers":[
	{"_id":"1","companyName":"Foo Foods","industry":"Food","location":"Italy","establishedYear":1990},
	{"_id":"2","companyName":"Bar Drinks","industry":"Beverage","location":"Spain","establishedYear":2005},
	{"_id":"3","companyName":"Baz Bakery","industry":"Food","location":"France","establishedYear":2020}
]}`

func newUpstream(t *testing.T, optionCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/manufacturers", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"message":"login required"}`)
			return
		}
		_, _ = io.WriteString(w, manufacturersBody)
	})
	mux.HandleFunc("/manufacturers/2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"manufacturer":{"_id":"2","companyName":"Bar Drinks","certifications":["ISO 22000","BRC"]}}`)
	})
	mux.HandleFunc("/manufacturers/filter-options", func(w http.ResponseWriter, r *http.Request) {
		optionCalls.Add(1)
		_, _ = io.WriteString(w, `{"success":true,"filterOptions":{"industries":["Food","Beverage"],"locations":["Italy"]}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, opts *Options, args ...string) (string, error) {
	t.Helper()
	return runContext(t, context.Background(), opts, args...)
}

func runContext(t *testing.T, ctx context.Context, opts *Options, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(opts)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestManufacturersListTable(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, &calls)
	opts := &Options{UpstreamURL: srv.URL, Token: "secret"}

	out, err := run(t, opts, "manufacturers", "list", "--industry", "Food", "--sort", "establish", "--dir", "desc")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Less(t, bytes.Index([]byte(out), []byte("Baz Bakery")), bytes.Index([]byte(out), []byte("Foo Foods")))
	assert.NotContains(t, out, "Bar Drinks")
	assert.Contains(t, out, "page 1/1, 2 manufacturers, sorted by establish desc")
}

func TestManufacturersListJSONPaging(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, &calls)
	opts := &Options{UpstreamURL: srv.URL, Token: "secret"}

	out, err := run(t, opts, "--json", "mfr", "list", "--page-size", "2", "--page", "2")
	require.NoError(t, err)
	var got struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 2, got.TotalPages)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Foo Foods", got.Items[0].Name)
}

func TestManufacturersListUnauthorized(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, &calls)

	_, err := run(t, &Options{UpstreamURL: srv.URL}, "manufacturers", "list")
	assert.ErrorIs(t, err, upstream.ErrUnauthorized)
}

// changingUpstream serves manufacturersBody for the first polls and adds a
// fourth manufacturer from poll after on.
func changingUpstream(t *testing.T, after int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < after {
			_, _ = io.WriteString(w, manufacturersBody)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"manufacturers":[
			{"_id":"1","companyName":"Foo Foods","industry":"Food","location":"Italy","establishedYear":1990},
			{"_id":"2","companyName":"Bar Drinks","industry":"Beverage","location":"Spain","establishedYear":2005},
			{"_id":"3","companyName":"Baz Bakery","industry":"Food","location":"France","establishedYear":2020},
			{"_id":"4","companyName":"Qux Dairy","industry":"Dairy","location":"Ireland","establishedYear":2012}
		]}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestManufacturersListWatchRendersOnChange(t *testing.T) {
	srv, polls := changingUpstream(t, 3)

	out, err := run(t, &Options{UpstreamURL: srv.URL}, "manufacturers", "list", "--watch", "50ms", "--max-polls", "3")
	require.NoError(t, err)
	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, 2, strings.Count(out, "page 1/1,"), out)
	first := strings.Index(out, "page 1/1, 3 manufacturers")
	second := strings.Index(out, "page 1/1, 4 manufacturers")
	require.GreaterOrEqual(t, first, 0, out)
	assert.Greater(t, second, first, out)
	assert.Equal(t, 1, strings.Count(out, "Qux Dairy"))
}

func TestManufacturersListWatchStopsWithContext(t *testing.T) {
	srv, polls := changingUpstream(t, 1000)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out, err := runContext(t, ctx, &Options{UpstreamURL: srv.URL}, "manufacturers", "list", "--watch", "20ms")
	require.NoError(t, err)
	assert.Greater(t, polls.Load(), int32(1))
	assert.Equal(t, 1, strings.Count(out, "page 1/1, 3 manufacturers"), out)
}

func TestManufacturersListWatchEndsOnAuthFailure(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, &calls)

	_, err := run(t, &Options{UpstreamURL: srv.URL}, "manufacturers", "list", "--watch", "10ms")
	assert.ErrorIs(t, err, upstream.ErrUnauthorized)
}

func TestManufacturersListSearchHelpNamesCategory(t *testing.T) {
	cmd := newManufacturersListCommand(&Options{})
	flag := cmd.Flags().Lookup("search")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "category")
}

func TestManufacturersShow(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, &calls)

	out, err := run(t, &Options{UpstreamURL: srv.URL}, "manufacturers", "show", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Bar Drinks")
	assert.Contains(t, out, "ISO 22000,BRC")
}

func TestOptionsShowUsesSharedCache(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, &calls)
	rdb := miniredis.RunT(t)
	opts := &Options{UpstreamURL: srv.URL, RedisAddr: rdb.Addr()}

	out, err := run(t, opts, "options", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "industries:     Food, Beverage")
	assert.Contains(t, out, "source: upstream")

	_, err = run(t, opts, "options", "show")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = run(t, opts, "options", "refresh")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidUpstream(t *testing.T) {
	_, err := run(t, &Options{}, "options", "show")
	assert.Error(t, err)
}

type fakeJobs struct {
	triggered []string
	err       error
	closed    bool
}

func (f *fakeJobs) Trigger(_ context.Context, name string) (*asynq.TaskInfo, error) {
	f.triggered = append(f.triggered, name)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "t1", Type: name, Queue: "default"}, nil
}

func (f *fakeJobs) InspectQueue(context.Context) (QueueStats, error) {
	return QueueStats{Queue: "default", Pending: 2}, nil
}

func (f *fakeJobs) Close() error {
	f.closed = true
	return nil
}

func TestJobsCommands(t *testing.T) {
	fake := &fakeJobs{}
	opts := &Options{RedisAddr: "redis:6379", NewJobs: func(addr string) (JobsAPI, error) {
		assert.Equal(t, "redis:6379", addr)
		return fake, nil
	}}

	out, err := run(t, opts, "jobs", "trigger", "refdata:refresh")
	require.NoError(t, err)
	assert.Equal(t, "enqueued refdata:refresh as t1 on default\n", out)
	assert.True(t, fake.closed)

	out, err = run(t, opts, "jobs", "stats")
	require.NoError(t, err)
	assert.Equal(t, "queue=default pending=2 active=0 scheduled=0 retry=0\n", out)

	fake.err = asynq.ErrDuplicateTask
	out, err = run(t, opts, "jobs", "trigger", "refdata:refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "already queued")

	fake.err = errors.New("boom")
	_, err = run(t, opts, "jobs", "trigger", "refdata:refresh")
	assert.EqualError(t, err, "boom")
}

func TestJobsCLIRejectsUnknownJob(t *testing.T) {
	_, err := NewJobsCLI("")
	assert.Error(t, err)

	c := &JobsCLI{}
	_, err = c.Trigger(context.Background(), "refdata:refresh")
	assert.Error(t, err)

	c, err = NewJobsCLI(miniredis.RunT(t).Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	_, err = c.Trigger(context.Background(), "reports:nightly")
	assert.ErrorContains(t, err, "unsupported job")

	info, err := c.Trigger(context.Background(), jobs.TaskRefdataRefresh)
	require.NoError(t, err)
	assert.Equal(t, jobs.QueueDefault, info.Queue)
}
