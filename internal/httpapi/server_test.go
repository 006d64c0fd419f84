package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/testutil"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	st := testutil.SeededStore(t, nil)
	eng := engine.New(st, engine.WithStrictPlans(true), engine.WithMaxLimit(3))
	ts := httptest.NewServer(New(eng, st, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func resultIDs(t *testing.T, data []byte) []int64 {
	t.Helper()
	var res SearchResponse
	require.NoError(t, json.Unmarshal(data, &res))
	out := make([]int64, 0, len(res.Results))
	for _, e := range res.Results {
		out = append(out, e.ID)
	}
	return out
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)

	resp, data := post(t, ts, "/v1/studies/search", `{"predicate": {"descriptor_ids": [1, 2]}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, []int64{101, 105}, resultIDs(t, data))
}

func TestSearch_DefaultLimit(t *testing.T) {
	ts := newTestServer(t, WithDefaultLimit(2))

	_, data := post(t, ts, "/v1/study/search", `{"order": "date:desc"}`)
	assert.Equal(t, []int64{104, 103}, resultIDs(t, data))

	_, data = post(t, ts, "/v1/study/search", `{"order": "date:desc", "limit": 3, "offset": 2}`)
	assert.Equal(t, []int64{102, 101, 105}, resultIDs(t, data))

}

func TestSearch_PagesBoundedByMaxLimit(t *testing.T) {
	ts := newTestServer(t)

	// Without a default limit the page falls back to the max limit of 3.
	resp, data := post(t, ts, "/v1/study/search", `{"order": "date:desc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, []int64{104, 103, 102}, resultIDs(t, data))

	resp, data = post(t, ts, "/v1/study/search", `{"limit": 0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "invalid_predicate", body.Error.Code)
	assert.Contains(t, body.Error.Message, "limit")

	resp, _ = post(t, ts, "/v1/study/explain", `{"limit": 0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearch_EagerFields(t *testing.T) {
	ts := newTestServer(t)

	resp, data := post(t, ts, "/v1/citations/search", `{"predicate": {"entity_ids": [202]}, "fields": ["descriptors"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var res SearchResponse
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, ir.EntityCitation, res.Entity)
	assert.Equal(t, "joined", res.Strategy)
	require.Len(t, res.Results, 1)
	require.Len(t, res.Results[0].Descriptors, 1)
	assert.Equal(t, "Asthma", res.Results[0].Descriptors[0].Name)
}

func TestCount(t *testing.T) {
	ts := newTestServer(t)

	resp, data := post(t, ts, "/v1/study/count", `{"predicate": {"countries": ["united states"]}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.JSONEq(t, `{"entity": "study", "count": 3}`, string(data))

	// An empty body is the zero predicate.
	_, data = post(t, ts, "/v1/citation/count", ``)
	assert.JSONEq(t, `{"entity": "citation", "count": 3}`, string(data))
}

func TestAggregate(t *testing.T) {
	ts := newTestServer(t)

	resp, data := post(t, ts, "/v1/study/aggregate/unique_countries", `{"params": {"limit": 2}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var res engine.AggregateResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, []engine.GeoCount{
		{Country: "United States", Count: 3},
		{Country: "Canada", Count: 2},
	}, res.Geography)
}

func TestExplain(t *testing.T) {
	ts := newTestServer(t)

	resp, data := post(t, ts, "/v1/study/explain", `{"op": "count", "predicate": {"gender": "male", "cities": ["Paris"]}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var x engine.Explanation
	require.NoError(t, json.Unmarshal(data, &x))
	assert.Equal(t, "count", x.Op)
	assert.ElementsMatch(t, []string{"eligibility:inner", "facility:inner"}, x.Joins)
	require.Len(t, x.Statements, 1)
	assert.Contains(t, x.Statements[0].SQL, "COUNT(DISTINCT")

	resp, _ = post(t, ts, "/v1/study/explain", `{"op": "delete"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"invalid gender", "/v1/study/search", `{"predicate": {"gender": "robot"}}`, http.StatusBadRequest, "invalid_predicate"},
		{"study clause on citations", "/v1/citation/count", `{"predicate": {"phases": ["phase_2"]}}`, http.StatusBadRequest, "invalid_predicate"},
		{"limit above max", "/v1/study/search", `{"limit": 4}`, http.StatusBadRequest, "invalid_predicate"},
		{"bad order", "/v1/study/search", `{"order": "relevance"}`, http.StatusBadRequest, "invalid_predicate"},
		{"unknown aggregate", "/v1/study/aggregate/median_age", `{}`, http.StatusBadRequest, "invalid_predicate"},
		{"unknown field", "/v1/study/count", `{"filter": {}}`, http.StatusBadRequest, "bad_request"},
		{"malformed", "/v1/study/count", `{`, http.StatusBadRequest, "bad_request"},
		{"unknown entity", "/v1/trials/count", `{}`, http.StatusNotFound, "unknown_entity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, ts, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(data, &body), string(data))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestStoreFailure(t *testing.T) {
	st := testutil.SeededStore(t, nil)
	eng := engine.New(st)
	ts := httptest.NewServer(New(eng, st).Handler())
	defer ts.Close()
	require.NoError(t, st.Close())

	resp, data := post(t, ts, "/v1/study/count", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "store_error", body.Error.Code)
	assert.True(t, body.Error.Retryable)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := httptest.NewServer(New(nil, failingPinger{}).Handler())
	defer down.Close()
	resp, err = http.Get(down.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	post(t, ts, "/v1/study/count", `{}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ffquery_engine_operations_total")
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, srv) }()
	cancel()
	assert.NoError(t, <-done)
}
