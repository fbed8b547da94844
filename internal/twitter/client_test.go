package twitter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "kolwatch/pkg/logx"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, BearerToken: "tok"}, logx.Nop())
	require.NoError(t, err)
	return c
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, logx.Nop())
	require.Error(t, err)
}

func TestNormalizeHandles(t *testing.T) {
	t.Parallel()
	got := NormalizeHandles([]string{" @Alice", "bob", "ALICE", "", "@"})
	assert.Equal(t, []string{"alice", "bob"}, got)
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "(from:1 OR from:2)", BuildQuery([]string{"1", " ", "2"}))
	assert.Equal(t, "(from:9)", BuildQuery([]string{"9"}))
}

func TestFormatStartTime(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("X", 3*3600)
	ts := time.Date(2024, 5, 1, 13, 4, 5, 999, loc)
	assert.Equal(t, "2024-05-01T10:04:05Z", FormatStartTime(ts))
}

func TestResolveAccounts(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/by", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "alice,bob,ghost", r.URL.Query().Get("usernames"))
		_, _ = w.Write([]byte(`{"data":[{"id":"1","username":"Alice"},{"id":"2","username":"bob"}],
			"errors":[{"value":"ghost","detail":"Could not find user"}]}`))
	})

	m, err := c.ResolveAccounts(context.Background(), []string{"@Alice", "bob", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice": "1", "bob": "2"}, m)
}

func TestResolveAccountsFailure(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthorized"}`))
	})

	_, err := c.ResolveAccounts(context.Background(), []string{"a"})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.False(t, IsQuotaExceeded(err))
}

func TestSearchRecent(t *testing.T) {
	t.Parallel()
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/2/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "(from:1 OR from:2)", q.Get("query"))
		assert.Equal(t, "10", q.Get("max_results"))
		assert.Equal(t, "created_at,author_id", q.Get("tweet.fields"))
		assert.Equal(t, "2024-01-02T03:04:05Z", q.Get("start_time"))
		w.Header().Set("x-rate-limit-remaining", "14")
		w.Header().Set("x-rate-limit-limit", "15")
		_, _ = w.Write([]byte(`{"data":[{"id":"p1","author_id":"1","text":"hi","created_at":"2024-01-02T03:05:00.000Z"}],
			"meta":{"result_count":1}}`))
	})

	res, err := c.SearchRecent(context.Background(), SearchQuery{AuthorIDs: []string{"1", "2"}, Since: since, MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "p1", res.Posts[0].ID)
	assert.Equal(t, "1", res.Posts[0].AuthorID)
	assert.Equal(t, "hi", res.Posts[0].Text)
	assert.Equal(t, 1, res.ResultCount)
	assert.True(t, res.Quota.Known)
	assert.Equal(t, 14, res.Quota.Remaining)
}

func TestSearchRecentEmpty(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
	})
	res, err := c.SearchRecent(context.Background(), SearchQuery{AuthorIDs: []string{"1"}})
	require.NoError(t, err)
	assert.Empty(t, res.Posts)
}

func TestSearchRecentQuotaExceeded(t *testing.T) {
	t.Parallel()
	reset := time.Now().Add(2 * time.Minute).Unix()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"title":"Too Many Requests"}`))
	})

	_, err := c.SearchRecent(context.Background(), SearchQuery{AuthorIDs: []string{"1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.Greater(t, RetryAfter(err, time.Now()), time.Minute)
}

func TestSearchRecentQuotaIsNotTextMatched(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`rate limit service is down`))
	})

	_, err := c.SearchRecent(context.Background(), SearchQuery{AuthorIDs: []string{"1"}})
	require.Error(t, err)
	assert.False(t, IsQuotaExceeded(err))
}

func TestProbe(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "from:twitter", r.URL.Query().Get("query"))
		w.Header().Set("x-rate-limit-remaining", "449")
		_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
	})
	res, err := c.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 449, res.Quota.Remaining)
}

func TestProbeReportsHTTPFailure(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	res, err := c.Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}
