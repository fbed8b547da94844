package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "kolwatch/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.twitter.com"

	// API bounds for recent search max_results.
	minSearchResults = 10
	maxSearchResults = 100

	// users/by accepts at most this many usernames per call.
	MaxLookupHandles = 100

	maxBodyBytes = 4 << 20
)

type Config struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
}

// Client talks to the v2 REST API with app-only bearer auth.
type Client struct {
	base  string
	token string
	http  *http.Client
	log   logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BearerToken) == "" {
		return nil, errors.New("twitter bearer token is empty")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("twitter base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		base:  base,
		token: strings.TrimSpace(cfg.BearerToken),
		http:  &http.Client{Timeout: timeout},
		log:   log,
	}, nil
}

// NormalizeHandles trims, strips "@", lower-cases and de-duplicates handles,
// keeping first-seen order.
func NormalizeHandles(handles []string) []string {
	out := make([]string, 0, len(handles))
	seen := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// BuildQuery returns the disjunctive "from any of these ids" search query.
func BuildQuery(ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		parts = append(parts, "from:"+id)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// FormatStartTime renders t as the API's earliest-timestamp filter.
func FormatStartTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func clampResults(n int) int {
	if n < minSearchResults {
		return minSearchResults
	}
	if n > maxSearchResults {
		return maxSearchResults
	}
	return n
}

type userLookupResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
	Errors []struct {
		Value  string `json:"value"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// ResolveAccounts maps each handle to its account id in one batched lookup.
// Handles the API cannot resolve are absent from the result.
func (c *Client) ResolveAccounts(ctx context.Context, handles []string) (map[string]string, error) {
	names := NormalizeHandles(handles)
	if len(names) == 0 {
		return nil, errors.New("twitter users/by: no handles")
	}
	if len(names) > MaxLookupHandles {
		return nil, fmt.Errorf("twitter users/by: %d handles exceeds limit of %d", len(names), MaxLookupHandles)
	}

	q := url.Values{}
	q.Set("usernames", strings.Join(names, ","))

	var out userLookupResponse
	if _, _, err := c.get(ctx, "users/by", "/2/users/by", q, &out, false); err != nil {
		return nil, err
	}

	m := make(map[string]string, len(out.Data))
	for _, u := range out.Data {
		if u.Username == "" || u.ID == "" {
			continue
		}
		m[strings.ToLower(u.Username)] = u.ID
	}
	for _, e := range out.Errors {
		c.log.Warn("handle not resolved", logx.String("handle", e.Value), logx.String("detail", e.Detail))
	}
	return m, nil
}

type searchResponse struct {
	Data []Post `json:"data"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

// SearchRecent fetches recent posts matching q. A 429 response yields an
// *APIError matching ErrQuotaExceeded.
func (c *Client) SearchRecent(ctx context.Context, q SearchQuery) (SearchResult, error) {
	if len(q.AuthorIDs) == 0 {
		return SearchResult{}, errors.New("twitter search: no author ids")
	}
	params := url.Values{}
	params.Set("query", BuildQuery(q.AuthorIDs))
	params.Set("max_results", strconv.Itoa(clampResults(q.MaxResults)))
	params.Set("tweet.fields", "created_at,author_id")
	if !q.Since.IsZero() {
		params.Set("start_time", FormatStartTime(q.Since))
	}

	if q.Trace {
		c.log.Info("search request",
			logx.String("query", params.Get("query")),
			logx.String("start_time", params.Get("start_time")),
			logx.String("max_results", params.Get("max_results")),
		)
	}

	var out searchResponse
	quota, _, err := c.get(ctx, "search", "/2/tweets/search/recent", params, &out, q.Trace)
	if err != nil {
		return SearchResult{Quota: quota}, err
	}
	if q.Trace {
		c.log.Info("search result", logx.Int("result_count", out.Meta.ResultCount))
	}
	return SearchResult{Posts: out.Data, ResultCount: out.Meta.ResultCount, Quota: quota}, nil
}

// Probe issues a minimal search to check connectivity and credentials.
// Non-2xx responses are reported in the result, not as an error.
func (c *Client) Probe(ctx context.Context) (ProbeResult, error) {
	params := url.Values{}
	params.Set("query", "from:twitter")
	var out searchResponse
	quota, status, err := c.get(ctx, "probe", "/2/tweets/search/recent", params, &out, false)
	var ae *APIError
	if err != nil && !errors.As(err, &ae) {
		return ProbeResult{}, err
	}
	return ProbeResult{OK: err == nil, StatusCode: status, Quota: quota}, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any, trace bool) (QuotaInfo, int, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return QuotaInfo{}, 0, fmt.Errorf("twitter %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return QuotaInfo{}, 0, fmt.Errorf("twitter %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return QuotaInfo{}, resp.StatusCode, fmt.Errorf("twitter %s: read body: %w", op, err)
	}
	quota := parseQuota(resp.Header)

	if trace {
		c.log.Info("search response",
			logx.Int("status", resp.StatusCode),
			logx.Any("headers", resp.Header),
			logx.String("body", string(body)),
		)
	}

	if resp.StatusCode/100 != 2 {
		return quota, resp.StatusCode, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body), Quota: quota}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return quota, resp.StatusCode, fmt.Errorf("twitter %s: decode: %w", op, err)
	}
	return quota, resp.StatusCode, nil
}

func parseQuota(h http.Header) QuotaInfo {
	var qi QuotaInfo
	if v := h.Get("x-rate-limit-limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			qi.Limit = n
			qi.Known = true
		}
	}
	if v := h.Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			qi.Remaining = n
			qi.Known = true
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil && sec > 0 {
			qi.Reset = time.Unix(sec, 0)
			qi.Known = true
		}
	}
	return qi
}
