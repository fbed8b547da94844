package twitter

import "time"

// Account is a monitored handle resolved to its stable id.
type Account struct {
	Handle string // lower-case, without "@"
	ID     string
}

// Post is a single search result.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchQuery selects recent posts authored by any of AuthorIDs.
type SearchQuery struct {
	AuthorIDs  []string
	Since      time.Time
	MaxResults int

	// Trace logs the full request and response at info level.
	Trace bool
}

// SearchResult is one page of recent-search results.
type SearchResult struct {
	Posts       []Post
	ResultCount int
	Quota       QuotaInfo
}

// QuotaInfo mirrors the x-rate-limit-* response headers. Zero values mean
// the header was absent.
type QuotaInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
	Known     bool
}

// ProbeResult reports whether the API answered a minimal search.
type ProbeResult struct {
	OK         bool
	StatusCode int
	Quota      QuotaInfo
}
