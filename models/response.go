package models

// PeekResponse is the response for GET/POST /api/v1/peek.
type PeekResponse struct {
	// Success indicates whether a document was obtained and inspected.
	// A page without a recognizable price still yields Success=true with
	// Price omitted.
	Success bool `json:"success"`

	// Price is the arbitrated product price, omitted when no qualifying
	// candidate was found.
	Price *float64 `json:"price,omitempty"`

	// Title is the page title (og:title preferred).
	Title string `json:"title"`

	// Image is the resolved product image as an absolute URL, omitted
	// when the cascade accepted nothing.
	Image string `json:"image,omitempty"`

	// Description is a short markdown summary of the page's main
	// content. Populated only when requested.
	Description string `json:"description,omitempty"`

	// Pass names the pipeline pass that produced the result:
	// "static" or "rendered".
	Pass string `json:"pass,omitempty"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url,omitempty"`

	// Transport indicates which fetch stage produced the document
	// (e.g. "direct", "gateway", "render").
	Transport string `json:"transport,omitempty"`

	// Strategies is the ordered log of pipeline stages that contributed.
	// Populated only in debug mode.
	Strategies []string `json:"strategies,omitempty"`

	// Candidates lists every collected price candidate before
	// arbitration. Populated only in debug mode.
	Candidates []CandidateDetail `json:"candidates,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// CandidateDetail is the API view of one collected price candidate.
type CandidateDetail struct {
	Value   float64 `json:"value"`
	Source  string  `json:"source"`
	Context string  `json:"context,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// FetchMs is the time spent in the static fetch ladder.
	FetchMs int64 `json:"fetch_ms"`

	// ExtractMs is the time spent in the extraction pipeline,
	// including the rendered pass when one ran.
	ExtractMs int64 `json:"extract_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string       `json:"status"` // "healthy" or "degraded"
	Uptime  string       `json:"uptime"`
	Browser BrowserStats `json:"browser"`
	Cache   CacheInfo    `json:"cache"`
	Version string       `json:"version"`
}

// BrowserStats reports the state of the lazily started render engine.
type BrowserStats struct {
	Running     bool `json:"running"`
	MaxPages    int  `json:"max_pages"`
	ActivePages int  `json:"active_pages"`
}

// CacheInfo reports response-cache effectiveness.
type CacheInfo struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
