package models

import (
	"sync"
	"time"
)

// BatchPeekRequest is the payload for POST /api/v1/peek/batch.
type BatchPeekRequest struct {
	// URLs is the list of product pages to inspect. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100"`

	// Options contains shared peek options applied to all URLs.
	Options BatchOptions `json:"options"`

	// WebhookURL, when set, receives a signed POST once the job
	// finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook payload (HMAC-SHA256). Ignored
	// without WebhookURL.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchOptions are the shared peek settings applied to every URL in a batch.
type BatchOptions struct {
	Render      *bool `json:"render,omitempty"`
	Timeout     int   `json:"timeout,omitempty" binding:"omitempty,min=1,max=90"`
	Description bool  `json:"description,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/peek/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/peek/batch/:id.
type BatchStatusResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Results   []*PeekResponse `json:"results,omitempty"`
}

// BatchJob tracks one asynchronous batch through its life. Workers write
// results while status polling reads, so all mutable state sits behind
// the mutex; use the methods, never the fields.
type BatchJob struct {
	ID            string
	WebhookURL    string
	WebhookSecret string
	CreatedAt     int64 // unix timestamp, read by the expiry sweep

	mu        sync.Mutex
	status    string // "processing", "completed", "partial", "failed"
	total     int
	completed int
	results   []*PeekResponse
}

// NewBatchJob creates a job in the "processing" state with one result
// slot per URL.
func NewBatchJob(id string, total int, webhookURL, webhookSecret string) *BatchJob {
	return &BatchJob{
		ID:            id,
		WebhookURL:    webhookURL,
		WebhookSecret: webhookSecret,
		CreatedAt:     time.Now().Unix(),
		status:        "processing",
		total:         total,
		results:       make([]*PeekResponse, total),
	}
}

// SetResult records the outcome for one URL slot.
func (j *BatchJob) SetResult(idx int, resp *PeekResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if idx < 0 || idx >= len(j.results) {
		return
	}
	if j.results[idx] == nil {
		j.completed++
	}
	j.results[idx] = resp
}

// Finish derives the final status from the recorded results and returns it.
func (j *BatchJob) Finish() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	failed := 0
	for _, r := range j.results {
		if r == nil || !r.Success {
			failed++
		}
	}
	switch {
	case j.total > 0 && failed == j.total:
		j.status = "failed"
	case failed > 0:
		j.status = "partial"
	default:
		j.status = "completed"
	}
	return j.status
}

// Snapshot returns the current state for status polling. Pending slots
// appear as nil results.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*PeekResponse, len(j.results))
	copy(results, j.results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.status,
		Completed: j.completed,
		Total:     j.total,
		Results:   results,
	}
}
