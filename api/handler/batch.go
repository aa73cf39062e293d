package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricepeek/pricepeek/models"
	"github.com/pricepeek/pricepeek/webhook"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				if value.(*models.BatchJob).CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns the handler for POST /api/v1/peek/batch. It creates
// the job, answers immediately with its ID and peeks every URL in the
// background.
func PostBatch(p *Peeker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchPeekRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.PeekResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		jobID := "batch-" + randomID()
		job := models.NewBatchJob(jobID, len(req.URLs), req.WebhookURL, req.WebhookSecret)
		batchStore.Store(jobID, job)

		go runBatch(p, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.URLs),
		})
	}
}

// GetBatch returns the handler for GET /api/v1/peek/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, models.PeekResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		c.JSON(http.StatusOK, val.(*models.BatchJob).Snapshot())
	}
}

// runBatch peeks all URLs of a job with concurrency bounded by a
// semaphore, then fires the webhook when one is configured.
func runBatch(p *Peeker, job *models.BatchJob, req models.BatchPeekRequest) {
	maxConcurrent := p.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	for i, rawURL := range req.URLs {
		wg.Add(1)
		go func(idx int, targetURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			job.SetResult(idx, peekOne(p, targetURL, req.Options))
		}(i, rawURL)
	}
	wg.Wait()

	status := job.Finish()
	snapshot := job.Snapshot()
	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"completed", snapshot.Completed,
		"total", snapshot.Total,
	)

	if job.WebhookURL != "" {
		webhook.DeliverAsync(job.WebhookURL, job.WebhookSecret, &webhook.Event{
			Type:      "batch." + status,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      snapshot,
		})
	}
}

// peekOne runs a single peek for one URL using the shared batch options.
func peekOne(p *Peeker, targetURL string, opts models.BatchOptions) *models.PeekResponse {
	req := &models.PeekRequest{
		URL:         targetURL,
		Render:      opts.Render,
		Timeout:     opts.Timeout,
		Description: opts.Description,
	}
	req.Defaults()
	if err := req.Validate(); err != nil {
		return &models.PeekResponse{
			Success: false,
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeInvalidInput,
				Message: err.Error(),
			},
		}
	}

	// Batch peeks run detached from the HTTP request that spawned them.
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(req.Timeout)*time.Second)
	defer cancel()

	return p.Do(ctx, req)
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
