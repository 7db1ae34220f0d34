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
	"github.com/croscope/croscope/capture"
	"github.com/croscope/croscope/config"
	"github.com/croscope/croscope/models"
	"github.com/croscope/croscope/runner"
	"github.com/croscope/croscope/webhook"
)

// jobStore holds all in-flight and completed analysis jobs.
var jobStore sync.Map

func init() {
	// Background goroutine to expire jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			jobStore.Range(func(key, value any) bool {
				job := value.(*models.AnalysisJob)
				if job.CreatedAt < cutoff {
					jobStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostAnalyze returns a handler for POST /api/v1/analyze.
// It validates the request, creates a job, and launches the batch runner
// in the background.
func PostAnalyze(col *capture.Collector, run *runner.Runner, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
				Status: models.JobFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		timeout := time.Duration(req.Options.Timeout) * time.Second
		if timeout > cfg.Capture.MaxTimeout {
			timeout = cfg.Capture.MaxTimeout
		}

		pages := req.PageRequests(col.Manual().Has)

		jobID := "job-" + randomID()
		job := &models.AnalysisJob{
			ID:        jobID,
			Status:    models.JobProcessing,
			Total:     len(pages),
			Pages:     pages,
			Prompt:    req.Prompt,
			CreatedAt: time.Now().Unix(),
		}
		jobStore.Store(jobID, job)

		batch := runner.Batch{
			Pages:  pages,
			Prompt: req.Prompt,
			Capture: capture.Options{
				Timeout:         timeout,
				SettleDelay:     time.Duration(req.Options.SettleMs) * time.Millisecond,
				Stealth:         req.Options.Stealth,
				FetchManualText: req.Options.FetchManualText,
				CSSSelector:     req.Options.CSSSelector,
			},
			CacheMax: req.Options.CacheMaxAgeMs,
			Progress: func(completed int) { job.Completed = completed },
		}

		go runJob(run, job, batch, req.Options.WebhookURL, cfg.Webhook.Secret)

		c.JSON(http.StatusOK, models.AnalyzeResponse{
			ID:     jobID,
			Status: models.JobProcessing,
			Total:  len(pages),
		})
	}
}

// GetAnalyze returns a handler for GET /api/v1/analyze/:id.
func GetAnalyze() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := loadJob(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.AnalyzeResponse{
				Status: models.JobFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "analysis job not found",
				},
			})
			return
		}

		c.JSON(http.StatusOK, models.JobStatusResponse{
			ID:        job.ID,
			Status:    job.Status,
			Completed: job.Completed,
			Total:     job.Total,
			Records:   job.Records,
		})
	}
}

// runJob drives one batch to completion and records the outcome. A panic
// anywhere in the pipeline fails the job with a single synthetic record
// instead of killing the process silently.
func runJob(run *runner.Runner, job *models.AnalysisJob, batch runner.Batch, webhookURL, webhookSecret string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("analysis job panicked", "id", job.ID, "panic", r)
			job.Records = []models.AnalysisRecord{
				models.SystemRecord(models.NewAnalysisError(
					models.ErrCodeSystem, "analysis pipeline panicked", nil,
				)),
			}
			job.Status = models.JobFailed
		}
	}()

	start := time.Now()
	records := run.Run(context.Background(), batch)
	job.Records = records
	job.Completed = len(records)
	job.Status = runner.Status(records)

	slog.Info("analysis job finished",
		"id", job.ID,
		"status", job.Status,
		"total", job.Total,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if webhookURL != "" {
		eventType := "analysis.completed"
		if job.Status == models.JobFailed {
			eventType = "analysis.failed"
		}
		webhook.DeliverAsync(webhookURL, webhookSecret, &webhook.Event{
			Type:      eventType,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data: models.JobStatusResponse{
				ID:        job.ID,
				Status:    job.Status,
				Completed: job.Completed,
				Total:     job.Total,
				Records:   job.Records,
			},
		})
	}
}

// loadJob fetches a job from the store by ID.
func loadJob(id string) (*models.AnalysisJob, bool) {
	val, ok := jobStore.Load(id)
	if !ok {
		return nil, false
	}
	return val.(*models.AnalysisJob), true
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
