// Package runner drives a batch of page analyses to completion.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/croscope/croscope/cache"
	"github.com/croscope/croscope/capture"
	"github.com/croscope/croscope/models"
)

// PageCollector produces a captured page for one request.
type PageCollector interface {
	Collect(ctx context.Context, req models.PageRequest, opts capture.Options) (*models.CapturedPage, error)
}

// PageAnalyzer turns a captured page into a record. It never fails; errors
// inside the model/parse path surface as failure records.
type PageAnalyzer interface {
	Analyze(ctx context.Context, page *models.CapturedPage, req models.PageRequest, promptOverride string) models.AnalysisRecord
}

// Progress is called after each page finishes, with the count of pages
// done so far. May be nil.
type Progress func(completed int)

// Runner fans a batch of pages out over a bounded worker set and collects
// one record per page, in request order.
type Runner struct {
	collector   PageCollector
	analyzer    PageAnalyzer
	cache       *cache.Cache
	concurrency int
}

// New builds a Runner. concurrency bounds the number of pages in flight at
// once; values below 1 are clamped to 1. cache may be nil to disable reuse.
func New(collector PageCollector, analyzer PageAnalyzer, c *cache.Cache, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		collector:   collector,
		analyzer:    analyzer,
		cache:       c,
		concurrency: concurrency,
	}
}

// Batch holds everything one run needs.
type Batch struct {
	Pages    []models.PageRequest
	Prompt   string // batch-wide prompt override, empty for the default
	Capture  capture.Options
	CacheMax int // max age in ms for cache hits, 0 disables
	Progress Progress
}

// Run analyzes every page in the batch and returns exactly one record per
// page, index-aligned with b.Pages. A page failure never aborts the batch;
// the page gets a failure record and the rest proceed.
func (r *Runner) Run(ctx context.Context, b Batch) []models.AnalysisRecord {
	records := make([]models.AnalysisRecord, len(b.Pages))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	for i, page := range b.Pages {
		wg.Add(1)
		go func(idx int, req models.PageRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			records[idx] = r.runPage(ctx, req, b)

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			if b.Progress != nil {
				b.Progress(done)
			}
		}(i, page)
	}

	wg.Wait()
	return records
}

func (r *Runner) runPage(ctx context.Context, req models.PageRequest, b Batch) models.AnalysisRecord {
	start := time.Now()

	var key string
	if r.cache != nil && b.CacheMax > 0 {
		key = cache.Key(req.URL, b.Prompt)
		if rec, ok := r.cache.Get(key, b.CacheMax); ok {
			slog.Info("page served from cache", "url", req.URL, "platform", req.DisplayName)
			rec.Stamp(req)
			return rec
		}
	}

	page, err := r.collector.Collect(ctx, req, b.Capture)
	if err != nil {
		slog.Warn("page capture failed",
			"url", req.URL,
			"platform", req.DisplayName,
			"mode", req.Mode,
			"error", err,
		)
		return models.FailureRecord(req, "capture", err)
	}

	rec := r.analyzer.Analyze(ctx, page, req, b.Prompt)

	if key != "" {
		r.cache.Set(key, rec)
	}

	slog.Info("page analyzed",
		"url", req.URL,
		"platform", req.DisplayName,
		"failed", rec.Failed(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec
}

// Status derives the terminal job status from a finished record set.
func Status(records []models.AnalysisRecord) string {
	failed := 0
	for _, rec := range records {
		if rec.Failed() {
			failed++
		}
	}
	switch {
	case len(records) == 0 || failed == len(records):
		return models.JobFailed
	case failed > 0:
		return models.JobPartial
	default:
		return models.JobCompleted
	}
}
