package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/croscope/croscope/cache"
	"github.com/croscope/croscope/capture"
	"github.com/croscope/croscope/models"
)

// fakeCollector fails any URL listed in failURLs and otherwise returns a
// stub page. It records the peak number of concurrent Collect calls.
type fakeCollector struct {
	failURLs map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	calls    []string
}

func (f *fakeCollector) Collect(_ context.Context, req models.PageRequest, _ capture.Options) (*models.CapturedPage, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	f.mu.Unlock()

	if err, ok := f.failURLs[req.URL]; ok {
		return nil, err
	}
	return &models.CapturedPage{
		ImageBytes:  []byte("png"),
		Text:        "text for " + req.URL,
		SourceURL:   req.URL,
		DisplayName: req.DisplayName,
	}, nil
}

// fakeAnalyzer returns a one-field record, or a failure record for URLs in
// failURLs.
type fakeAnalyzer struct {
	failURLs map[string]bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, page *models.CapturedPage, req models.PageRequest, _ string) models.AnalysisRecord {
	if f.failURLs[req.URL] {
		return models.FailureRecord(req, "parse", errors.New("no JSON recovered"))
	}
	rec := models.AnalysisRecord{"Offer": "offer for " + req.URL}
	rec.Stamp(req)
	return rec
}

func pages(urls ...string) []models.PageRequest {
	out := make([]models.PageRequest, len(urls))
	for i, u := range urls {
		out[i] = models.PageRequest{URL: u, DisplayName: models.DeriveName(u)}
	}
	return out
}

func TestRun_OneRecordPerPageInOrder(t *testing.T) {
	urls := []string{
		"https://a.com/one",
		"https://b.com/two",
		"https://c.com/three",
		"https://d.com/four",
	}
	r := New(&fakeCollector{}, &fakeAnalyzer{}, nil, 2)

	records := r.Run(context.Background(), Batch{Pages: pages(urls...)})
	if len(records) != len(urls) {
		t.Fatalf("got %d records, want %d", len(records), len(urls))
	}
	for i, rec := range records {
		if rec[models.KeyURL] != urls[i] {
			t.Errorf("record %d URL = %q, want %q (request order must hold)", i, rec[models.KeyURL], urls[i])
		}
	}
}

func TestRun_MixedOutcomes(t *testing.T) {
	captureErr := models.NewAnalysisError(models.ErrCodeCaptureTimeout, "deadline exceeded", nil)
	col := &fakeCollector{failURLs: map[string]error{"https://b.com": captureErr}}
	an := &fakeAnalyzer{failURLs: map[string]bool{"https://c.com": true}}
	r := New(col, an, nil, 3)

	records := r.Run(context.Background(), Batch{
		Pages: pages("https://a.com", "https://b.com", "https://c.com"),
	})

	if records[0].Failed() {
		t.Errorf("page 0 should succeed: %v", records[0])
	}
	if !records[1].Failed() {
		t.Error("page 1 should carry a capture failure record")
	}
	if !strings.HasPrefix(records[1][models.KeyError], "capture:") {
		t.Errorf("page 1 error = %q, want capture stage prefix", records[1][models.KeyError])
	}
	if !records[2].Failed() {
		t.Error("page 2 should carry a parse failure record")
	}
	// Identity always survives, even on failures.
	for i, rec := range records {
		if rec[models.KeyURL] == "" || rec[models.KeyPlatform] == "" {
			t.Errorf("record %d lost its identity: %v", i, rec)
		}
	}
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	urls := make([]string, 20)
	for i := range urls {
		urls[i] = "https://site.com/" + string(rune('a'+i))
	}
	col := &fakeCollector{}
	r := New(col, &fakeAnalyzer{}, nil, 3)

	r.Run(context.Background(), Batch{Pages: pages(urls...)})

	if peak := col.peak.Load(); peak > 3 {
		t.Errorf("peak concurrent collects = %d, want <= 3", peak)
	}
}

func TestRun_ProgressReachesTotal(t *testing.T) {
	var last atomic.Int32
	r := New(&fakeCollector{}, &fakeAnalyzer{}, nil, 2)

	r.Run(context.Background(), Batch{
		Pages: pages("https://a.com", "https://b.com", "https://c.com"),
		Progress: func(completed int) {
			last.Store(int32(completed))
		},
	})

	if last.Load() != 3 {
		t.Errorf("final progress = %d, want 3", last.Load())
	}
}

func TestRun_CacheHitSkipsCollect(t *testing.T) {
	cc := cache.New(100)
	col := &fakeCollector{}
	r := New(col, &fakeAnalyzer{}, cc, 1)

	batch := Batch{
		Pages:    pages("https://a.com"),
		CacheMax: 60_000,
	}

	first := r.Run(context.Background(), batch)
	if first[0].Failed() {
		t.Fatalf("first run failed: %v", first[0])
	}
	second := r.Run(context.Background(), batch)

	if len(col.calls) != 1 {
		t.Errorf("collector called %d times, want 1 (second run should hit cache)", len(col.calls))
	}
	if second[0]["Offer"] != first[0]["Offer"] {
		t.Errorf("cached record differs: %v vs %v", second[0], first[0])
	}
}

func TestRun_FailuresNotCached(t *testing.T) {
	cc := cache.New(100)
	captureErr := models.NewAnalysisError(models.ErrCodeNavigation, "dns error", nil)
	col := &fakeCollector{failURLs: map[string]error{"https://a.com": captureErr}}
	r := New(col, &fakeAnalyzer{}, cc, 1)

	batch := Batch{Pages: pages("https://a.com"), CacheMax: 60_000}
	r.Run(context.Background(), batch)
	r.Run(context.Background(), batch)

	if len(col.calls) != 2 {
		t.Errorf("collector called %d times, want 2 (failures must not be served from cache)", len(col.calls))
	}
}

func TestStatus(t *testing.T) {
	ok := models.AnalysisRecord{"Platform": "a", "URL": "u"}
	bad := models.FailureRecord(models.PageRequest{URL: "u", DisplayName: "a"}, "capture", errors.New("x"))

	tests := []struct {
		name    string
		records []models.AnalysisRecord
		want    string
	}{
		{"all succeeded", []models.AnalysisRecord{ok, ok}, models.JobCompleted},
		{"some failed", []models.AnalysisRecord{ok, bad}, models.JobPartial},
		{"all failed", []models.AnalysisRecord{bad, bad}, models.JobFailed},
		{"empty", nil, models.JobFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.records); got != tt.want {
				t.Errorf("Status = %q, want %q", got, tt.want)
			}
		})
	}
}
