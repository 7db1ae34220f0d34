package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/croscope/croscope/analysis"
	"github.com/croscope/croscope/api"
	"github.com/croscope/croscope/cache"
	"github.com/croscope/croscope/capture"
	"github.com/croscope/croscope/config"
	"github.com/croscope/croscope/llm"
	"github.com/croscope/croscope/report"
	"github.com/croscope/croscope/runner"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("croscope starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
		"model", cfg.LLM.Model,
	)

	if cfg.LLM.APIKey == "" {
		slog.Warn("CROSCOPE_LLM_API_KEY is not set; analysis requests will fail")
	}

	// ── 3. Initialise collector (launches browser) ──────────────────
	col, err := capture.NewCollector(cfg.Browser, cfg.Capture)
	if err != nil {
		slog.Error("failed to initialise collector", "error", err)
		os.Exit(1)
	}
	defer col.Close()

	// ── 4. Initialise model client and analyzer ─────────────────────
	llmClient := llm.NewClient(nil, cfg.LLM)
	analyzer := analysis.NewAnalyzer(llmClient, cfg.Analysis)

	// ── 4b. Initialise record cache and batch runner ────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	run := runner.New(col, analyzer, cc, cfg.Analysis.Concurrency)

	// ── 4c. Initialise narrator ─────────────────────────────────────
	narrativeModel := cfg.Report.NarrativeModel
	if narrativeModel == "" {
		narrativeModel = cfg.LLM.Model
	}
	narrator := report.NewNarrator(llmClient, narrativeModel)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(col, run, narrator, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// col.Close() runs via defer — drains page pool and kills Chrome.
	slog.Info("croscope stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
