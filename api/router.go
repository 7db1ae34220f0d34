// Package api wires the HTTP surface: routes, middleware and handlers.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/croscope/croscope/api/handler"
	"github.com/croscope/croscope/api/middleware"
	"github.com/croscope/croscope/capture"
	"github.com/croscope/croscope/config"
	"github.com/croscope/croscope/report"
	"github.com/croscope/croscope/runner"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(col *capture.Collector, run *runner.Runner, narrator *report.Narrator, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	// Browser-facing form, no auth; the page itself carries the API key.
	r.GET("/", handler.UI())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(col, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Batch analysis
	protected.POST("/analyze", handler.PostAnalyze(col, run, cfg))
	protected.GET("/analyze/:id", handler.GetAnalyze())
	protected.GET("/analyze/:id/csv", handler.GetCSV())
	protected.POST("/analyze/:id/narrative", handler.PostNarrative(narrator))

	// Manual screenshot uploads
	protected.POST("/screenshots", handler.PostScreenshots(col.Manual()))

	return r
}
