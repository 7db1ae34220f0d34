package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Capture   CaptureConfig
	Analysis  AnalysisConfig
	LLM       LLMConfig
	Report    ReportConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 5

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// CaptureConfig controls screenshot capture behavior.
type CaptureConfig struct {
	// ViewportWidth/ViewportHeight fix the browser viewport. The screenshot
	// itself is full-page, so height only affects layout breakpoints.
	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// NavigationTimeout is the max time for page navigation alone.
	NavigationTimeout time.Duration // default: 60s

	// DefaultTimeout is the per-page capture deadline.
	DefaultTimeout time.Duration // default: 120s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 300s

	// SettleDelay is the pause after navigation before the screenshot,
	// giving banners, fonts and lazy content time to render.
	SettleDelay time.Duration // default: 10s

	// ManualDir is where uploaded manual screenshots are stored.
	ManualDir string // default: "manual_screenshots"

	// BlockAds blocks requests to known ad/tracking domains during capture.
	// Resource types are never blocked: the screenshot needs them.
	BlockAds bool // default: true
}

// AnalysisConfig controls the per-page analysis pipeline.
type AnalysisConfig struct {
	// MaxImageDim is the pixel ceiling on the screenshot's larger dimension
	// before it is sent to the model; larger images are downscaled.
	MaxImageDim int // default: 2048

	// TextLimit is the hard character budget for page text in the prompt.
	TextLimit int // default: 15000

	// SnippetLimit bounds the raw-reply snippet attached to extraction
	// failures for operator diagnosis.
	SnippetLimit int // default: 500

	// Concurrency is the number of pages processed in parallel per batch.
	// 1 reproduces strictly sequential processing.
	Concurrency int // default: 3
}

// LLMConfig controls the multimodal model client.
type LLMConfig struct {
	// APIKey authenticates against the model API. Required for analysis.
	APIKey string

	// Model is the multimodal model used for page analysis.
	Model string // default: "gpt-4o-mini"

	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string // default: "https://api.openai.com/v1"

	// RequestsPerSecond and Burst cap the shared model-call rate across
	// all in-flight pages.
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 2
}

// ReportConfig controls report assembly.
type ReportConfig struct {
	// NarrativeModel is the model used for the narrative comparison.
	// Empty means reuse LLM.Model.
	NarrativeModel string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the per-page record cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached records.
	MaxEntries int // default: 1000
}

// WebhookConfig controls completion notifications.
type WebhookConfig struct {
	// Secret signs webhook payloads with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("CROSCOPE_HOST", "0.0.0.0"),
			Port: envIntOr("CROSCOPE_PORT", 8080),
			Mode: envOr("CROSCOPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("CROSCOPE_HEADLESS", true),
			MaxPages:     envIntOr("CROSCOPE_MAX_PAGES", 5),
			DefaultProxy: os.Getenv("CROSCOPE_PROXY"),
			NoSandbox:    envBoolOr("CROSCOPE_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("CROSCOPE_BROWSER_BIN"),
		},
		Capture: CaptureConfig{
			ViewportWidth:     envIntOr("CROSCOPE_VIEWPORT_WIDTH", 1920),
			ViewportHeight:    envIntOr("CROSCOPE_VIEWPORT_HEIGHT", 1080),
			NavigationTimeout: envDurationOr("CROSCOPE_NAV_TIMEOUT", 60*time.Second),
			DefaultTimeout:    envDurationOr("CROSCOPE_DEFAULT_TIMEOUT", 120*time.Second),
			MaxTimeout:        envDurationOr("CROSCOPE_MAX_TIMEOUT", 300*time.Second),
			SettleDelay:       envDurationOr("CROSCOPE_SETTLE_DELAY", 10*time.Second),
			ManualDir:         envOr("CROSCOPE_MANUAL_DIR", "manual_screenshots"),
			BlockAds:          envBoolOr("CROSCOPE_BLOCK_ADS", true),
		},
		Analysis: AnalysisConfig{
			MaxImageDim:  envIntOr("CROSCOPE_MAX_IMAGE_DIM", 2048),
			TextLimit:    envIntOr("CROSCOPE_TEXT_LIMIT", 15000),
			SnippetLimit: envIntOr("CROSCOPE_SNIPPET_LIMIT", 500),
			Concurrency:  envIntOr("CROSCOPE_CONCURRENCY", 3),
		},
		LLM: LLMConfig{
			APIKey:            os.Getenv("CROSCOPE_LLM_API_KEY"),
			Model:             envOr("CROSCOPE_LLM_MODEL", "gpt-4o-mini"),
			BaseURL:           envOr("CROSCOPE_LLM_BASE_URL", "https://api.openai.com/v1"),
			RequestsPerSecond: envFloatOr("CROSCOPE_LLM_RPS", 1.0),
			Burst:             envIntOr("CROSCOPE_LLM_BURST", 2),
		},
		Report: ReportConfig{
			NarrativeModel: os.Getenv("CROSCOPE_NARRATIVE_MODEL"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CROSCOPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("CROSCOPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CROSCOPE_RATE_RPS", 5.0),
			Burst:             envIntOr("CROSCOPE_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CROSCOPE_CACHE_MAX_ENTRIES", 1000),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("CROSCOPE_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("CROSCOPE_LOG_LEVEL", "info"),
			Format: envOr("CROSCOPE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
