package models

import (
	"net/url"
	"strings"
)

// CaptureMode selects how a page's screenshot is obtained.
type CaptureMode string

const (
	// ModeAuto drives a headless browser to render and screenshot the page.
	ModeAuto CaptureMode = "auto"

	// ModeManual serves a previously uploaded screenshot instead of
	// rendering the page (for bot-protected sites).
	ModeManual CaptureMode = "manual"
)

// PageRequest is one unit of analysis work. It is immutable once built and
// consumed exactly once by the batch runner.
type PageRequest struct {
	// URL is the landing page to analyze.
	URL string

	// DisplayName is the human label for the page's provider, derived from
	// the URL. It doubles as the lookup key for manual screenshots and as
	// the forced Platform value on the output record.
	DisplayName string

	// Mode selects automated capture or a manual screenshot lookup.
	Mode CaptureMode
}

// CapturedPage is the material fed to analysis for a single page: the
// screenshot bytes plus whatever visible text the collector recovered.
// Text may be empty (manual mode usually supplies none).
type CapturedPage struct {
	ImageBytes  []byte
	Text        string
	SourceURL   string
	DisplayName string
}

// DeriveName turns a landing-page URL into its provider display name:
// the first path segment when present, the host otherwise, lowercased with
// dots and dashes collapsed to underscores.
//
//	https://www.coursera.org/courses?x=1 → "courses"
//	https://udemy.com                    → "udemy_com"
func DeriveName(rawURL string) string {
	var base string

	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		base = u.Host
		if seg := strings.Trim(u.Path, "/"); seg != "" {
			base = strings.SplitN(seg, "/", 2)[0]
		}
	} else {
		// Not parseable as a URL; fall back to raw-string slicing.
		base = rawURL
		if i := strings.Index(base, "//"); i >= 0 {
			base = base[i+2:]
		}
		if i := strings.IndexByte(base, '/'); i >= 0 {
			if rest := strings.Trim(base[i:], "/"); rest != "" {
				base = strings.SplitN(rest, "/", 2)[0]
			} else {
				base = base[:i]
			}
		}
	}

	base = strings.ToLower(base)
	base = strings.ReplaceAll(base, ".", "_")
	base = strings.ReplaceAll(base, "-", "_")
	return base
}
