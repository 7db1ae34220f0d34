package models

// AnalyzeRequest is the payload for POST /api/v1/analyze.
type AnalyzeRequest struct {
	// URLs is the list of landing pages to analyze. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=50"`

	// Prompt, when set, fully replaces the default analysis prompt for
	// every page in the batch. Used verbatim; the template is bypassed.
	Prompt string `json:"prompt,omitempty"`

	// Options contains shared settings applied to every page.
	Options AnalyzeOptions `json:"options"`
}

// AnalyzeOptions are the shared capture/analysis settings for a batch.
type AnalyzeOptions struct {
	// Timeout is the maximum duration in seconds for one page's capture.
	// Default: 120. Max: 300.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`

	// SettleMs is the delay after navigation before the screenshot is
	// taken, giving late-loading content time to render. Default: 10000.
	SettleMs int `json:"settle_ms,omitempty" binding:"omitempty,min=0,max=60000"`

	// Stealth enables anti-bot-detection evasions during capture.
	Stealth bool `json:"stealth,omitempty"`

	// FetchManualText enables a best-effort plain-HTTP text fetch for
	// manual-mode pages, which otherwise carry no page text.
	FetchManualText bool `json:"fetch_manual_text,omitempty"`

	// CSSSelector, when set, confines extracted page text to the matched
	// elements (e.g. "main").
	CSSSelector string `json:"css_selector,omitempty"`

	// CacheMaxAgeMs allows serving a page's record from cache when a
	// result for the same URL+prompt is younger than this. 0 disables.
	CacheMaxAgeMs int `json:"cache_max_age_ms,omitempty" binding:"omitempty,min=0"`

	// WebhookURL, when set, receives a signed event on batch completion.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *AnalyzeRequest) Defaults() {
	if r.Options.Timeout == 0 {
		r.Options.Timeout = 120
	}
	if r.Options.SettleMs == 0 {
		r.Options.SettleMs = 10000
	}
}

// PageRequests expands the URL list into per-page work units. hasManual
// reports whether an uploaded screenshot exists for a derived display name;
// pages with one are switched to manual mode.
func (r *AnalyzeRequest) PageRequests(hasManual func(name string) bool) []PageRequest {
	pages := make([]PageRequest, 0, len(r.URLs))
	for _, u := range r.URLs {
		name := DeriveName(u)
		mode := ModeAuto
		if hasManual != nil && hasManual(name) {
			mode = ModeManual
		}
		pages = append(pages, PageRequest{
			URL:         u,
			DisplayName: name,
			Mode:        mode,
		})
	}
	return pages
}

// NarrativeRequest is the payload for POST /api/v1/analyze/:id/narrative.
type NarrativeRequest struct {
	// Subject is the display name of the row the comparison is written for.
	// Required.
	Subject string `json:"subject" binding:"required"`
}
