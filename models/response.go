package models

// AnalyzeResponse is the immediate response for POST /api/v1/analyze.
type AnalyzeResponse struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status"`
	Total  int          `json:"total,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// JobStatusResponse is the response for GET /api/v1/analyze/:id.
type JobStatusResponse struct {
	ID        string           `json:"id"`
	Status    string           `json:"status"`
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
	Records   []AnalysisRecord `json:"records,omitempty"`
}

// NarrativeResponse is the response for POST /api/v1/analyze/:id/narrative.
type NarrativeResponse struct {
	Success   bool         `json:"success"`
	Narrative string       `json:"narrative,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// UploadResponse is the response for POST /api/v1/screenshots.
type UploadResponse struct {
	Saved []string     `json:"saved"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
