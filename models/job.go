package models

// Job statuses. A job moves processing → completed/partial/failed; "partial"
// means the batch finished but at least one page produced a failure record.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobPartial    = "partial"
	JobFailed     = "failed"
)

// AnalysisJob tracks an in-progress batch analysis.
type AnalysisJob struct {
	ID        string
	Status    string
	Total     int
	Completed int
	Pages     []PageRequest
	Prompt    string // batch-wide prompt override, empty for the default template
	Records   []AnalysisRecord
	CreatedAt int64 // unix timestamp
}
