package model

import "time"

// RunStatus represents the current state of a report run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ReportKind identifies which report a run produced.
type ReportKind string

const (
	ReportStage   ReportKind = "stage-report"
	ReportProduct ReportKind = "product-report"
)

// Run is one execution of a report pipeline, recorded in the run ledger.
type Run struct {
	ID     string     `json:"id"`
	Report ReportKind `json:"report"`
	// Week is the reporting period: the week label for the stage report,
	// the snapshot Monday for the product report.
	Week          string     `json:"week"`
	Status        RunStatus  `json:"status"`
	Result        *RunResult `json:"result,omitempty"`
	Error         string     `json:"error,omitempty"`
	ErrorCategory string     `json:"error_category,omitempty"` // transient | permanent
	StartedAt     time.Time  `json:"started_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RunResult holds the final counts of a completed run.
type RunResult struct {
	DealsFetched  int    `json:"deals_fetched"`
	RowsWritten   int    `json:"rows_written,omitempty"`
	CellsWritten  int    `json:"cells_written,omitempty"`
	SheetsTouched int    `json:"sheets_touched"`
	OutputPath    string `json:"output_path,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
}
