package model

import "time"

// RunStatus tracks a merge run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// MergeStats are the diagnostic counts produced by the merge engine and
// the post-processor. They describe the run; nothing downstream branches
// on them.
type MergeStats struct {
	ScanRecords  int `json:"scan_records"`
	SheetRecords int `json:"sheet_records"`
	Skipped      int `json:"skipped"`
	Groups       int `json:"groups"`
	ScanOnly     int `json:"scan_only"`
	SheetOnly    int `json:"sheet_only"`
	Fused        int `json:"fused"`
	OutputRows   int `json:"output_rows"`
	OutputCols   int `json:"output_cols"`
}

// Run records one invocation of the merge pipeline.
type Run struct {
	ID         string      `json:"id"`
	Status     RunStatus   `json:"status"`
	ScanPath   string      `json:"scan_path,omitempty"`
	SheetPath  string      `json:"sheet_path,omitempty"`
	OutputPath string      `json:"output_path,omitempty"`
	Stats      *MergeStats `json:"stats,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// CachedSite is a crawl-cache entry: the cleaned plaintext of one site.
type CachedSite struct {
	URL       string    `json:"url"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// QuotaUsage holds the per-day counters for rate-limited upstream work.
// Counters reset implicitly because the key is the UTC day.
type QuotaUsage struct {
	Day         string `json:"day"`
	Crawls      int    `json:"crawls"`
	Extractions int    `json:"extractions"`
}
