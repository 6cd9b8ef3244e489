package ipc

import "winnow/internal/api"

// Item mirrors the workflow item DTO for IPC callers.
type Item = api.Item

// ItemDetail mirrors the annotated item DTO for IPC callers.
type ItemDetail = api.ItemDetail

// StatsSummary mirrors the catalog statistics DTO for IPC callers.
type StatsSummary = api.StatsSummary

// StartRequest resumes the daemon's background services.
type StartRequest struct{}

// StartResponse indicates whether the services were started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon's background services.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StepHealth describes readiness of one reconcile step.
type StepHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail"`
}

// CycleSummary is the wire form of a reconcile cycle report.
type CycleSummary struct {
	CycleID         string `json:"cycle_id"`
	StartedAt       string `json:"started_at"`
	DurationMillis  int64  `json:"duration_millis"`
	RootsScanned    int    `json:"roots_scanned"`
	RootsFailed     int    `json:"roots_failed"`
	ItemsSeen       int    `json:"items_seen"`
	NewItems        int    `json:"new_items"`
	SweptGone       int64  `json:"swept_gone"`
	MarksDeleted    int64  `json:"marks_deleted"`
	TrashSwept      int64  `json:"trash_swept"`
	Purged          int    `json:"purged"`
	PurgeFailed     int    `json:"purge_failed"`
	SessionsExpired int64  `json:"sessions_expired"`
	Errors          int    `json:"errors"`
}

// StatusResponse represents combined daemon status information.
type StatusResponse struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	DatabasePath string        `json:"database_path"`
	LockPath     string        `json:"lock_path"`
	Stats        StatsSummary  `json:"stats"`
	StepHealth   []StepHealth  `json:"step_health"`
	LastCycle    *CycleSummary `json:"last_cycle"`
	WatchedRoots []string      `json:"watched_roots"`
}

// ScanRequest triggers a full library scan.
type ScanRequest struct{}

// ScanResponse summarizes the scan.
type ScanResponse struct {
	RootsScanned int   `json:"roots_scanned"`
	RootsFailed  int   `json:"roots_failed"`
	ItemsSeen    int   `json:"items_seen"`
	NewItems     int   `json:"new_items"`
	SweptGone    int64 `json:"swept_gone"`
}

// ReconcileRequest triggers one maintenance cycle.
type ReconcileRequest struct{}

// ReconcileResponse carries the cycle report.
type ReconcileResponse struct {
	Summary CycleSummary `json:"summary"`
}

// StatsRequest fetches aggregate catalog statistics.
type StatsRequest struct{}

// StatsResponse reports catalog statistics.
type StatsResponse struct {
	Stats StatsSummary `json:"stats"`
}

// ListRequest filters the catalog listing by scope, optionally
// narrowed to one user's view.
type ListRequest struct {
	Scope string `json:"scope"`
	User  string `json:"user,omitempty"`
}

// ListResponse contains catalog entries.
type ListResponse struct {
	Items []Item `json:"items"`
}

// DescribeRequest fetches a single catalog item by id.
type DescribeRequest struct {
	ID int64 `json:"id"`
}

// DescribeResponse contains a single annotated catalog entry.
type DescribeResponse struct {
	Item ItemDetail `json:"item"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalItems       int      `json:"total_items"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
