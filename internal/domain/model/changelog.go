package model

import "time"

// Record types stored in the change log.
const (
	RecordTypePR       = "pull_request"
	RecordTypeCheckRun = "check_run"
)

// ChangeLogEntry is one synchronized change exposed to downstream consumers
// (failure analysis, fix workers, notifiers) as a queryable recently-changed
// view. Entries are written in the same transaction as the change itself.
type ChangeLogEntry struct {
	ID           int64
	RepoFullName string
	RecordType   string // pull_request or check_run.
	ChangeType   ChangeType
	RecordID     int64 // Persisted row ID of the changed record.
	PRNumber     int
	ExternalID   int64    // Check run external ID; zero for PR entries.
	Fields       []string // Names of the fields that changed; empty for new records.
	DetectedAt   time.Time
}
