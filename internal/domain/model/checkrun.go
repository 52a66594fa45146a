package model

import "time"

// CheckRunSnapshot is a CI check run as observed on GitHub at discovery time.
// ExternalID is GitHub's check run ID and is unique across the provider.
type CheckRunSnapshot struct {
	ExternalID    int64
	RepoFullName  string
	PRNumber      int
	HeadSHA       string
	Name          string
	Status        string // queued, in_progress, completed.
	Conclusion    string // success, failure, ...; empty while incomplete.
	DetailsURL    string
	OutputSummary string
	StartedAt     time.Time
	CompletedAt   time.Time // Zero until the run completes.
}

// Failed reports whether the check run completed with a failing conclusion.
func (c CheckRunSnapshot) Failed() bool {
	return c.Status == CheckStatusCompleted &&
		(c.Conclusion == CheckConclusionFailure || c.Conclusion == CheckConclusionTimedOut)
}

// PersistedCheckRun is the durable record corresponding to a CheckRunSnapshot,
// with a foreign key to the owning persisted PR.
type PersistedCheckRun struct {
	ID   int64
	PRID int64
	CheckRunSnapshot
	LastSyncedAt time.Time
}
