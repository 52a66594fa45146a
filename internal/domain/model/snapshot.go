package model

import "time"

// PRSnapshot is a pull request as observed on GitHub at discovery time.
// A fresh snapshot is taken every discovery cycle and never mutated.
type PRSnapshot struct {
	RepoFullName string
	Number       int
	Title        string
	Author       string
	State        PRState
	IsDraft      bool
	BaseBranch   string
	HeadBranch   string
	BaseSHA      string
	HeadSHA      string
	Labels       []string
	Assignees    []string
	Milestone    string
	URL          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     time.Time // Zero unless the PR is closed or merged.
	MergedAt     time.Time // Zero unless the PR is merged.
}

// PersistedPR is the durable record corresponding to a PRSnapshot.
// (RepoFullName, Number) is unique among persisted PRs.
type PersistedPR struct {
	ID int64
	PRSnapshot
	LastSyncedAt time.Time
}

// RepoSnapshot bundles one repository's discovery output: the PR snapshots,
// check runs keyed by PR number, and any per-PR check fetch errors that
// degraded (but did not abort) discovery.
type RepoSnapshot struct {
	RepoFullName string
	PRs          []PRSnapshot
	ChecksByPR   map[int][]CheckRunSnapshot
	CheckErrors  map[int]error
}

// CheckRunCount returns the total number of check run snapshots across all PRs.
func (s *RepoSnapshot) CheckRunCount() int {
	var n int
	for _, runs := range s.ChecksByPR {
		n += len(runs)
	}
	return n
}
