package model

// Tracked field names used in field-level change records. The sqlite sync
// store maps these to columns; anything outside this set is rejected there.
const (
	FieldTitle         = "title"
	FieldAuthor        = "author"
	FieldState         = "state"
	FieldIsDraft       = "is_draft"
	FieldBaseBranch    = "base_branch"
	FieldHeadBranch    = "head_branch"
	FieldBaseSHA       = "base_sha"
	FieldHeadSHA       = "head_sha"
	FieldLabels        = "labels"
	FieldAssignees     = "assignees"
	FieldMilestone     = "milestone"
	FieldURL           = "url"
	FieldUpdatedAt     = "updated_at"
	FieldClosedAt      = "closed_at"
	FieldMergedAt      = "merged_at"
	FieldName          = "name"
	FieldStatus        = "status"
	FieldConclusion    = "conclusion"
	FieldDetailsURL    = "details_url"
	FieldOutputSummary = "output_summary"
	FieldStartedAt     = "started_at"
	FieldCompletedAt   = "completed_at"
)

// FieldChange records one field whose value differs between the persisted
// record and the fresh snapshot, with the old value captured.
type FieldChange struct {
	Field string
	Old   any
	New   any
}

// PRChange is one detected pull request delta. For ChangeTypeNew, PRID is
// zero and Changes is empty; for ChangeTypeUpdated, Changes holds every
// differing field.
type PRChange struct {
	Type     ChangeType
	PRID     int64
	Snapshot PRSnapshot
	Changes  []FieldChange
}

// FieldChanged reports whether the named field differs.
func (c PRChange) FieldChanged(field string) bool {
	for _, fc := range c.Changes {
		if fc.Field == field {
			return true
		}
	}
	return false
}

// OldValue returns the persisted value of the named field, or nil if the
// field did not change.
func (c PRChange) OldValue(field string) any {
	for _, fc := range c.Changes {
		if fc.Field == field {
			return fc.Old
		}
	}
	return nil
}

// CheckRunChange is one detected check run delta, mirroring PRChange.
type CheckRunChange struct {
	Type     ChangeType
	CheckID  int64 // Persisted check run ID; zero for new.
	PRID     int64 // Persisted owning PR ID; zero when the PR itself is new.
	Snapshot CheckRunSnapshot
	Changes  []FieldChange
}

// FieldChanged reports whether the named field differs.
func (c CheckRunChange) FieldChanged(field string) bool {
	for _, fc := range c.Changes {
		if fc.Field == field {
			return true
		}
	}
	return false
}

// OldValue returns the persisted value of the named field, or nil if the
// field did not change.
func (c CheckRunChange) OldValue(field string) any {
	for _, fc := range c.Changes {
		if fc.Field == field {
			return fc.Old
		}
	}
	return nil
}

// ChangeSet is the full set of deltas for one repository's discovery cycle.
// It is an ephemeral hand-off between detection and synchronization and is
// never persisted itself.
type ChangeSet struct {
	RepoFullName     string
	NewPRs           []PRChange
	UpdatedPRs       []PRChange
	NewCheckRuns     []CheckRunChange
	UpdatedCheckRuns []CheckRunChange
}

// Total returns the number of change records in the set.
func (cs *ChangeSet) Total() int {
	return len(cs.NewPRs) + len(cs.UpdatedPRs) + len(cs.NewCheckRuns) + len(cs.UpdatedCheckRuns)
}

// Empty reports whether the set contains no changes.
func (cs *ChangeSet) Empty() bool {
	return cs.Total() == 0
}
