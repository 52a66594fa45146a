package model

// PRState is the lifecycle state of a pull request as reported by GitHub.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// ValidTransition reports whether a pull request may move from one lifecycle
// state to another. Merged is terminal; everything else may change freely
// (a closed PR can be reopened).
func ValidTransition(from, to PRState) bool {
	if from == PRStateMerged {
		return to == PRStateMerged
	}
	return true
}

// Check run status values from the GitHub Checks API.
const (
	CheckStatusQueued     = "queued"
	CheckStatusInProgress = "in_progress"
	CheckStatusCompleted  = "completed"
)

// Check run conclusion values. Empty while the run is incomplete.
const (
	CheckConclusionSuccess        = "success"
	CheckConclusionFailure        = "failure"
	CheckConclusionNeutral        = "neutral"
	CheckConclusionCancelled      = "cancelled"
	CheckConclusionSkipped        = "skipped"
	CheckConclusionTimedOut       = "timed_out"
	CheckConclusionActionRequired = "action_required"
)

// ChangeType classifies a detected delta.
type ChangeType string

const (
	ChangeTypeNew     ChangeType = "new"
	ChangeTypeUpdated ChangeType = "updated"
)

// ErrorType classifies a processing failure by the phase that produced it.
type ErrorType string

const (
	ErrorTypeDiscovery       ErrorType = "discovery_failure"
	ErrorTypeChangeDetection ErrorType = "change_detection_failure"
	ErrorTypeSynchronization ErrorType = "synchronization_failure"
)

// Phase is a stage of a repository's processing cycle. Transitions are
// linear; any phase may transition directly to PhaseFailed, which is terminal.
type Phase string

const (
	PhaseStart         Phase = "start"
	PhaseDiscovering   Phase = "discovering"
	PhaseDetecting     Phase = "detecting"
	PhaseSynchronizing Phase = "synchronizing"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)
