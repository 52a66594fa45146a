package driven

import (
	"context"

	"github.com/evanfisk/citriage/internal/domain/model"
)

// CheckStore defines the driven port for reading persisted check runs.
type CheckStore interface {
	// GetCheckRunsForPR returns all check runs for the given persisted PR,
	// ordered by name.
	GetCheckRunsForPR(ctx context.Context, prID int64) ([]model.PersistedCheckRun, error)

	// GetFailingCheckRuns returns all check runs for the repository that
	// completed with a failing conclusion, ordered by completion time
	// descending. Downstream triage workers read from this.
	GetFailingCheckRuns(ctx context.Context, repoFullName string) ([]model.PersistedCheckRun, error)
}
