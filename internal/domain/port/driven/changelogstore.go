package driven

import (
	"context"
	"time"

	"github.com/evanfisk/citriage/internal/domain/model"
)

// ChangeLogStore defines the driven port for reading synchronized changes.
// This is the recently-changed view consumed by triage workers.
type ChangeLogStore interface {
	// RecentChanges returns change log entries for the repository detected at
	// or after since, ordered by detection time ascending.
	RecentChanges(ctx context.Context, repoFullName string, since time.Time) ([]model.ChangeLogEntry, error)
}
