package driven

import (
	"context"
	"time"

	"github.com/evanfisk/citriage/internal/domain/model"
)

// PRStore defines the driven port for reading persisted pull requests.
// Writes go through SyncStore so they share one transaction per change set.
type PRStore interface {
	// GetRecentPRs returns all persisted PRs for the repository whose remote
	// updated_at is at or after since, ordered by number.
	GetRecentPRs(ctx context.Context, repoFullName string, since time.Time) ([]model.PersistedPR, error)

	// GetByNumber returns a single persisted PR, or nil, nil if absent.
	GetByNumber(ctx context.Context, repoFullName string, number int) (*model.PersistedPR, error)

	// GetByState returns all persisted PRs in the given lifecycle state,
	// ordered by remote updated_at descending.
	GetByState(ctx context.Context, state model.PRState) ([]model.PersistedPR, error)
}
