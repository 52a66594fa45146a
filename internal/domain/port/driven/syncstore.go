package driven

import (
	"context"

	"github.com/evanfisk/citriage/internal/domain/model"
)

// SyncTx is the write surface available inside one synchronization
// transaction. Every call participates in the caller-supplied transaction;
// nothing is visible to readers until WithTx commits.
type SyncTx interface {
	// CreatePR inserts a new pull request and returns its storage ID.
	CreatePR(ctx context.Context, snap model.PRSnapshot) (int64, error)

	// UpdatePR applies only the changed fields to an existing pull request.
	UpdatePR(ctx context.Context, id int64, changes []model.FieldChange) error

	// CreateCheckRun inserts a new check run owned by the given PR and
	// returns its storage ID.
	CreateCheckRun(ctx context.Context, prID int64, snap model.CheckRunSnapshot) (int64, error)

	// UpdateCheckRun applies only the changed fields to an existing check run.
	UpdateCheckRun(ctx context.Context, id int64, changes []model.FieldChange) error

	// RecordChange appends a change log entry for downstream consumers.
	RecordChange(ctx context.Context, entry model.ChangeLogEntry) error
}

// SyncStore defines the driven port for transactional synchronization writes.
type SyncStore interface {
	// WithTx runs fn inside a single transaction. A non-nil error from fn
	// rolls back everything fn wrote; a nil return commits atomically.
	WithTx(ctx context.Context, fn func(tx SyncTx) error) error
}
