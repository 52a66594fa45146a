package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SyncStore = (*SyncRepo)(nil)
	_ driven.SyncTx    = (*syncTx)(nil)
)

// SyncRepo is the SQLite implementation of the SyncStore port. One call to
// WithTx covers one repository's whole change set: everything commits or
// nothing does.
type SyncRepo struct {
	db *DB
}

// NewSyncRepo creates a new SyncRepo backed by the given DB.
func NewSyncRepo(db *DB) *SyncRepo {
	return &SyncRepo{db: db}
}

// WithTx runs fn inside a single write transaction. A non-nil error from fn
// rolls back every write fn made; nil commits them atomically.
func (r *SyncRepo) WithTx(ctx context.Context, fn func(tx driven.SyncTx) error) error {
	tx, err := r.db.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if err := fn(&syncTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit change set: %w", err)
	}

	return nil
}

// syncTx implements driven.SyncTx over one *sql.Tx.
type syncTx struct {
	tx *sql.Tx
}

// Columns updatable through field changes, keyed by the model field name.
// Anything outside these maps is rejected, so a malformed change record can
// never write an arbitrary column.
var prFieldColumns = map[string]string{
	model.FieldTitle:      "title",
	model.FieldAuthor:     "author",
	model.FieldState:      "state",
	model.FieldIsDraft:    "is_draft",
	model.FieldBaseBranch: "base_branch",
	model.FieldHeadBranch: "head_branch",
	model.FieldBaseSHA:    "base_sha",
	model.FieldHeadSHA:    "head_sha",
	model.FieldLabels:     "labels",
	model.FieldAssignees:  "assignees",
	model.FieldMilestone:  "milestone",
	model.FieldURL:        "url",
	model.FieldUpdatedAt:  "updated_at",
	model.FieldClosedAt:   "closed_at",
	model.FieldMergedAt:   "merged_at",
}

var checkFieldColumns = map[string]string{
	model.FieldName:          "name",
	model.FieldStatus:        "status",
	model.FieldConclusion:    "conclusion",
	model.FieldDetailsURL:    "details_url",
	model.FieldOutputSummary: "output_summary",
	model.FieldStartedAt:     "started_at",
	model.FieldCompletedAt:   "completed_at",
}

// CreatePR inserts a new pull request row and returns its storage ID.
func (t *syncTx) CreatePR(ctx context.Context, snap model.PRSnapshot) (int64, error) {
	const query = `
		INSERT INTO pull_requests (
			repo_full_name, number, title, author, state, is_draft,
			base_branch, head_branch, base_sha, head_sha, labels, assignees,
			milestone, url, created_at, updated_at, closed_at, merged_at, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	labels, err := marshalStrings(snap.Labels)
	if err != nil {
		return 0, err
	}
	assignees, err := marshalStrings(snap.Assignees)
	if err != nil {
		return 0, err
	}

	result, err := t.tx.ExecContext(ctx, query,
		snap.RepoFullName, snap.Number, snap.Title, snap.Author, string(snap.State),
		boolToInt(snap.IsDraft), snap.BaseBranch, snap.HeadBranch, snap.BaseSHA, snap.HeadSHA,
		labels, assignees, snap.Milestone, snap.URL,
		snap.CreatedAt.UTC(), snap.UpdatedAt.UTC(), timeOrNil(snap.ClosedAt), timeOrNil(snap.MergedAt),
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert pull request %s#%d: %w", snap.RepoFullName, snap.Number, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("pull request insert id: %w", err)
	}

	return id, nil
}

// UpdatePR applies the changed fields to an existing pull request row.
// An invalid lifecycle transition (a merged PR reported open or closed) is
// logged and applied anyway; remote state is treated as authoritative.
func (t *syncTx) UpdatePR(ctx context.Context, id int64, changes []model.FieldChange) error {
	warnInvalidTransition(id, changes)

	return t.applyChanges(ctx, "pull_requests", prFieldColumns, id, changes)
}

// CreateCheckRun inserts a new check run row owned by prID and returns its
// storage ID.
func (t *syncTx) CreateCheckRun(ctx context.Context, prID int64, snap model.CheckRunSnapshot) (int64, error) {
	const query = `
		INSERT INTO check_runs (
			external_id, pr_id, head_sha, name, status, conclusion,
			details_url, output_summary, started_at, completed_at, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := t.tx.ExecContext(ctx, query,
		snap.ExternalID, prID, snap.HeadSHA, snap.Name, snap.Status, snap.Conclusion,
		snap.DetailsURL, snap.OutputSummary,
		timeOrNil(snap.StartedAt), timeOrNil(snap.CompletedAt),
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert check run %d: %w", snap.ExternalID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("check run insert id: %w", err)
	}

	return id, nil
}

// UpdateCheckRun applies the changed fields to an existing check run row.
func (t *syncTx) UpdateCheckRun(ctx context.Context, id int64, changes []model.FieldChange) error {
	return t.applyChanges(ctx, "check_runs", checkFieldColumns, id, changes)
}

// RecordChange appends a change log entry.
func (t *syncTx) RecordChange(ctx context.Context, entry model.ChangeLogEntry) error {
	const query = `
		INSERT INTO change_log (
			repo_full_name, record_type, change_type, record_id,
			pr_number, external_id, fields, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	fields, err := marshalStrings(entry.Fields)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, query,
		entry.RepoFullName, entry.RecordType, string(entry.ChangeType), entry.RecordID,
		entry.PRNumber, entry.ExternalID, fields, entry.DetectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert change log entry: %w", err)
	}

	return nil
}

// applyChanges builds and executes a partial UPDATE from the whitelisted
// changed fields. Updating zero rows means the baseline the detector compared
// against is gone, which aborts the transaction.
func (t *syncTx) applyChanges(ctx context.Context, table string, columns map[string]string, id int64, changes []model.FieldChange) error {
	if len(changes) == 0 {
		return fmt.Errorf("update %s %d: empty change list", table, id)
	}

	setClauses := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+2)

	for _, fc := range changes {
		column, ok := columns[fc.Field]
		if !ok {
			return fmt.Errorf("update %s %d: unknown field %q", table, id, fc.Field)
		}

		value, err := bindValue(fc.New)
		if err != nil {
			return fmt.Errorf("update %s %d field %q: %w", table, id, fc.Field, err)
		}

		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
	}

	setClauses = append(setClauses, "last_synced_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(setClauses, ", "))

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", table, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update %s %d: row not found", table, id)
	}

	return nil
}

// bindValue converts a field change value into a driver-bindable one.
func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case bool:
		return boolToInt(x), nil
	case model.PRState:
		return string(x), nil
	case []string:
		return marshalStrings(x)
	case time.Time:
		return timeOrNil(x), nil
	case int, int64:
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// warnInvalidTransition logs lifecycle transitions that should not happen on
// GitHub (merged is terminal). The update is still applied.
func warnInvalidTransition(id int64, changes []model.FieldChange) {
	for _, fc := range changes {
		if fc.Field != model.FieldState {
			continue
		}

		oldState, okOld := fc.Old.(model.PRState)
		newState, okNew := fc.New.(model.PRState)
		if okOld && okNew && !model.ValidTransition(oldState, newState) {
			slog.Warn("invalid PR lifecycle transition reported by remote",
				"pr_id", id,
				"from", string(oldState),
				"to", string(newState),
			)
		}
	}
}
