package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CheckStore = (*CheckRepo)(nil)

// CheckRepo is the SQLite implementation of the CheckStore port interface.
// Read-only; writes happen through SyncRepo.
type CheckRepo struct {
	db *DB
}

// NewCheckRepo creates a new CheckRepo backed by the given DB.
func NewCheckRepo(db *DB) *CheckRepo {
	return &CheckRepo{db: db}
}

const checkColumnsJoined = `c.id, c.external_id, c.pr_id, p.repo_full_name, p.number,
	       c.head_sha, c.name, c.status, c.conclusion, c.details_url,
	       c.output_summary, c.started_at, c.completed_at, c.last_synced_at`

// GetCheckRunsForPR returns all check runs for the given persisted PR, ordered by name.
func (r *CheckRepo) GetCheckRunsForPR(ctx context.Context, prID int64) ([]model.PersistedCheckRun, error) {
	query := `
		SELECT ` + checkColumnsJoined + `
		FROM check_runs c
		JOIN pull_requests p ON p.id = c.pr_id
		WHERE c.pr_id = ?
		ORDER BY c.name
	`

	return r.queryCheckRuns(ctx, query, prID)
}

// GetFailingCheckRuns returns the repository's check runs that completed with
// a failing conclusion, newest completion first. This is the primary read for
// downstream triage workers.
func (r *CheckRepo) GetFailingCheckRuns(ctx context.Context, repoFullName string) ([]model.PersistedCheckRun, error) {
	query := `
		SELECT ` + checkColumnsJoined + `
		FROM check_runs c
		JOIN pull_requests p ON p.id = c.pr_id
		WHERE p.repo_full_name = ?
		  AND c.status = ?
		  AND c.conclusion IN (?, ?)
		ORDER BY c.completed_at DESC
	`

	return r.queryCheckRuns(ctx, query, repoFullName,
		model.CheckStatusCompleted, model.CheckConclusionFailure, model.CheckConclusionTimedOut)
}

func (r *CheckRepo) queryCheckRuns(ctx context.Context, query string, args ...any) ([]model.PersistedCheckRun, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query check runs: %w", err)
	}
	defer rows.Close()

	var runs []model.PersistedCheckRun
	for rows.Next() {
		run, err := scanCheckRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check runs: %w", err)
	}

	return runs, nil
}

func scanCheckRun(s scanner) (*model.PersistedCheckRun, error) {
	var run model.PersistedCheckRun
	var startedAt, completedAt sql.NullString
	var lastSyncedAt string

	err := s.Scan(
		&run.ID, &run.ExternalID, &run.PRID, &run.RepoFullName, &run.PRNumber,
		&run.HeadSHA, &run.Name, &run.Status, &run.Conclusion, &run.DetailsURL,
		&run.OutputSummary, &startedAt, &completedAt, &lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		if run.StartedAt, err = parseTime(startedAt.String); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
	}
	if completedAt.Valid {
		if run.CompletedAt, err = parseTime(completedAt.String); err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
	}
	if run.LastSyncedAt, err = parseTime(lastSyncedAt); err != nil {
		return nil, fmt.Errorf("parse last_synced_at: %w", err)
	}

	return &run, nil
}
