package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PRStore = (*PRRepo)(nil)

// PRRepo is the SQLite implementation of the PRStore port interface. It is
// read-only; writes happen through SyncRepo so each repository's change set
// commits in one transaction.
type PRRepo struct {
	db *DB
}

// NewPRRepo creates a new PRRepo backed by the given DB.
func NewPRRepo(db *DB) *PRRepo {
	return &PRRepo{db: db}
}

const prColumns = `id, repo_full_name, number, title, author, state, is_draft,
	       base_branch, head_branch, base_sha, head_sha, labels, assignees,
	       milestone, url, created_at, updated_at, closed_at, merged_at, last_synced_at`

// GetRecentPRs returns all persisted PRs for the repository whose remote
// updated_at is at or after since, ordered by number.
func (r *PRRepo) GetRecentPRs(ctx context.Context, repoFullName string, since time.Time) ([]model.PersistedPR, error) {
	query := `
		SELECT ` + prColumns + `
		FROM pull_requests
		WHERE repo_full_name = ? AND updated_at >= ?
		ORDER BY number
	`

	return r.queryPRs(ctx, query, repoFullName, since.UTC())
}

// GetByNumber retrieves a single pull request by repository and number.
// Returns nil, nil if the pull request does not exist.
func (r *PRRepo) GetByNumber(ctx context.Context, repoFullName string, number int) (*model.PersistedPR, error) {
	query := `
		SELECT ` + prColumns + `
		FROM pull_requests
		WHERE repo_full_name = ? AND number = ?
	`

	pr, err := scanPR(r.db.Reader.QueryRowContext(ctx, query, repoFullName, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get PR %s#%d: %w", repoFullName, number, err)
	}

	return pr, nil
}

// GetByState returns all pull requests in the given lifecycle state, ordered
// by remote updated_at descending.
func (r *PRRepo) GetByState(ctx context.Context, state model.PRState) ([]model.PersistedPR, error) {
	query := `
		SELECT ` + prColumns + `
		FROM pull_requests
		WHERE state = ?
		ORDER BY updated_at DESC
	`

	return r.queryPRs(ctx, query, string(state))
}

func (r *PRRepo) queryPRs(ctx context.Context, query string, args ...any) ([]model.PersistedPR, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pull requests: %w", err)
	}
	defer rows.Close()

	var prs []model.PersistedPR
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

func scanPR(s scanner) (*model.PersistedPR, error) {
	var pr model.PersistedPR
	var state string
	var isDraft int
	var labelsJSON, assigneesJSON string
	var createdAt, updatedAt, lastSyncedAt string
	var closedAt, mergedAt sql.NullString

	err := s.Scan(
		&pr.ID, &pr.RepoFullName, &pr.Number, &pr.Title, &pr.Author,
		&state, &isDraft, &pr.BaseBranch, &pr.HeadBranch, &pr.BaseSHA, &pr.HeadSHA,
		&labelsJSON, &assigneesJSON, &pr.Milestone, &pr.URL,
		&createdAt, &updatedAt, &closedAt, &mergedAt, &lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	pr.State = model.PRState(state)
	pr.IsDraft = isDraft != 0

	if err := json.Unmarshal([]byte(labelsJSON), &pr.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	if err := json.Unmarshal([]byte(assigneesJSON), &pr.Assignees); err != nil {
		return nil, fmt.Errorf("unmarshal assignees: %w", err)
	}

	if pr.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if pr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if pr.LastSyncedAt, err = parseTime(lastSyncedAt); err != nil {
		return nil, fmt.Errorf("parse last_synced_at: %w", err)
	}

	if closedAt.Valid {
		if pr.ClosedAt, err = parseTime(closedAt.String); err != nil {
			return nil, fmt.Errorf("parse closed_at: %w", err)
		}
	}
	if mergedAt.Valid {
		if pr.MergedAt, err = parseTime(mergedAt.String); err != nil {
			return nil, fmt.Errorf("parse merged_at: %w", err)
		}
	}

	return &pr, nil
}
