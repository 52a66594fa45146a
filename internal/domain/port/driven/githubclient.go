package driven

import (
	"context"
	"time"

	"github.com/evanfisk/citriage/internal/domain/model"
)

// GitHubClient defines the driven port for the remote GitHub API.
type GitHubClient interface {
	// ListPullRequests returns snapshots of the repository's pull requests
	// that were updated at or after the given cutoff, paginating until the
	// listing is exhausted or falls behind the cutoff.
	ListPullRequests(ctx context.Context, repoFullName string, updatedSince time.Time) ([]model.PRSnapshot, error)

	// ListCheckRuns returns snapshots of all check runs for the given ref
	// (commit SHA), paginating until exhaustion. PRNumber on the returned
	// snapshots is zero; the caller assigns it.
	ListCheckRuns(ctx context.Context, repoFullName, ref string) ([]model.CheckRunSnapshot, error)
}
