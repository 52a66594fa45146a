// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
// Every REST call is gated through the quota gate so a burst of concurrent
// discovery cycles cannot blow through the remote rate limit.
type Client struct {
	gh   *gh.Client
	gate driven.QuotaGate
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string, gate driven.QuotaGate) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client, gate: gate}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, gate driven.QuotaGate) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client, gate: gate}, nil
}

// ListPullRequests retrieves pull request snapshots for the given repository,
// newest activity first, stopping once the listing falls behind updatedSince.
// The GitHub PR list API has no since parameter, so the cutoff is enforced
// client-side on the updated-descending ordering.
func (c *Client) ListPullRequests(ctx context.Context, repoFullName string, updatedSince time.Time) ([]model.PRSnapshot, error) {
	owner, repo, err := model.SplitRepoFullName(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	snapshots := []model.PRSnapshot{}

	for {
		prs, resp, err := c.listPRPage(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s (page %d): %w", repoFullName, opts.Page, err)
		}

		logRateLimit(resp, repoFullName, opts.Page, len(prs))

		pastCutoff := false
		for _, pr := range prs {
			if !updatedSince.IsZero() && pr.GetUpdatedAt().Time.Before(updatedSince) {
				pastCutoff = true
				break
			}
			snapshots = append(snapshots, mapPullRequest(pr, repoFullName))
		}

		if pastCutoff || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return snapshots, nil
}

// listPRPage fetches a single page of the PR listing under a quota permit.
func (c *Client) listPRPage(ctx context.Context, owner, repo string, opts *gh.PullRequestListOptions) ([]*gh.PullRequest, *gh.Response, error) {
	release, err := c.gate.Acquire(ctx, 1)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	return c.gh.PullRequests.List(ctx, owner, repo, opts)
}

// ListCheckRuns retrieves all check run snapshots for the given ref (commit SHA).
// PRNumber on the returned snapshots is zero; the discovery service assigns it.
func (c *Client) ListCheckRuns(ctx context.Context, repoFullName, ref string) ([]model.CheckRunSnapshot, error) {
	owner, repo, err := model.SplitRepoFullName(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	snapshots := []model.CheckRunSnapshot{}

	for {
		result, resp, err := c.listCheckRunPage(ctx, owner, repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("listing check runs for %s@%s (page %d): %w", repoFullName, ref, opts.Page, err)
		}

		logRateLimit(resp, repoFullName+"/check-runs", opts.Page, len(result.CheckRuns))

		for _, cr := range result.CheckRuns {
			snapshots = append(snapshots, mapCheckRun(cr, repoFullName, ref))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return snapshots, nil
}

// listCheckRunPage fetches a single page of the check run listing under a quota permit.
func (c *Client) listCheckRunPage(ctx context.Context, owner, repo, ref string, opts *gh.ListCheckRunsOptions) (*gh.ListCheckRunsResults, *gh.Response, error) {
	release, err := c.gate.Acquire(ctx, 1)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	return c.gh.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, opts)
}

// mapPullRequest converts a go-github PullRequest to a PRSnapshot.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.PRSnapshot {
	state := model.PRState(pr.GetState())
	if !pr.GetMergedAt().IsZero() {
		state = model.PRStateMerged
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	assignees := make([]string, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		assignees = append(assignees, a.GetLogin())
	}

	return model.PRSnapshot{
		RepoFullName: repoFullName,
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
		State:        state,
		IsDraft:      pr.GetDraft(),
		BaseBranch:   pr.GetBase().GetRef(),
		HeadBranch:   pr.GetHead().GetRef(),
		BaseSHA:      pr.GetBase().GetSHA(),
		HeadSHA:      pr.GetHead().GetSHA(),
		Labels:       labels,
		Assignees:    assignees,
		Milestone:    pr.GetMilestone().GetTitle(),
		URL:          pr.GetHTMLURL(),
		CreatedAt:    pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
		ClosedAt:     pr.GetClosedAt().Time,
		MergedAt:     pr.GetMergedAt().Time,
	}
}

// mapCheckRun converts a go-github CheckRun to a CheckRunSnapshot.
func mapCheckRun(cr *gh.CheckRun, repoFullName, ref string) model.CheckRunSnapshot {
	var startedAt, completedAt time.Time
	if cr.StartedAt != nil {
		startedAt = cr.GetStartedAt().Time
	}
	if cr.CompletedAt != nil {
		completedAt = cr.GetCompletedAt().Time
	}

	return model.CheckRunSnapshot{
		ExternalID:    cr.GetID(),
		RepoFullName:  repoFullName,
		HeadSHA:       ref,
		Name:          cr.GetName(),
		Status:        cr.GetStatus(),
		Conclusion:    cr.GetConclusion(),
		DetailsURL:    cr.GetDetailsURL(),
		OutputSummary: cr.GetOutput().GetSummary(),
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
