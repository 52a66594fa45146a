package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// DiscoveryService fetches the current remote snapshot for one repository:
// the PR list plus each PR's check runs. Results flow through the shared
// SnapshotCache so overlapping cycles and manual refreshes do not repeat
// identical fetches.
type DiscoveryService struct {
	gh              driven.GitHubClient
	cache           *SnapshotCache
	recentWindow    time.Duration
	maxCheckFetches int64
}

// NewDiscoveryService creates a DiscoveryService. recentWindow bounds how far
// back PR activity is discovered; maxCheckFetches bounds concurrent per-PR
// check run fetches within one repository's discovery.
func NewDiscoveryService(gh driven.GitHubClient, cache *SnapshotCache, recentWindow time.Duration, maxCheckFetches int64) *DiscoveryService {
	return &DiscoveryService{
		gh:              gh,
		cache:           cache,
		recentWindow:    recentWindow,
		maxCheckFetches: maxCheckFetches,
	}
}

func prListKey(repoFullName string) string {
	return repoFullName + "/pulls"
}

func checkRunsKey(repoFullName string, prNumber int) string {
	return fmt.Sprintf("%s/checks/%d", repoFullName, prNumber)
}

// Discover fetches the repository's full snapshot. It fails only when the PR
// listing itself cannot be fetched; individual check run fetch failures are
// recorded on the snapshot and logged, degrading the result rather than
// aborting it.
func (s *DiscoveryService) Discover(ctx context.Context, repoFullName string) (*model.RepoSnapshot, error) {
	prs, err := s.DiscoverPRs(ctx, repoFullName)
	if err != nil {
		return nil, discoveryError(repoFullName, err)
	}

	snap := &model.RepoSnapshot{
		RepoFullName: repoFullName,
		PRs:          prs,
		ChecksByPR:   make(map[int][]model.CheckRunSnapshot, len(prs)),
		CheckErrors:  make(map[int]error),
	}

	sem := semaphore.NewWeighted(s.maxCheckFetches)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, pr := range prs {
		if pr.HeadSHA == "" {
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, discoveryError(repoFullName, fmt.Errorf("acquiring check fetch slot: %w", err))
		}

		wg.Add(1)
		go func(pr model.PRSnapshot) {
			defer wg.Done()
			defer sem.Release(1)

			runs, err := s.DiscoverCheckRuns(ctx, repoFullName, pr)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				snap.CheckErrors[pr.Number] = err
				slog.Error("check run fetch failed",
					"repo", repoFullName,
					"pr", pr.Number,
					"error", err,
				)
				return
			}
			snap.ChecksByPR[pr.Number] = runs
		}(pr)
	}

	wg.Wait()

	slog.Debug("repository discovered",
		"repo", repoFullName,
		"prs", len(snap.PRs),
		"check_runs", snap.CheckRunCount(),
		"check_fetch_errors", len(snap.CheckErrors),
	)

	return snap, nil
}

// DiscoverPRs fetches the repository's recently updated PR snapshots,
// serving from cache when an unexpired entry exists. The PR list entry is
// TTL-only; GitHub provides no cheap validator for the listing as a whole,
// and the httpcache transport underneath already revalidates via ETags.
func (s *DiscoveryService) DiscoverPRs(ctx context.Context, repoFullName string) ([]model.PRSnapshot, error) {
	key := prListKey(repoFullName)
	if cached, ok := s.cache.Get(key, ""); ok {
		slog.Debug("pr list cache hit", "repo", repoFullName)
		return cached.([]model.PRSnapshot), nil
	}

	cutoff := time.Now().Add(-s.recentWindow)
	prs, err := s.gh.ListPullRequests(ctx, repoFullName, cutoff)
	if err != nil {
		return nil, err
	}

	s.cache.Put(key, "", prs)
	return prs, nil
}

// DiscoverCheckRuns fetches the check run snapshots for one PR's head commit.
// The cache entry is validated by head SHA, so a push invalidates it
// immediately while the TTL still forces re-fetch of in-progress runs.
func (s *DiscoveryService) DiscoverCheckRuns(ctx context.Context, repoFullName string, pr model.PRSnapshot) ([]model.CheckRunSnapshot, error) {
	key := checkRunsKey(repoFullName, pr.Number)
	if cached, ok := s.cache.Get(key, pr.HeadSHA); ok {
		slog.Debug("check runs cache hit", "repo", repoFullName, "pr", pr.Number)
		return cached.([]model.CheckRunSnapshot), nil
	}

	runs, err := s.gh.ListCheckRuns(ctx, repoFullName, pr.HeadSHA)
	if err != nil {
		return nil, err
	}

	for i := range runs {
		runs[i].PRNumber = pr.Number
	}

	s.cache.Put(key, pr.HeadSHA, runs)
	return runs, nil
}
