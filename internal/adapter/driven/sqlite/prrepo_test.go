package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

func TestPRRepo_GetRecentPRs_FiltersByWindow(t *testing.T) {
	db := setupTestDB(t)
	store := NewSyncRepo(db)
	ctx := context.Background()

	recent := makePRSnapshot("octocat/hello-world", 1, "Recent PR")
	recent.UpdatedAt = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	old := makePRSnapshot("octocat/hello-world", 2, "Old PR")
	old.UpdatedAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	other := makePRSnapshot("octocat/other-repo", 3, "Other repo PR")
	other.UpdatedAt = recent.UpdatedAt

	for _, snap := range []model.PRSnapshot{recent, old, other} {
		createPR(t, store, snap)
	}

	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	prs, err := NewPRRepo(db).GetRecentPRs(ctx, "octocat/hello-world", since)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 1, prs[0].Number)
	assert.Equal(t, "Recent PR", prs[0].Title)
}

func TestPRRepo_GetRecentPRs_OrderedByNumber(t *testing.T) {
	db := setupTestDB(t)
	store := NewSyncRepo(db)
	ctx := context.Background()

	for _, n := range []int{7, 3, 5} {
		createPR(t, store, makePRSnapshot("octocat/hello-world", n, "PR"))
	}

	prs, err := NewPRRepo(db).GetRecentPRs(ctx, "octocat/hello-world", time.Time{})
	require.NoError(t, err)
	require.Len(t, prs, 3)
	assert.Equal(t, 3, prs[0].Number)
	assert.Equal(t, 5, prs[1].Number)
	assert.Equal(t, 7, prs[2].Number)
}

func TestPRRepo_GetByNumber_NotFound(t *testing.T) {
	db := setupTestDB(t)

	got, err := NewPRRepo(db).GetByNumber(context.Background(), "octocat/hello-world", 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPRRepo_GetByState(t *testing.T) {
	db := setupTestDB(t)
	store := NewSyncRepo(db)
	ctx := context.Background()

	open := makePRSnapshot("octocat/hello-world", 1, "Open PR")

	merged := makePRSnapshot("octocat/hello-world", 2, "Merged PR")
	merged.State = model.PRStateMerged
	merged.MergedAt = merged.UpdatedAt

	createPR(t, store, open)
	createPR(t, store, merged)

	repo := NewPRRepo(db)

	openPRs, err := repo.GetByState(ctx, model.PRStateOpen)
	require.NoError(t, err)
	require.Len(t, openPRs, 1)
	assert.Equal(t, "Open PR", openPRs[0].Title)

	mergedPRs, err := repo.GetByState(ctx, model.PRStateMerged)
	require.NoError(t, err)
	require.Len(t, mergedPRs, 1)
	assert.Equal(t, "Merged PR", mergedPRs[0].Title)
	assert.False(t, mergedPRs[0].MergedAt.IsZero())
}

func TestCheckRepo_GetCheckRunsForPR_OrderedByName(t *testing.T) {
	db := setupTestDB(t)
	store := NewSyncRepo(db)
	ctx := context.Background()

	var prID int64
	err := store.WithTx(ctx, func(tx driven.SyncTx) error {
		var err error
		prID, err = tx.CreatePR(ctx, makePRSnapshot("octocat/hello-world", 1, "Add README"))
		if err != nil {
			return err
		}
		for i, name := range []string{"lint", "build", "test"} {
			if _, err := tx.CreateCheckRun(ctx, prID, makeCheckSnapshot("octocat/hello-world", 1, int64(100+i), name)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	runs, err := NewCheckRepo(db).GetCheckRunsForPR(ctx, prID)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "build", runs[0].Name)
	assert.Equal(t, "lint", runs[1].Name)
	assert.Equal(t, "test", runs[2].Name)
}

func TestCheckRepo_GetFailingCheckRuns(t *testing.T) {
	db := setupTestDB(t)
	store := NewSyncRepo(db)
	ctx := context.Background()

	passed := makeCheckSnapshot("octocat/hello-world", 1, 101, "build")

	failed := makeCheckSnapshot("octocat/hello-world", 1, 102, "test")
	failed.Conclusion = model.CheckConclusionFailure

	timedOut := makeCheckSnapshot("octocat/hello-world", 1, 103, "e2e")
	timedOut.Conclusion = model.CheckConclusionTimedOut
	timedOut.CompletedAt = failed.CompletedAt.Add(time.Minute)

	running := makeCheckSnapshot("octocat/hello-world", 1, 104, "deploy")
	running.Status = model.CheckStatusInProgress
	running.Conclusion = ""
	running.CompletedAt = time.Time{}

	err := store.WithTx(ctx, func(tx driven.SyncTx) error {
		prID, err := tx.CreatePR(ctx, makePRSnapshot("octocat/hello-world", 1, "Add README"))
		if err != nil {
			return err
		}
		for _, snap := range []model.CheckRunSnapshot{passed, failed, timedOut, running} {
			if _, err := tx.CreateCheckRun(ctx, prID, snap); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	runs, err := NewCheckRepo(db).GetFailingCheckRuns(ctx, "octocat/hello-world")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest completion first.
	assert.Equal(t, "e2e", runs[0].Name)
	assert.Equal(t, "test", runs[1].Name)
	for _, run := range runs {
		assert.True(t, run.Failed())
	}
}
