package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanfisk/citriage/internal/application"
	"github.com/evanfisk/citriage/internal/domain/model"
)

// --- Mock stores ---

type mockPRStore struct {
	recent   []model.PersistedPR
	byNumber map[int]model.PersistedPR
	lastErr  error
}

func (m *mockPRStore) GetRecentPRs(_ context.Context, _ string, _ time.Time) ([]model.PersistedPR, error) {
	return m.recent, m.lastErr
}

func (m *mockPRStore) GetByNumber(_ context.Context, _ string, number int) (*model.PersistedPR, error) {
	if pr, ok := m.byNumber[number]; ok {
		return &pr, nil
	}
	return nil, nil
}

func (m *mockPRStore) GetByState(_ context.Context, _ model.PRState) ([]model.PersistedPR, error) {
	return nil, nil
}

type mockCheckStore struct {
	runsByPR map[int64][]model.PersistedCheckRun
	lastErr  error
}

func (m *mockCheckStore) GetCheckRunsForPR(_ context.Context, prID int64) ([]model.PersistedCheckRun, error) {
	return m.runsByPR[prID], m.lastErr
}

func (m *mockCheckStore) GetFailingCheckRuns(_ context.Context, _ string) ([]model.PersistedCheckRun, error) {
	return nil, nil
}

// --- Fixtures ---

func snapshotPR(number int, title string) model.PRSnapshot {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return model.PRSnapshot{
		RepoFullName: "org/repo",
		Number:       number,
		Title:        title,
		Author:       "octocat",
		State:        model.PRStateOpen,
		BaseBranch:   "main",
		HeadBranch:   "feature",
		HeadSHA:      "abc123",
		Labels:       []string{"bug"},
		URL:          "https://github.com/org/repo/pull/1",
		CreatedAt:    now.Add(-time.Hour),
		UpdatedAt:    now,
	}
}

func persistedFrom(id int64, snap model.PRSnapshot) model.PersistedPR {
	return model.PersistedPR{ID: id, PRSnapshot: snap}
}

func snapshotRun(externalID int64, name, status, conclusion string) model.CheckRunSnapshot {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	run := model.CheckRunSnapshot{
		ExternalID:   externalID,
		RepoFullName: "org/repo",
		HeadSHA:      "abc123",
		Name:         name,
		Status:       status,
		Conclusion:   conclusion,
		StartedAt:    now.Add(-5 * time.Minute),
	}
	if status == model.CheckStatusCompleted {
		run.CompletedAt = now
	}
	return run
}

func newDetector(prs *mockPRStore, checks *mockCheckStore) *application.DetectionService {
	return application.NewDetectionService(prs, checks, 24*time.Hour)
}

// --- Tests ---

func TestDetectChanges_FreshRepoEverythingIsNew(t *testing.T) {
	detector := newDetector(&mockPRStore{}, &mockCheckStore{})

	snap := &model.RepoSnapshot{
		RepoFullName: "org/repo",
		PRs:          []model.PRSnapshot{snapshotPR(1, "Add feature"), snapshotPR(2, "Fix bug")},
		ChecksByPR: map[int][]model.CheckRunSnapshot{
			1: {snapshotRun(101, "build", model.CheckStatusCompleted, model.CheckConclusionSuccess)},
		},
	}

	cs, err := detector.DetectChanges(context.Background(), "org/repo", snap)
	require.NoError(t, err)

	assert.Len(t, cs.NewPRs, 2)
	assert.Empty(t, cs.UpdatedPRs)
	require.Len(t, cs.NewCheckRuns, 1)
	assert.Empty(t, cs.UpdatedCheckRuns)
	// The owning PR is not persisted yet, so the check run cannot carry a PR ID.
	assert.Zero(t, cs.NewCheckRuns[0].PRID)
	assert.Equal(t, 4, cs.Total())
}

func TestDetectChanges_TitleChangeProducesFieldLevelDelta(t *testing.T) {
	persisted := persistedFrom(7, snapshotPR(1, "Fix bug"))
	detector := newDetector(&mockPRStore{recent: []model.PersistedPR{persisted}}, &mockCheckStore{})

	changed := snapshotPR(1, "Fix critical bug")
	snap := &model.RepoSnapshot{RepoFullName: "org/repo", PRs: []model.PRSnapshot{changed}}

	cs, err := detector.DetectChanges(context.Background(), "org/repo", snap)
	require.NoError(t, err)

	assert.Empty(t, cs.NewPRs)
	require.Len(t, cs.UpdatedPRs, 1)

	ch := cs.UpdatedPRs[0]
	assert.Equal(t, model.ChangeTypeUpdated, ch.Type)
	assert.Equal(t, int64(7), ch.PRID)
	require.Len(t, ch.Changes, 1)
	assert.True(t, ch.FieldChanged(model.FieldTitle))
	assert.Equal(t, "Fix bug", ch.OldValue(model.FieldTitle))
}

func TestDetectChanges_IdenticalSnapshotProducesNothing(t *testing.T) {
	snap := snapshotPR(1, "Add feature")
	detector := newDetector(&mockPRStore{recent: []model.PersistedPR{persistedFrom(7, snap)}}, &mockCheckStore{})

	cs, err := detector.DetectChanges(context.Background(), "org/repo",
		&model.RepoSnapshot{RepoFullName: "org/repo", PRs: []model.PRSnapshot{snap}})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}

func TestDetectChanges_LabelOrderDoesNotMatter(t *testing.T) {
	persisted := snapshotPR(1, "Add feature")
	persisted.Labels = []string{"bug", "urgent"}
	detector := newDetector(&mockPRStore{recent: []model.PersistedPR{persistedFrom(7, persisted)}}, &mockCheckStore{})

	reordered := snapshotPR(1, "Add feature")
	reordered.Labels = []string{"urgent", "bug"}

	cs, err := detector.DetectChanges(context.Background(), "org/repo",
		&model.RepoSnapshot{RepoFullName: "org/repo", PRs: []model.PRSnapshot{reordered}})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}

func TestDetectChanges_StateTransitionDetected(t *testing.T) {
	persisted := persistedFrom(7, snapshotPR(1, "Add feature"))
	detector := newDetector(&mockPRStore{recent: []model.PersistedPR{persisted}}, &mockCheckStore{})

	merged := snapshotPR(1, "Add feature")
	merged.State = model.PRStateMerged
	merged.MergedAt = merged.UpdatedAt.Add(time.Minute)
	merged.UpdatedAt = merged.MergedAt

	cs, err := detector.DetectChanges(context.Background(), "org/repo",
		&model.RepoSnapshot{RepoFullName: "org/repo", PRs: []model.PRSnapshot{merged}})
	require.NoError(t, err)

	require.Len(t, cs.UpdatedPRs, 1)
	ch := cs.UpdatedPRs[0]
	assert.True(t, ch.FieldChanged(model.FieldState))
	assert.Equal(t, model.PRStateOpen, ch.OldValue(model.FieldState))
	assert.True(t, ch.FieldChanged(model.FieldMergedAt))
	assert.True(t, ch.FieldChanged(model.FieldUpdatedAt))
}

func TestDetectChanges_CheckRunStatusTransition(t *testing.T) {
	prSnap := snapshotPR(1, "Add feature")
	persistedPR := persistedFrom(7, prSnap)

	persistedRun := model.PersistedCheckRun{
		ID:               33,
		PRID:             7,
		CheckRunSnapshot: snapshotRun(101, "build", model.CheckStatusInProgress, ""),
	}
	checks := &mockCheckStore{runsByPR: map[int64][]model.PersistedCheckRun{7: {persistedRun}}}
	detector := newDetector(&mockPRStore{recent: []model.PersistedPR{persistedPR}}, checks)

	completed := snapshotRun(101, "build", model.CheckStatusCompleted, model.CheckConclusionFailure)
	cs, err := detector.DetectChanges(context.Background(), "org/repo", &model.RepoSnapshot{
		RepoFullName: "org/repo",
		PRs:          []model.PRSnapshot{prSnap},
		ChecksByPR:   map[int][]model.CheckRunSnapshot{1: {completed}},
	})
	require.NoError(t, err)

	assert.Empty(t, cs.NewCheckRuns)
	require.Len(t, cs.UpdatedCheckRuns, 1)

	ch := cs.UpdatedCheckRuns[0]
	assert.Equal(t, int64(33), ch.CheckID)
	assert.Equal(t, int64(7), ch.PRID)
	assert.True(t, ch.FieldChanged(model.FieldStatus))
	assert.True(t, ch.FieldChanged(model.FieldConclusion))
	assert.Equal(t, model.CheckStatusInProgress, ch.OldValue(model.FieldStatus))
}

func TestDetectChanges_NewCheckRunOnKnownPR(t *testing.T) {
	prSnap := snapshotPR(1, "Add feature")
	detector := newDetector(&mockPRStore{recent: []model.PersistedPR{persistedFrom(7, prSnap)}}, &mockCheckStore{})

	cs, err := detector.DetectChanges(context.Background(), "org/repo", &model.RepoSnapshot{
		RepoFullName: "org/repo",
		PRs:          []model.PRSnapshot{prSnap},
		ChecksByPR: map[int][]model.CheckRunSnapshot{
			1: {snapshotRun(102, "lint", model.CheckStatusQueued, "")},
		},
	})
	require.NoError(t, err)

	require.Len(t, cs.NewCheckRuns, 1)
	assert.Equal(t, model.ChangeTypeNew, cs.NewCheckRuns[0].Type)
	assert.Equal(t, int64(7), cs.NewCheckRuns[0].PRID)
}

func TestDetectChanges_ReactivatedPRIsUpdatedNotNew(t *testing.T) {
	// PR #7 went idle 8 days ago, so its persisted row falls outside the
	// 24h recent window and is absent from the windowed baseline.
	stale := snapshotPR(7, "Long idle PR")
	stale.UpdatedAt = time.Now().Add(-8 * 24 * time.Hour)

	prs := &mockPRStore{
		byNumber: map[int]model.PersistedPR{7: persistedFrom(42, stale)},
	}
	checks := &mockCheckStore{}
	detector := newDetector(prs, checks)

	// Fresh activity brings the PR back into discovery.
	reactivated := snapshotPR(7, "Long idle PR")
	reactivated.Title = "Long idle PR, revived"
	reactivated.UpdatedAt = time.Now().Add(-time.Minute)

	cs, err := detector.DetectChanges(context.Background(), "org/repo", &model.RepoSnapshot{
		RepoFullName: "org/repo",
		PRs:          []model.PRSnapshot{reactivated},
		ChecksByPR: map[int][]model.CheckRunSnapshot{
			7: {snapshotRun(301, "build", model.CheckStatusQueued, "")},
		},
	})
	require.NoError(t, err)

	// The existing row must be found and diffed, never re-inserted.
	assert.Empty(t, cs.NewPRs)
	require.Len(t, cs.UpdatedPRs, 1)
	assert.Equal(t, int64(42), cs.UpdatedPRs[0].PRID)
	assert.True(t, cs.UpdatedPRs[0].FieldChanged(model.FieldTitle))
	assert.True(t, cs.UpdatedPRs[0].FieldChanged(model.FieldUpdatedAt))

	// Its check runs resolve against the persisted PR too.
	require.Len(t, cs.NewCheckRuns, 1)
	assert.Equal(t, int64(42), cs.NewCheckRuns[0].PRID)
}

func TestDetectPRChanges_ReactivatedPRResolvedByLookup(t *testing.T) {
	stale := snapshotPR(7, "Long idle PR")
	stale.UpdatedAt = time.Now().Add(-8 * 24 * time.Hour)

	detector := newDetector(&mockPRStore{
		byNumber: map[int]model.PersistedPR{7: persistedFrom(42, stale)},
	}, &mockCheckStore{})

	fresh := snapshotPR(7, "Long idle PR")
	fresh.UpdatedAt = time.Now().Add(-time.Minute)

	changes, err := detector.DetectPRChanges(context.Background(), "org/repo", []model.PRSnapshot{fresh})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, model.ChangeTypeUpdated, changes[0].Type)
	assert.Equal(t, int64(42), changes[0].PRID)
}

func TestDetectChanges_StoreFailureIsTypedDetectionError(t *testing.T) {
	detector := newDetector(&mockPRStore{lastErr: errors.New("disk gone")}, &mockCheckStore{})

	_, err := detector.DetectChanges(context.Background(), "org/repo",
		&model.RepoSnapshot{RepoFullName: "org/repo"})
	require.Error(t, err)

	var phaseErr *application.PhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, model.ErrorTypeChangeDetection, phaseErr.Type)
}
