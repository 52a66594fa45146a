package application

import (
	"context"
	"fmt"
	"time"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// DetectionService diffs a freshly discovered snapshot against the persisted
// state and produces a ChangeSet. Persisted state is loaded once per
// comparison, never re-queried mid-diff, so the snapshot is always compared
// against a fixed baseline.
type DetectionService struct {
	prStore      driven.PRStore
	checkStore   driven.CheckStore
	recentWindow time.Duration
}

// NewDetectionService creates a DetectionService. recentWindow should match
// the discovery window; discovered PRs outside it are resolved individually.
func NewDetectionService(prStore driven.PRStore, checkStore driven.CheckStore, recentWindow time.Duration) *DetectionService {
	return &DetectionService{
		prStore:      prStore,
		checkStore:   checkStore,
		recentWindow: recentWindow,
	}
}

// DetectChanges computes the full ChangeSet for one repository's snapshot
// from a single consistent read of the persisted PRs.
func (s *DetectionService) DetectChanges(ctx context.Context, repoFullName string, snap *model.RepoSnapshot) (*model.ChangeSet, error) {
	persisted, err := s.loadPersisted(ctx, repoFullName)
	if err != nil {
		return nil, detectionError(repoFullName, err)
	}

	numbers := make([]int, 0, len(snap.PRs)+len(snap.ChecksByPR))
	for _, pr := range snap.PRs {
		numbers = append(numbers, pr.Number)
	}
	for prNumber := range snap.ChecksByPR {
		numbers = append(numbers, prNumber)
	}
	if err := s.backfillBaseline(ctx, repoFullName, numbers, persisted); err != nil {
		return nil, detectionError(repoFullName, err)
	}

	prChanges := diffPRs(snap.PRs, persisted)

	checkChanges, err := s.diffCheckRuns(ctx, persisted, snap.ChecksByPR)
	if err != nil {
		return nil, detectionError(repoFullName, err)
	}

	cs := &model.ChangeSet{RepoFullName: repoFullName}
	for _, ch := range prChanges {
		if ch.Type == model.ChangeTypeNew {
			cs.NewPRs = append(cs.NewPRs, ch)
		} else {
			cs.UpdatedPRs = append(cs.UpdatedPRs, ch)
		}
	}
	for _, ch := range checkChanges {
		if ch.Type == model.ChangeTypeNew {
			cs.NewCheckRuns = append(cs.NewCheckRuns, ch)
		} else {
			cs.UpdatedCheckRuns = append(cs.UpdatedCheckRuns, ch)
		}
	}

	return cs, nil
}

// DetectPRChanges diffs PR snapshots against persisted state. Exposed for
// callers that only need the PR side of the comparison.
func (s *DetectionService) DetectPRChanges(ctx context.Context, repoFullName string, snapshots []model.PRSnapshot) ([]model.PRChange, error) {
	persisted, err := s.loadPersisted(ctx, repoFullName)
	if err != nil {
		return nil, detectionError(repoFullName, err)
	}
	numbers := make([]int, 0, len(snapshots))
	for _, snap := range snapshots {
		numbers = append(numbers, snap.Number)
	}
	if err := s.backfillBaseline(ctx, repoFullName, numbers, persisted); err != nil {
		return nil, detectionError(repoFullName, err)
	}
	return diffPRs(snapshots, persisted), nil
}

// DetectCheckRunChanges diffs check run snapshots, keyed by snapshot PR
// number, against persisted state for the given repository.
func (s *DetectionService) DetectCheckRunChanges(ctx context.Context, repoFullName string, checksByPR map[int][]model.CheckRunSnapshot) ([]model.CheckRunChange, error) {
	persisted, err := s.loadPersisted(ctx, repoFullName)
	if err != nil {
		return nil, detectionError(repoFullName, err)
	}
	numbers := make([]int, 0, len(checksByPR))
	for prNumber := range checksByPR {
		numbers = append(numbers, prNumber)
	}
	if err := s.backfillBaseline(ctx, repoFullName, numbers, persisted); err != nil {
		return nil, detectionError(repoFullName, err)
	}
	changes, err := s.diffCheckRuns(ctx, persisted, checksByPR)
	if err != nil {
		return nil, detectionError(repoFullName, err)
	}
	return changes, nil
}

// loadPersisted performs the cycle's single consistent read of persisted PRs,
// keyed by PR number.
func (s *DetectionService) loadPersisted(ctx context.Context, repoFullName string) (map[int]model.PersistedPR, error) {
	since := time.Now().Add(-s.recentWindow)
	prs, err := s.prStore.GetRecentPRs(ctx, repoFullName, since)
	if err != nil {
		return nil, fmt.Errorf("loading persisted PRs: %w", err)
	}

	byNumber := make(map[int]model.PersistedPR, len(prs))
	for _, pr := range prs {
		byNumber[pr.Number] = pr
	}
	return byNumber, nil
}

// backfillBaseline resolves discovered PR numbers absent from the windowed
// baseline with a direct lookup. A PR that sat idle past the recent-activity
// window and then reactivated has a fresh remote updated_at but a stale
// persisted one; without the lookup it would be misclassified as new and its
// insert would collide with the existing row on every cycle.
func (s *DetectionService) backfillBaseline(ctx context.Context, repoFullName string, numbers []int, persisted map[int]model.PersistedPR) error {
	for _, number := range numbers {
		if _, ok := persisted[number]; ok {
			continue
		}
		pr, err := s.prStore.GetByNumber(ctx, repoFullName, number)
		if err != nil {
			return fmt.Errorf("resolving baseline for PR #%d: %w", number, err)
		}
		if pr != nil {
			persisted[number] = *pr
		}
	}
	return nil
}

// diffPRs compares each snapshot against the persisted baseline. A PR absent
// from the baseline is new; a present one is updated only when at least one
// tracked field differs. Unchanged PRs emit nothing.
func diffPRs(snapshots []model.PRSnapshot, persisted map[int]model.PersistedPR) []model.PRChange {
	var changes []model.PRChange

	for _, snap := range snapshots {
		existing, ok := persisted[snap.Number]
		if !ok {
			changes = append(changes, model.PRChange{
				Type:     model.ChangeTypeNew,
				Snapshot: snap,
			})
			continue
		}

		fields := comparePRFields(existing, snap)
		if len(fields) == 0 {
			continue
		}

		changes = append(changes, model.PRChange{
			Type:     model.ChangeTypeUpdated,
			PRID:     existing.ID,
			Snapshot: snap,
			Changes:  fields,
		})
	}

	return changes
}

// diffCheckRuns compares discovered check runs against persisted ones. The
// persisted baseline is loaded per PR from the same read boundary as the PR
// baseline; check runs of PRs not yet persisted are all new.
func (s *DetectionService) diffCheckRuns(ctx context.Context, persistedPRs map[int]model.PersistedPR, checksByPR map[int][]model.CheckRunSnapshot) ([]model.CheckRunChange, error) {
	var changes []model.CheckRunChange

	for prNumber, runs := range checksByPR {
		existingPR, prKnown := persistedPRs[prNumber]

		byExternalID := make(map[int64]model.PersistedCheckRun)
		var prID int64
		if prKnown {
			prID = existingPR.ID
			persisted, err := s.checkStore.GetCheckRunsForPR(ctx, existingPR.ID)
			if err != nil {
				return nil, fmt.Errorf("loading persisted check runs for PR #%d: %w", prNumber, err)
			}
			for _, run := range persisted {
				byExternalID[run.ExternalID] = run
			}
		}

		for _, snap := range runs {
			existing, ok := byExternalID[snap.ExternalID]
			if !ok {
				changes = append(changes, model.CheckRunChange{
					Type:     model.ChangeTypeNew,
					PRID:     prID,
					Snapshot: snap,
				})
				continue
			}

			fields := compareCheckRunFields(existing, snap)
			if len(fields) == 0 {
				continue
			}

			changes = append(changes, model.CheckRunChange{
				Type:     model.ChangeTypeUpdated,
				CheckID:  existing.ID,
				PRID:     prID,
				Snapshot: snap,
				Changes:  fields,
			})
		}
	}

	return changes, nil
}

// comparePRFields compares every tracked PR field with exact-value equality.
// Label and assignee lists compare as whole sets.
func comparePRFields(old model.PersistedPR, snap model.PRSnapshot) []model.FieldChange {
	var fields []model.FieldChange

	add := func(name string, oldVal, newVal any) {
		fields = append(fields, model.FieldChange{Field: name, Old: oldVal, New: newVal})
	}

	if old.Title != snap.Title {
		add(model.FieldTitle, old.Title, snap.Title)
	}
	if old.Author != snap.Author {
		add(model.FieldAuthor, old.Author, snap.Author)
	}
	if old.State != snap.State {
		add(model.FieldState, old.State, snap.State)
	}
	if old.IsDraft != snap.IsDraft {
		add(model.FieldIsDraft, old.IsDraft, snap.IsDraft)
	}
	if old.BaseBranch != snap.BaseBranch {
		add(model.FieldBaseBranch, old.BaseBranch, snap.BaseBranch)
	}
	if old.HeadBranch != snap.HeadBranch {
		add(model.FieldHeadBranch, old.HeadBranch, snap.HeadBranch)
	}
	if old.BaseSHA != snap.BaseSHA {
		add(model.FieldBaseSHA, old.BaseSHA, snap.BaseSHA)
	}
	if old.HeadSHA != snap.HeadSHA {
		add(model.FieldHeadSHA, old.HeadSHA, snap.HeadSHA)
	}
	if !stringSetEqual(old.Labels, snap.Labels) {
		add(model.FieldLabels, old.Labels, snap.Labels)
	}
	if !stringSetEqual(old.Assignees, snap.Assignees) {
		add(model.FieldAssignees, old.Assignees, snap.Assignees)
	}
	if old.Milestone != snap.Milestone {
		add(model.FieldMilestone, old.Milestone, snap.Milestone)
	}
	if old.URL != snap.URL {
		add(model.FieldURL, old.URL, snap.URL)
	}
	if !old.UpdatedAt.Equal(snap.UpdatedAt) {
		add(model.FieldUpdatedAt, old.UpdatedAt, snap.UpdatedAt)
	}
	if !old.ClosedAt.Equal(snap.ClosedAt) {
		add(model.FieldClosedAt, old.ClosedAt, snap.ClosedAt)
	}
	if !old.MergedAt.Equal(snap.MergedAt) {
		add(model.FieldMergedAt, old.MergedAt, snap.MergedAt)
	}

	return fields
}

// compareCheckRunFields compares every tracked check run field with
// exact-value equality.
func compareCheckRunFields(old model.PersistedCheckRun, snap model.CheckRunSnapshot) []model.FieldChange {
	var fields []model.FieldChange

	add := func(name string, oldVal, newVal any) {
		fields = append(fields, model.FieldChange{Field: name, Old: oldVal, New: newVal})
	}

	if old.Name != snap.Name {
		add(model.FieldName, old.Name, snap.Name)
	}
	if old.Status != snap.Status {
		add(model.FieldStatus, old.Status, snap.Status)
	}
	if old.Conclusion != snap.Conclusion {
		add(model.FieldConclusion, old.Conclusion, snap.Conclusion)
	}
	if old.DetailsURL != snap.DetailsURL {
		add(model.FieldDetailsURL, old.DetailsURL, snap.DetailsURL)
	}
	if old.OutputSummary != snap.OutputSummary {
		add(model.FieldOutputSummary, old.OutputSummary, snap.OutputSummary)
	}
	if !old.StartedAt.Equal(snap.StartedAt) {
		add(model.FieldStartedAt, old.StartedAt, snap.StartedAt)
	}
	if !old.CompletedAt.Equal(snap.CompletedAt) {
		add(model.FieldCompletedAt, old.CompletedAt, snap.CompletedAt)
	}

	return fields
}

// stringSetEqual reports whether two string slices hold the same multiset of
// values, ignoring order.
func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	return true
}
