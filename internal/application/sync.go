package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// SyncService applies a ChangeSet to the store atomically. The whole set
// commits in one transaction; any single write failure rolls everything back
// so a later read never observes partial application. Each applied record
// also leaves a change log entry in the same transaction for downstream
// consumers.
type SyncService struct {
	store driven.SyncStore
}

// NewSyncService creates a SyncService backed by the given store.
func NewSyncService(store driven.SyncStore) *SyncService {
	return &SyncService{store: store}
}

// Synchronize writes the change set and returns the number of business rows
// written (change log rows are not counted). An empty set writes nothing and
// returns zero.
func (s *SyncService) Synchronize(ctx context.Context, repoFullName string, cs *model.ChangeSet) (int, error) {
	if cs.Empty() {
		return 0, nil
	}

	detectedAt := time.Now().UTC()
	var rows int

	err := s.store.WithTx(ctx, func(tx driven.SyncTx) error {
		// IDs of PRs created in this transaction, so new check runs of new
		// PRs can resolve their foreign key before commit.
		createdPRs := make(map[int]int64, len(cs.NewPRs))

		for _, ch := range cs.NewPRs {
			id, err := tx.CreatePR(ctx, ch.Snapshot)
			if err != nil {
				return fmt.Errorf("creating PR #%d: %w", ch.Snapshot.Number, err)
			}
			createdPRs[ch.Snapshot.Number] = id
			rows++

			if err := tx.RecordChange(ctx, model.ChangeLogEntry{
				RepoFullName: repoFullName,
				RecordType:   model.RecordTypePR,
				ChangeType:   model.ChangeTypeNew,
				RecordID:     id,
				PRNumber:     ch.Snapshot.Number,
				DetectedAt:   detectedAt,
			}); err != nil {
				return fmt.Errorf("recording new PR #%d: %w", ch.Snapshot.Number, err)
			}
		}

		for _, ch := range cs.UpdatedPRs {
			if err := tx.UpdatePR(ctx, ch.PRID, ch.Changes); err != nil {
				return fmt.Errorf("updating PR #%d: %w", ch.Snapshot.Number, err)
			}
			rows++

			if err := tx.RecordChange(ctx, model.ChangeLogEntry{
				RepoFullName: repoFullName,
				RecordType:   model.RecordTypePR,
				ChangeType:   model.ChangeTypeUpdated,
				RecordID:     ch.PRID,
				PRNumber:     ch.Snapshot.Number,
				Fields:       fieldNames(ch.Changes),
				DetectedAt:   detectedAt,
			}); err != nil {
				return fmt.Errorf("recording updated PR #%d: %w", ch.Snapshot.Number, err)
			}
		}

		for _, ch := range cs.NewCheckRuns {
			prID := ch.PRID
			if prID == 0 {
				prID = createdPRs[ch.Snapshot.PRNumber]
			}
			if prID == 0 {
				return fmt.Errorf("check run %d references unknown PR #%d", ch.Snapshot.ExternalID, ch.Snapshot.PRNumber)
			}

			id, err := tx.CreateCheckRun(ctx, prID, ch.Snapshot)
			if err != nil {
				return fmt.Errorf("creating check run %d: %w", ch.Snapshot.ExternalID, err)
			}
			rows++

			if err := tx.RecordChange(ctx, model.ChangeLogEntry{
				RepoFullName: repoFullName,
				RecordType:   model.RecordTypeCheckRun,
				ChangeType:   model.ChangeTypeNew,
				RecordID:     id,
				PRNumber:     ch.Snapshot.PRNumber,
				ExternalID:   ch.Snapshot.ExternalID,
				DetectedAt:   detectedAt,
			}); err != nil {
				return fmt.Errorf("recording new check run %d: %w", ch.Snapshot.ExternalID, err)
			}
		}

		for _, ch := range cs.UpdatedCheckRuns {
			if err := tx.UpdateCheckRun(ctx, ch.CheckID, ch.Changes); err != nil {
				return fmt.Errorf("updating check run %d: %w", ch.Snapshot.ExternalID, err)
			}
			rows++

			if err := tx.RecordChange(ctx, model.ChangeLogEntry{
				RepoFullName: repoFullName,
				RecordType:   model.RecordTypeCheckRun,
				ChangeType:   model.ChangeTypeUpdated,
				RecordID:     ch.CheckID,
				PRNumber:     ch.Snapshot.PRNumber,
				ExternalID:   ch.Snapshot.ExternalID,
				Fields:       fieldNames(ch.Changes),
				DetectedAt:   detectedAt,
			}); err != nil {
				return fmt.Errorf("recording updated check run %d: %w", ch.Snapshot.ExternalID, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, syncError(repoFullName, err)
	}

	slog.Debug("change set synchronized",
		"repo", repoFullName,
		"rows", rows,
		"new_prs", len(cs.NewPRs),
		"updated_prs", len(cs.UpdatedPRs),
		"new_check_runs", len(cs.NewCheckRuns),
		"updated_check_runs", len(cs.UpdatedCheckRuns),
	)

	return rows, nil
}

func fieldNames(changes []model.FieldChange) []string {
	names := make([]string, 0, len(changes))
	for _, fc := range changes {
		names = append(names, fc.Field)
	}
	return names
}
