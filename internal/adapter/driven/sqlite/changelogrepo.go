package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evanfisk/citriage/internal/domain/model"
	"github.com/evanfisk/citriage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ChangeLogStore = (*ChangeLogRepo)(nil)

// ChangeLogRepo is the SQLite implementation of the ChangeLogStore port.
// Entries are written by SyncRepo inside the synchronization transaction;
// this repo is the read side for downstream consumers.
type ChangeLogRepo struct {
	db *DB
}

// NewChangeLogRepo creates a new ChangeLogRepo backed by the given DB.
func NewChangeLogRepo(db *DB) *ChangeLogRepo {
	return &ChangeLogRepo{db: db}
}

// RecentChanges returns change log entries for the repository detected at or
// after since, oldest first so consumers can process them in order.
func (r *ChangeLogRepo) RecentChanges(ctx context.Context, repoFullName string, since time.Time) ([]model.ChangeLogEntry, error) {
	const query = `
		SELECT id, repo_full_name, record_type, change_type, record_id,
		       pr_number, external_id, fields, detected_at
		FROM change_log
		WHERE repo_full_name = ? AND detected_at >= ?
		ORDER BY detected_at, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoFullName, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query change log: %w", err)
	}
	defer rows.Close()

	var entries []model.ChangeLogEntry
	for rows.Next() {
		var entry model.ChangeLogEntry
		var changeType, fieldsJSON, detectedAt string

		err := rows.Scan(
			&entry.ID, &entry.RepoFullName, &entry.RecordType, &changeType,
			&entry.RecordID, &entry.PRNumber, &entry.ExternalID, &fieldsJSON, &detectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan change log entry: %w", err)
		}

		entry.ChangeType = model.ChangeType(changeType)

		if err := json.Unmarshal([]byte(fieldsJSON), &entry.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}

		if entry.DetectedAt, err = parseTime(detectedAt); err != nil {
			return nil, fmt.Errorf("parse detected_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change log: %w", err)
	}

	return entries, nil
}
