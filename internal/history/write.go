package history

import (
	"context"
	"fmt"

	"github.com/canvasync/canvasync/internal/model"
)

// Append inserts a sync record into the log.
//
// The record's error field must already be reduced to a code or short
// message; assignment content never reaches the log.
func (s *Store) Append(ctx context.Context, rec model.SyncRecord) error {
	success := 0
	if rec.Success {
		success = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_records (timestamp_unix_ms, success, duration_ms, error)
		VALUES (?, ?, ?, ?)
	`,
		rec.Timestamp.UnixMilli(),
		success,
		rec.Duration.Milliseconds(),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("append sync record: %w", err)
	}
	return nil
}

// Prune enforces bounded retention, deleting all but the newest keep
// records. keep <= 0 applies DefaultRetention.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		keep = DefaultRetention
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_records
		WHERE id NOT IN (
			SELECT id FROM sync_records
			ORDER BY timestamp_unix_ms DESC, id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("prune sync records: %w", err)
	}
	return nil
}
