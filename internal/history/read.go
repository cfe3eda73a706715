package history

import (
	"context"
	"fmt"
	"time"

	"github.com/canvasync/canvasync/internal/model"
)

// Recent returns the newest n sync records, newest first.
// n <= 0 applies DefaultRetention.
func (s *Store) Recent(ctx context.Context, n int) ([]model.SyncRecord, error) {
	if n <= 0 {
		n = DefaultRetention
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_unix_ms, success, duration_ms, error
		FROM sync_records
		ORDER BY timestamp_unix_ms DESC, id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("read sync records: %w", err)
	}
	defer rows.Close()

	var records []model.SyncRecord
	for rows.Next() {
		var (
			tsMillis  int64
			success   int
			durMillis int64
			errText   string
		)
		if err := rows.Scan(&tsMillis, &success, &durMillis, &errText); err != nil {
			return nil, fmt.Errorf("scan sync record: %w", err)
		}
		records = append(records, model.SyncRecord{
			Timestamp: time.UnixMilli(tsMillis),
			Success:   success == 1,
			Duration:  time.Duration(durMillis) * time.Millisecond,
			Error:     errText,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sync records: %w", err)
	}
	return records, nil
}

// Stats derives windowed statistics from the log. window <= 0 means the
// whole retained log.
func (s *Store) Stats(ctx context.Context, window time.Duration) (model.SyncStatistics, error) {
	var stats model.SyncStatistics

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(success), 0),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(MAX(timestamp_unix_ms), 0),
			COALESCE(MAX(CASE WHEN success = 1 THEN timestamp_unix_ms END), 0)
		FROM sync_records
	`
	args := []any{}
	if window > 0 {
		query += " WHERE timestamp_unix_ms >= ?"
		args = append(args, time.Now().Add(-window).UnixMilli())
	}

	var (
		total, successes  int
		avgDurMillis      float64
		lastMillis        int64
		lastSuccessMillis int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&total, &successes, &avgDurMillis, &lastMillis, &lastSuccessMillis)
	if err != nil {
		return stats, fmt.Errorf("sync stats: %w", err)
	}

	stats.TotalSyncs = total
	stats.Successes = successes
	stats.Failures = total - successes
	if total > 0 {
		stats.SuccessRate = float64(successes) / float64(total)
		stats.AvgDuration = time.Duration(avgDurMillis) * time.Millisecond
	}
	if lastMillis > 0 {
		t := time.UnixMilli(lastMillis)
		stats.LastSyncTime = &t
	}
	if lastSuccessMillis > 0 {
		t := time.UnixMilli(lastSuccessMillis)
		stats.LastSuccessTime = &t
	}
	return stats, nil
}
