package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/canvasync/canvasync/internal/model"
)

// timeLayout is the timestamp format in text output.
const timeLayout = "2006-01-02 15:04:05 MST"

// renderResult formats a pass result in the requested format.
func renderResult(r model.SyncResult, format string) (string, error) {
	if format == "json" {
		return renderJSON(map[string]any{
			"events_created":     r.EventsCreated,
			"events_updated":     r.EventsUpdated,
			"events_deleted":     r.EventsDeleted,
			"errors_encountered": r.ErrorsEncountered,
			"error_messages":     r.ErrorMessages,
			"sync_time":          r.SyncTime.UTC().Format(time.RFC3339),
			"sync_duration_ms":   r.SyncDuration.Milliseconds(),
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sync finished at %s in %s\n", r.SyncTime.UTC().Format(timeLayout), r.SyncDuration)
	fmt.Fprintf(&b, "  created: %d\n", r.EventsCreated)
	fmt.Fprintf(&b, "  updated: %d\n", r.EventsUpdated)
	fmt.Fprintf(&b, "  deleted: %d\n", r.EventsDeleted)
	fmt.Fprintf(&b, "  errors:  %d\n", r.ErrorsEncountered)
	for _, msg := range r.ErrorMessages {
		fmt.Fprintf(&b, "    - %s\n", msg)
	}
	return b.String(), nil
}

// renderHistory formats recent sync records, newest first.
func renderHistory(records []model.SyncRecord, format string) (string, error) {
	if format == "json" {
		rows := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			rows = append(rows, map[string]any{
				"timestamp":   rec.Timestamp.UTC().Format(time.RFC3339),
				"success":     rec.Success,
				"duration_ms": rec.Duration.Milliseconds(),
				"error":       rec.Error,
			})
		}
		return renderJSON(rows)
	}

	if len(records) == 0 {
		return "No sync history.\n", nil
	}

	var b strings.Builder
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "FAILED"
			if rec.Error != "" {
				status += " (" + rec.Error + ")"
			}
		}
		fmt.Fprintf(&b, "%s  %-8s %s\n", rec.Timestamp.UTC().Format(timeLayout), rec.Duration, status)
	}
	return b.String(), nil
}

// renderStats formats windowed statistics.
func renderStats(s model.SyncStatistics, format string) (string, error) {
	if format == "json" {
		out := map[string]any{
			"total_syncs":     s.TotalSyncs,
			"successes":       s.Successes,
			"failures":        s.Failures,
			"success_rate":    s.SuccessRate,
			"avg_duration_ms": s.AvgDuration.Milliseconds(),
		}
		if s.LastSyncTime != nil {
			out["last_sync_time"] = s.LastSyncTime.UTC().Format(time.RFC3339)
		}
		if s.LastSuccessTime != nil {
			out["last_success_time"] = s.LastSuccessTime.UTC().Format(time.RFC3339)
		}
		return renderJSON(out)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total syncs:   %d\n", s.TotalSyncs)
	fmt.Fprintf(&b, "Successes:     %d\n", s.Successes)
	fmt.Fprintf(&b, "Failures:      %d\n", s.Failures)
	fmt.Fprintf(&b, "Success rate:  %.0f%%\n", s.SuccessRate*100)
	fmt.Fprintf(&b, "Avg duration:  %s\n", s.AvgDuration)
	if s.LastSyncTime != nil {
		fmt.Fprintf(&b, "Last sync:     %s\n", s.LastSyncTime.UTC().Format(timeLayout))
	}
	if s.LastSuccessTime != nil {
		fmt.Fprintf(&b, "Last success:  %s\n", s.LastSuccessTime.UTC().Format(timeLayout))
	}
	return b.String(), nil
}

func renderJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal output: %w", err)
	}
	return string(data) + "\n", nil
}
