package model

import "time"

// SyncStatus is the orchestrator state machine position.
//
// Transitions: Idle → Syncing → {Completed, Failed, Cancelled} → Idle.
// A sync request while Syncing fails fast; there is no queueing.
type SyncStatus int

const (
	StatusIdle SyncStatus = iota
	StatusSyncing
	StatusCompleted
	StatusFailed
	StatusCancelled
)

// String returns the name used in logs and status output.
func (s SyncStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSyncing:
		return "syncing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SyncResult aggregates the outcome of one reconciliation pass.
//
// INVARIANT: EventsCreated + EventsUpdated + EventsDeleted +
// ErrorsEncountered accounts for every assignment touched in the pass.
// Skipped assignments (no due date, disabled course) are not "touched".
type SyncResult struct {
	EventsCreated     int
	EventsUpdated     int
	EventsDeleted     int
	ErrorsEncountered int
	ErrorMessages     []string
	SyncTime          time.Time
	SyncDuration      time.Duration
}

// Merge folds another result into r. Counters and error messages are
// summed; SyncTime and SyncDuration are left to the caller, which owns the
// pass envelope.
func (r *SyncResult) Merge(other SyncResult) {
	r.EventsCreated += other.EventsCreated
	r.EventsUpdated += other.EventsUpdated
	r.EventsDeleted += other.EventsDeleted
	r.ErrorsEncountered += other.ErrorsEncountered
	r.ErrorMessages = append(r.ErrorMessages, other.ErrorMessages...)
}

// Success reports whether the pass completed without any per-item errors.
func (r SyncResult) Success() bool {
	return r.ErrorsEncountered == 0
}

// TotalTouched returns the number of assignments the pass acted on.
func (r SyncResult) TotalTouched() int {
	return r.EventsCreated + r.EventsUpdated + r.EventsDeleted + r.ErrorsEncountered
}

// SyncRecord is one row of the append-only sync history.
type SyncRecord struct {
	Timestamp time.Time
	Success   bool
	Duration  time.Duration
	Error     string // error code or short message; never assignment content
}

// SyncStatistics summarizes a window of SyncRecords.
type SyncStatistics struct {
	TotalSyncs      int
	Successes       int
	Failures        int
	SuccessRate     float64
	AvgDuration     time.Duration
	LastSyncTime    *time.Time
	LastSuccessTime *time.Time
}
