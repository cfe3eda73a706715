package model

import "time"

// SyncSettings is the user-facing configuration consulted by a sync pass.
//
// A pass reads one snapshot up front and never re-reads it mid-pass, so a
// settings change while a pass is running takes effect on the next pass
// rather than tearing the current one.
type SyncSettings struct {
	// IsEnabled gates the whole engine. When false every sync entry point
	// fails fast with SyncDisabled.
	IsEnabled bool

	// EnabledCourseIDs restricts syncing to these courses. Empty means
	// every assignment with a due date is eligible.
	EnabledCourseIDs []string

	// ReminderOffset is how long before the due time a reminder fires,
	// and also the span of the calendar event block.
	ReminderOffset time.Duration

	AutoSync         time.Duration // 0 disables the periodic trigger
	AutoSyncInterval SyncInterval

	WifiOnlySync         bool
	BatteryOptimizedSync bool
}

// CourseEnabled reports whether assignments from the course are in scope.
func (s SyncSettings) CourseEnabled(courseID string) bool {
	if len(s.EnabledCourseIDs) == 0 {
		return true
	}
	for _, id := range s.EnabledCourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// DefaultReminderOffset applies when settings carry no explicit offset.
const DefaultReminderOffset = time.Hour

// EffectiveReminderOffset returns ReminderOffset, falling back to the
// default when unset.
func (s SyncSettings) EffectiveReminderOffset() time.Duration {
	if s.ReminderOffset <= 0 {
		return DefaultReminderOffset
	}
	return s.ReminderOffset
}
