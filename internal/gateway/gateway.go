package gateway

import (
	"context"
	"time"

	"github.com/canvasync/canvasync/internal/model"
)

// AssignmentSource supplies assignment snapshots from the remote system.
//
// A fetch failure is a whole-batch condition: the caller wraps it as
// NetworkFailure and aborts the pass.
type AssignmentSource interface {
	// ListAssignments returns the current assignments for the given
	// courses. An empty courseIDs slice means all courses.
	ListAssignments(ctx context.Context, courseIDs []string) ([]model.Assignment, error)
}

// CalendarGateway is the device calendar boundary.
//
// Mutating calls must be preceded by a permission check; any state other
// than granted fails the call with PermissionDenied rather than crashing.
type CalendarGateway interface {
	// CheckPermissions returns the current calendar permission state
	// without prompting the user.
	CheckPermissions(ctx context.Context) (model.PermissionStatus, error)

	// RequestPermissions prompts the user if the platform allows it and
	// returns the resulting state.
	RequestPermissions(ctx context.Context) (model.PermissionStatus, error)

	// DefaultCalendar returns the system default calendar, or nil if the
	// platform has none configured.
	DefaultCalendar(ctx context.Context) (*model.Calendar, error)

	// Calendars lists all calendars visible to the app.
	Calendars(ctx context.Context) ([]model.Calendar, error)

	// FindEventsByMetadata returns events in the calendar whose metadata
	// contains every key/value pair in match.
	FindEventsByMetadata(ctx context.Context, calendarID string, match map[string]string) ([]model.Event, error)

	// CreateEvent creates the event and returns its assigned id.
	CreateEvent(ctx context.Context, event model.Event) (string, error)

	// UpdateEvent replaces the stored event identified by event.ID.
	UpdateEvent(ctx context.Context, event model.Event) error

	// DeleteEvent removes the event. Deleting an absent event is an error
	// the caller may choose to treat as success.
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// NotificationPayload is the content of a scheduled local alert.
type NotificationPayload struct {
	Title        string
	Body         string
	AssignmentID string
	CourseID     string
}

// NotificationGateway is the local notification scheduler boundary.
//
// Ids are deterministic (see ReminderNotificationID) so that cancel and
// replace are idempotent without the engine tracking platform handles.
type NotificationGateway interface {
	// Schedule arranges for a local alert to fire at fireAt. Scheduling
	// over an existing id replaces the pending alert.
	Schedule(ctx context.Context, id string, fireAt time.Time, payload NotificationPayload) error

	// Cancel removes a pending alert. Implementations should return
	// ErrNotificationNotFound when no alert with the id is pending;
	// callers treat that as success.
	Cancel(ctx context.Context, id string) error
}

// ErrNotificationNotFound is returned by NotificationGateway.Cancel when no
// pending alert matches the id. Callers treat it as success: the desired
// end state (no pending alert) already holds.
var ErrNotificationNotFound = notificationNotFoundError{}

type notificationNotFoundError struct{}

func (notificationNotFoundError) Error() string { return "notification not found" }

// SettingsStore supplies the per-pass settings snapshot.
type SettingsStore interface {
	// Snapshot returns the current settings. The returned value is
	// immutable for the duration of the pass that requested it.
	Snapshot(ctx context.Context) (model.SyncSettings, error)
}
