package syncerr

import (
	"errors"
	"fmt"
)

// Code categorizes sync errors.
type Code string

const (
	// CodeNoDueDate indicates the assignment has no due date and cannot be
	// placed on the calendar or given a reminder.
	CodeNoDueDate Code = "NO_DUE_DATE"

	// CodeDuplicateEvent indicates a tracked event already exists for the
	// assignment (the at-most-one-mapping invariant would be violated).
	CodeDuplicateEvent Code = "DUPLICATE_EVENT"

	// CodeEventNotFound indicates an update was requested for an
	// assignment with no tracked event.
	CodeEventNotFound Code = "EVENT_NOT_FOUND"

	// CodePermissionDenied indicates the device calendar permission is in
	// any state other than granted.
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// CodeCalendarNotFound indicates no writable target calendar could be
	// resolved.
	CodeCalendarNotFound Code = "CALENDAR_NOT_FOUND"

	// CodeSyncInProgress indicates a sync was requested while another pass
	// is running. Requests are rejected, never queued.
	CodeSyncInProgress Code = "SYNC_IN_PROGRESS"

	// CodeSyncDisabled indicates syncing is switched off in settings.
	CodeSyncDisabled Code = "SYNC_DISABLED"

	// CodeNetworkFailure indicates the remote assignment source could not
	// be reached. Always a whole-batch failure.
	CodeNetworkFailure Code = "NETWORK_FAILURE"

	// CodeUnknown covers everything else.
	CodeUnknown Code = "UNKNOWN"
)

// SyncError is an error detected during a reconciliation pass.
//
// Per-item SyncErrors inside a batch are recorded into the pass result and
// never abort the batch. Whole-batch codes (SyncInProgress, SyncDisabled,
// NetworkFailure, CalendarNotFound, PermissionDenied on the pass
// preconditions) abort immediately.
type SyncError struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description. Identifiers and codes only.
	Message string

	// AssignmentID identifies the affected assignment, when there is one.
	AssignmentID string

	// Details contains additional context for diagnostics.
	Details map[string]string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.AssignmentID != "" {
		return fmt.Sprintf("%s: %s (assignment=%s)", e.Code, e.Message, e.AssignmentID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the Code from err, unwrapping as needed.
// Returns CodeUnknown for non-SyncError errors.
func CodeOf(err error) Code {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code. Uses errors.As to handle
// wrapped errors.
func Is(err error, code Code) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// New creates a SyncError with the given code and message.
func New(code Code, message string) *SyncError {
	return &SyncError{Code: code, Message: message}
}

// NoDueDate creates the per-item error for an undated assignment.
func NoDueDate(assignmentID string) *SyncError {
	return &SyncError{
		Code:         CodeNoDueDate,
		Message:      "assignment has no due date",
		AssignmentID: assignmentID,
	}
}

// DuplicateEvent creates the error for an already-tracked assignment.
func DuplicateEvent(assignmentID, eventID string) *SyncError {
	return &SyncError{
		Code:         CodeDuplicateEvent,
		Message:      "calendar event already exists for assignment",
		AssignmentID: assignmentID,
		Details:      map[string]string{"event_id": eventID},
	}
}

// EventNotFound creates the error for an update with no tracked event.
func EventNotFound(assignmentID string) *SyncError {
	return &SyncError{
		Code:         CodeEventNotFound,
		Message:      "no tracked calendar event for assignment",
		AssignmentID: assignmentID,
	}
}

// PermissionDenied creates the error for a non-granted permission state.
func PermissionDenied(state string) *SyncError {
	return &SyncError{
		Code:    CodePermissionDenied,
		Message: "calendar permission not granted",
		Details: map[string]string{"state": state},
	}
}

// CalendarNotFound creates the error for a missing writable calendar.
func CalendarNotFound() *SyncError {
	return &SyncError{
		Code:    CodeCalendarNotFound,
		Message: "no writable calendar available",
	}
}

// SyncInProgress creates the re-entrancy guard error.
func SyncInProgress() *SyncError {
	return &SyncError{
		Code:    CodeSyncInProgress,
		Message: "a sync pass is already running",
	}
}

// SyncDisabled creates the settings-gate error.
func SyncDisabled() *SyncError {
	return &SyncError{
		Code:    CodeSyncDisabled,
		Message: "calendar sync is disabled in settings",
	}
}

// NetworkFailure wraps a remote fetch failure.
func NetworkFailure(err error) *SyncError {
	return &SyncError{
		Code:    CodeNetworkFailure,
		Message: "failed to fetch assignments",
		Err:     err,
	}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As. If err is already a SyncError it is returned
// unchanged so the original code survives.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	return &SyncError{Code: code, Message: message, Err: err}
}
