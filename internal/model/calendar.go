package model

import "time"

// Metadata keys attached to every event the engine creates. The calendar
// gateway persists these as structured key/value pairs; how they are encoded
// on the device (native extended properties or a text block in the
// description) is the gateway's concern, not the reconciler's.
const (
	MetaAssignmentID = "canvas_assignment_id"
	MetaCourseID     = "canvas_course_id"
	MetaSource       = "source"

	// SourceTag marks events owned by this engine. Only events carrying
	// this tag are ever updated or deleted during reconciliation.
	SourceTag = "app_canvas"
)

// Calendar is a writable target on the device.
type Calendar struct {
	ID         string
	Name       string
	IsDefault  bool
	IsReadOnly bool
}

// Event is a device calendar event as seen through the gateway.
//
// Events the engine owns always have IsAllDay=false, span
// [dueAt-offset, dueAt], and carry the three metadata keys above.
type Event struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	IsAllDay    bool
	Metadata    map[string]string
}

// AssignmentID returns the owning assignment id from the event metadata,
// or "" if the event is not tagged.
func (e Event) AssignmentID() string {
	return e.Metadata[MetaAssignmentID]
}

// IsTagged reports whether the event is owned by this engine.
func (e Event) IsTagged() bool {
	return e.Metadata[MetaSource] == SourceTag && e.Metadata[MetaAssignmentID] != ""
}

// PermissionStatus is the device calendar permission state.
type PermissionStatus int

const (
	PermissionUnknown PermissionStatus = iota
	PermissionGranted
	PermissionDenied
	PermissionRestricted
	PermissionPermanentlyDenied
)

// String returns the lowercase name used in logs and errors.
func (p PermissionStatus) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	case PermissionRestricted:
		return "restricted"
	case PermissionPermanentlyDenied:
		return "permanently_denied"
	default:
		return "unknown"
	}
}
