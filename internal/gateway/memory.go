package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/canvasync/canvasync/internal/model"
)

// In-memory gateway implementations. Tests use them to observe exactly
// which operations a pass issued; the CLI's dry-run harness uses them in
// place of the platform calendar and notification bindings, which live
// outside this module.

// CalendarCall records one mutating calendar operation.
type CalendarCall struct {
	Op      string // "create", "update", "delete"
	EventID string
}

// MemoryCalendar is an in-memory CalendarGateway. Events are stored by
// id; metadata queries do an exact submap match like a real tagged
// lookup.
type MemoryCalendar struct {
	Permission model.PermissionStatus
	Default    *model.Calendar
	All        []model.Calendar

	Events map[string]model.Event
	Calls  []CalendarCall

	// Fail points: when set, the matching operation returns the error.
	CreateErr error
	UpdateErr error
	DeleteErr error

	nextID int
}

// NewMemoryCalendar creates a granted, single-calendar gateway.
func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{
		Permission: model.PermissionGranted,
		Default:    &model.Calendar{ID: "cal-default", Name: "Default", IsDefault: true},
		All: []model.Calendar{
			{ID: "cal-default", Name: "Default", IsDefault: true},
		},
		Events: make(map[string]model.Event),
	}
}

// CheckPermissions implements CalendarGateway.
func (m *MemoryCalendar) CheckPermissions(ctx context.Context) (model.PermissionStatus, error) {
	return m.Permission, nil
}

// RequestPermissions implements CalendarGateway.
func (m *MemoryCalendar) RequestPermissions(ctx context.Context) (model.PermissionStatus, error) {
	return m.Permission, nil
}

// DefaultCalendar implements CalendarGateway.
func (m *MemoryCalendar) DefaultCalendar(ctx context.Context) (*model.Calendar, error) {
	return m.Default, nil
}

// Calendars implements CalendarGateway.
func (m *MemoryCalendar) Calendars(ctx context.Context) ([]model.Calendar, error) {
	return m.All, nil
}

// FindEventsByMetadata implements CalendarGateway.
func (m *MemoryCalendar) FindEventsByMetadata(ctx context.Context, calendarID string, match map[string]string) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range m.Events {
		if ev.CalendarID != calendarID {
			continue
		}
		if MetadataMatches(ev.Metadata, match) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// CreateEvent implements CalendarGateway.
func (m *MemoryCalendar) CreateEvent(ctx context.Context, event model.Event) (string, error) {
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.nextID++
	event.ID = "evt-" + strconv.Itoa(m.nextID)
	m.Events[event.ID] = event
	m.Calls = append(m.Calls, CalendarCall{Op: "create", EventID: event.ID})
	return event.ID, nil
}

// UpdateEvent implements CalendarGateway.
func (m *MemoryCalendar) UpdateEvent(ctx context.Context, event model.Event) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.Events[event.ID]; !ok {
		return fmt.Errorf("event %s not found", event.ID)
	}
	m.Events[event.ID] = event
	m.Calls = append(m.Calls, CalendarCall{Op: "update", EventID: event.ID})
	return nil
}

// DeleteEvent implements CalendarGateway.
func (m *MemoryCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.Events[eventID]; !ok {
		return fmt.Errorf("event %s not found", eventID)
	}
	delete(m.Events, eventID)
	m.Calls = append(m.Calls, CalendarCall{Op: "delete", EventID: eventID})
	return nil
}

// CallCounts tallies the recorded mutating operations by kind.
func (m *MemoryCalendar) CallCounts() (creates, updates, deletes int) {
	for _, c := range m.Calls {
		switch c.Op {
		case "create":
			creates++
		case "update":
			updates++
		case "delete":
			deletes++
		}
	}
	return creates, updates, deletes
}

// EventForAssignment returns the single tagged event for an assignment
// id, or a zero Event and false. Panics if the at-most-one invariant is
// broken so callers fail loudly at the point of violation.
func (m *MemoryCalendar) EventForAssignment(assignmentID string) (model.Event, bool) {
	var found []model.Event
	for _, ev := range m.Events {
		if ev.AssignmentID() == assignmentID {
			found = append(found, ev)
		}
	}
	switch len(found) {
	case 0:
		return model.Event{}, false
	case 1:
		return found[0], true
	default:
		panic(fmt.Sprintf("assignment %s has %d tagged events", assignmentID, len(found)))
	}
}

// ScheduledNotification is one pending alert in the in-memory scheduler.
type ScheduledNotification struct {
	ID      string
	FireAt  time.Time
	Payload NotificationPayload
}

// MemoryNotifier is an in-memory NotificationGateway.
type MemoryNotifier struct {
	Pending map[string]ScheduledNotification

	ScheduleCalls int
	CancelCalls   int

	ScheduleErr error
	CancelErr   error
}

// NewMemoryNotifier creates an empty in-memory scheduler.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{Pending: make(map[string]ScheduledNotification)}
}

// Schedule implements NotificationGateway. Scheduling over an existing id
// replaces the pending alert, mirroring platform behavior.
func (m *MemoryNotifier) Schedule(ctx context.Context, id string, fireAt time.Time, payload NotificationPayload) error {
	m.ScheduleCalls++
	if m.ScheduleErr != nil {
		return m.ScheduleErr
	}
	m.Pending[id] = ScheduledNotification{ID: id, FireAt: fireAt, Payload: payload}
	return nil
}

// Cancel implements NotificationGateway.
func (m *MemoryNotifier) Cancel(ctx context.Context, id string) error {
	m.CancelCalls++
	if m.CancelErr != nil {
		return m.CancelErr
	}
	if _, ok := m.Pending[id]; !ok {
		return ErrNotificationNotFound
	}
	delete(m.Pending, id)
	return nil
}
