package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/canvasync/canvasync/internal/gateway"
	"github.com/canvasync/canvasync/internal/model"
	"github.com/canvasync/canvasync/internal/syncerr"
)

// updateNotificationPrefix is the deterministic id prefix for the
// user-visible "assignment changed" alert, distinct from the reminder id
// space so the two never cancel each other.
const updateNotificationPrefix = "assignment_update_"

// Mapping records one active reminder.
type Mapping struct {
	NotificationID string
	ScheduledAt    time.Time
}

// BatchResult aggregates a multi-assignment reminder operation.
// A single item's failure never aborts the batch.
type BatchResult struct {
	Scheduled   int
	Rescheduled int
	Cancelled   int
	Skipped     int // no due date, disabled course, or fire time already past
	Failed      int
	Errors      []string
}

// Coordinator schedules assignment reminders through the notification
// gateway and owns the assignmentID-to-reminder mapping: at most one
// active reminder per assignment id, and ScheduledAt is always at or after
// the wall clock at scheduling time.
//
// Like the calendar Reconciler, the Coordinator is only ever driven from
// within a single sync pass, so the mapping needs no internal locking.
type Coordinator struct {
	gw     gateway.NotificationGateway
	logger *slog.Logger
	now    func() time.Time

	mappings map[string]Mapping
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithNow overrides the wall-clock source. Tests use this to pin "now".
func WithNow(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a Coordinator over the given notification gateway.
func NewCoordinator(gw gateway.NotificationGateway, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		gw:       gw,
		logger:   slog.Default(),
		now:      time.Now,
		mappings: make(map[string]Mapping),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset clears the reminder mapping. Called when the engine is
// re-initialized for a new user session.
func (c *Coordinator) Reset() {
	c.mappings = make(map[string]Mapping)
}

// ActiveMapping returns the active reminder mapping for an assignment.
func (c *Coordinator) ActiveMapping(assignmentID string) (Mapping, bool) {
	m, ok := c.mappings[assignmentID]
	return m, ok
}

// reminderTime computes when the reminder for a fires. offset nil means
// use the settings offset.
func reminderTime(a model.Assignment, settings model.SyncSettings, offset *time.Duration) time.Time {
	off := settings.EffectiveReminderOffset()
	if offset != nil {
		off = *offset
	}
	return a.DueAt.Add(-off)
}

// Schedule arranges a reminder for the assignment.
//
// Fails NoDueDate for undated assignments. Returns success with no gateway
// call when notifications are disabled globally or for the assignment's
// course, or when the fire time is already in the past.
func (c *Coordinator) Schedule(ctx context.Context, a model.Assignment, settings model.SyncSettings, offset *time.Duration, courseName string) error {
	scheduled, err := c.schedule(ctx, a, settings, offset, courseName)
	if err != nil {
		return err
	}
	if !scheduled {
		c.logger.Debug("reminder skipped", "assignment", a.ID)
	}
	return nil
}

// schedule reports whether a gateway call was actually made.
func (c *Coordinator) schedule(ctx context.Context, a model.Assignment, settings model.SyncSettings, offset *time.Duration, courseName string) (bool, error) {
	if !a.HasDueDate() {
		return false, syncerr.NoDueDate(a.ID)
	}
	if !settings.IsEnabled || !settings.CourseEnabled(a.CourseID) {
		return false, nil
	}

	fireAt := reminderTime(a, settings, offset)
	if !fireAt.After(c.now()) {
		return false, nil
	}

	id := gateway.ReminderNotificationID(a.ID)
	payload := gateway.NotificationPayload{
		Title:        "Assignment due soon",
		Body:         reminderBody(a, courseName),
		AssignmentID: a.ID,
		CourseID:     a.CourseID,
	}
	if err := c.gw.Schedule(ctx, id, fireAt, payload); err != nil {
		return false, syncerr.Wrap(err, syncerr.CodeUnknown, "reminder schedule failed")
	}

	c.mappings[a.ID] = Mapping{NotificationID: id, ScheduledAt: fireAt}
	c.logger.Debug("reminder scheduled", "assignment", a.ID, "fire_at", fireAt)
	return true, nil
}

// reminderBody renders the notification text. The assignment description
// never appears here; it may contain submission content.
func reminderBody(a model.Assignment, courseName string) string {
	if courseName != "" {
		return fmt.Sprintf("%s (%s) is due soon", a.Name, courseName)
	}
	return fmt.Sprintf("%s is due soon", a.Name)
}

// Update replaces the reminder for an assignment via cancel-then-reschedule.
//
// The two calls are issued back to back, so there is a brief window with
// no active reminder. An atomic replace would need a dedicated gateway
// primitive; the window is accepted behavior.
func (c *Coordinator) Update(ctx context.Context, a model.Assignment, settings model.SyncSettings, offset *time.Duration, courseName string) error {
	if err := c.Cancel(ctx, a.ID); err != nil {
		return err
	}
	return c.Schedule(ctx, a, settings, offset, courseName)
}

// Cancel removes the reminder for an assignment. Idempotent: a missing
// mapping or a gateway "not found" is success.
func (c *Coordinator) Cancel(ctx context.Context, assignmentID string) error {
	id := gateway.ReminderNotificationID(assignmentID)
	if err := c.gw.Cancel(ctx, id); err != nil && !errors.Is(err, gateway.ErrNotificationNotFound) {
		return syncerr.Wrap(err, syncerr.CodeUnknown, "reminder cancel failed")
	}
	delete(c.mappings, assignmentID)
	return nil
}

// ScheduleMany schedules reminders for a batch of assignments. Undated
// assignments are counted as skipped, not failed; any other per-item error
// is recorded and the loop continues.
func (c *Coordinator) ScheduleMany(ctx context.Context, assignments []model.Assignment, settings model.SyncSettings, courseNames map[string]string) BatchResult {
	var result BatchResult
	for _, a := range assignments {
		if ctx.Err() != nil {
			break
		}
		if !a.HasDueDate() {
			result.Skipped++
			continue
		}
		scheduled, err := c.schedule(ctx, a, settings, nil, courseNames[a.CourseID])
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("schedule %s: %v", a.ID, syncerr.CodeOf(err)))
		case scheduled:
			result.Scheduled++
		default:
			result.Skipped++
		}
	}
	return result
}

// SyncAll reconciles the reminder set against the current assignments:
// new due-dated ids are scheduled, ids whose fire time moved are
// rescheduled, and ids no longer present (or no longer due-dated) are
// cancelled.
func (c *Coordinator) SyncAll(ctx context.Context, assignments []model.Assignment, settings model.SyncSettings, courseNames map[string]string) BatchResult {
	var result BatchResult

	current := make(map[string]model.Assignment, len(assignments))
	for _, a := range assignments {
		if a.HasDueDate() {
			current[a.ID] = a
		}
	}

	for id, a := range current {
		if ctx.Err() != nil {
			break
		}
		existing, has := c.mappings[id]
		if !has {
			scheduled, err := c.schedule(ctx, a, settings, nil, courseNames[a.CourseID])
			switch {
			case err != nil:
				result.Failed++
				result.Errors = append(result.Errors,
					fmt.Sprintf("schedule %s: %v", id, syncerr.CodeOf(err)))
			case scheduled:
				result.Scheduled++
			default:
				result.Skipped++
			}
			continue
		}

		fireAt := reminderTime(a, settings, nil)
		if fireAt.Equal(existing.ScheduledAt) {
			continue
		}
		if err := c.Update(ctx, a, settings, nil, courseNames[a.CourseID]); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("reschedule %s: %v", id, syncerr.CodeOf(err)))
			continue
		}
		result.Rescheduled++
	}

	for id := range c.mappings {
		if _, still := current[id]; still {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if err := c.Cancel(ctx, id); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("cancel %s: %v", id, syncerr.CodeOf(err)))
			continue
		}
		result.Cancelled++
	}

	return result
}

// HandleNewAssignment schedules a reminder for a newly observed
// assignment. Undated assignments are a silent no-op here; the caller has
// no reminder to maintain for them.
func (c *Coordinator) HandleNewAssignment(ctx context.Context, a model.Assignment, settings model.SyncSettings, courseName string) error {
	if !a.HasDueDate() {
		return nil
	}
	return c.Schedule(ctx, a, settings, nil, courseName)
}

// HandleAssignmentUpdate reacts to a changed assignment snapshot: the
// reminder is rescheduled when the fire time moved, and a user-visible
// update alert is posted when the change is significant (exact inequality
// on name, description, due date, or points).
func (c *Coordinator) HandleAssignmentUpdate(ctx context.Context, old, updated model.Assignment, settings model.SyncSettings, courseName string) error {
	if model.ChangedSignificantly(old, updated) {
		if err := c.postUpdateNotification(ctx, updated, courseName); err != nil {
			return err
		}
	}

	switch {
	case !updated.HasDueDate():
		return c.Cancel(ctx, updated.ID)
	case !old.HasDueDate() || !old.DueAt.Equal(*updated.DueAt):
		return c.Update(ctx, updated, settings, nil, courseName)
	default:
		return nil
	}
}

// HandleAssignmentRemoval cancels the reminder for a removed assignment.
func (c *Coordinator) HandleAssignmentRemoval(ctx context.Context, assignmentID string) error {
	return c.Cancel(ctx, assignmentID)
}

// postUpdateNotification fires an immediate "assignment changed" alert.
func (c *Coordinator) postUpdateNotification(ctx context.Context, a model.Assignment, courseName string) error {
	payload := gateway.NotificationPayload{
		Title:        "Assignment updated",
		Body:         reminderBody(a, courseName),
		AssignmentID: a.ID,
		CourseID:     a.CourseID,
	}
	err := c.gw.Schedule(ctx, updateNotificationPrefix+a.ID, c.now(), payload)
	if err != nil {
		return syncerr.Wrap(err, syncerr.CodeUnknown, "update notification failed")
	}
	return nil
}
