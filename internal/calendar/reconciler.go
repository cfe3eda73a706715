package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/canvasync/canvasync/internal/gateway"
	"github.com/canvasync/canvasync/internal/model"
	"github.com/canvasync/canvasync/internal/syncerr"
)

// Reconciler keeps the device calendar in step with the current assignment
// set. It owns the assignmentID-to-eventID mapping: a mapping is created on
// a successful event create and destroyed on a successful delete, and for
// any assignment id at most one live mapping exists.
//
// Thread-safety model: at most one sync pass runs at a time (enforced by
// the orchestrator), and the cache is only touched from within a pass, so
// no internal locking is needed.
type Reconciler struct {
	gw     gateway.CalendarGateway
	logger *slog.Logger

	// cache maps assignmentID to eventID for events this engine created.
	// Consulted before the gateway metadata query on every dedup check.
	cache map[string]string
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the logger. Defaults to slog.Default().
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// NewReconciler creates a Reconciler over the given calendar gateway.
func NewReconciler(gw gateway.CalendarGateway, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		gw:     gw,
		logger: slog.Default(),
		cache:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reset clears the mapping cache. Called when the engine is re-initialized
// for a new user session.
func (r *Reconciler) Reset() {
	r.cache = make(map[string]string)
}

// CachedEventID returns the cached event id for an assignment, if any.
// Diagnostics only; reconciliation goes through Create/Update/Delete.
func (r *Reconciler) CachedEventID(assignmentID string) (string, bool) {
	id, ok := r.cache[assignmentID]
	return id, ok
}

// TargetCalendar resolves the calendar a pass will write to, applying the
// same permission check and default/first-writable preference the mutating
// operations use. calendarID "" means auto-resolve.
func (r *Reconciler) TargetCalendar(ctx context.Context, calendarID string) (string, error) {
	return r.ensureWritable(ctx, calendarID)
}

// ensureWritable checks the permission state and resolves the target
// calendar. calendarID "" means resolve automatically: the system default
// if present, otherwise the first writable calendar.
func (r *Reconciler) ensureWritable(ctx context.Context, calendarID string) (string, error) {
	status, err := r.gw.CheckPermissions(ctx)
	if err != nil {
		return "", syncerr.Wrap(err, syncerr.CodeUnknown, "permission check failed")
	}
	if status != model.PermissionGranted {
		return "", syncerr.PermissionDenied(status.String())
	}

	if calendarID != "" {
		return calendarID, nil
	}

	def, err := r.gw.DefaultCalendar(ctx)
	if err != nil {
		return "", syncerr.Wrap(err, syncerr.CodeUnknown, "default calendar lookup failed")
	}
	if def != nil && !def.IsReadOnly {
		return def.ID, nil
	}

	cals, err := r.gw.Calendars(ctx)
	if err != nil {
		return "", syncerr.Wrap(err, syncerr.CodeUnknown, "calendar listing failed")
	}
	for _, c := range cals {
		if !c.IsReadOnly {
			return c.ID, nil
		}
	}
	return "", syncerr.CalendarNotFound()
}

// lookupEventID finds the tracked event for an assignment: cache first,
// then a gateway metadata query. A gateway hit repopulates the cache.
func (r *Reconciler) lookupEventID(ctx context.Context, calendarID, assignmentID string) (string, bool, error) {
	if id, ok := r.cache[assignmentID]; ok {
		return id, true, nil
	}
	events, err := r.gw.FindEventsByMetadata(ctx, calendarID, map[string]string{
		model.MetaAssignmentID: assignmentID,
		model.MetaSource:       model.SourceTag,
	})
	if err != nil {
		return "", false, syncerr.Wrap(err, syncerr.CodeUnknown, "metadata query failed")
	}
	if len(events) == 0 {
		return "", false, nil
	}
	r.cache[assignmentID] = events[0].ID
	return events[0].ID, true, nil
}

// eventUnchanged reports whether the rebuilt event carries the same
// payload as the stored one.
func eventUnchanged(stored, want model.Event) bool {
	return stored.Title == want.Title &&
		stored.Description == want.Description &&
		stored.StartTime.Equal(want.StartTime) &&
		stored.EndTime.Equal(want.EndTime)
}

// buildEvent constructs the calendar event for an assignment. The event
// spans [dueAt-offset, dueAt] and carries the engine's metadata tag.
func buildEvent(a model.Assignment, calendarID string, offset time.Duration) model.Event {
	due := *a.DueAt
	return model.Event{
		CalendarID:  calendarID,
		Title:       a.Name,
		Description: a.Description,
		StartTime:   due.Add(-offset),
		EndTime:     due,
		IsAllDay:    false,
		Metadata: map[string]string{
			model.MetaAssignmentID: a.ID,
			model.MetaCourseID:     a.CourseID,
			model.MetaSource:       model.SourceTag,
		},
	}
}

// Create adds a tracked event for the assignment.
//
// Fails NoDueDate for undated assignments and DuplicateEvent when a tracked
// event already exists (at-most-one-mapping invariant). calendarID "" means
// auto-resolve.
func (r *Reconciler) Create(ctx context.Context, a model.Assignment, calendarID string, offset time.Duration) (string, error) {
	if !a.HasDueDate() {
		return "", syncerr.NoDueDate(a.ID)
	}

	calID, err := r.ensureWritable(ctx, calendarID)
	if err != nil {
		return "", err
	}

	if existing, found, err := r.lookupEventID(ctx, calID, a.ID); err != nil {
		return "", err
	} else if found {
		return "", syncerr.DuplicateEvent(a.ID, existing)
	}

	event := buildEvent(a, calID, offset)
	eventID, err := r.gw.CreateEvent(ctx, event)
	if err != nil {
		return "", syncerr.Wrap(err, syncerr.CodeUnknown, "event create failed")
	}

	r.cache[a.ID] = eventID
	r.logger.Debug("calendar event created", "assignment", a.ID, "event", eventID)
	return eventID, nil
}

// Update rebuilds and pushes the event payload for an already-tracked
// assignment. Fails EventNotFound when no mapping exists.
func (r *Reconciler) Update(ctx context.Context, a model.Assignment, calendarID string, offset time.Duration) error {
	if !a.HasDueDate() {
		return syncerr.NoDueDate(a.ID)
	}

	calID, err := r.ensureWritable(ctx, calendarID)
	if err != nil {
		return err
	}

	eventID, found, err := r.lookupEventID(ctx, calID, a.ID)
	if err != nil {
		return err
	}
	if !found {
		return syncerr.EventNotFound(a.ID)
	}

	event := buildEvent(a, calID, offset)
	event.ID = eventID
	if err := r.gw.UpdateEvent(ctx, event); err != nil {
		return syncerr.Wrap(err, syncerr.CodeUnknown, "event update failed")
	}
	r.logger.Debug("calendar event updated", "assignment", a.ID, "event", eventID)
	return nil
}

// Delete removes the tracked event for an assignment. Idempotent: absence
// of a mapping is success, not an error. The returned bool reports whether
// an event was actually removed, for callers that count deletions.
func (r *Reconciler) Delete(ctx context.Context, assignmentID, calendarID string) (bool, error) {
	calID, err := r.ensureWritable(ctx, calendarID)
	if err != nil {
		return false, err
	}

	eventID, found, err := r.lookupEventID(ctx, calID, assignmentID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if err := r.gw.DeleteEvent(ctx, calID, eventID); err != nil {
		return false, syncerr.Wrap(err, syncerr.CodeUnknown, "event delete failed")
	}
	delete(r.cache, assignmentID)
	r.logger.Debug("calendar event deleted", "assignment", assignmentID, "event", eventID)
	return true, nil
}

// SyncAll reconciles the full assignment set against the calendar.
//
// The tagged-event listing is done once and reused for every dedup check in
// the pass. Per-item failures are recorded into the result and never abort
// the loop; only the up-front permission/calendar resolution and the
// listing itself are whole-batch failures.
func (r *Reconciler) SyncAll(ctx context.Context, assignments []model.Assignment, calendarID string, offset time.Duration, deleteOrphans bool) (model.SyncResult, error) {
	var result model.SyncResult

	calID, err := r.ensureWritable(ctx, calendarID)
	if err != nil {
		return result, err
	}

	tagged, err := r.gw.FindEventsByMetadata(ctx, calID, map[string]string{
		model.MetaSource: model.SourceTag,
	})
	if err != nil {
		return result, syncerr.Wrap(err, syncerr.CodeUnknown, "tagged event listing failed")
	}

	// One listing per pass: existing maps assignmentID to the stored
	// event for every tracked event, and doubles as the dedup set.
	existing := make(map[string]model.Event, len(tagged))
	for _, ev := range tagged {
		if id := ev.AssignmentID(); id != "" {
			existing[id] = ev
			r.cache[id] = ev.ID
		}
	}

	dueDated := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !a.HasDueDate() {
			continue
		}
		dueDated[a.ID] = true

		if stored, ok := existing[a.ID]; ok {
			event := buildEvent(a, calID, offset)
			event.ID = stored.ID
			// An unchanged assignment generates no gateway call; a
			// second pass over the same list is a no-op.
			if eventUnchanged(stored, event) {
				continue
			}
			if err := r.gw.UpdateEvent(ctx, event); err != nil {
				result.ErrorsEncountered++
				result.ErrorMessages = append(result.ErrorMessages,
					fmt.Sprintf("update %s: %v", a.ID, syncerr.CodeOf(err)))
				r.logger.Warn("event update failed", "assignment", a.ID, "code", syncerr.CodeOf(err))
				continue
			}
			result.EventsUpdated++
		} else {
			event := buildEvent(a, calID, offset)
			eventID, err := r.gw.CreateEvent(ctx, event)
			if err != nil {
				result.ErrorsEncountered++
				result.ErrorMessages = append(result.ErrorMessages,
					fmt.Sprintf("create %s: %v", a.ID, syncerr.CodeOf(err)))
				r.logger.Warn("event create failed", "assignment", a.ID, "code", syncerr.CodeOf(err))
				continue
			}
			r.cache[a.ID] = eventID
			result.EventsCreated++
		}
	}

	if deleteOrphans {
		for assignmentID, stored := range existing {
			if dueDated[assignmentID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := r.gw.DeleteEvent(ctx, calID, stored.ID); err != nil {
				result.ErrorsEncountered++
				result.ErrorMessages = append(result.ErrorMessages,
					fmt.Sprintf("delete %s: %v", assignmentID, syncerr.CodeOf(err)))
				r.logger.Warn("orphan delete failed", "assignment", assignmentID, "code", syncerr.CodeOf(err))
				continue
			}
			delete(r.cache, assignmentID)
			result.EventsDeleted++
		}
	}

	return result, nil
}
