package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/canvasync/canvasync/internal/calendar"
	"github.com/canvasync/canvasync/internal/frequency"
	"github.com/canvasync/canvasync/internal/gateway"
	"github.com/canvasync/canvasync/internal/model"
	"github.com/canvasync/canvasync/internal/reminder"
	"github.com/canvasync/canvasync/internal/syncerr"
)

// incrementalDefaultWindow is the watermark applied when an incremental
// sync has no explicit since and no previous pass to anchor on.
const incrementalDefaultWindow = 7 * 24 * time.Hour

// StatsProvider serves windowed sync statistics. Satisfied by
// *history.Store.
type StatsProvider interface {
	Stats(ctx context.Context, window time.Duration) (model.SyncStatistics, error)
}

// Orchestrator drives reconciliation passes.
//
// State machine: Idle -> Syncing -> {Completed, Failed, Cancelled} -> Idle.
// The terminal state of the last pass is retained (together with its
// result) until the next pass starts; Status reports it as-is.
//
// All engine state -- status, the component mappings, the history -- is
// owned by this explicitly constructed object graph. Nothing here is
// process-wide.
type Orchestrator struct {
	source     gateway.AssignmentSource
	settings   gateway.SettingsStore
	reconciler *calendar.Reconciler
	resolver   *calendar.Resolver
	reminders  *reminder.Coordinator
	freq       *frequency.Manager
	stats      StatsProvider

	clock  Clock
	tokens PassTokenGenerator
	logger *slog.Logger

	calendarID    string
	deleteOrphans bool
	courseNames   map[string]string

	mu           sync.Mutex
	status       model.SyncStatus
	lastSyncTime *time.Time
	lastResult   *model.SyncResult
	cancelPass   context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the wall-clock source.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithTokenGenerator overrides the pass token generator.
func WithTokenGenerator(g PassTokenGenerator) Option {
	return func(o *Orchestrator) { o.tokens = g }
}

// WithOrchestratorLogger sets the logger. Defaults to slog.Default().
func WithOrchestratorLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithCalendarID pins the target calendar. Empty means auto-resolve (the
// system default, else the first writable calendar).
func WithCalendarID(id string) Option {
	return func(o *Orchestrator) { o.calendarID = id }
}

// WithDeleteOrphans controls whether full syncs remove tracked events
// whose assignment no longer exists or lost its due date. On by default.
func WithDeleteOrphans(enabled bool) Option {
	return func(o *Orchestrator) { o.deleteOrphans = enabled }
}

// WithCourseNames supplies courseID-to-name labels for notification text.
func WithCourseNames(names map[string]string) Option {
	return func(o *Orchestrator) { o.courseNames = names }
}

// WithStatsProvider attaches the windowed-statistics source.
func WithStatsProvider(p StatsProvider) Option {
	return func(o *Orchestrator) { o.stats = p }
}

// New creates an Orchestrator over the given collaborators.
func New(
	source gateway.AssignmentSource,
	settings gateway.SettingsStore,
	reconciler *calendar.Reconciler,
	resolver *calendar.Resolver,
	reminders *reminder.Coordinator,
	freq *frequency.Manager,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		source:        source,
		settings:      settings,
		reconciler:    reconciler,
		resolver:      resolver,
		reminders:     reminders,
		freq:          freq,
		clock:         SystemClock{},
		tokens:        UUIDv7Generator{},
		logger:        slog.Default(),
		deleteOrphans: true,
		status:        model.StatusIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the current state machine position.
func (o *Orchestrator) Status() model.SyncStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// LastResult returns the result of the most recent finished pass, or nil.
func (o *Orchestrator) LastResult() *model.SyncResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastResult == nil {
		return nil
	}
	r := *o.lastResult
	return &r
}

// LastSyncTime returns when the most recent pass started, or nil.
func (o *Orchestrator) LastSyncTime() *time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastSyncTime == nil {
		return nil
	}
	t := *o.lastSyncTime
	return &t
}

// CancelSync requests cooperative cancellation of the running pass.
// In-flight gateway calls are not interrupted; the pass observes the
// request at the next safe point between per-assignment operations and
// finishes as Cancelled. A no-op when no pass is running.
func (o *Orchestrator) CancelSync() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == model.StatusSyncing && o.cancelPass != nil {
		o.cancelPass()
	}
}

// beginPass transitions Idle (or any terminal state) to Syncing, rejecting
// re-entry, and returns the derived pass context.
func (o *Orchestrator) beginPass(ctx context.Context) (context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == model.StatusSyncing {
		return nil, syncerr.SyncInProgress()
	}
	passCtx, cancel := context.WithCancel(ctx)
	o.status = model.StatusSyncing
	o.cancelPass = cancel
	return passCtx, nil
}

// finishPass records the terminal state and outcome of a pass and reports
// it to the frequency manager.
func (o *Orchestrator) finishPass(ctx context.Context, status model.SyncStatus, result *model.SyncResult, errCode string) {
	o.mu.Lock()
	o.status = status
	if o.cancelPass != nil {
		o.cancelPass()
		o.cancelPass = nil
	}
	if result != nil {
		o.lastResult = result
		t := result.SyncTime
		o.lastSyncTime = &t
	}
	o.mu.Unlock()

	if result == nil {
		return
	}
	// The frequency manager owns the history; report the outcome there
	// regardless of how the pass ended. Use the parent context: the pass
	// context is cancelled by now.
	o.freq.RecordSync(ctx, model.SyncRecord{
		Timestamp: result.SyncTime,
		Success:   status == model.StatusCompleted && result.Success(),
		Duration:  result.SyncDuration,
		Error:     errCode,
	})
}

// PerformFullSync reconciles the entire current assignment set: every
// enabled, due-dated assignment gets a tracked calendar event and a
// reminder, orphans are cleaned up, and a conflict-resolution pass runs
// when the calendar pass recorded per-item errors.
//
// Whole-batch preconditions (already syncing, sync disabled, fetch
// failure, no writable calendar) abort immediately with an error; per-item
// failures are folded into the returned result and never abort the pass.
func (o *Orchestrator) PerformFullSync(ctx context.Context) (model.SyncResult, error) {
	passCtx, err := o.beginPass(ctx)
	if err != nil {
		return model.SyncResult{}, err
	}

	token := o.tokens.Generate()
	start := o.clock.Now()
	result := model.SyncResult{SyncTime: start}
	o.logger.Info("full sync started", "pass", token)

	settings, assignments, err := o.fetchEnabled(passCtx)
	if err != nil {
		result.SyncDuration = o.clock.Now().Sub(start)
		o.finishPass(ctx, model.StatusFailed, &result, string(syncerr.CodeOf(err)))
		o.logger.Warn("full sync failed", "pass", token, "code", syncerr.CodeOf(err))
		return result, err
	}

	offset := settings.EffectiveReminderOffset()

	calResult, err := o.reconciler.SyncAll(passCtx, assignments, o.calendarID, offset, o.deleteOrphans)
	result.Merge(calResult)
	if err != nil {
		status, code := o.failureState(passCtx, err)
		result.SyncDuration = o.clock.Now().Sub(start)
		o.finishPass(ctx, status, &result, code)
		o.logger.Warn("full sync aborted", "pass", token, "code", code)
		return result, err
	}

	// Per-item calendar errors are often collision-shaped (two events
	// fighting over a slot); give the resolver one pass at spreading
	// tracked events out before reporting.
	if calResult.ErrorsEncountered > 0 {
		if calID, resolveErr := o.resolveCalendarID(passCtx); resolveErr == nil {
			resolved, resolveErr := o.resolver.ResolvePass(passCtx, calID, offset)
			if resolveErr == nil {
				result.Merge(resolved)
			} else if passCtx.Err() != nil {
				result.SyncDuration = o.clock.Now().Sub(start)
				o.finishPass(ctx, model.StatusCancelled, &result, "")
				return result, passCtx.Err()
			}
		}
	}

	remResult := o.reminders.SyncAll(passCtx, assignments, settings, o.courseNames)
	mergeReminderResult(&result, remResult)

	if passCtx.Err() != nil {
		result.SyncDuration = o.clock.Now().Sub(start)
		o.finishPass(ctx, model.StatusCancelled, &result, "")
		o.logger.Info("full sync cancelled", "pass", token)
		return result, passCtx.Err()
	}

	result.SyncDuration = o.clock.Now().Sub(start)
	o.finishPass(ctx, model.StatusCompleted, &result, "")
	o.logger.Info("full sync completed",
		"pass", token,
		"created", result.EventsCreated,
		"updated", result.EventsUpdated,
		"deleted", result.EventsDeleted,
		"errors", result.ErrorsEncountered,
		"duration", result.SyncDuration)
	return result, nil
}

// PerformIncrementalSync reconciles only assignments changed since the
// watermark: since when given, else the last sync time, else now minus
// seven days. Unaffected assignments generate zero gateway calls.
func (o *Orchestrator) PerformIncrementalSync(ctx context.Context, since *time.Time) (model.SyncResult, error) {
	passCtx, err := o.beginPass(ctx)
	if err != nil {
		return model.SyncResult{}, err
	}

	token := o.tokens.Generate()
	start := o.clock.Now()
	result := model.SyncResult{SyncTime: start}

	watermark := o.watermark(since, start)
	o.logger.Info("incremental sync started", "pass", token, "since", watermark)

	settings, assignments, err := o.fetchEnabled(passCtx)
	if err != nil {
		result.SyncDuration = o.clock.Now().Sub(start)
		o.finishPass(ctx, model.StatusFailed, &result, string(syncerr.CodeOf(err)))
		o.logger.Warn("incremental sync failed", "pass", token, "code", syncerr.CodeOf(err))
		return result, err
	}

	offset := settings.EffectiveReminderOffset()

	for _, a := range assignments {
		if passCtx.Err() != nil {
			result.SyncDuration = o.clock.Now().Sub(start)
			o.finishPass(ctx, model.StatusCancelled, &result, "")
			o.logger.Info("incremental sync cancelled", "pass", token)
			return result, passCtx.Err()
		}
		if a.UpdatedAt == nil || !a.UpdatedAt.After(watermark) {
			continue
		}
		o.syncOne(passCtx, a, settings, offset, &result)
	}

	result.SyncDuration = o.clock.Now().Sub(start)
	o.finishPass(ctx, model.StatusCompleted, &result, "")
	o.logger.Info("incremental sync completed",
		"pass", token,
		"created", result.EventsCreated,
		"updated", result.EventsUpdated,
		"deleted", result.EventsDeleted,
		"errors", result.ErrorsEncountered,
		"duration", result.SyncDuration)
	return result, nil
}

// syncOne reconciles a single changed assignment. Failures are folded into
// the result; nothing here aborts the pass.
func (o *Orchestrator) syncOne(ctx context.Context, a model.Assignment, settings model.SyncSettings, offset time.Duration, result *model.SyncResult) {
	courseName := o.courseNames[a.CourseID]

	if !a.HasDueDate() {
		deleted, err := o.reconciler.Delete(ctx, a.ID, o.calendarID)
		if err != nil {
			recordItemError(result, "delete", a.ID, err)
			return
		}
		if cancelErr := o.reminders.Cancel(ctx, a.ID); cancelErr != nil {
			recordItemError(result, "cancel", a.ID, cancelErr)
			return
		}
		if deleted {
			result.EventsDeleted++
		}
		return
	}

	err := o.reconciler.Update(ctx, a, o.calendarID, offset)
	switch {
	case err == nil:
		result.EventsUpdated++
	case syncerr.Is(err, syncerr.CodeEventNotFound):
		if _, createErr := o.reconciler.Create(ctx, a, o.calendarID, offset); createErr != nil {
			recordItemError(result, "create", a.ID, createErr)
			return
		}
		result.EventsCreated++
	default:
		recordItemError(result, "update", a.ID, err)
		return
	}

	if remErr := o.reminders.Update(ctx, a, settings, nil, courseName); remErr != nil {
		recordItemError(result, "reminder", a.ID, remErr)
	}
}

// fetchEnabled takes the settings snapshot, enforces the enabled gate, and
// fetches the assignment set filtered to enabled courses. All failures
// here are whole-batch.
func (o *Orchestrator) fetchEnabled(ctx context.Context) (model.SyncSettings, []model.Assignment, error) {
	settings, err := o.settings.Snapshot(ctx)
	if err != nil {
		return settings, nil, syncerr.Wrap(err, syncerr.CodeUnknown, "settings snapshot failed")
	}
	if !settings.IsEnabled {
		return settings, nil, syncerr.SyncDisabled()
	}

	assignments, err := o.source.ListAssignments(ctx, settings.EnabledCourseIDs)
	if err != nil {
		return settings, nil, syncerr.NetworkFailure(err)
	}

	// The source may ignore the course filter; enforce it here so the
	// rest of the pass never sees out-of-scope assignments.
	filtered := assignments[:0]
	for _, a := range assignments {
		if settings.CourseEnabled(a.CourseID) {
			filtered = append(filtered, a)
		}
	}
	return settings, filtered, nil
}

// resolveCalendarID exposes the reconciler's target calendar to the
// conflict resolver without repeating resolution logic.
func (o *Orchestrator) resolveCalendarID(ctx context.Context) (string, error) {
	return o.reconciler.TargetCalendar(ctx, o.calendarID)
}

// watermark picks the incremental window start.
func (o *Orchestrator) watermark(since *time.Time, now time.Time) time.Time {
	if since != nil {
		return *since
	}
	o.mu.Lock()
	last := o.lastSyncTime
	o.mu.Unlock()
	if last != nil {
		return *last
	}
	return now.Add(-incrementalDefaultWindow)
}

// failureState distinguishes a cancelled pass from a failed one.
func (o *Orchestrator) failureState(passCtx context.Context, err error) (model.SyncStatus, string) {
	if passCtx.Err() != nil {
		return model.StatusCancelled, ""
	}
	return model.StatusFailed, string(syncerr.CodeOf(err))
}

// recordItemError folds a per-item failure into the pass result. Only the
// error code reaches the message; assignment content never does.
func recordItemError(result *model.SyncResult, op, assignmentID string, err error) {
	result.ErrorsEncountered++
	result.ErrorMessages = append(result.ErrorMessages,
		fmt.Sprintf("%s %s: %v", op, assignmentID, syncerr.CodeOf(err)))
}

// mergeReminderResult folds reminder reconciliation counts into the pass
// result: schedules count as creates, reschedules as updates, cancels as
// deletes. Skipped assignments were not touched and stay out of the
// accounting.
func mergeReminderResult(result *model.SyncResult, r reminder.BatchResult) {
	result.EventsCreated += r.Scheduled
	result.EventsUpdated += r.Rescheduled
	result.EventsDeleted += r.Cancelled
	result.ErrorsEncountered += r.Failed
	result.ErrorMessages = append(result.ErrorMessages, r.Errors...)
}

// ScheduleAssignmentReminder is the programmatic single-assignment entry
// point, used by change-driven callers outside a sync pass.
func (o *Orchestrator) ScheduleAssignmentReminder(ctx context.Context, a model.Assignment, offset *time.Duration) error {
	settings, err := o.settings.Snapshot(ctx)
	if err != nil {
		return syncerr.Wrap(err, syncerr.CodeUnknown, "settings snapshot failed")
	}
	return o.reminders.Schedule(ctx, a, settings, offset, o.courseNames[a.CourseID])
}

// CancelAssignmentReminder cancels the reminder for an assignment.
// Idempotent.
func (o *Orchestrator) CancelAssignmentReminder(ctx context.Context, assignmentID string) error {
	return o.reminders.Cancel(ctx, assignmentID)
}

// AdaptedSyncInterval reports the interval the external trigger should use
// under the given conditions.
func (o *Orchestrator) AdaptedSyncInterval(cond frequency.Conditions) model.SyncInterval {
	return o.freq.AdaptedInterval(cond)
}

// ShouldSyncNow reports whether the external trigger should start a pass.
func (o *Orchestrator) ShouldSyncNow(cond frequency.Conditions) bool {
	return o.freq.ShouldSyncNow(cond)
}

// SyncStatistics returns windowed statistics from the durable history.
func (o *Orchestrator) SyncStatistics(ctx context.Context, window time.Duration) (model.SyncStatistics, error) {
	if o.stats == nil {
		return model.SyncStatistics{}, syncerr.New(syncerr.CodeUnknown, "no statistics store configured")
	}
	return o.stats.Stats(ctx, window)
}
