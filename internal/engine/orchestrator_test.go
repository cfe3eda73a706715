package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasync/canvasync/internal/calendar"
	"github.com/canvasync/canvasync/internal/frequency"
	"github.com/canvasync/canvasync/internal/gateway"
	"github.com/canvasync/canvasync/internal/model"
	"github.com/canvasync/canvasync/internal/reminder"
	"github.com/canvasync/canvasync/internal/syncerr"
	"github.com/canvasync/canvasync/internal/testutil"
)

var testStart = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func due(t time.Time) *time.Time { return &t }

func assignment(id string, dueAt, updatedAt *time.Time) model.Assignment {
	return model.Assignment{
		ID:          id,
		CourseID:    "course-1",
		Name:        "Assignment " + id,
		Description: "problem set",
		DueAt:       dueAt,
		UpdatedAt:   updatedAt,
	}
}

// fixture wires a full engine over in-memory gateways with a pinned clock.
type fixture struct {
	source   *testutil.FakeAssignmentSource
	settings *testutil.FakeSettingsStore
	cal      *gateway.MemoryCalendar
	notifier *gateway.MemoryNotifier
	clock    *testutil.ManualClock
	freq     *frequency.Manager
	orch     *Orchestrator
}

func newFixture(assignments []model.Assignment, opts ...Option) *fixture {
	settings := model.SyncSettings{
		IsEnabled:        true,
		ReminderOffset:   time.Hour,
		AutoSyncInterval: model.Interval1Hour,
	}
	return newFixtureWith(assignments, settings, opts...)
}

func newFixtureWith(assignments []model.Assignment, settings model.SyncSettings, opts ...Option) *fixture {
	f := &fixture{
		source:   &testutil.FakeAssignmentSource{Assignments: assignments},
		settings: &testutil.FakeSettingsStore{Settings: settings},
		cal:      gateway.NewMemoryCalendar(),
		notifier: gateway.NewMemoryNotifier(),
		clock:    testutil.NewManualClock(testStart),
	}
	logger := quietLogger()
	f.freq = frequency.NewManager(settings, true,
		frequency.WithManagerLogger(logger),
		frequency.WithManagerNow(f.clock.Now))
	reconciler := calendar.NewReconciler(f.cal, calendar.WithReconcilerLogger(logger))
	resolver := calendar.NewResolver(f.cal, logger)
	reminders := reminder.NewCoordinator(f.notifier,
		reminder.WithLogger(logger),
		reminder.WithNow(f.clock.Now))
	f.orch = New(f.source, f.settings, reconciler, resolver, reminders, f.freq,
		append([]Option{
			WithClock(f.clock),
			WithOrchestratorLogger(logger),
		}, opts...)...)
	return f
}

func TestPerformFullSync_CreatesEventsAndReminders(t *testing.T) {
	dueAt := testStart.Add(48 * time.Hour)
	f := newFixture([]model.Assignment{
		assignment("a1", due(dueAt), due(testStart)),
		assignment("a2", due(dueAt.Add(2*time.Hour)), due(testStart)),
	})

	result, err := f.orch.PerformFullSync(context.Background())
	require.NoError(t, err)

	// Two calendar creates plus two reminder schedules.
	assert.Equal(t, 4, result.EventsCreated)
	assert.Zero(t, result.ErrorsEncountered)
	assert.Equal(t, model.StatusCompleted, f.orch.Status())

	ev, ok := f.cal.EventForAssignment("a1")
	require.True(t, ok)
	assert.Equal(t, dueAt.Add(-time.Hour), ev.StartTime)
	assert.Equal(t, dueAt, ev.EndTime)

	pending, ok := f.notifier.Pending[gateway.ReminderNotificationID("a1")]
	require.True(t, ok)
	assert.Equal(t, dueAt.Add(-time.Hour), pending.FireAt)
	assert.Len(t, f.notifier.Pending, 2)
}

func TestPerformFullSync_SkipsUndatedAssignments(t *testing.T) {
	f := newFixture([]model.Assignment{
		assignment("dated", due(testStart.Add(24*time.Hour)), due(testStart)),
		assignment("undated", nil, due(testStart)),
	})

	result, err := f.orch.PerformFullSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.EventsCreated) // one event, one reminder
	_, ok := f.cal.EventForAssignment("undated")
	assert.False(t, ok)
}

func TestPerformFullSync_SecondRunIsQuiet(t *testing.T) {
	f := newFixture([]model.Assignment{
		assignment("a1", due(testStart.Add(24*time.Hour)), due(testStart)),
		assignment("a2", due(testStart.Add(30*time.Hour)), due(testStart)),
	})
	ctx := context.Background()

	_, err := f.orch.PerformFullSync(ctx)
	require.NoError(t, err)
	creates, updates, deletes := f.cal.CallCounts()
	schedules := f.notifier.ScheduleCalls

	// Nothing changed; the second pass must not touch either gateway.
	result, err := f.orch.PerformFullSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.TotalTouched())

	c2, u2, d2 := f.cal.CallCounts()
	assert.Equal(t, creates, c2)
	assert.Equal(t, updates, u2)
	assert.Equal(t, deletes, d2)
	assert.Equal(t, schedules, f.notifier.ScheduleCalls)
}

func TestPerformFullSync_RemovesOrphanedEvents(t *testing.T) {
	dueAt := testStart.Add(24 * time.Hour)
	f := newFixture([]model.Assignment{
		assignment("keep", due(dueAt), due(testStart)),
		assignment("gone", due(dueAt.Add(time.Hour)), due(testStart)),
	})
	ctx := context.Background()

	_, err := f.orch.PerformFullSync(ctx)
	require.NoError(t, err)

	f.source.Assignments = []model.Assignment{
		assignment("keep", due(dueAt), due(testStart)),
	}

	result, err := f.orch.PerformFullSync(ctx)
	require.NoError(t, err)

	// One orphaned event plus its reminder.
	assert.Equal(t, 2, result.EventsDeleted)
	_, ok := f.cal.EventForAssignment("gone")
	assert.False(t, ok)
	_, ok = f.notifier.Pending[gateway.ReminderNotificationID("gone")]
	assert.False(t, ok)
	_, ok = f.cal.EventForAssignment("keep")
	assert.True(t, ok)
}

func TestPerformFullSync_SyncDisabled(t *testing.T) {
	f := newFixtureWith(nil, model.SyncSettings{IsEnabled: false})

	_, err := f.orch.PerformFullSync(context.Background())
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.CodeSyncDisabled))
	assert.Equal(t, model.StatusFailed, f.orch.Status())
	assert.Zero(t, f.source.Calls, "disabled sync must not hit the network")
}

func TestPerformFullSync_NetworkFailure(t *testing.T) {
	f := newFixture(nil)
	f.source.Err = errors.New("connection refused")

	result, err := f.orch.PerformFullSync(context.Background())
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.CodeNetworkFailure))
	assert.Equal(t, model.StatusFailed, f.orch.Status())
	assert.Zero(t, result.TotalTouched())
}

func TestPerformFullSync_CourseFilterEnforcedLocally(t *testing.T) {
	inScope := assignment("in", due(testStart.Add(24*time.Hour)), due(testStart))
	outOfScope := assignment("out", due(testStart.Add(24*time.Hour)), due(testStart))
	outOfScope.CourseID = "course-other"

	f := newFixtureWith(
		[]model.Assignment{inScope, outOfScope},
		model.SyncSettings{
			IsEnabled:        true,
			EnabledCourseIDs: []string{"course-1"},
			ReminderOffset:   time.Hour,
			AutoSyncInterval: model.Interval1Hour,
		})

	_, err := f.orch.PerformFullSync(context.Background())
	require.NoError(t, err)

	_, ok := f.cal.EventForAssignment("in")
	assert.True(t, ok)
	_, ok = f.cal.EventForAssignment("out")
	assert.False(t, ok, "source results outside enabled courses are dropped")
}

func TestPerformFullSync_ReportsOutcomeToFrequencyManager(t *testing.T) {
	f := newFixture([]model.Assignment{
		assignment("a1", due(testStart.Add(24*time.Hour)), due(testStart)),
	})

	require.Nil(t, f.freq.LastSyncTime())
	_, err := f.orch.PerformFullSync(context.Background())
	require.NoError(t, err)

	last := f.freq.LastSyncTime()
	require.NotNil(t, last)
	assert.True(t, last.Equal(testStart))
	assert.False(t, f.freq.ShouldSyncNow(frequency.Conditions{OnWifi: true}),
		"a pass just finished; the next one is not due yet")
}

// blockingSource parks ListAssignments until released, so tests can observe
// the engine mid-pass.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (b *blockingSource) ListAssignments(ctx context.Context, courseIDs []string) ([]model.Assignment, error) {
	b.entered <- struct{}{}
	<-b.release
	return nil, nil
}

func TestPerformFullSync_RejectsConcurrentPass(t *testing.T) {
	f := newFixture(nil)
	src := newBlockingSource()
	f.orch.source = src

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.PerformFullSync(context.Background())
		done <- err
	}()
	<-src.entered

	assert.Equal(t, model.StatusSyncing, f.orch.Status())
	_, err := f.orch.PerformFullSync(context.Background())
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.CodeSyncInProgress))

	close(src.release)
	require.NoError(t, <-done)
	assert.Equal(t, model.StatusCompleted, f.orch.Status())
}

func TestCancelSync_FinishesAsCancelled(t *testing.T) {
	f := newFixture(nil)
	src := newBlockingSource()
	f.orch.source = src

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.PerformFullSync(context.Background())
		done <- err
	}()
	<-src.entered

	f.orch.CancelSync()
	close(src.release)

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.StatusCancelled, f.orch.Status())
}

func TestCancelSync_NoopWhenIdle(t *testing.T) {
	f := newFixture(nil)
	f.orch.CancelSync()
	assert.Equal(t, model.StatusIdle, f.orch.Status())
}

func TestPerformIncrementalSync_TouchesOnlyChangedAssignments(t *testing.T) {
	dueAt := testStart.Add(48 * time.Hour)
	stale := assignment("stale", due(dueAt), due(testStart.Add(-time.Hour)))
	fresh := assignment("fresh", due(dueAt.Add(time.Hour)), due(testStart.Add(2*time.Hour)))

	f := newFixture([]model.Assignment{stale, fresh})
	ctx := context.Background()

	_, err := f.orch.PerformFullSync(ctx)
	require.NoError(t, err)
	creates, updates, _ := f.cal.CallCounts()

	// Move the fresh assignment's due date past the watermark.
	moved := fresh
	moved.DueAt = due(dueAt.Add(3 * time.Hour))
	f.source.Assignments = []model.Assignment{stale, moved}

	since := testStart.Add(time.Hour)
	result, err := f.orch.PerformIncrementalSync(ctx, &since)
	require.NoError(t, err)

	assert.Equal(t, 1, result.EventsUpdated)
	c2, u2, _ := f.cal.CallCounts()
	assert.Equal(t, creates, c2, "unchanged assignments generate no gateway calls")
	assert.Equal(t, updates+1, u2)

	ev, ok := f.cal.EventForAssignment("fresh")
	require.True(t, ok)
	assert.Equal(t, *moved.DueAt, ev.EndTime)

	// The reminder followed the move.
	pending, ok := f.notifier.Pending[gateway.ReminderNotificationID("fresh")]
	require.True(t, ok)
	assert.Equal(t, moved.DueAt.Add(-time.Hour), pending.FireAt)
}

func TestPerformIncrementalSync_RemovedDueDateDeletes(t *testing.T) {
	a := assignment("a1", due(testStart.Add(24*time.Hour)), due(testStart))
	f := newFixture([]model.Assignment{a})
	ctx := context.Background()

	_, err := f.orch.PerformFullSync(ctx)
	require.NoError(t, err)

	undated := a
	undated.DueAt = nil
	undated.UpdatedAt = due(testStart.Add(time.Hour))
	f.source.Assignments = []model.Assignment{undated}

	since := testStart.Add(30 * time.Minute)
	result, err := f.orch.PerformIncrementalSync(ctx, &since)
	require.NoError(t, err)

	assert.Equal(t, 1, result.EventsDeleted)
	_, ok := f.cal.EventForAssignment("a1")
	assert.False(t, ok)
	_, ok = f.notifier.Pending[gateway.ReminderNotificationID("a1")]
	assert.False(t, ok)
}

func TestPerformIncrementalSync_CreatesMissingEvent(t *testing.T) {
	a := assignment("new", due(testStart.Add(24*time.Hour)), due(testStart.Add(time.Hour)))
	f := newFixture([]model.Assignment{a})

	since := testStart
	result, err := f.orch.PerformIncrementalSync(context.Background(), &since)
	require.NoError(t, err)

	assert.Equal(t, 1, result.EventsCreated)
	_, ok := f.cal.EventForAssignment("new")
	assert.True(t, ok)
}

func TestPerformIncrementalSync_DefaultWatermarkIsSevenDays(t *testing.T) {
	recent := assignment("recent", due(testStart.Add(24*time.Hour)), due(testStart.Add(-24*time.Hour)))
	old := assignment("old", due(testStart.Add(24*time.Hour)), due(testStart.Add(-8*24*time.Hour)))
	f := newFixture([]model.Assignment{recent, old})

	// No prior pass and no explicit since: the window is now minus 7 days.
	result, err := f.orch.PerformIncrementalSync(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.EventsCreated)
	_, ok := f.cal.EventForAssignment("recent")
	assert.True(t, ok)
	_, ok = f.cal.EventForAssignment("old")
	assert.False(t, ok)
}

func TestPerformIncrementalSync_SkipsNeverModifiedAssignments(t *testing.T) {
	f := newFixture([]model.Assignment{
		assignment("unmodified", due(testStart.Add(24*time.Hour)), nil),
	})

	since := testStart.Add(-time.Hour)
	result, err := f.orch.PerformIncrementalSync(context.Background(), &since)
	require.NoError(t, err)
	assert.Zero(t, result.TotalTouched())
}

func TestLastResult_ReturnsCopy(t *testing.T) {
	f := newFixture([]model.Assignment{
		assignment("a1", due(testStart.Add(24*time.Hour)), due(testStart)),
	})

	require.Nil(t, f.orch.LastResult())
	_, err := f.orch.PerformFullSync(context.Background())
	require.NoError(t, err)

	first := f.orch.LastResult()
	require.NotNil(t, first)
	first.EventsCreated = 99
	assert.NotEqual(t, 99, f.orch.LastResult().EventsCreated)

	last := f.orch.LastSyncTime()
	require.NotNil(t, last)
	assert.True(t, last.Equal(testStart))
}

func TestScheduleAssignmentReminder(t *testing.T) {
	f := newFixture(nil)
	a := assignment("solo", due(testStart.Add(6*time.Hour)), due(testStart))

	require.NoError(t, f.orch.ScheduleAssignmentReminder(context.Background(), a, nil))
	pending, ok := f.notifier.Pending[gateway.ReminderNotificationID("solo")]
	require.True(t, ok)
	assert.Equal(t, testStart.Add(5*time.Hour), pending.FireAt)

	require.NoError(t, f.orch.CancelAssignmentReminder(context.Background(), "solo"))
	assert.Empty(t, f.notifier.Pending)

	// Cancelling again is a no-op.
	require.NoError(t, f.orch.CancelAssignmentReminder(context.Background(), "solo"))
}

type stubStats struct {
	stats model.SyncStatistics
}

func (s stubStats) Stats(ctx context.Context, window time.Duration) (model.SyncStatistics, error) {
	return s.stats, nil
}

func TestSyncStatistics(t *testing.T) {
	want := model.SyncStatistics{TotalSyncs: 7, Successes: 6, Failures: 1, SuccessRate: 6.0 / 7.0}
	f := newFixture(nil, WithStatsProvider(stubStats{stats: want}))

	got, err := f.orch.SyncStatistics(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSyncStatistics_NoStoreConfigured(t *testing.T) {
	f := newFixture(nil)
	_, err := f.orch.SyncStatistics(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.CodeUnknown))
}
